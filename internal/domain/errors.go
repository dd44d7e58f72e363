package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a dispatch origin is not a signed account.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNoneValue is returned when incrementing a counter that was never stored.
	ErrNoneValue = errors.New("counter value is not set")
	// ErrStorageOverflow is returned when an increment would leave the u32 range.
	ErrStorageOverflow = errors.New("counter storage overflow")

	ErrModuleNotFound = errors.New("module not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnknownCall    = errors.New("unknown call")
	ErrKeyNotFound    = errors.New("key not found")
	ErrKeyLocked      = errors.New("key is locked")
)

// DispatchErrorName returns the wire name of a dispatch error.
func DispatchErrorName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Unauthenticated"
	case errors.Is(err, ErrNoneValue):
		return "NoneValue"
	case errors.Is(err, ErrStorageOverflow):
		return "StorageOverflow"
	case errors.Is(err, ErrModuleNotFound):
		return "ModuleNotFound"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrUnknownCall):
		return "UnknownCall"
	default:
		return "Other"
	}
}
