package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountID identifies a caller or a signing account.
type AccountID []byte

func (a AccountID) Hex() string { return hex.EncodeToString(a) }

func (a AccountID) String() string { return "0x" + a.Hex() }

func (a AccountID) Equal(other AccountID) bool { return string(a) == string(other) }

// MarshalText encodes the account as 0x-prefixed hex.
func (a AccountID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAccountID accepts a hex string with or without the 0x prefix.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, fmt.Errorf("%w: empty account id", ErrInvalidInput)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: account id: %v", ErrInvalidInput, err)
	}
	return AccountID(raw), nil
}

type originKind int

const (
	originNone originKind = iota
	originRoot
	originSigned
)

// Origin is the authenticated source of a dispatch.
type Origin struct {
	kind originKind
	who  AccountID
}

func NoneOrigin() Origin { return Origin{kind: originNone} }

func RootOrigin() Origin { return Origin{kind: originRoot} }

func SignedOrigin(who AccountID) Origin {
	if len(who) == 0 {
		return NoneOrigin()
	}
	return Origin{kind: originSigned, who: append(AccountID(nil), who...)}
}

// EnsureSigned returns the caller account of a signed origin. Root and
// unsigned origins are both rejected.
func EnsureSigned(o Origin) (AccountID, error) {
	if o.kind != originSigned {
		return nil, ErrUnauthenticated
	}
	return o.who, nil
}
