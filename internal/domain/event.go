package domain

// Event is a notification deposited by a module for external subscribers.
type Event interface {
	EventName() string
	ModuleName() string
}

// SomethingStored is deposited after a successful store.
type SomethingStored struct {
	Module string    `json:"module"`
	Value  uint32    `json:"value"`
	Who    AccountID `json:"who"`
}

func (SomethingStored) EventName() string    { return "SomethingStored" }
func (e SomethingStored) ModuleName() string { return e.Module }
