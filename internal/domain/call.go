package domain

// Pays tells whether the caller is charged a fee for a call.
type Pays int

const (
	PaysYes Pays = iota
	PaysNo
)

func (p Pays) String() string {
	if p == PaysNo {
		return "No"
	}
	return "Yes"
}

// DispatchInfo is the static cost class of a call.
type DispatchInfo struct {
	CallIndex uint8
	Weight    uint64
	Pays      Pays
}

// Call is a dispatchable counter operation.
type Call interface {
	Info() DispatchInfo
	Name() string
}

const (
	storeWeight     = 10_000
	incrementWeight = 12_000
)

// StoreCall overwrites the stored value.
type StoreCall struct {
	Value uint32 `json:"value"`
}

func (StoreCall) Info() DispatchInfo {
	return DispatchInfo{CallIndex: 0, Weight: storeWeight, Pays: PaysNo}
}
func (StoreCall) Name() string { return "store" }

// IncrementCall adds one to the stored value.
type IncrementCall struct{}

func (IncrementCall) Info() DispatchInfo {
	return DispatchInfo{CallIndex: 1, Weight: incrementWeight, Pays: PaysNo}
}
func (IncrementCall) Name() string { return "increment" }
