package hue

// Type tags that prefix a device identifier.
const (
	LightTag = 'L'
	GroupTag = 'G'
)

// Kind is the resource kind named by a device identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindLight
	KindGroup
)

// String returns the lowercase name used in logs, metrics and broadcasts.
func (k Kind) String() string {
	switch k {
	case KindLight:
		return "light"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Target is a classified device identifier.
type Target struct {
	Kind Kind

	// Address is the native Hue id with the type tag removed.
	Address string
}

// Classify resolves a device identifier to its kind and native address.
//
// Only the first character is inspected. The empty string and any
// unrecognised tag yield KindUnknown, which callers skip.
func Classify(id string) Target {
	if id == "" {
		return Target{Kind: KindUnknown}
	}
	switch id[0] {
	case LightTag:
		return Target{Kind: KindLight, Address: id[1:]}
	case GroupTag:
		return Target{Kind: KindGroup, Address: id[1:]}
	default:
		return Target{Kind: KindUnknown}
	}
}
