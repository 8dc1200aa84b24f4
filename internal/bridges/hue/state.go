package hue

// DesiredState is a requested binary device state.
type DesiredState string

const (
	StateOn  DesiredState = "on"
	StateOff DesiredState = "off"
)

// ParseDesiredState decodes a raw state value from a signal.
// Anything other than exactly "on" or "off" is reported as invalid.
func ParseDesiredState(raw string) (DesiredState, bool) {
	switch DesiredState(raw) {
	case StateOn:
		return StateOn, true
	case StateOff:
		return StateOff, true
	default:
		return "", false
	}
}

// Valid reports whether s is on or off.
func (s DesiredState) Valid() bool {
	return s == StateOn || s == StateOff
}

// On reports whether s is StateOn.
func (s DesiredState) On() bool {
	return s == StateOn
}

func stateFromBool(on bool) DesiredState {
	if on {
		return StateOn
	}
	return StateOff
}
