package wire

import "strings"

// Operation identifies a request to the core.
type Operation uint8

const (
	// OpRegister announces the remote to the core and returns CoreInfo.
	OpRegister Operation = 1

	// OpSubscribeZones starts the zone subscription.
	OpSubscribeZones Operation = 2

	// OpUnsubscribeZones ends the zone subscription.
	OpUnsubscribeZones Operation = 3

	// OpControl sends a transport control to a zone.
	OpControl Operation = 4

	// OpMute mutes or unmutes an output.
	OpMute Operation = 5

	// OpPauseAll pauses every zone.
	OpPauseAll Operation = 6

	// OpBrowse navigates the browse hierarchy.
	OpBrowse Operation = 7

	// OpLoad fetches a page of the current browse list.
	OpLoad Operation = 8
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpRegister:
		return "Register"
	case OpSubscribeZones:
		return "SubscribeZones"
	case OpUnsubscribeZones:
		return "UnsubscribeZones"
	case OpControl:
		return "Control"
	case OpMute:
		return "Mute"
	case OpPauseAll:
		return "PauseAll"
	case OpBrowse:
		return "Browse"
	case OpLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the operation is known.
func (o Operation) IsValid() bool {
	return o >= OpRegister && o <= OpLoad
}

// ParseOperation returns the operation whose name equals name, ignoring
// case.
func ParseOperation(name string) (Operation, bool) {
	for o := OpRegister; o <= OpLoad; o++ {
		if strings.EqualFold(o.String(), name) {
			return o, true
		}
	}
	return 0, false
}
