package session

// State names the manager's coarse lifecycle phase. Transitions only happen
// inside the manager's public operations, so the presentation layer can
// treat each operation as an atomic move between named states.
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateSendingMessage
	StateSwitchingSession
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateSendingMessage:
		return "sending-message"
	case StateSwitchingSession:
		return "switching-session"
	default:
		return "unknown"
	}
}
