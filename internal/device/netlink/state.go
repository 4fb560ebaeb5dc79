package netlink

// State is the supervisor's explicit connection state machine. The
// normal progression is Idle, Starting, Connecting, Connected, Online;
// Disconnected is reached only when the retry budget is exhausted.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateConnecting
	StateConnected
	StateOnline
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateOnline:
		return "online"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
