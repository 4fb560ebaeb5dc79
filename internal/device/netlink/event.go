package netlink

// Link lifecycle events, modeled as a tagged variant: each event kind
// carries its own typed payload and the transition logic lives in a
// pure function over (state, event).

type EventKind int

const (
	// KindLinkUp fires when the link layer has started and a
	// connection attempt may begin.
	KindLinkUp EventKind = iota
	// KindLinkLost fires when an established or in-progress connection
	// drops.
	KindLinkLost
	// KindAddressAcquired fires when the endpoint is reachable and a
	// local address has been bound.
	KindAddressAcquired
)

func (k EventKind) String() string {
	switch k {
	case KindLinkUp:
		return "link-up"
	case KindLinkLost:
		return "link-lost"
	case KindAddressAcquired:
		return "address-acquired"
	default:
		return "unknown"
	}
}

type Event interface {
	Kind() EventKind
}

type LinkUpEvent struct{}

func (LinkUpEvent) Kind() EventKind { return KindLinkUp }

type LinkLostEvent struct {
	Reason string
}

func (LinkLostEvent) Kind() EventKind { return KindLinkLost }

type AddressAcquiredEvent struct {
	// Address is the bound local address in dotted-decimal form.
	Address string
}

func (AddressAcquiredEvent) Kind() EventKind { return KindAddressAcquired }

// Action is what the supervisor must do in response to an event.
type Action int

const (
	ActionNone Action = iota
	// ActionConnect starts a fresh connection attempt.
	ActionConnect
	// ActionReconnect schedules one backoff-delayed connection attempt.
	ActionReconnect
	// ActionLogAddress records the acquired address.
	ActionLogAddress
)

// Reduce maps an event onto the next state and the action to take. It
// is a pure function: no I/O, no hidden state.
func Reduce(state State, event Event) (State, Action) {
	switch event.(type) {
	case LinkUpEvent:
		return StateConnecting, ActionConnect
	case LinkLostEvent:
		return StateConnecting, ActionReconnect
	case AddressAcquiredEvent:
		return StateOnline, ActionLogAddress
	default:
		return state, ActionNone
	}
}
