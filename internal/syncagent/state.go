package syncagent

// State is the connection lifecycle of an Agent.
type State int

const (
	// StateDisconnected means no transport is up. Events are not processed.
	StateDisconnected State = iota
	// StateConnected means the socket is open but the room is not joined yet.
	StateConnected
	// StateJoined means join-room was sent and pushed events are reconciled.
	StateJoined
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChangeKind says what changed in the local projection.
type ChangeKind int

const (
	// ChangeLoaded means the whole ticket was replaced by a fetch.
	ChangeLoaded ChangeKind = iota
	// ChangeComment means a comment was appended.
	ChangeComment
	// ChangeStatus means the status was overwritten.
	ChangeStatus
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangeComment:
		return "comment"
	case ChangeStatus:
		return "status"
	default:
		return "unknown"
	}
}
