package core

import "github.com/vovakirdan/ticketsync-server/internal/ticket"

// EventKind is a notification the core pushes to a room.
type EventKind int

const (
	// EventCommentAdded carries a comment that was appended to the ticket.
	EventCommentAdded EventKind = iota
	// EventStatusChanged carries the ticket's new status.
	EventStatusChanged
)

func (k EventKind) String() string {
	switch k {
	case EventCommentAdded:
		return "comment_added"
	case EventStatusChanged:
		return "status_changed"
	default:
		return "unknown"
	}
}

// Valid reports whether k is an event clients can receive.
func (k EventKind) Valid() bool {
	return k == EventCommentAdded || k == EventStatusChanged
}

// Event is published into the room whose id equals TicketID.
type Event struct {
	Kind     EventKind
	TicketID string
	Comment  ticket.Comment // EventCommentAdded
	Status   ticket.Status  // EventStatusChanged
}
