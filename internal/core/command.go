package core

import "github.com/vovakirdan/ticketsync-server/internal/ticket"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the client to a ticket room.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from a ticket room.
	CommandLeaveRoom
	// CommandPublishComment fans out an already persisted comment.
	CommandPublishComment
	// CommandPublishStatus fans out an already persisted status.
	CommandPublishStatus
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Room    string
	Comment *ticket.Comment
	Status  ticket.Status
}
