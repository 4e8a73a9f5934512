package core

import "errors"

var (
	// ErrHubStopped is returned by hub calls made after Run has returned.
	ErrHubStopped = errors.New("hub stopped")
	// ErrMissingTicketID is returned for a publish without a room.
	ErrMissingTicketID = errors.New("ticket id is required")
	// ErrMissingComment is returned for a comment publish without a comment.
	ErrMissingComment = errors.New("comment is required")
	// ErrMissingStatus is returned for a status publish without a status.
	ErrMissingStatus = errors.New("status is required")
	// ErrUnknownCommand is returned for a command kind the hub does not handle.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownEvent is returned for an event kind rooms cannot receive.
	ErrUnknownEvent = errors.New("unknown event")
)
