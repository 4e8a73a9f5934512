package store

import (
	"context"
	"errors"

	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

// ErrNotFound is returned when a ticket does not exist.
var ErrNotFound = errors.New("not found")

// NewTicket holds the fields for opening a ticket.
type NewTicket struct {
	StudentID     string
	ComplaintType string
	Description   string
}

// TicketStore handles ticket persistence.
type TicketStore interface {
	// CreateTicket opens a ticket with status open.
	CreateTicket(ctx context.Context, t NewTicket) (*ticket.Ticket, error)

	// GetTicket retrieves a ticket with its comments in append order.
	GetTicket(ctx context.Context, id string) (*ticket.Ticket, error)

	// ListTickets lists tickets newest first. An empty studentID lists all.
	ListTickets(ctx context.Context, studentID string) ([]*ticket.Ticket, error)

	// UpdateTicket applies an allow-listed update in one transaction.
	// A comment is appended with a timestamp taken from the store's clock.
	UpdateTicket(ctx context.Context, id string, upd ticket.Update) (*ticket.Ticket, error)

	// DeleteTicket removes a ticket and its comments.
	DeleteTicket(ctx context.Context, id string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	TicketStore

	// Close closes the underlying database connection.
	Close() error
}
