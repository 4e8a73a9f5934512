package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom   = "join-room"
	InboundTypeLeaveRoom  = "leave-room"
	InboundTypeNewComment = "new-comment"
	InboundTypeNewStatus  = "new-status"

	OutboundTypeEvent = "event"

	EventReceiveComment = "receive-comment"
	EventReceiveStatus  = "receive-status"
)

// Comment is the wire shape of a ticket comment.
type Comment struct {
	AuthorID       string    `json:"authorId"`
	Content        string    `json:"content"`
	IsAdminComment bool      `json:"isAdminComment"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewCommentData asks the server to fan out an already persisted comment.
type NewCommentData struct {
	TicketID string   `json:"ticketId"`
	Comment  *Comment `json:"comment"`
}

// NewStatusData asks the server to fan out an already persisted status.
type NewStatusData struct {
	TicketID string `json:"ticketId"`
	Status   string `json:"status"`
}

// Outbound is the envelope for messages sent to the client.
// Data is a Comment for receive-comment and a plain string for receive-status.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// OutboundFrame is Outbound as read by a client, with Data left raw.
type OutboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ticket is the document returned by the ticket API.
type Ticket struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"studentId"`
	ComplaintType string    `json:"complaintType"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Comments      []Comment `json:"comments"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CommentInput is the client-supplied part of a new comment.
type CommentInput struct {
	AuthorID       string `json:"authorId"`
	Content        string `json:"content"`
	IsAdminComment bool   `json:"isAdminComment"`
}

// TicketUpdate is the allow-listed body of a ticket update.
type TicketUpdate struct {
	Description   *string       `json:"description,omitempty"`
	ComplaintType *string       `json:"complaintType,omitempty"`
	Status        *string       `json:"status,omitempty"`
	Comment       *CommentInput `json:"comment,omitempty"`
}

// CreateTicket is the body for opening a ticket.
type CreateTicket struct {
	StudentID     string `json:"studentId" binding:"required"`
	ComplaintType string `json:"complaintType" binding:"required"`
	Description   string `json:"description" binding:"required"`
}
