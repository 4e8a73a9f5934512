package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ticketsync-server/internal/core"
	"github.com/vovakirdan/ticketsync-server/internal/proto"
	"github.com/vovakirdan/ticketsync-server/internal/store"
	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

// maxUpdateBody caps the size of a ticket update request.
const maxUpdateBody = 64 << 10

// TicketHandlers serves the complaint ticket API.
type TicketHandlers struct {
	hub       *core.Hub
	store     store.TicketStore
	broadcast bool
	log       *zerolog.Logger
}

// NewTicketHandlers creates the ticket handlers. With broadcast set, a
// successful update is also published to the ticket's room.
func NewTicketHandlers(hub *core.Hub, st store.TicketStore, broadcast bool, logger *zerolog.Logger) *TicketHandlers {
	return &TicketHandlers{
		hub:       hub,
		store:     st,
		broadcast: broadcast,
		log:       logger,
	}
}

// CreateTicket opens a new ticket.
// POST /api/complaints
func (h *TicketHandlers) CreateTicket(c *gin.Context) {
	var req proto.CreateTicket
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create ticket request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := ticket.ValidateNew(req.StudentID, req.ComplaintType, req.Description); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	t, err := h.store.CreateTicket(c.Request.Context(), store.NewTicket{
		StudentID:     req.StudentID,
		ComplaintType: req.ComplaintType,
		Description:   req.Description,
	})
	if err != nil {
		h.log.Error().Err(err).Str("student_id", req.StudentID).Msg("failed to create ticket")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("ticket_id", t.ID).Str("student_id", t.StudentID).Msg("ticket created")
	c.JSON(http.StatusCreated, proto.TicketFrom(t))
}

// ListTickets lists tickets, optionally for one student.
// GET /api/complaints?studentId=
func (h *TicketHandlers) ListTickets(c *gin.Context) {
	studentID := c.Query("studentId")
	tickets, err := h.store.ListTickets(c.Request.Context(), studentID)
	if err != nil {
		h.log.Error().Err(err).Str("student_id", studentID).Msg("failed to list tickets")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]proto.Ticket, 0, len(tickets))
	for _, t := range tickets {
		response = append(response, proto.TicketFrom(t))
	}
	c.JSON(http.StatusOK, response)
}

// GetTicket returns one ticket with its comments.
// GET /api/complaints/:id
func (h *TicketHandlers) GetTicket(c *gin.Context) {
	t, err := h.store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to get ticket")
		return
	}
	c.JSON(http.StatusOK, proto.TicketFrom(t))
}

// UpdateTicket applies an allow-listed partial update.
// PUT /api/complaints/:id
func (h *TicketHandlers) UpdateTicket(c *gin.Context) {
	id := c.Param("id")

	var req proto.TicketUpdate
	if err := decodeStrict(c, &req); err != nil {
		h.log.Debug().Err(err).Str("ticket_id", id).Msg("invalid update request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	upd, err := req.Domain()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if claims, ok := claimsFrom(c); ok && upd.Comment != nil {
		upd.Comment.AuthorID = claims.UserID
		upd.Comment.IsAdminComment = claims.IsAdmin
	}
	if err := upd.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	t, err := h.store.UpdateTicket(c.Request.Context(), id, upd)
	if err != nil {
		h.storeError(c, err, "failed to update ticket")
		return
	}

	h.log.Debug().Str("ticket_id", id).Str("status", string(t.Status)).Msg("ticket updated")
	c.JSON(http.StatusOK, proto.TicketFrom(t))

	if h.broadcast {
		h.publishUpdate(c.Request.Context(), t, upd)
	}
}

// DeleteTicket removes a ticket.
// DELETE /api/complaints/:id
func (h *TicketHandlers) DeleteTicket(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteTicket(c.Request.Context(), id); err != nil {
		h.storeError(c, err, "failed to delete ticket")
		return
	}
	h.log.Info().Str("ticket_id", id).Msg("ticket deleted")
	c.Status(http.StatusNoContent)
}

// decodeStrict decodes exactly one JSON object with no unknown fields.
func decodeStrict(c *gin.Context, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxUpdateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func (h *TicketHandlers) publishUpdate(ctx context.Context, t *ticket.Ticket, upd ticket.Update) {
	var events []*core.Event
	if upd.Status != nil {
		events = append(events, &core.Event{Kind: core.EventStatusChanged, TicketID: t.ID, Status: t.Status})
	}
	if upd.Comment != nil {
		if last, ok := t.LastComment(); ok {
			events = append(events, &core.Event{Kind: core.EventCommentAdded, TicketID: t.ID, Comment: last})
		}
	}

	for _, ev := range events {
		if err := h.hub.Publish(ctx, ev); err != nil {
			h.log.Warn().Err(err).Str("ticket_id", t.ID).Stringer("event", ev.Kind).Msg("failed to publish update")
		}
	}
}

func (h *TicketHandlers) storeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	case errors.Is(err, ticket.ErrInvalidStatus),
		errors.Is(err, ticket.ErrEmptyComment),
		errors.Is(err, ticket.ErrEmptyUpdate),
		errors.Is(err, ticket.ErrFieldTooLong):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Str("ticket_id", c.Param("id")).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
