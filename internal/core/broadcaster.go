package core

import "fmt"

// buildEvent turns a client publish command into the event for its room.
// Content was validated and persisted upstream; only the shape is checked.
func buildEvent(cmd Command) (*Event, error) {
	if cmd.Room == "" {
		return nil, ErrMissingTicketID
	}

	switch cmd.Kind {
	case CommandPublishComment:
		if cmd.Comment == nil {
			return nil, ErrMissingComment
		}
		return &Event{Kind: EventCommentAdded, TicketID: cmd.Room, Comment: *cmd.Comment}, nil
	case CommandPublishStatus:
		if cmd.Status == "" {
			return nil, ErrMissingStatus
		}
		return &Event{Kind: EventStatusChanged, TicketID: cmd.Room, Status: cmd.Status}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, cmd.Kind)
	}
}

// handleCommand applies one client command inside the hub loop.
func (h *Hub) handleCommand(c *Client, cmd Command) {
	if live, ok := h.registry.Lookup(c.ID); !ok || live != c {
		h.log.Debug().Str("client_id", c.ID).Msg("command from unregistered client ignored")
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		if cmd.Room == "" {
			h.dropCommand(c, cmd, ErrMissingTicketID)
			return
		}
		h.router.Join(c.ID, cmd.Room)
	case CommandLeaveRoom:
		h.router.Leave(c.ID, cmd.Room)
	default:
		event, err := buildEvent(cmd)
		if err != nil {
			h.dropCommand(c, cmd, err)
			return
		}
		h.publish(event)
	}
}

func (h *Hub) dropCommand(c *Client, cmd Command, err error) {
	h.log.Warn().Err(err).Str("client_id", c.ID).Str("room", cmd.Room).Int("kind", int(cmd.Kind)).Msg("dropping client command")
}
