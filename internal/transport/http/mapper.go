package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/ticketsync-server/internal/core"
	"github.com/vovakirdan/ticketsync-server/internal/proto"
	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

var errUnknownType = errors.New("unknown message type")

// inboundToCommand decodes a client frame into a hub command. Only the shape
// is checked here; the hub drops commands that fail buildEvent.
func inboundToCommand(inbound proto.Inbound) (*core.Command, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom, proto.InboundTypeLeaveRoom:
		var room string
		if err := json.Unmarshal(inbound.Data, &room); err != nil {
			return nil, fmt.Errorf("decode %s: %w", inbound.Type, err)
		}
		room = strings.TrimSpace(room)
		if room == "" {
			return nil, core.ErrMissingTicketID
		}
		kind := core.CommandJoinRoom
		if inbound.Type == proto.InboundTypeLeaveRoom {
			kind = core.CommandLeaveRoom
		}
		return &core.Command{Kind: kind, Room: room}, nil
	case proto.InboundTypeNewComment:
		var data proto.NewCommentData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", inbound.Type, err)
		}
		cmd := &core.Command{Kind: core.CommandPublishComment, Room: data.TicketID}
		if data.Comment != nil {
			c := data.Comment.Domain()
			cmd.Comment = &c
		}
		return cmd, nil
	case proto.InboundTypeNewStatus:
		var data proto.NewStatusData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", inbound.Type, err)
		}
		return &core.Command{
			Kind:   core.CommandPublishStatus,
			Room:   data.TicketID,
			Status: ticket.Status(data.Status),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, inbound.Type)
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Room: event.TicketID}
	switch event.Kind {
	case core.EventCommentAdded:
		out.Event = proto.EventReceiveComment
		out.Data = proto.CommentFrom(event.Comment)
	case core.EventStatusChanged:
		out.Event = proto.EventReceiveStatus
		out.Data = string(event.Status)
	}
	return out
}
