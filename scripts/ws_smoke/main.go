package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/ticketsync-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "bearer token, if the server requires one")
	room := flag.String("ticket", "smoke-ticket", "ticket id to join")
	status := flag.String("status", "in-progress", "status to broadcast")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var opts *websocket.DialOptions
	if *token != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{"Authorization": []string{"Bearer " + *token}}}
	}
	conn, _, err := websocket.Dial(ctx, *addr, opts)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeJoinRoom, *room); err != nil {
		return err
	}
	if err := send(proto.InboundTypeNewStatus, proto.NewStatusData{TicketID: *room, Status: *status}); err != nil {
		return err
	}

	for {
		var frame proto.OutboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received outbound: type=%s event=%s room=%s data=%s\n", frame.Type, frame.Event, frame.Room, frame.Data)

		if frame.Event == proto.EventReceiveStatus && frame.Room == *room {
			var got string
			if err := json.Unmarshal(frame.Data, &got); err != nil {
				return fmt.Errorf("unmarshal status: %w", err)
			}
			if got != *status {
				return fmt.Errorf("expected status %q, got %q", *status, got)
			}
			fmt.Println("ok: status echoed to the room")
			return nil
		}
	}
}
