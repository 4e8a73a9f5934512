package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nopLogger(), 64)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func register(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()
	c := NewClient(id, id, 64)
	if err := hub.RegisterClient(c); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return c
}

func join(t *testing.T, hub *Hub, c *Client, room string) {
	t.Helper()
	if err := hub.Submit(context.Background(), c, Command{Kind: CommandJoinRoom, Room: room}); err != nil {
		t.Fatalf("join %s: %v", room, err)
	}
}

func TestHubCommentReachesRoomMembersOnly(t *testing.T) {
	hub, _ := startHub(t)

	a := register(t, hub, "a")
	b := register(t, hub, "b")
	c := register(t, hub, "c")
	join(t, hub, a, "T1")
	join(t, hub, b, "T1")
	join(t, hub, c, "T2")

	comment := &ticket.Comment{AuthorID: "u1", Content: "hello", IsAdminComment: false, CreatedAt: time.Now().UTC()}
	if err := hub.Submit(context.Background(), a, Command{Kind: CommandPublishComment, Room: "T1", Comment: comment}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, cl := range []*Client{a, b} {
		ev := mustEvent(t, cl.Events, EventCommentAdded)
		if ev.TicketID != "T1" || ev.Comment.AuthorID != "u1" || ev.Comment.Content != "hello" || ev.Comment.IsAdminComment {
			t.Fatalf("unexpected event for %s: %+v", cl.ID, ev)
		}
		mustNoEvent(t, cl.Events, 50*time.Millisecond)
	}
	mustNoEvent(t, c.Events, 50*time.Millisecond)
}

func TestHubPreservesPublishOrderPerRoom(t *testing.T) {
	hub, _ := startHub(t)

	members := []*Client{register(t, hub, "a"), register(t, hub, "b")}
	for _, m := range members {
		join(t, hub, m, "T1")
	}

	const n = 40
	for i := 0; i < n; i++ {
		ev := &Event{
			Kind:     EventCommentAdded,
			TicketID: "T1",
			Comment:  ticket.Comment{Content: fmt.Sprintf("c%02d", i)},
		}
		if err := hub.Publish(context.Background(), ev); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for _, m := range members {
		for i := 0; i < n; i++ {
			ev := mustEvent(t, m.Events, EventCommentAdded)
			if want := fmt.Sprintf("c%02d", i); ev.Comment.Content != want {
				t.Fatalf("%s: got %s at position %d, want %s", m.ID, ev.Comment.Content, i, want)
			}
		}
	}
}

func TestHubReconnectRequiresRejoin(t *testing.T) {
	hub, _ := startHub(t)

	first := register(t, hub, "conn-1")
	join(t, hub, first, "T1")
	hub.UnregisterClient(first)

	// The reconnected transport is a brand new connection.
	second := register(t, hub, "conn-2")
	if err := hub.Publish(context.Background(), &Event{Kind: EventStatusChanged, TicketID: "T1", Status: ticket.StatusResolved}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	mustNoEvent(t, second.Events, 100*time.Millisecond)

	join(t, hub, second, "T1")
	if err := hub.Publish(context.Background(), &Event{Kind: EventStatusChanged, TicketID: "T1", Status: ticket.StatusPending}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ev := mustEvent(t, second.Events, EventStatusChanged)
	if ev.Status != ticket.StatusPending {
		t.Fatalf("unexpected status %q", ev.Status)
	}
}

func TestHubUnregisterRemovesFromAllRooms(t *testing.T) {
	hub, _ := startHub(t)
	ctx := context.Background()

	a := register(t, hub, "a")
	b := register(t, hub, "b")
	join(t, hub, a, "T1")
	join(t, hub, a, "T2")
	join(t, hub, b, "T1")

	rooms, err := hub.RoomsOf(ctx, "a")
	if err != nil || !reflect.DeepEqual(rooms, []string{"T1", "T2"}) {
		t.Fatalf("unexpected rooms %v err=%v", rooms, err)
	}

	hub.UnregisterClient(a)
	hub.UnregisterClient(a) // idempotent

	members, err := hub.Members(ctx, "T1")
	if err != nil || !reflect.DeepEqual(members, []string{"b"}) {
		t.Fatalf("unexpected T1 members %v err=%v", members, err)
	}
	members, _ = hub.Members(ctx, "T2")
	if len(members) != 0 {
		t.Fatalf("T2 should be empty, got %v", members)
	}
	if _, ok := <-a.Events; ok {
		t.Fatalf("unregistered client's events channel should be closed")
	}
}

func TestHubStatusLastWriteWins(t *testing.T) {
	hub, _ := startHub(t)
	a := register(t, hub, "a")
	join(t, hub, a, "T1")

	for _, st := range []ticket.Status{ticket.StatusResolved, ticket.StatusPending} {
		if err := hub.Submit(context.Background(), a, Command{Kind: CommandPublishStatus, Room: "T1", Status: st}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	status := ticket.StatusOpen
	for i := 0; i < 2; i++ {
		ev := mustEvent(t, a.Events, EventStatusChanged)
		if i == 0 {
			// Slow processing of the first event must not change the outcome.
			time.Sleep(20 * time.Millisecond)
		}
		status = ev.Status
	}
	if status != ticket.StatusPending {
		t.Fatalf("expected final status pending, got %q", status)
	}
}

func TestHubDropsMalformedCommands(t *testing.T) {
	hub, _ := startHub(t)
	a := register(t, hub, "a")
	join(t, hub, a, "T1")

	ctx := context.Background()
	_ = hub.Submit(ctx, a, Command{Kind: CommandPublishComment, Room: ""})
	_ = hub.Submit(ctx, a, Command{Kind: CommandPublishComment, Room: "T1"})
	_ = hub.Submit(ctx, a, Command{Kind: CommandKind(42), Room: "T1"})
	_ = hub.Submit(ctx, a, Command{Kind: CommandJoinRoom, Room: ""})
	waitHub(t, hub)
	mustNoEvent(t, a.Events, 50*time.Millisecond)

	// The hub keeps serving after dropping bad input.
	_ = hub.Submit(ctx, a, Command{Kind: CommandPublishStatus, Room: "T1", Status: ticket.StatusOpen})
	mustEvent(t, a.Events, EventStatusChanged)
}

func TestHubIgnoresCommandsFromUnregisteredClients(t *testing.T) {
	hub, _ := startHub(t)
	ghost := NewClient("ghost", "", 4)

	_ = hub.Submit(context.Background(), ghost, Command{Kind: CommandJoinRoom, Room: "T1"})
	members, err := hub.Members(context.Background(), "T1")
	if err != nil || len(members) != 0 {
		t.Fatalf("ghost must not join: %v err=%v", members, err)
	}
}

func TestHubPublishRequiresTicketID(t *testing.T) {
	hub, _ := startHub(t)
	if err := hub.Publish(context.Background(), &Event{Kind: EventStatusChanged}); !errors.Is(err, ErrMissingTicketID) {
		t.Fatalf("expected ErrMissingTicketID, got %v", err)
	}
}

func TestHubPublishRejectsUnknownEventKind(t *testing.T) {
	hub, _ := startHub(t)
	a := register(t, hub, "a")
	join(t, hub, a, "T1")

	err := hub.Publish(context.Background(), &Event{Kind: EventKind(42), TicketID: "T1"})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	mustNoEvent(t, a.Events, 50*time.Millisecond)
}

func TestHubStopClosesClientsAndRejectsCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, 0)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	a := NewClient("a", "", 1)
	if err := hub.RegisterClient(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitHub(t, hub)
	cancel()
	<-done

	if _, ok := <-a.Events; ok {
		t.Fatalf("client channel should be closed on shutdown")
	}
	if err := hub.RegisterClient(NewClient("b", "", 1)); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}
	if _, err := hub.Members(context.Background(), "T1"); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}
}
