package core

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

func newTestRouter(ids ...string) (*Registry, *Router, map[string]*Client) {
	reg := NewRegistry()
	router := NewRouter(reg, nopLogger())
	clients := make(map[string]*Client, len(ids))
	for _, id := range ids {
		c := NewClient(id, "", 16)
		reg.Register(c)
		clients[id] = c
	}
	return reg, router, clients
}

func TestRouterJoinLeaveNetEffect(t *testing.T) {
	_, router, _ := newTestRouter("a")

	// join, leave, join == member
	router.Join("a", "T1")
	router.Leave("a", "T1")
	router.Join("a", "T1")
	if got := router.MembersOf("T1"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected member after join/leave/join, got %v", got)
	}

	// double join is the same as one
	if router.Join("a", "T1") {
		t.Fatalf("second join should not report a new membership")
	}
	if got := router.MembersOf("T1"); len(got) != 1 {
		t.Fatalf("duplicate membership: %v", got)
	}

	// leave on non-member / unknown room
	if router.Leave("a", "T9") {
		t.Fatalf("leaving unknown room should be a no-op")
	}
	if got := router.MembersOf("T9"); len(got) != 0 {
		t.Fatalf("unknown room should be empty, got %v", got)
	}
}

func TestRouterRandomSequencesMatchModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	conns := []string{"a", "b", "c"}
	rooms := []string{"T1", "T2"}

	for iter := 0; iter < 200; iter++ {
		_, router, _ := newTestRouter(conns...)
		model := map[string]map[string]bool{}

		for step := 0; step < 30; step++ {
			conn := conns[rng.Intn(len(conns))]
			room := rooms[rng.Intn(len(rooms))]
			if model[room] == nil {
				model[room] = map[string]bool{}
			}
			if rng.Intn(2) == 0 {
				router.Join(conn, room)
				model[room][conn] = true
			} else {
				router.Leave(conn, room)
				delete(model[room], conn)
			}
		}

		for _, room := range rooms {
			got := map[string]bool{}
			for _, id := range router.MembersOf(room) {
				got[id] = true
			}
			want := model[room]
			if want == nil {
				want = map[string]bool{}
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("iteration %d room %s: got %v want %v", iter, room, got, want)
			}
		}
	}
}

func TestRouterJoinUnknownConnectionIgnored(t *testing.T) {
	_, router, _ := newTestRouter()
	if router.Join("ghost", "T1") {
		t.Fatalf("unknown connection must not join")
	}
	if router.Rooms() != 0 {
		t.Fatalf("no room should be created")
	}
}

func TestRouterPublishOnlyReachesMembers(t *testing.T) {
	_, router, clients := newTestRouter("a", "b", "c")
	router.Join("a", "T1")
	router.Join("b", "T1")
	router.Join("c", "T2")

	delivered, dropped := router.Publish(&Event{
		Kind:     EventCommentAdded,
		TicketID: "T1",
		Comment:  ticket.Comment{AuthorID: "u1", Content: "hello"},
	})
	if delivered != 2 || dropped != 0 {
		t.Fatalf("expected 2 deliveries, got delivered=%d dropped=%d", delivered, dropped)
	}

	for _, id := range []string{"a", "b"} {
		select {
		case ev := <-clients[id].Events:
			if ev.Comment.Content != "hello" {
				t.Fatalf("unexpected event for %s: %+v", id, ev)
			}
		default:
			t.Fatalf("%s did not receive the event", id)
		}
	}
	select {
	case ev := <-clients["c"].Events:
		t.Fatalf("c is not in T1 but got %+v", ev)
	default:
	}
}

func TestRouterPublishEmptyRoomIsNoop(t *testing.T) {
	_, router, _ := newTestRouter("a")
	delivered, dropped := router.Publish(&Event{Kind: EventStatusChanged, TicketID: "nobody", Status: ticket.StatusOpen})
	if delivered != 0 || dropped != 0 {
		t.Fatalf("expected no-op, got %d/%d", delivered, dropped)
	}
	if delivered, _ := router.Publish(nil); delivered != 0 {
		t.Fatalf("nil event should be ignored")
	}
}

func TestRouterPublishSlowMemberDoesNotBlockOthers(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg, nopLogger())

	slow := NewClient("slow", "", 1)
	fast := NewClient("fast", "", 8)
	reg.Register(slow)
	reg.Register(fast)
	router.Join("slow", "T1")
	router.Join("fast", "T1")

	for i := 0; i < 3; i++ {
		router.Publish(&Event{Kind: EventStatusChanged, TicketID: "T1", Status: ticket.StatusPending})
	}

	if got := len(fast.Events); got != 3 {
		t.Fatalf("fast member should have 3 events, has %d", got)
	}
	if got := len(slow.Events); got != 1 {
		t.Fatalf("slow member should have kept 1 event, has %d", got)
	}
}

func TestBuildEvent(t *testing.T) {
	comment := &ticket.Comment{AuthorID: "u1", Content: "hi"}

	ev, err := buildEvent(Command{Kind: CommandPublishComment, Room: "T1", Comment: comment})
	if err != nil || ev.Kind != EventCommentAdded || ev.TicketID != "T1" || ev.Comment.Content != "hi" {
		t.Fatalf("unexpected comment event %+v err=%v", ev, err)
	}

	ev, err = buildEvent(Command{Kind: CommandPublishStatus, Room: "T1", Status: ticket.StatusResolved})
	if err != nil || ev.Kind != EventStatusChanged || ev.Status != ticket.StatusResolved {
		t.Fatalf("unexpected status event %+v err=%v", ev, err)
	}

	cases := []struct {
		cmd  Command
		want error
	}{
		{Command{Kind: CommandPublishComment, Comment: comment}, ErrMissingTicketID},
		{Command{Kind: CommandPublishComment, Room: "T1"}, ErrMissingComment},
		{Command{Kind: CommandPublishStatus, Room: "T1"}, ErrMissingStatus},
		{Command{Kind: CommandKind(99), Room: "T1"}, ErrUnknownCommand},
	}
	for _, tc := range cases {
		if _, err := buildEvent(tc.cmd); !errors.Is(err, tc.want) {
			t.Fatalf("command %+v: expected %v, got %v", tc.cmd, tc.want, err)
		}
	}
}
