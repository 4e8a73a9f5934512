package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ticketsync-server/internal/metrics"
)

const defaultInboxSize = 256

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opCommand
	opPublish
	opQuery
)

type op struct {
	kind   opKind
	client *Client
	cmd    Command
	event  *Event
	query  func(*Router)
	done   chan struct{}
}

// Hub coordinates connections and ticket rooms.
// A single goroutine (Run) applies every registration, command and publish
// in the order they were submitted, so room state needs no locking and each
// room sees its events in publish order.
type Hub struct {
	inbox    chan op
	stopped  chan struct{}
	registry *Registry
	router   *Router
	log      *zerolog.Logger
}

// NewHub creates a hub. A nil logger discards output; inboxSize <= 0 uses
// the default.
func NewHub(logger *zerolog.Logger, inboxSize int) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}
	hubLog := logger.With().Str("component", "hub").Logger()

	registry := NewRegistry()
	return &Hub{
		inbox:    make(chan op, inboxSize),
		stopped:  make(chan struct{}),
		registry: registry,
		router:   NewRouter(registry, &hubLog),
		log:      &hubLog,
	}
}

// Run processes hub operations until ctx is cancelled. It must be called once.
// On exit every connection is unregistered, which closes its Events channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	h.log.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case o := <-h.inbox:
			h.handle(o)
		}
	}
}

// RegisterClient makes c reachable. It does not join any room.
func (h *Hub) RegisterClient(c *Client) error {
	return h.send(context.Background(), op{kind: opRegister, client: c})
}

// UnregisterClient removes c from the hub and from every room it joined.
// Unregistering an unknown client is a no-op.
func (h *Hub) UnregisterClient(c *Client) {
	_ = h.send(context.Background(), op{kind: opUnregister, client: c})
}

// Submit queues a client command.
func (h *Hub) Submit(ctx context.Context, c *Client, cmd Command) error {
	return h.send(ctx, op{kind: opCommand, client: c, cmd: cmd})
}

// Publish fans out an event produced by the server itself, for example
// after a successful ticket update.
func (h *Hub) Publish(ctx context.Context, event *Event) error {
	if event == nil || event.TicketID == "" {
		return ErrMissingTicketID
	}
	if !event.Kind.Valid() {
		h.log.Warn().Str("room", event.TicketID).Int("kind", int(event.Kind)).Msg("dropping event of unknown kind")
		return ErrUnknownEvent
	}
	return h.send(ctx, op{kind: opPublish, event: event})
}

// Members returns the connection ids currently in room.
func (h *Hub) Members(ctx context.Context, room string) ([]string, error) {
	var members []string
	err := h.query(ctx, func(r *Router) {
		members = r.MembersOf(room)
	})
	return members, err
}

// RoomsOf returns the rooms a connection has joined.
func (h *Hub) RoomsOf(ctx context.Context, connID string) ([]string, error) {
	var rooms []string
	err := h.query(ctx, func(r *Router) {
		rooms = r.registry.RoomsOf(connID)
	})
	return rooms, err
}

func (h *Hub) query(ctx context.Context, fn func(*Router)) error {
	done := make(chan struct{})
	if err := h.send(ctx, op{kind: opQuery, query: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, o op) error {
	select {
	case <-h.stopped:
		return ErrHubStopped
	default:
	}

	select {
	case h.inbox <- o:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) handle(o op) {
	switch o.kind {
	case opRegister:
		h.registry.Register(o.client)
		metrics.ConnectionsActive.Set(float64(h.registry.Len()))
		h.log.Debug().Str("client_id", o.client.ID).Str("user", o.client.Name).Msg("client registered")
	case opUnregister:
		if live, ok := h.registry.Lookup(o.client.ID); !ok || live != o.client {
			return
		}
		rooms := o.client.roomList()
		h.registry.Unregister(o.client.ID)
		metrics.ConnectionsActive.Set(float64(h.registry.Len()))
		h.log.Debug().Str("client_id", o.client.ID).Strs("rooms", rooms).Msg("client unregistered")
	case opCommand:
		h.handleCommand(o.client, o.cmd)
	case opPublish:
		h.publish(o.event)
	case opQuery:
		o.query(h.router)
		close(o.done)
	}
}

func (h *Hub) publish(event *Event) {
	delivered, dropped := h.router.Publish(event)
	metrics.EventsPublished.WithLabelValues(event.Kind.String()).Inc()
	metrics.Deliveries.WithLabelValues("delivered").Add(float64(delivered))
	metrics.Deliveries.WithLabelValues("dropped").Add(float64(dropped))

	h.log.Debug().
		Str("room", event.TicketID).
		Stringer("event", event.Kind).
		Int("delivered", delivered).
		Int("dropped", dropped).
		Msg("event published")
}

func (h *Hub) shutdown() {
	for _, id := range h.registry.ids() {
		h.registry.Unregister(id)
	}
	metrics.ConnectionsActive.Set(0)
	metrics.RoomsActive.Set(0)
	h.log.Info().Msg("hub stopped")
}
