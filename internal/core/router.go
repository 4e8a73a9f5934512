package core

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ticketsync-server/internal/metrics"
)

// Router maps ticket ids to the connections subscribed to them.
// Membership is soft: joining twice, leaving a room you are not in, and
// asking about an unknown room are all fine. Like Registry, it is owned by
// the Hub goroutine.
type Router struct {
	registry *Registry
	rooms    map[string]*Room
	log      *zerolog.Logger
}

// NewRouter creates a router bound to reg. Unregistered connections are
// evicted from their rooms automatically.
func NewRouter(reg *Registry, logger *zerolog.Logger) *Router {
	r := &Router{
		registry: reg,
		rooms:    make(map[string]*Room),
		log:      logger,
	}
	reg.OnUnregister(r.evict)
	return r
}

// Join subscribes the connection to room. Reports whether it was newly added.
func (r *Router) Join(connID, room string) bool {
	if room == "" {
		return false
	}
	client, ok := r.registry.Lookup(connID)
	if !ok {
		return false
	}

	rm, exists := r.rooms[room]
	if !exists {
		rm = NewRoom(room)
		r.rooms[room] = rm
		metrics.RoomsActive.Set(float64(len(r.rooms)))
	}
	client.rooms[room] = struct{}{}

	added := rm.AddClient(client)
	if added {
		r.log.Debug().Str("client_id", connID).Str("room", room).Int("members", len(rm.members)).Msg("joined room")
	}
	return added
}

// Leave unsubscribes the connection from room. Reports whether it was a member.
func (r *Router) Leave(connID, room string) bool {
	rm, ok := r.rooms[room]
	if !ok {
		return false
	}
	client, member := rm.members[connID]
	if !member {
		return false
	}

	rm.RemoveClient(connID)
	delete(client.rooms, room)
	if rm.Empty() {
		delete(r.rooms, room)
		metrics.RoomsActive.Set(float64(len(r.rooms)))
	}

	r.log.Debug().Str("client_id", connID).Str("room", room).Msg("left room")
	return true
}

// MembersOf returns the sorted connection ids in room; empty when unknown.
func (r *Router) MembersOf(room string) []string {
	rm, ok := r.rooms[room]
	if !ok {
		return []string{}
	}
	return rm.Members()
}

// Publish fans the event out to the room named by its ticket id.
// A member whose buffer is full misses this event; the rest still get it.
func (r *Router) Publish(event *Event) (delivered, dropped int) {
	if event == nil || event.TicketID == "" {
		return 0, 0
	}
	rm, ok := r.rooms[event.TicketID]
	if !ok {
		r.log.Debug().Str("room", event.TicketID).Stringer("event", event.Kind).Msg("publish to empty room")
		return 0, 0
	}

	delivered, slow := rm.Broadcast(event)
	for _, id := range slow {
		r.log.Warn().Str("client_id", id).Str("room", event.TicketID).Stringer("event", event.Kind).Msg("outbound buffer full, dropping event")
	}
	return delivered, len(slow)
}

// Rooms returns the number of rooms with at least one member.
func (r *Router) Rooms() int {
	return len(r.rooms)
}

func (r *Router) evict(c *Client) {
	for room := range c.rooms {
		r.Leave(c.ID, room)
	}
}
