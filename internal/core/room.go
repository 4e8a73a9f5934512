package core

import "sort"

// Room groups the connections subscribed to one ticket.
type Room struct {
	ID      string
	members map[string]*Client
}

// NewRoom constructs a room with no members.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*Client),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.members[c.ID]; exists {
		return false
	}
	r.members[c.ID] = c
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(id string) bool {
	if _, exists := r.members[id]; !exists {
		return false
	}
	delete(r.members, id)
	return true
}

// Has reports whether the connection is a member.
func (r *Room) Has(id string) bool {
	_, ok := r.members[id]
	return ok
}

// Members returns the sorted member connection ids.
func (r *Room) Members() []string {
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Broadcast queues the event on every member's outbound channel without
// blocking. It returns the ids of members whose buffer was full.
func (r *Room) Broadcast(event *Event) (delivered int, dropped []string) {
	for id, client := range r.members {
		select {
		case client.Events <- event:
			delivered++
		default:
			dropped = append(dropped, id)
		}
	}
	return delivered, dropped
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}
