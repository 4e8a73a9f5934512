package core

// Registry tracks the connections that are currently reachable.
// It is not safe for concurrent use; the Hub goroutine owns it.
type Registry struct {
	conns     map[string]*Client
	listeners []func(*Client)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// OnUnregister adds a callback run for every removed connection,
// before its outbound channel is closed.
func (r *Registry) OnUnregister(fn func(*Client)) {
	r.listeners = append(r.listeners, fn)
}

// Register adds c and returns its connection id. A different client already
// holding the same id is unregistered first.
func (r *Registry) Register(c *Client) string {
	if existing, ok := r.conns[c.ID]; ok {
		if existing == c {
			return c.ID
		}
		r.Unregister(c.ID)
	}
	r.conns[c.ID] = c
	return c.ID
}

// Unregister removes the connection and evicts it from every room.
// Unknown ids are a no-op. Reports whether anything was removed.
func (r *Registry) Unregister(id string) bool {
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	delete(r.conns, id)
	for _, fn := range r.listeners {
		fn(c)
	}
	c.closeEvents()
	return true
}

// Lookup returns the live client for id.
func (r *Registry) Lookup(id string) (*Client, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// RoomsOf returns the sorted rooms the connection has joined.
func (r *Registry) RoomsOf(id string) []string {
	c, ok := r.conns[id]
	if !ok {
		return []string{}
	}
	return c.roomList()
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// ids returns all registered connection ids.
func (r *Registry) ids() []string {
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}
