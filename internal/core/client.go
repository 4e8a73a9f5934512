package core

import (
	"sort"
	"sync"
)

const defaultClientBuffer = 8

// Client is one live connection as seen by the core layer.
// Events is closed by the hub once the client is unregistered.
type Client struct {
	ID     string
	Name   string
	Events chan *Event

	// rooms is only touched from the hub goroutine.
	rooms     map[string]struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with an outbound buffer of the given size.
func NewClient(id, name string, buffer int) *Client {
	if name == "" {
		name = id
	}
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Client{
		ID:     id,
		Name:   name,
		Events: make(chan *Event, buffer),
		rooms:  make(map[string]struct{}),
	}
}

func (c *Client) roomList() []string {
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *Client) closeEvents() {
	c.closeOnce.Do(func() {
		close(c.Events)
	})
}
