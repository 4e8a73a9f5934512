// Package syncagent keeps a local copy of one ticket in sync with the server.
//
// An Agent loads the ticket over the CRUD API, joins the ticket's room over
// WebSocket and applies pushed comments and status changes to its local
// projection. Mutations go through the API first; only a persisted result is
// broadcast to the room.
package syncagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ticketsync-server/internal/proto"
	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

var (
	// ErrNotConnected is returned when a mutation was persisted but could not
	// be broadcast because the room is not joined.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("agent closed")
)

const (
	defaultReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Options configures an Agent.
type Options struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// WSURL overrides the socket endpoint. Derived from BaseURL when empty.
	WSURL string
	// Token is sent as a bearer token on API calls and the socket handshake.
	Token string

	// AuthorID and IsAdmin describe the local user on posted comments. The
	// server replaces them with token claims when it verifies tokens.
	AuthorID string
	IsAdmin  bool

	HTTPClient *http.Client

	// ReconnectDelay is the first wait after the transport drops. Later
	// waits back off exponentially up to 30s.
	ReconnectDelay time.Duration
	// ResyncOnReconnect re-fetches the ticket after every re-join.
	ResyncOnReconnect bool

	Logger *zerolog.Logger
}

// Change describes one update to the local projection.
type Change struct {
	Kind     ChangeKind
	TicketID string
	Comment  ticket.Comment // ChangeComment
	Status   ticket.Status  // ChangeStatus
	// Ticket is the projection after the change.
	Ticket ticket.Ticket
}

// Handler is called for every change, in the order changes were applied.
type Handler func(Change)

type subscription struct {
	id uint64
	fn Handler
}

// Agent mirrors a single ticket. It is safe for concurrent use.
type Agent struct {
	ticketID string
	wsURL    string
	opts     Options
	api      *apiClient
	log      *zerolog.Logger

	mu      sync.Mutex
	state   State
	ticket  ticket.Ticket
	conn    *websocket.Conn
	subs    []subscription
	nextSub uint64

	done      chan struct{}
	closeOnce sync.Once
}

// New creates an agent for ticketID. It does no I/O.
func New(ticketID string, opts Options) (*Agent, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, errors.New("ticket id is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("base url is required")
	}

	wsURL := opts.WSURL
	if wsURL == "" {
		derived, err := socketURL(opts.BaseURL)
		if err != nil {
			return nil, err
		}
		wsURL = derived
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}

	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	agentLog := logger.With().Str("component", "syncagent").Str("ticket_id", ticketID).Logger()

	return &Agent{
		ticketID: ticketID,
		wsURL:    wsURL,
		opts:     opts,
		api:      newAPIClient(opts.BaseURL, opts.Token, opts.HTTPClient),
		log:      &agentLog,
		state:    StateDisconnected,
		ticket:   ticket.Ticket{ID: ticketID},
		done:     make(chan struct{}),
	}, nil
}

func socketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// TicketID returns the ticket this agent follows.
func (a *Agent) TicketID() string {
	return a.ticketID
}

// State returns the current connection state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot returns a copy of the local projection.
func (a *Agent) Snapshot() ticket.Ticket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ticket.Clone()
}

// Subscribe registers h and returns a func that removes exactly h.
// Calling the returned func more than once is harmless.
func (a *Agent) Subscribe(h Handler) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateClosed {
		return func() {}
	}

	a.nextSub++
	id := a.nextSub
	a.subs = append(a.subs, subscription{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			for i, s := range a.subs {
				if s.id == id {
					a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Load fetches the ticket and replaces the projection.
func (a *Agent) Load(ctx context.Context) error {
	if a.isClosed() {
		return ErrClosed
	}
	t, err := a.api.getTicket(ctx, a.ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", a.ticketID, err)
	}
	a.replace(t)
	return nil
}

// Run keeps the agent joined to the ticket room until ctx is cancelled or
// Close is called. After a drop it waits, redials and joins again; room
// membership is never carried over from a previous connection.
func (a *Agent) Run(ctx context.Context) error {
	if a.isClosed() {
		return ErrClosed
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.opts.ReconnectDelay
	bo.MaxInterval = maxReconnectDelay
	if bo.MaxInterval < bo.InitialInterval {
		bo.MaxInterval = bo.InitialInterval
	}
	bo.MaxElapsedTime = 0
	bo.Reset()

	joins := 0
	for {
		joined, err := a.session(ctx, joins > 0)
		if joined {
			joins++
			bo.Reset()
		}
		if a.isClosed() {
			return nil
		}
		a.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := bo.NextBackOff()
		a.log.Warn().Err(err).Dur("retry_in", delay).Msg("connection lost")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-a.done:
			timer.Stop()
			return nil
		}
	}
}

// session runs one connection. joined reports whether join-room was sent.
func (a *Agent) session(ctx context.Context, rejoin bool) (joined bool, err error) {
	header := http.Header{}
	if a.opts.Token != "" {
		header.Set("Authorization", "Bearer "+a.opts.Token)
	}
	conn, _, err := websocket.Dial(ctx, a.wsURL, &websocket.DialOptions{
		HTTPClient: a.opts.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	a.mu.Lock()
	if a.state == StateClosed {
		a.mu.Unlock()
		return false, ErrClosed
	}
	a.conn = conn
	a.state = StateConnected
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		if a.conn == conn {
			a.conn = nil
		}
		a.mu.Unlock()
	}()

	if err := writeInbound(ctx, conn, proto.InboundTypeJoinRoom, a.ticketID); err != nil {
		return false, fmt.Errorf("join room: %w", err)
	}

	if rejoin && a.opts.ResyncOnReconnect {
		if t, err := a.api.getTicket(ctx, a.ticketID); err != nil {
			a.log.Warn().Err(err).Msg("resync failed")
		} else {
			a.replace(t)
		}
	}

	a.setState(StateJoined)
	a.log.Info().Bool("rejoin", rejoin).Msg("joined ticket room")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		if typ != websocket.MessageText {
			continue
		}
		var frame proto.OutboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			a.log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		a.apply(frame)
	}
}

// PostComment appends a comment through the API and, once persisted,
// broadcasts the server's record of it. The projection changes when the
// echo arrives.
func (a *Agent) PostComment(ctx context.Context, content string) error {
	if a.isClosed() {
		return ErrClosed
	}
	t, err := a.api.updateTicket(ctx, a.ticketID, proto.TicketUpdate{
		Comment: &proto.CommentInput{
			AuthorID:       a.opts.AuthorID,
			Content:        content,
			IsAdminComment: a.opts.IsAdmin,
		},
	})
	if err != nil {
		return fmt.Errorf("post comment: %w", err)
	}

	last, ok := t.LastComment()
	if !ok {
		return errors.New("post comment: server returned no comments")
	}
	comment := proto.CommentFrom(last)
	return a.emit(ctx, proto.InboundTypeNewComment, proto.NewCommentData{
		TicketID: a.ticketID,
		Comment:  &comment,
	})
}

// SetStatus changes the ticket status through the API and broadcasts the
// persisted status.
func (a *Agent) SetStatus(ctx context.Context, status ticket.Status) error {
	if a.isClosed() {
		return ErrClosed
	}
	s := string(status)
	t, err := a.api.updateTicket(ctx, a.ticketID, proto.TicketUpdate{Status: &s})
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return a.emit(ctx, proto.InboundTypeNewStatus, proto.NewStatusData{
		TicketID: a.ticketID,
		Status:   string(t.Status),
	})
}

// Close stops reconciliation, drops every handler and closes the socket.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)

		a.mu.Lock()
		a.state = StateClosed
		a.subs = nil
		conn := a.conn
		a.conn = nil
		a.mu.Unlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "closing")
		}
	})
	return nil
}

func (a *Agent) emit(ctx context.Context, typ string, data any) error {
	a.mu.Lock()
	conn, state := a.conn, a.state
	a.mu.Unlock()

	if state == StateClosed {
		return ErrClosed
	}
	if state != StateJoined || conn == nil {
		return ErrNotConnected
	}
	if err := writeInbound(ctx, conn, typ, data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// apply reconciles one pushed frame. Comments append, statuses overwrite.
func (a *Agent) apply(frame proto.OutboundFrame) {
	if frame.Type != proto.OutboundTypeEvent || frame.Room != a.ticketID {
		return
	}

	change := Change{TicketID: a.ticketID}
	switch frame.Event {
	case proto.EventReceiveComment:
		var c proto.Comment
		if err := json.Unmarshal(frame.Data, &c); err != nil {
			a.log.Warn().Err(err).Msg("dropping malformed comment")
			return
		}
		change.Kind = ChangeComment
		change.Comment = c.Domain()
	case proto.EventReceiveStatus:
		var s string
		if err := json.Unmarshal(frame.Data, &s); err != nil {
			a.log.Warn().Err(err).Msg("dropping malformed status")
			return
		}
		change.Kind = ChangeStatus
		change.Status = ticket.Status(s)
	default:
		a.log.Debug().Str("event", frame.Event).Msg("ignoring unknown event")
		return
	}

	a.mu.Lock()
	if a.state != StateJoined {
		a.mu.Unlock()
		return
	}
	switch change.Kind {
	case ChangeComment:
		a.ticket.Comments = append(a.ticket.Comments, change.Comment)
	case ChangeStatus:
		a.ticket.Status = change.Status
	}
	change.Ticket = a.ticket.Clone()
	handlers := a.handlersLocked()
	a.mu.Unlock()

	notify(handlers, change)
}

func (a *Agent) replace(t ticket.Ticket) {
	a.mu.Lock()
	if a.state == StateClosed {
		a.mu.Unlock()
		return
	}
	a.ticket = t.Clone()
	change := Change{Kind: ChangeLoaded, TicketID: a.ticketID, Ticket: a.ticket.Clone()}
	handlers := a.handlersLocked()
	a.mu.Unlock()

	notify(handlers, change)
}

func (a *Agent) handlersLocked() []Handler {
	out := make([]Handler, 0, len(a.subs))
	for _, s := range a.subs {
		out = append(out, s.fn)
	}
	return out
}

func notify(handlers []Handler, change Change) {
	for _, h := range handlers {
		h(change)
	}
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateClosed {
		a.state = s
	}
}

func (a *Agent) isClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func writeInbound(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload})
}
