package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ticketsync-server/internal/auth"
	"github.com/vovakirdan/ticketsync-server/internal/config"
	"github.com/vovakirdan/ticketsync-server/internal/core"
	"github.com/vovakirdan/ticketsync-server/internal/proto"
	"github.com/vovakirdan/ticketsync-server/internal/store"
	"github.com/vovakirdan/ticketsync-server/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store store.Store
	cfg   config.Config
}

// newTestEnv starts a hub, an in-memory store and the HTTP server.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.PingInterval = 0
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := core.NewHub(nil, cfg.HubInbox)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	disabledLogger := zerolog.Nop()
	server := NewServer(hub, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, cfg: cfg}
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) token(t *testing.T, userID string, isAdmin bool) string {
	t.Helper()
	token, err := auth.GenerateToken(&auth.JWTConfig{
		Secret:   []byte(e.cfg.JWTSecret),
		Issuer:   e.cfg.JWTIssuer,
		Audience: e.cfg.JWTAudience,
		TTL:      time.Hour,
	}, userID, isAdmin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// do runs a request against the server handler and returns the recorder.
func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) createTicket(t *testing.T, studentID string) proto.Ticket {
	t.Helper()
	resp := e.do(http.MethodPost, "/api/complaints",
		`{"studentId":"`+studentID+`","complaintType":"housing","description":"heater is broken"}`, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("create ticket: status %d: %s", resp.Code, resp.Body.String())
	}
	var out proto.Ticket
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	return out
}

// waitMembers polls the hub until room has n members.
func (e *testEnv) waitMembers(t *testing.T, room string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		members, err := e.hub.Members(context.Background(), room)
		if err != nil {
			t.Fatalf("members: %v", err)
		}
		if len(members) == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("room %s: expected %d members, got %d", room, n, len(members))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.OutboundFrame {
	t.Helper()
	var frame proto.OutboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

// expectSilence fails if conn receives a frame within wait. The connection is
// unusable afterwards because a timed out read closes it.
func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	var frame proto.OutboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err == nil {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}
