package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ticketsync-server/internal/auth"
	"github.com/vovakirdan/ticketsync-server/internal/config"
	"github.com/vovakirdan/ticketsync-server/internal/core"
	"github.com/vovakirdan/ticketsync-server/internal/metrics"
	"github.com/vovakirdan/ticketsync-server/internal/proto"
)

const writeTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub      *core.Hub
	verifier *auth.Verifier
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. verifier may be nil when no
// secret is configured.
func NewWSHandler(hub *core.Hub, verifier *auth.Verifier, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, verifier: verifier, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	name, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), name, h.cfg.ClientBuffer)
	if err := h.hub.RegisterClient(client); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}
	defer h.hub.UnregisterClient(client)

	log := h.log.With().Str("client_id", client.ID).Logger()
	log.Debug().Str("user", client.Name).Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &log)
	}()
	go func() {
		errCh <- h.pingLoop(ctx, conn)
	}()

	err = <-errCh
	cancel() // stop the other goroutines
	<-errCh
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		switch s := websocket.CloseStatus(err); s {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		case -1:
			status = websocket.StatusInternalError
			reason = "internal error"
			log.Warn().Err(err).Msg("ws connection closed with error")
		default:
			status = s
			log.Debug().Err(err).Msg("ws closed by peer")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) authenticate(r *stdhttp.Request) (string, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		if h.cfg.JWTRequired {
			return "", auth.ErrInvalidToken
		}
		return "", nil
	}
	if h.verifier == nil {
		if h.cfg.JWTRequired {
			return "", auth.ErrInvalidToken
		}
		return "", nil
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	patterns := make([]string, 0, len(h.cfg.AllowedOrigins))
	for _, origin := range h.cfg.AllowedOrigins {
		if origin == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			origin = u.Host
		}
		patterns = append(patterns, origin)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}

// readLoop decodes frames and submits them to the hub. Bad frames are dropped
// without closing the connection.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) error {
	limiter := newInboundLimiter(h.cfg.WSRatePerSecond, h.cfg.WSRateBurst)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if !limiter.allow() {
			dropInbound(log, "rate_limited", nil)
			continue
		}
		if typ != websocket.MessageText {
			dropInbound(log, "binary", nil)
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			dropInbound(log, "malformed", err)
			continue
		}

		cmd, err := inboundToCommand(inbound)
		if err != nil {
			dropInbound(log, "invalid", err)
			continue
		}
		if err := h.hub.Submit(ctx, client, *cmd); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, outboundFromEvent(event))
			cancel()
			if err != nil {
				log.Error().Err(err).Str("room", event.TicketID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	if h.cfg.PingInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func dropInbound(log *zerolog.Logger, reason string, err error) {
	metrics.InboundDropped.WithLabelValues(reason).Inc()
	ev := log.Warn().Str("reason", reason)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("dropping inbound frame")
}
