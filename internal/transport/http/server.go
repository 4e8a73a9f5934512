package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ticketsync-server/internal/auth"
	"github.com/vovakirdan/ticketsync-server/internal/config"
	"github.com/vovakirdan/ticketsync-server/internal/core"
	"github.com/vovakirdan/ticketsync-server/internal/metrics"
	"github.com/vovakirdan/ticketsync-server/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP server: ticket API, WebSocket endpoint, health
// and metrics.
func NewServer(hub *core.Hub, st store.TicketStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}
	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(jwtConfig)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware())

	router.GET("/health", healthHandler)
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	tickets := NewTicketHandlers(hub, st, cfg.BroadcastOnUpdate, logger)
	api := router.Group("/api")
	if cfg.JWTRequired {
		api.Use(AuthMiddleware(verifier, logger))
	} else if verifier != nil {
		api.Use(OptionalAuthMiddleware(verifier, logger))
	}
	{
		api.POST("/complaints", tickets.CreateTicket)
		api.GET("/complaints", tickets.ListTickets)
		api.GET("/complaints/:id", tickets.GetTicket)
		api.PUT("/complaints/:id", tickets.UpdateTicket)
		api.DELETE("/complaints/:id", tickets.DeleteTicket)
	}

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(router)

	// The WebSocket endpoint sits outside gin: gin's writer refuses to hijack
	// after the upgrade response has been written.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, verifier, cfg, logger))
	mux.Handle("/", handler)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
