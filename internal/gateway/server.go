// Package gateway exposes the chat orchestration over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/hlog"

	"github.com/atendimento-virtual/server/internal/agent/model"
	errx "github.com/atendimento-virtual/server/internal/core/error"
	"github.com/atendimento-virtual/server/internal/metrics"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

// Locker serialises work on one customer's history.
type Locker interface {
	Lock(customerID string) (unlock func())
}

type Config struct {
	Server    model.ServerConfig
	StoreName string
	// ShutdownTimeout bounds graceful shutdown; zero means 15s.
	ShutdownTimeout time.Duration
}

type Gateway struct {
	config        Config
	assistant     Assistant
	conversations model.ConversationRepository
	locks         Locker
	metrics       *metrics.Metrics
	server        *http.Server
}

func New(cfg Config, assistant Assistant, conversations model.ConversationRepository, locks Locker, m *metrics.Metrics) *Gateway {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if m == nil {
		m = metrics.New()
	}
	return &Gateway{
		config:        cfg,
		assistant:     assistant,
		conversations: conversations,
		locks:         locks,
		metrics:       m,
	}
}

// Handler builds the chi mux with every route wired.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(logx.Logger()))
	r.Use(requestIDMiddleware)
	r.Use(hlog.RemoteAddrHandler("remote_addr"))
	r.Use(accessLog())
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware(g.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: g.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", apiKeyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	// Public.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	apiKey := g.config.Server.APIKey
	r.Group(func(r chi.Router) {
		if apiKey != "" {
			r.Use(apiKeyMiddleware(apiKey))
		}
		if n := g.config.Server.RateLimitPerMinute; n > 0 {
			r.Use(httprate.Limit(n, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Muitas requisições, tente novamente mais tarde"})
				}),
			))
		}
		r.Post("/integrated", g.handleIntegrated())
		r.Post("/assistant", g.handleAssistant())
	})

	// Admin endpoints are not mounted without a shared secret.
	if apiKey != "" && g.conversations != nil {
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware(apiKey))
			r.Get("/conversations/{id}", g.handleGetConversation())
			r.Delete("/conversations/{id}", g.handleDeleteConversation())
		})
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, errx.New(nil, http.StatusNotFound, "rota não encontrada"))
	})
	return r
}

// Start listens on the configured port and serves in the background.
func (g *Gateway) Start() error {
	addr := fmt.Sprintf(":%d", g.config.Server.Port)
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		logx.Info().Str("addr", addr).Msg("gateway listening")
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error().Err(err).Msg("gateway serve error")
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	logx.Info().Msg("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
