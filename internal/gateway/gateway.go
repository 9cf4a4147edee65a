// ABOUTME: Gateway orchestrator that wires the store, engine, broadcaster, and HTTP server
// ABOUTME: Manages server lifecycle, health endpoints, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/wallboard/wallboard/internal/broadcast"
	"github.com/wallboard/wallboard/internal/config"
	"github.com/wallboard/wallboard/internal/engine"
	"github.com/wallboard/wallboard/internal/registry"
	"github.com/wallboard/wallboard/internal/session"
	"github.com/wallboard/wallboard/internal/store"
)

// Gateway orchestrates the wallboard server components: the agent store, the
// status engine, the event broadcaster, the session manager, and the HTTP
// server carrying both the REST API and the websocket endpoint.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *registry.Registry
	broadcaster *broadcast.Broadcaster
	engine      *engine.Engine
	sessions    *session.Manager
	httpServer  *http.Server
	logger      *slog.Logger
}

// initStore creates a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("WALLBOARD_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	return newWithStore(cfg, s, logger), nil
}

// newWithStore wires the gateway around an existing store. Split out so tests
// can inject a mock.
func newWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) *Gateway {
	policy := registry.PolicySupersede
	if cfg.Sessions.DuplicatePolicy == "reject" {
		policy = registry.PolicyReject
	}

	reg := registry.New(policy, logger)
	b := broadcast.NewBroadcaster(logger)
	e := engine.New(s, logger)

	sessions := session.NewManager(session.Config{
		Registry:          reg,
		Broadcaster:       b,
		Engine:            e,
		Store:             s,
		Logger:            logger,
		HeartbeatInterval: cfg.Sessions.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Sessions.HeartbeatTimeout,
	})

	g := &Gateway{
		config:      cfg,
		store:       s,
		registry:    reg,
		broadcaster: b,
		engine:      e,
		sessions:    sessions,
		logger:      logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/ws", g.handleWebSocket)
	mux.HandleFunc("/api/agents", g.handleAgents)
	mux.HandleFunc("/api/agents/", g.handleAgentSubroutes)
	mux.HandleFunc("/api/messages", g.handleMessages)
	mux.HandleFunc("/api/messages/", g.handleMessageSubroutes)

	g.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	g.sessions.ServeWS(w, r)
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown tears down live sessions, stops the HTTP server, and closes the
// store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.sessions.Shutdown(ctx)
	g.broadcaster.Close()

	var firstErr error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Error("HTTP server shutdown failed", "error", err)
		firstErr = err
	}
	if err := g.store.Close(); err != nil {
		g.logger.Error("store close failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	g.logger.Info("gateway stopped")
	return firstErr
}
