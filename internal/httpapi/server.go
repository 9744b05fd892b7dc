// Package httpapi implements the spec §6.2 HTTP surface plus the read-only
// views and ambient concerns (§1's "external collaborator") the
// distillation left out: security headers, CORS, body-size limiting,
// structured request logging, ETag-aware polling endpoints, an SSE live
// stream, and order idempotency.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/fasthash/fnv1a"
	"golang.org/x/sync/errgroup"

	"github.com/ron808/eagrouter/internal/engine"
	"github.com/ron808/eagrouter/internal/lifecycle"
)

// Config configures a new Server.
type Config struct {
	Log            *slog.Logger
	Engine         *engine.Engine
	Addr           string
	AllowedOrigins []string
	MaxRequestBody int64
}

// Server serves the HTTP surface the spec's core depends on, backed by a
// single engine.Engine.
type Server struct {
	log    *slog.Logger
	engine *engine.Engine
	http   *http.Server

	idempotencyMu sync.Mutex
	idempotency   map[uint64]idempotentResult

	streamMu   sync.Mutex
	subscribers map[uuid.UUID]chan []byte
}

type idempotentResult struct {
	status int
	body   any
}

// New builds a Server with its full route table and middleware chain wired.
func (c Config) New() *Server {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	s := &Server{
		log:         c.Log,
		engine:      c.Engine,
		idempotency: make(map[uint64]idempotentResult),
		subscribers: make(map[uuid.UUID]chan []byte),
	}

	c.Engine.OnTick(s.publishTick)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.logging(handler)
	handler = maxBody(c.MaxRequestBody, handler)
	handler = cors(c.AllowedOrigins, handler)
	handler = securityHeaders(handler)

	s.http = &http.Server{Addr: c.Addr, Handler: handler}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/simulation/status", s.handleStatus)
	mux.HandleFunc("POST /api/simulation/start", s.handleStart)
	mux.HandleFunc("POST /api/simulation/stop", s.handleStop)
	mux.HandleFunc("POST /api/simulation/reset", s.handleReset)
	mux.HandleFunc("POST /api/simulation/tick", s.handleTick)
	mux.HandleFunc("GET /api/simulation/bots/positions", s.handleBotPositions)
	mux.HandleFunc("GET /api/simulation/stream", s.handleStream)

	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("POST /api/orders", s.handleCreateOrder)
	mux.HandleFunc("GET /api/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("PUT /api/orders/{id}", s.handleUpdateOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/orders/{id}/history", s.handleOrderHistory)

	mux.HandleFunc("GET /api/bots", s.handleListBots)
	mux.HandleFunc("GET /api/bots/{id}", s.handleGetBot)
	mux.HandleFunc("GET /api/bots/{id}/orders", s.handleGetBotOrders)

	mux.HandleFunc("GET /api/grid", s.handleGrid)
	mux.HandleFunc("GET /api/grid/nodes", s.handleGridNodes)
	mux.HandleFunc("GET /api/grid/nodes/{id}", s.handleGridNode)
	mux.HandleFunc("GET /api/grid/restaurants", s.handleGridRestaurants)
	mux.HandleFunc("GET /api/grid/delivery-points", s.handleGridDeliveryPoints)
	mux.HandleFunc("GET /api/grid/blocked-edges", s.handleGridBlockedEdges)
}

// Run starts the HTTP server, blocking until ctx is cancelled, then
// gracefully shutting down. SSE publishing is not driven from here: it runs
// from the engine's OnTick callback registered in New. Grounded on golang.org/x/sync/errgroup's standard
// serve-then-shutdown-on-cancel pattern.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// idempotencyKeyHash hashes an idempotency key with fnv1a; the hash is the
// key of the in-process Server.idempotency table.
func idempotencyKeyHash(key string) uint64 {
	return fnv1a.HashString64(key)
}

func mapErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return http.StatusConflict, "illegal transition"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
