package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig wires the API server to the simulation and render side.
type ServerConfig struct {
	Sim         Simulation
	Frames      FrameSource
	Raster      PNGEncoder
	OnSpawn     SpawnFunc
	CORSOrigins []string
	Token       string
	RateLimit   RateLimitConfig // zero value uses DefaultRateLimitConfig

	// SnapshotInterval is the websocket broadcast cadence
	SnapshotInterval time.Duration
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	sim         Simulation
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *ClientLimiter
	interval    time.Duration
	http        *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: The hub and broadcast loop do NOT start until Start() is
// called, so the server can be constructed in tests and exercised through
// Router().
func NewServer(cfg ServerConfig) *Server {
	interval := cfg.SnapshotInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond // 10 updates per second
	}

	limiter := NewClientLimiter(cfg.RateLimit)
	s := &Server{
		sim:         cfg.Sim,
		wsHub:       NewWebSocketHub(limiter),
		rateLimiter: limiter,
		interval:    interval,
	}

	s.router = NewRouter(RouterConfig{
		Sim:         cfg.Sim,
		Frames:      cfg.Frames,
		Raster:      cfg.Raster,
		OnSpawn:     cfg.OnSpawn,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
		Token:       cfg.Token,
	})

	// Add WebSocket routes (these need the wsHub instance)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	return s
}

// StartHub starts the websocket hub and snapshot broadcast loop without
// opening a listener.
func (s *Server) StartHub() {
	s.wsHub.Start()
	s.wsHub.StartBroadcastLoop(s.sim, s.interval)
}

// Start starts background workers and serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.StartHub()
	log.Printf("🌐 API server starting on %s", addr)

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops the listener, the hub and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	return err
}
