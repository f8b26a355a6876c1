package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"restep/internal/core"
	"restep/internal/metrics"
	"restep/internal/render"
)

// Simulation defines the engine methods used by the API.
// *core.Engine satisfies it; tests may substitute their own.
type Simulation interface {
	// GetSnapshot returns the latest immutable snapshot without the core lock
	GetSnapshot() core.WorldSnapshot
	// NewEntity creates an entity with an ID from the engine's allocator
	NewEntity(opts core.EntityOptions) *core.Entity
	// AddObject admits an entity under the core lock
	AddObject(ent *core.Entity) error
	// Do runs fn under the core lock
	Do(fn func())
	// ObjectLocked looks up a live entity; the lock must be held
	ObjectLocked(id uint64) (*core.Entity, bool)
	// EventLog returns the journal, or nil if disabled
	EventLog() *core.EventLog
}

// FrameSource produces the drawables for /api/frame.png.
type FrameSource interface {
	Proxies() []render.Drawable
}

// PNGEncoder renders drawables as PNG. *preview.Raster satisfies it.
type PNGEncoder interface {
	EncodePNG(w io.Writer, ds []render.Drawable) error
}

// SpawnFunc is called under the core lock for every entity created through
// the API once it is admitted, e.g. to bind render proxies.
type SpawnFunc func(ent *core.Entity, req SpawnRequest) error

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Sim: engine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        ReadRate:  1000, // High limit for tests
//	        ReadBurst: 1000,
//	    },
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Sim is the simulation engine (required)
	Sim Simulation

	// Frames and Raster back /api/frame.png. The route returns 404 if
	// either is nil.
	Frames FrameSource
	Raster PNGEncoder

	// OnSpawn is optional
	OnSpawn SpawnFunc

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *ClientLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost is allowed.
	CORSOrigins []string

	// Token guards mutating routes when non-empty.
	Token string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies.
type routerHandlers struct {
	sim     Simulation
	frames  FrameSource
	raster  PNGEncoder
	onSpawn SpawnFunc
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter's cleanup
// goroutine, which the caller stops through RouterConfig.RateLimiter:
//   - No network listeners are opened
//   - No simulation state is touched
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewClientLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		sim:     cfg.Sim,
		frames:  cfg.Frames,
		raster:  cfg.Raster,
		onSpawn: cfg.OnSpawn,
	}

	r.Route("/api", func(r chi.Router) {
		// World state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/frame.png", h.handleGetFrame)

		// Entities
		r.Get("/entities/{id}", h.handleGetEntity)
		r.Group(func(r chi.Router) {
			r.Use(TokenAuth(cfg.Token))
			r.Post("/entities", h.handleSpawn)
			r.Delete("/entities/{id}", h.handleDestroy)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/stats", http.StatusFound)
	})

	return r
}

// requestMetrics records latency per route pattern, never per raw path.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
