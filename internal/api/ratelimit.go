package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"restep/internal/metrics"
)

// RateLimitConfig sets per-client budgets. Spawn and destroy draw from a
// separate, smaller write bucket so polling the world never starves them
// and a client cannot churn entities at read speed.
type RateLimitConfig struct {
	ReadRate   float64 // GET requests per second
	ReadBurst  int
	WriteRate  float64 // POST/DELETE requests per second
	WriteBurst int
	MaxStreams int           // open websocket streams per client
	IdleTTL    time.Duration // clients idle this long are forgotten
	TrustProxy bool          // key clients by X-Forwarded-For / X-Real-IP
}

// DefaultRateLimitConfig is used when the router is given none.
var DefaultRateLimitConfig = RateLimitConfig{
	ReadRate:   20,
	ReadBurst:  40,
	WriteRate:  5,
	WriteBurst: 10,
	MaxStreams: 4,
	IdleTTL:    10 * time.Minute,
}

type client struct {
	read     *rate.Limiter
	write    *rate.Limiter
	lastSeen time.Time
	streams  int
}

// ClientLimiter rate limits requests and caps websocket streams per client
// address. A sweeper goroutine forgets idle clients until Stop.
type ClientLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*client

	stopChan chan struct{}
	stopOnce sync.Once

	rejected atomic.Uint64
}

// NewClientLimiter creates a limiter and starts its sweeper. A bucket with
// no burst, and any other zero field, takes its default.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	defaults := DefaultRateLimitConfig
	if cfg.ReadBurst <= 0 {
		cfg.ReadRate, cfg.ReadBurst = defaults.ReadRate, defaults.ReadBurst
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteRate, cfg.WriteBurst = defaults.WriteRate, defaults.WriteBurst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaults.IdleTTL
	}
	if cfg.MaxStreams <= 0 {
		cfg.MaxStreams = defaults.MaxStreams
	}
	l := &ClientLimiter{
		cfg:      cfg,
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Stop ends the sweeper.
func (l *ClientLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}

// clientLocked returns the record for addr, creating it on first sight.
func (l *ClientLimiter) clientLocked(addr string) *client {
	c, ok := l.clients[addr]
	if !ok {
		c = &client{
			read:  rate.NewLimiter(rate.Limit(l.cfg.ReadRate), l.cfg.ReadBurst),
			write: rate.NewLimiter(rate.Limit(l.cfg.WriteRate), l.cfg.WriteBurst),
		}
		l.clients[addr] = c
	}
	c.lastSeen = time.Now()
	return c
}

// Allow takes one token from addr's read or write bucket.
func (l *ClientLimiter) Allow(addr string, write bool) bool {
	l.mu.Lock()
	c := l.clientLocked(addr)
	bucket := c.read
	if write {
		bucket = c.write
	}
	l.mu.Unlock()

	if bucket.Allow() {
		return true
	}
	l.rejected.Add(1)
	return false
}

// AcquireStream reserves a websocket slot for addr.
func (l *ClientLimiter) AcquireStream(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.clientLocked(addr)
	if c.streams >= l.cfg.MaxStreams {
		l.rejected.Add(1)
		return false
	}
	c.streams++
	return true
}

// ReleaseStream frees a slot taken by AcquireStream.
func (l *ClientLimiter) ReleaseStream(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.clients[addr]; ok && c.streams > 0 {
		c.streams--
		c.lastSeen = time.Now()
	}
}

// Streams returns the open stream count for addr.
func (l *ClientLimiter) Streams(addr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.clients[addr]; ok {
		return c.streams
	}
	return 0
}

// Rejected returns how many requests and streams were refused.
func (l *ClientLimiter) Rejected() uint64 { return l.rejected.Load() }

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientLimiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// sweep drops clients idle since before now-IdleTTL. Clients holding a
// stream are kept.
func (l *ClientLimiter) sweep(now time.Time) int {
	cutoff := now.Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for addr, c := range l.clients {
		if c.streams == 0 && c.lastSeen.Before(cutoff) {
			delete(l.clients, addr)
			n++
		}
	}
	return n
}

// Middleware rejects requests over the client's budget with 429.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.ClientAddr(r), isWrite(r.Method)) {
			metrics.RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// ClientAddr keys a request by peer address. Forwarding headers are only
// believed when the limiter sits behind a trusted proxy.
func (l *ClientLimiter) ClientAddr(r *http.Request) string {
	if l.cfg.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AllowedOrigins lists extra origins accepted for websocket upgrades.
// Localhost on any port is always accepted.
var AllowedOrigins []string

// IsAllowedOrigin reports whether a websocket Origin may connect.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}
	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
