package api

import (
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // loopback unless AllowExternal
	AllowExternal bool
	BasicAuthUser string // optional basic auth
	BasicAuthPass string

	// StaleAfter is how old the newest snapshot may be before /health
	// reports the core thread as stalled.
	StaleAfter time.Duration
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
		StaleAfter: 5 * time.Second,
	}
}

// DebugHandler serves pprof, /metrics and /health. With a nil source
// /health only reports that the process is up.
func DebugHandler(cfg ObservabilityConfig, source SnapshotSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler(cfg.StaleAfter, source))

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// healthHandler reports "starting" until the first tick, then "ok" while
// snapshots keep arriving and 503 "stalled" once they stop.
func healthHandler(staleAfter time.Duration, source SnapshotSource) http.HandlerFunc {
	if staleAfter <= 0 {
		staleAfter = DefaultObservabilityConfig().StaleAfter
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
			return
		}

		snap := source.GetSnapshot()
		body := map[string]interface{}{
			"status": "ok",
			"tick":   snap.Tick,
			"live":   len(snap.Entities),
		}
		if snap.Sequence == 0 {
			body["status"] = "starting"
			writeJSON(w, body)
			return
		}

		age := time.Since(snap.Timestamp)
		body["snapshotAgeMs"] = age.Milliseconds()
		if age > staleAfter {
			body["status"] = "stalled"
			writeJSONStatus(w, http.StatusServiceUnavailable, body)
			return
		}
		writeJSON(w, body)
	}
}

// isLoopback reports whether addr binds to a loopback interface only.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// StartDebugServer serves DebugHandler in the background and returns the
// server for shutdown, or nil when disabled. Non-loopback addresses are
// replaced with the default unless AllowExternal is set, since pprof is
// enough to stall the process.
func StartDebugServer(cfg ObservabilityConfig, source SnapshotSource) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && !cfg.AllowExternal {
		log.Printf("⚠️ Debug server address %q is not loopback, using %s", cfg.ListenAddr, DefaultObservabilityConfig().ListenAddr)
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg, source),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)
		log.Printf("   - health:  http://%s/health", cfg.ListenAddr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
