// Package config provides centralized configuration management.
// Every tunable of the engine, render loop and debug server has its default
// here; cmd/* layers environment overrides (and .env) on top.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds core thread settings.
type SimConfig struct {
	PulseRate   int           // Frame-driver pulses per second (simulation tick cadence)
	Broadphase  string        // pairwise | sweep | single
	MaxEntities int           // Admission cap
	MaxDelta    time.Duration // Longest step a single tick may take
	DemoBodies  int           // Bodies spawned by the demo scene
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		PulseRate:   60,
		Broadphase:  "pairwise",
		MaxEntities: 4096,
		MaxDelta:    250 * time.Millisecond,
		DemoBodies:  24,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if r := getEnvInt("SIM_PULSE_RATE", 0); r > 0 {
		cfg.PulseRate = r
	}
	if b := strings.TrimSpace(os.Getenv("SIM_BROADPHASE")); b != "" {
		cfg.Broadphase = strings.ToLower(b)
	}
	if m := getEnvInt("SIM_MAX_ENTITIES", 0); m > 0 {
		cfg.MaxEntities = m
	}
	if ms := getEnvInt("SIM_MAX_DELTA_MS", 0); ms > 0 {
		cfg.MaxDelta = time.Duration(ms) * time.Millisecond
	}
	if n := getEnvInt("SIM_DEMO_BODIES", -1); n >= 0 {
		cfg.DemoBodies = n
	}

	return cfg
}

// PulseInterval is the time between frame-driver pulses.
func (c SimConfig) PulseInterval() time.Duration {
	if c.PulseRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.PulseRate)
}

// =============================================================================
// VIEWPORT & RENDER CONFIGURATION
// =============================================================================

// ViewportConfig is the pixel space entities live in.
type ViewportConfig struct {
	Width  int
	Height int
}

// DefaultViewport returns the default viewport.
func DefaultViewport() ViewportConfig {
	return ViewportConfig{
		Width:  800,
		Height: 800,
	}
}

// ViewportFromEnv returns viewport configuration with environment variable overrides.
func ViewportFromEnv() ViewportConfig {
	cfg := DefaultViewport()

	if w := getEnvInt("VIEWPORT_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("VIEWPORT_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}

	return cfg
}

// RenderConfig holds render loop settings.
type RenderConfig struct {
	PublishRate int    // PublishLatest calls per second
	FramesDir   string // If set, every frame is written here as PNG
	FrameEvery  int    // Dump every Nth frame
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{
		PublishRate: 30,
		FrameEvery:  30,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()

	if fps := getEnvInt("RENDER_FPS", 0); fps > 0 {
		cfg.PublishRate = fps
	}
	cfg.FramesDir = os.Getenv("RENDER_FRAMES_DIR")
	if n := getEnvInt("RENDER_FRAME_EVERY", 0); n > 0 {
		cfg.FrameEvery = n
	}

	return cfg
}

// PublishInterval is the time between render publishes.
func (c RenderConfig) PublishInterval() time.Duration {
	if c.PublishRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.PublishRate)
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}

// ObservabilityConfig controls the localhost-only debug server.
type ObservabilityConfig struct {
	Enabled       bool
	Addr          string // pprof, /metrics, /health
	AllowExternal bool   // permit a non-loopback Addr
}

// DefaultObservability returns the default observability configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled: true,
		Addr:    "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability configuration with environment variable overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DEBUG_SERVER") == "false" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.AllowExternal = os.Getenv("DEBUG_ALLOW_EXTERNAL") == "true"

	return cfg
}

// EventLogConfig controls the JSONL event journal.
type EventLogConfig struct {
	Path string // Empty disables the journal
}

// EventLogFromEnv returns event log configuration from the environment.
func EventLogFromEnv() EventLogConfig {
	return EventLogConfig{Path: os.Getenv("EVENT_LOG_PATH")}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim           SimConfig
	Viewport      ViewportConfig
	Render        RenderConfig
	Server        ServerConfig
	Observability ObservabilityConfig
	EventLog      EventLogConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:           SimFromEnv(),
		Viewport:      ViewportFromEnv(),
		Render:        RenderFromEnv(),
		Server:        ServerFromEnv(),
		Observability: ObservabilityFromEnv(),
		EventLog:      EventLogFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
