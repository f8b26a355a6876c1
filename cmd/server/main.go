package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"restep/internal/api"
	"restep/internal/config"
	"restep/internal/core"
	"restep/internal/core/collision"
	"restep/internal/core/spatial"
	"restep/internal/geom"
	"restep/internal/preview"
	"restep/internal/render"
	"restep/internal/scene"

	"github.com/joho/godotenv"
	"github.com/pkg/profile"
)

func main() {
	profileMode := flag.String("profile", "", "write a cpu or mem profile to the working directory")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "demo scene seed")
	flag.Parse()

	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "":
	default:
		log.Fatalf("unknown -profile mode %q (want cpu or mem)", *profileMode)
	}

	log.Println("🎮 ================================")
	log.Println("🎮  RESTEP - SIMULATION CORE")
	log.Println("🎮 ================================")

	appConfig := config.Load()
	simCfg := appConfig.Sim
	renderCfg := appConfig.Render
	viewport := geom.Vec(float64(appConfig.Viewport.Width), float64(appConfig.Viewport.Height))

	// Start event log
	var eventLog *core.EventLog
	if path := appConfig.EventLog.Path; path != "" {
		eventLog = core.NewEventLog()
		if err := eventLog.Start(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
			eventLog = nil
		} else {
			log.Printf("📝 Event log: %s (run %s)", path, eventLog.RunID())
		}
	}

	// the demo scene has no player to build single-primary pairs around
	if spatial.Strategy(simCfg.Broadphase) == spatial.StrategySinglePrimary {
		log.Fatalf("SIM_BROADPHASE=%s needs a primary body; use %s or %s with the server",
			simCfg.Broadphase, spatial.StrategyPairwise, spatial.StrategySweepAndPrune)
	}

	engine, err := core.NewEngine(core.EngineConfig{
		MaxEntities: simCfg.MaxEntities,
		Broadphase:  spatial.Strategy(simCfg.Broadphase),
		MaxDelta:    simCfg.MaxDelta,
		EventLog:    eventLog,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	log.Printf("🛡️ Engine: %s broadphase, %d entity cap, %d Hz", simCfg.Broadphase, simCfg.MaxEntities, simCfg.PulseRate)

	bridge := render.NewBridge(engine, viewport)
	world := scene.New(engine, bridge, viewport, *seed)
	if err := world.Populate(simCfg.DemoBodies); err != nil {
		log.Printf("⚠️ Demo scene incomplete: %v", err)
	}
	log.Printf("🧩 Demo scene: %d bodies (seed %d)", engine.Len(), *seed)

	raster := preview.NewRaster(appConfig.Viewport.Width, appConfig.Viewport.Height)
	var onFrame scene.FrameFunc
	if dir := renderCfg.FramesDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create frames dir: %v", err)
		}
		every := uint64(renderCfg.FrameEvery)
		onFrame = func(frame uint64, stats render.PublishStats) {
			if frame%every != 0 {
				return
			}
			if _, err := raster.SaveFrame(dir, bridge.Proxies()); err != nil {
				log.Printf("⚠️ Frame %d not saved: %v", frame, err)
			}
		}
		log.Printf("🖼️ Saving every %d frames to %s", every, dir)
	}

	driver := scene.NewDriver(engine, bridge, scene.DriverConfig{
		PulseInterval:   simCfg.PulseInterval(),
		PublishInterval: renderCfg.PublishInterval(),
		OnFrame:         onFrame,
	})

	token := os.Getenv("API_TOKEN")
	if token == "" {
		log.Println("⚠️ API_TOKEN not set - spawn and destroy are open")
	}

	server := api.NewServer(api.ServerConfig{
		Sim:         engine,
		Frames:      bridge,
		Raster:      raster,
		CORSOrigins: appConfig.Server.CORSOrigins,
		Token:       token,
		OnSpawn: func(ent *core.Entity, req api.SpawnRequest) error {
			shape, ok := shapeFromSpec(req.Collider)
			if !ok {
				return nil
			}
			return world.Adopt(ent, shape)
		},
	})

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = appConfig.Observability.Enabled
	debugCfg.ListenAddr = appConfig.Observability.Addr
	debugCfg.AllowExternal = appConfig.Observability.AllowExternal
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	debugServer := api.StartDebugServer(debugCfg, engine)

	driver.Start()
	log.Println("✅ Core thread started")

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		log.Printf("🌐 API server on http://localhost%s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	if debugServer != nil {
		_ = debugServer.Shutdown(ctx)
	}
	driver.Stop()
	if eventLog != nil {
		eventLog.Stop()
	}
	stats := engine.Stats()
	log.Printf("📊 %d ticks, %.1fs simulated, %d live, %d frames", engine.TickCount(), engine.SimTime(), stats.Live, driver.Frames())
	log.Println("👋 Goodbye!")
}

// shapeFromSpec mirrors an API collider as a drawable shape.
func shapeFromSpec(spec *api.ColliderSpec) (scene.Shape, bool) {
	if spec == nil {
		return scene.Shape{}, false
	}
	kind, ok := collision.ParseKind(spec.Kind)
	if !ok {
		return scene.Shape{}, false
	}
	return scene.Shape{
		Kind:     kind,
		Half:     geom.Vec(spec.HalfX, spec.HalfY),
		Radius:   spec.Radius,
		Vertices: spec.Vertices,
	}, true
}
