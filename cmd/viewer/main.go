package main

import (
	"errors"
	"flag"
	"log"
	"math"
	"os"
	"time"

	"restep/internal/config"
	"restep/internal/core"
	"restep/internal/core/collision"
	"restep/internal/core/spatial"
	"restep/internal/geom"
	"restep/internal/input"
	"restep/internal/preview"
	"restep/internal/render"
	"restep/internal/scene"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

const (
	playerSpeed     = 160.0
	projectileSpeed = 320.0
	projectileLife  = 1.5
)

var arrows = map[tcell.Key]input.Key{
	tcell.KeyUp:    input.KeyArrowUp,
	tcell.KeyDown:  input.KeyArrowDown,
	tcell.KeyLeft:  input.KeyArrowLeft,
	tcell.KeyRight: input.KeyArrowRight,
}

// steering maps arrow keys to headings in pixel space, where y grows
// down the screen.
var steering = map[input.Key]geom.Vector2{
	input.KeyArrowUp:    geom.Vec(0, -1),
	input.KeyArrowDown:  geom.Vec(0, 1),
	input.KeyArrowLeft:  geom.Vec(-1, 0),
	input.KeyArrowRight: geom.Vec(1, 0),
}

// player is the body steered from the keyboard. Its fields are only
// touched from input handlers, which run on the core thread.
type player struct {
	engine  *core.Engine
	world   *scene.Scene
	body    *core.Entity
	heading geom.Vector2
}

func (p *player) steer(dir geom.Vector2) input.KeyFunc {
	return func(input.Key) {
		p.heading = dir
		p.body.SetVelocity(dir.Scale(playerSpeed))
		p.body.SetRotation(math.Atan2(dir.Y, dir.X))
	}
}

func (p *player) fire(input.Key) {
	opts := core.DefaultEntityOptions()
	opts.Tag = "projectile"
	opts.Lifetime = projectileLife
	opts.Position = p.body.Position().Add(p.heading.Scale(30))
	opts.Velocity = p.body.Velocity().Add(p.heading.Scale(projectileSpeed))

	shot := p.engine.NewEntity(opts)
	shot.AttachCircle(4, false)
	if err := p.engine.AddObjectLocked(shot); err != nil {
		if !errors.Is(err, core.ErrEntityLimit) {
			log.Printf("⚠️ projectile not fired: %v", err)
		}
		return
	}
	if err := p.world.Adopt(shot, scene.Shape{Kind: collision.KindCircle, Radius: 4}); err != nil {
		log.Printf("⚠️ projectile %d not drawn: %v", shot.ID(), err)
	}
}

func main() {
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "demo scene seed")
	logPath := flag.String("log", "viewer.log", "log file (the terminal is in use)")
	flag.Parse()

	if f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	appConfig := config.Load()
	simCfg := appConfig.Sim
	viewport := geom.Vec(float64(appConfig.Viewport.Width), float64(appConfig.Viewport.Height))

	inputs := input.NewManager(256)
	engine, err := core.NewEngine(core.EngineConfig{
		MaxEntities: simCfg.MaxEntities,
		Broadphase:  spatial.Strategy(simCfg.Broadphase),
		MaxDelta:    simCfg.MaxDelta,
		Input:       inputs,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	bridge := render.NewBridge(engine, viewport)
	world := scene.New(engine, bridge, viewport, *seed)
	if err := world.Populate(simCfg.DemoBodies); err != nil {
		log.Printf("⚠️ Demo scene incomplete: %v", err)
	}

	p := &player{engine: engine, world: world, heading: geom.Vec(1, 0)}
	engine.Do(func() {
		opts := core.DefaultEntityOptions()
		opts.Tag = "player"
		opts.Position = viewport.Scale(0.5)
		p.body = engine.NewEntity(opts)
		p.body.AttachOrientedBox(geom.Vec(18, 10))
		if err := engine.AddObjectLocked(p.body); err != nil {
			log.Fatalf("Failed to add player: %v", err)
		}
		if sp, ok := engine.Partitioner().(*spatial.SinglePrimary); ok {
			sp.SetPrimary(p.body)
		}
		shape := scene.Shape{Kind: collision.KindOrientedBox, Half: geom.Vec(18, 10)}
		if err := world.Adopt(p.body, shape); err != nil {
			log.Fatalf("Failed to bind player: %v", err)
		}
	})

	for key, dir := range steering {
		inputs.OnPress(key, p.steer(dir))
	}
	inputs.OnPress(input.KeySpace, p.fire)

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Failed to init screen: %v", err)
	}
	defer screen.Fini()

	term := preview.NewTerminal(screen)
	driver := scene.NewDriver(engine, bridge, scene.DriverConfig{
		PulseInterval:   simCfg.PulseInterval(),
		PublishInterval: appConfig.Render.PublishInterval(),
		OnFrame: func(frame uint64, stats render.PublishStats) {
			st := engine.Stats()
			term.SetStatus("tick %d  live %d  overlaps %d  shown %d  | arrows steer, space fires, esc quits",
				st.Tick, st.Live, st.Overlaps, stats.Shown)
			term.Draw(bridge.Proxies())
		},
	})
	driver.Start()
	defer driver.Stop()

	for {
		switch ev := screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				return
			}
			k, ok := arrows[ev.Key()]
			if !ok && ev.Key() == tcell.KeyRune {
				k, ok = input.Key(ev.Rune()), true
			}
			if ok {
				// terminals report no key-up, so every key is a tap
				inputs.KeyDown(k)
				inputs.KeyUp(k)
			}
		case *tcell.EventResize:
			screen.Sync()
		case nil:
			return
		}
	}
}
