package scene

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"restep/internal/core"
	"restep/internal/render"
)

// FrameFunc runs on the render goroutine after every publish.
type FrameFunc func(frame uint64, stats render.PublishStats)

// DriverConfig sets the two cadences.
type DriverConfig struct {
	PulseInterval   time.Duration // simulation ticks
	PublishInterval time.Duration // render publishes
	OnFrame         FrameFunc
}

// Driver is the frame clock: one goroutine pulses the core thread, another
// publishes to the render bridge. The two never share a lock besides the
// core lock PublishLatest takes briefly.
type Driver struct {
	engine *core.Engine
	bridge *render.Bridge
	cfg    DriverConfig

	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	pulses atomic.Uint64
	frames atomic.Uint64
}

// NewDriver creates a driver. Zero intervals default to 60 Hz pulses and
// 30 Hz publishes.
func NewDriver(engine *core.Engine, bridge *render.Bridge, cfg DriverConfig) *Driver {
	if cfg.PulseInterval <= 0 {
		cfg.PulseInterval = time.Second / 60
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = time.Second / 30
	}
	return &Driver{
		engine:   engine,
		bridge:   bridge,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start starts the core thread and both loops. A driver runs once.
func (d *Driver) Start() {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	d.engine.Start()

	d.wg.Add(2)
	go d.pulseLoop()
	go d.renderLoop()
	log.Printf("⏱️ Frame driver started (pulse %v, publish %v)", d.cfg.PulseInterval, d.cfg.PublishInterval)
}

// Stop ends both loops, then the core thread.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
	if d.running.Swap(false) {
		d.engine.Stop()
	}
}

// Pulses returns how many times the core thread was pulsed.
func (d *Driver) Pulses() uint64 { return d.pulses.Load() }

// Frames returns how many publishes ran.
func (d *Driver) Frames() uint64 { return d.frames.Load() }

func (d *Driver) pulseLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.PulseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.engine.Pulse()
			d.pulses.Add(1)
		}
	}
}

func (d *Driver) renderLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			stats := d.bridge.PublishLatest()
			frame := d.frames.Add(1)
			if d.cfg.OnFrame != nil {
				d.cfg.OnFrame(frame, stats)
			}
		}
	}
}
