// Package input turns raw, edge-triggered key and mouse events into the
// per-tick key states the simulation reads.
//
// Producers (window glue, a terminal, the debug API) post events from any
// goroutine. The core thread calls Update once per tick, which drains the
// queue and moves every key through Off → Press → Hold → Release → Off.
package input

import (
	"fmt"
	"log"

	"restep/internal/geom"
	"restep/internal/metrics"
)

// Key identifies a key. Printable keys use their rune value.
type Key int

const (
	KeyEnter  Key = '\r'
	KeyEscape Key = 0x1b
	KeySpace  Key = ' '
)

// Non-printable keys live above the Unicode range.
const (
	KeyArrowUp Key = 0x110000 + iota
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
)

// KeyState is the per-tick edge state of a key.
type KeyState uint8

const (
	Off KeyState = iota
	Press
	Hold
	Release
)

// String returns the state name.
func (s KeyState) String() string {
	switch s {
	case Off:
		return "off"
	case Press:
		return "press"
	case Hold:
		return "hold"
	case Release:
		return "release"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// EventKind classifies a raw event.
type EventKind uint8

const (
	EventKeyDown EventKind = iota + 1
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
)

// Event is one raw input event.
type Event struct {
	Kind   EventKind
	Key    Key
	Button int
	Pos    geom.Vector2
}

// MaxButtons is the number of tracked mouse buttons.
const MaxButtons = 3

// MouseState is the mouse as of the last Update.
type MouseState struct {
	Pos     geom.Vector2
	Buttons [MaxButtons]bool
}

// KeyFunc is called with the key whose state changed.
type KeyFunc func(k Key)

type keyControl struct {
	state   KeyState
	down    bool // raw level
	tapped  bool // went down since the last Update
	press   []KeyFunc
	hold    []KeyFunc
	release []KeyFunc
}

// Manager tracks key and mouse state. Post and its helpers are safe from
// any goroutine; everything else belongs to the goroutine calling Update.
type Manager struct {
	queue *Queue[Event]
	batch []Event
	keys  map[Key]*keyControl
	mouse MouseState
}

// NewManager creates a manager whose queue holds capacity pending events.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	return &Manager{
		queue: NewQueue[Event](capacity),
		batch: make([]Event, capacity),
		keys:  make(map[Key]*keyControl),
	}
}

// Post queues a raw event. It returns false if the queue is full and the
// event was dropped.
func (m *Manager) Post(ev Event) bool {
	return m.queue.TryPush(ev)
}

func (m *Manager) KeyDown(k Key) bool { return m.Post(Event{Kind: EventKeyDown, Key: k}) }
func (m *Manager) KeyUp(k Key) bool   { return m.Post(Event{Kind: EventKeyUp, Key: k}) }

func (m *Manager) MouseMove(p geom.Vector2) bool {
	return m.Post(Event{Kind: EventMouseMove, Pos: p})
}

func (m *Manager) MouseDown(button int, p geom.Vector2) bool {
	return m.Post(Event{Kind: EventMouseDown, Button: button, Pos: p})
}

func (m *Manager) MouseUp(button int, p geom.Vector2) bool {
	return m.Post(Event{Kind: EventMouseUp, Button: button, Pos: p})
}

// OnPress registers fn for the tick a key goes down.
func (m *Manager) OnPress(k Key, fn KeyFunc) { m.control(k).press = append(m.control(k).press, fn) }

// OnHold registers fn for every tick after the first that a key stays down.
func (m *Manager) OnHold(k Key, fn KeyFunc) { m.control(k).hold = append(m.control(k).hold, fn) }

// OnRelease registers fn for the tick a key comes up.
func (m *Manager) OnRelease(k Key, fn KeyFunc) {
	m.control(k).release = append(m.control(k).release, fn)
}

// State returns the key's state for the current tick.
func (m *Manager) State(k Key) KeyState {
	if kc, ok := m.keys[k]; ok {
		return kc.state
	}
	return Off
}

// Down reports whether the key is pressed or held this tick.
func (m *Manager) Down(k Key) bool {
	s := m.State(k)
	return s == Press || s == Hold
}

// Mouse returns the mouse state as of the last Update.
func (m *Manager) Mouse() MouseState { return m.mouse }

// Update drains pending events and advances every key one step. A key
// pressed and released between two updates still reports Press, then
// Release on the following update.
func (m *Manager) Update() {
	for {
		n := m.queue.DrainTo(m.batch)
		for _, ev := range m.batch[:n] {
			m.apply(ev)
		}
		if n < len(m.batch) {
			break
		}
	}

	for k, kc := range m.keys {
		down := kc.down || kc.tapped
		kc.tapped = false

		switch {
		case down && (kc.state == Press || kc.state == Hold):
			kc.state = Hold
			m.fire(k, kc.hold)
		case down:
			kc.state = Press
			m.fire(k, kc.press)
		case kc.state == Press || kc.state == Hold:
			kc.state = Release
			m.fire(k, kc.release)
		case kc.state == Release:
			kc.state = Off
		}
	}
}

func (m *Manager) apply(ev Event) {
	switch ev.Kind {
	case EventKeyDown:
		kc := m.control(ev.Key)
		kc.down = true
		kc.tapped = true
	case EventKeyUp:
		m.control(ev.Key).down = false
	case EventMouseMove:
		m.mouse.Pos = ev.Pos
	case EventMouseDown, EventMouseUp:
		m.mouse.Pos = ev.Pos
		if ev.Button >= 0 && ev.Button < MaxButtons {
			m.mouse.Buttons[ev.Button] = ev.Kind == EventMouseDown
		}
	}
}

func (m *Manager) control(k Key) *keyControl {
	kc, ok := m.keys[k]
	if !ok {
		kc = &keyControl{}
		m.keys[k] = kc
	}
	return kc
}

func (m *Manager) fire(k Key, fns []KeyFunc) {
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("⚠️ Recovered panic in input handler for key %d: %v", k, r)
					metrics.RecordHookPanic("input")
				}
			}()
			fn(k)
		}()
	}
}
