package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restep/internal/geom"
)

// TestKeyLifecycle walks a key through every state
func TestKeyLifecycle(t *testing.T) {
	m := NewManager(16)
	var events []string
	m.OnPress('a', func(Key) { events = append(events, "press") })
	m.OnHold('a', func(Key) { events = append(events, "hold") })
	m.OnRelease('a', func(Key) { events = append(events, "release") })

	assert.Equal(t, Off, m.State('a'))

	require.True(t, m.KeyDown('a'))
	steps := []KeyState{Press, Hold, Hold}
	for i, want := range steps {
		m.Update()
		assert.Equal(t, want, m.State('a'), "update %d", i)
	}
	assert.True(t, m.Down('a'))

	require.True(t, m.KeyUp('a'))
	m.Update()
	assert.Equal(t, Release, m.State('a'))
	assert.False(t, m.Down('a'))
	m.Update()
	assert.Equal(t, Off, m.State('a'))
	m.Update()
	assert.Equal(t, Off, m.State('a'))

	assert.Equal(t, []string{"press", "hold", "hold", "release"}, events)
}

// TestTapBetweenUpdates checks a press and release inside one tick is seen
func TestTapBetweenUpdates(t *testing.T) {
	m := NewManager(16)
	m.KeyDown(KeySpace)
	m.KeyUp(KeySpace)

	m.Update()
	assert.Equal(t, Press, m.State(KeySpace))
	m.Update()
	assert.Equal(t, Release, m.State(KeySpace))
	m.Update()
	assert.Equal(t, Off, m.State(KeySpace))
}

// TestRepressFromRelease checks a key pressed again right after release
func TestRepressFromRelease(t *testing.T) {
	m := NewManager(16)
	m.KeyDown(KeyArrowLeft)
	m.Update()
	m.KeyUp(KeyArrowLeft)
	m.Update()
	require.Equal(t, Release, m.State(KeyArrowLeft))

	m.KeyDown(KeyArrowLeft)
	m.Update()
	assert.Equal(t, Press, m.State(KeyArrowLeft))
}

// TestMouse checks position and button tracking
func TestMouse(t *testing.T) {
	m := NewManager(16)
	m.MouseMove(geom.Vec(10, 20))
	m.MouseDown(0, geom.Vec(11, 21))
	m.MouseDown(7, geom.Vec(12, 22))
	m.Update()

	ms := m.Mouse()
	assert.Equal(t, geom.Vec(12, 22), ms.Pos)
	assert.True(t, ms.Buttons[0])
	assert.False(t, ms.Buttons[1])

	m.MouseUp(0, geom.Vec(0, 0))
	m.Update()
	assert.False(t, m.Mouse().Buttons[0])
}

// TestOverflowDropsEvents checks a full queue rejects new events
func TestOverflowDropsEvents(t *testing.T) {
	m := NewManager(2)
	assert.True(t, m.KeyDown('x'))
	assert.True(t, m.KeyDown('y'))
	assert.False(t, m.KeyDown('z'))

	m.Update()
	assert.Equal(t, Press, m.State('x'))
	assert.Equal(t, Off, m.State('z'))
}

// TestHandlerPanicIsRecovered checks one bad handler does not stop others
func TestHandlerPanicIsRecovered(t *testing.T) {
	m := NewManager(4)
	called := false
	m.OnPress('q', func(Key) { panic("bad handler") })
	m.OnPress('q', func(Key) { called = true })

	m.KeyDown('q')
	assert.NotPanics(t, m.Update)
	assert.True(t, called)
	assert.Equal(t, "press", m.State('q').String())
}
