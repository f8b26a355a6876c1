package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type logLine struct {
	Type     string          `json:"type"`
	Sequence uint64          `json:"sequence"`
	RunID    string          `json:"runId"`
	EntityID uint64          `json:"entityId"`
	Payload  json.RawMessage `json:"payload"`
}

func readLines(t *testing.T, data []byte) []logLine {
	t.Helper()
	var out []logLine
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var l logLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		out = append(out, l)
	}
	return out
}

// TestEventLogWritesJSONL verifies records reach the writer on stop
func TestEventLogWritesJSONL(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	el := NewEventLog()
	assert.False(t, el.EmitSimple(EventTypeSpawn, 1, 0, 1, SpawnPayload{}), "not started")

	require.NoError(t, el.StartWriter(&buf))
	assert.True(t, el.EmitSimple(EventTypeSpawn, 1, 0, 1, SpawnPayload{Tag: "ship"}))
	assert.True(t, el.EmitSimple(EventTypeOverlap, 2, 0.1, 1, OverlapPayload{Other: 2}))
	assert.True(t, el.EmitSimple(EventTypeDestroy, 3, 0.2, 2, DestroyPayload{Reason: "expired"}))
	el.Stop()
	el.Stop()

	lines := readLines(t, buf.Bytes())
	require.Len(t, lines, 3)
	assert.Equal(t, "spawn", lines[0].Type)
	assert.Equal(t, "overlap", lines[1].Type)
	assert.Equal(t, "destroy", lines[2].Type)
	for i, l := range lines {
		assert.Equal(t, uint64(i+1), l.Sequence)
		assert.Equal(t, el.RunID(), l.RunID)
	}
	assert.JSONEq(t, `{"tag":"ship","x":0,"y":0,"lifetime":0}`, string(lines[0].Payload))

	stats := el.GetStats()
	assert.Equal(t, uint64(3), stats.Total)
	assert.False(t, stats.Running)
}

// TestEventLogRateLimitsOneEntity checks a single source cannot flood
func TestEventLogRateLimitsOneEntity(t *testing.T) {
	defer goleak.VerifyNone(t)

	el := NewEventLog()
	require.NoError(t, el.StartWriter(nil))
	defer el.Stop()

	accepted := 0
	for i := 0; i < 200; i++ {
		if el.EmitSimple(EventTypeOverlap, uint64(i), 0, 7, OverlapPayload{Other: 8}) {
			accepted++
		}
	}
	assert.Less(t, accepted, 200)
	assert.Greater(t, el.GetDroppedCount(), uint64(0))
	assert.True(t, el.EmitSimple(EventTypeSpawn, 0, 0, 9, SpawnPayload{}), "other entities are unaffected")
}

// TestEngineJournalsLifecycle checks the engine emits spawn, overlap and
// destroy records to a file
func TestEngineJournalsLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	require.NoError(t, el.Start(path))

	cfg := DefaultEngineConfig()
	cfg.EventLog = el
	engine, clock := newTestEngine(t, cfg)

	a := circleAt(engine, 0, 0, 10)
	b := circleAt(engine, 5, 0, 10)
	require.NoError(t, engine.AddObject(a))
	require.NoError(t, engine.AddObject(b))
	step(t, engine, clock, 10*time.Millisecond)
	engine.RemoveObject(b)
	el.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var types []string
	for _, l := range readLines(t, data) {
		types = append(types, l.Type)
	}
	assert.Equal(t, []string{"spawn", "spawn", "overlap", "destroy"}, types)
}
