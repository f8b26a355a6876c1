package core

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeSpawn             // Entity admitted into the live list
	EventTypeDestroy           // Entity removed from the live list
	EventTypeOverlap           // Narrow phase confirmed a pair
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	RunID     string          `json:"runId"`     // Process run this event belongs to
	TickNum   uint64          `json:"tickNum"`
	SimTime   float64         `json:"simTime"`
	EntityID  uint64          `json:"entityId"` // Source entity (for rate limiting)
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeSpawn:
		return "spawn"
	case EventTypeDestroy:
		return "destroy"
	case EventTypeOverlap:
		return "overlap"
	default:
		return "unknown"
	}
}

// MarshalText writes the event type by name in JSONL output.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// SpawnPayload describes an admission.
type SpawnPayload struct {
	Tag      string  `json:"tag,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Lifetime float64 `json:"lifetime"`
	Collider string  `json:"collider,omitempty"`
}

// DestroyPayload describes a removal.
type DestroyPayload struct {
	Reason string  `json:"reason"` // "expired", "destroyed" or "removed"
	Age    float64 `json:"age"`
}

// OverlapPayload describes a confirmed pair.
type OverlapPayload struct {
	Other     uint64 `json:"other"`
	Kind      string `json:"kind"`
	OtherKind string `json:"otherKind"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload any) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, simTime float64, entityID uint64, payload any) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		SimTime:   simTime,
		EntityID:  entityID,
		Payload:   EncodePayload(payload),
	}
}
