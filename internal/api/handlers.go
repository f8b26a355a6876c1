package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"restep/internal/core"
	"restep/internal/core/collision"
	"restep/internal/geom"
)

// ColliderSpec describes the collider attached to a spawned entity.
type ColliderSpec struct {
	Kind        string         `json:"kind"` // box | circle | oriented_box | convex_polygon
	HalfX       float64        `json:"halfX,omitempty"`
	HalfY       float64        `json:"halfY,omitempty"`
	Radius      float64        `json:"radius,omitempty"`
	UseMinScale bool           `json:"useMinScale,omitempty"`
	Vertices    []geom.Vector2 `json:"vertices,omitempty"`
}

// SpawnRequest is the body of POST /api/entities.
type SpawnRequest struct {
	Tag             string        `json:"tag"`
	X               float64       `json:"x"`
	Y               float64       `json:"y"`
	Rotation        float64       `json:"rotation"`
	VX              float64       `json:"vx"`
	VY              float64       `json:"vy"`
	AngularVelocity float64       `json:"angularVelocity"`
	Lifetime        *float64      `json:"lifetime,omitempty"` // omitted = immortal
	Collider        *ColliderSpec `json:"collider,omitempty"`
}

func (req SpawnRequest) options() core.EntityOptions {
	opts := core.DefaultEntityOptions()
	opts.Tag = req.Tag
	opts.Position = geom.Vec(req.X, req.Y)
	opts.Rotation = req.Rotation
	opts.Velocity = geom.Vec(req.VX, req.VY)
	opts.AngularVelocity = req.AngularVelocity
	if req.Lifetime != nil {
		opts.Lifetime = *req.Lifetime
	}
	return opts
}

// attach validates spec and attaches the collider to ent.
func (spec *ColliderSpec) attach(ent *core.Entity) error {
	kind, ok := collision.ParseKind(spec.Kind)
	if !ok {
		return fmt.Errorf("unknown collider kind %q", spec.Kind)
	}

	half := geom.Vec(spec.HalfX, spec.HalfY)
	switch kind {
	case collision.KindBox, collision.KindOrientedBox:
		if half.X <= 0 || half.Y <= 0 {
			return errors.New("halfX and halfY must be positive")
		}
		if kind == collision.KindBox {
			ent.AttachBox(half)
		} else {
			ent.AttachOrientedBox(half)
		}
	case collision.KindCircle:
		if spec.Radius <= 0 {
			return errors.New("radius must be positive")
		}
		ent.AttachCircle(spec.Radius, spec.UseMinScale)
	case collision.KindConvexPolygon:
		if _, err := ent.AttachConvex(spec.Vertices); err != nil {
			return err
		}
	}
	return nil
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.sim.GetSnapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.sim.GetSnapshot()
	stats := map[string]interface{}{
		"tick":     snapshot.Tick,
		"simTime":  snapshot.SimTime,
		"sequence": snapshot.Sequence,
		"live":     len(snapshot.Entities),
		"lastTick": snapshot.Stats,
	}
	if el := h.sim.EventLog(); el != nil {
		elStats := el.GetStats()
		stats["runId"] = elStats.RunID
		stats["eventLog"] = elStats
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	snapshot := h.sim.GetSnapshot()
	ent, found := snapshot.Find(id)
	if !found {
		writeError(w, "Entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, ent)
}

func (h *routerHandlers) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req SpawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	ent := h.sim.NewEntity(req.options())
	if req.Collider != nil {
		if err := req.Collider.attach(ent); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.sim.AddObject(ent); err != nil {
		if errors.Is(err, core.ErrEntityLimit) {
			writeError(w, "Entity limit reached", http.StatusServiceUnavailable)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.onSpawn != nil {
		var hookErr error
		h.sim.Do(func() {
			// a tick may already have reaped a short-lived entity
			if ent.Admitted() {
				hookErr = h.onSpawn(ent, req)
			}
		})
		if hookErr != nil {
			log.Printf("⚠️ Spawn hook failed for entity %d: %v", ent.ID(), hookErr)
		}
	}

	writeJSONStatus(w, http.StatusCreated, map[string]interface{}{
		"id":  ent.ID(),
		"tag": req.Tag,
	})
}

func (h *routerHandlers) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	found := false
	h.sim.Do(func() {
		if ent, live := h.sim.ObjectLocked(id); live {
			ent.Destroy()
			found = true
		}
	})
	if !found {
		writeError(w, "Entity not found", http.StatusNotFound)
		return
	}
	// reaped on the next tick
	writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{"id": id, "pendingDestroy": true})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil || h.raster == nil {
		writeError(w, "Frame rendering disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.raster.EncodePNG(w, h.frames.Proxies()); err != nil {
		log.Printf("❌ Frame encode failed: %v", err)
	}
}

func entityID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, "Invalid entity id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, code, map[string]string{"error": message})
}
