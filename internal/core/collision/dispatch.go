package collision

import (
	"errors"
	"fmt"
)

// ErrUnhandledPair is returned when no authoritative routine exists for a
// pair of kinds. Callers treat it as "no overlap".
var ErrUnhandledPair = errors.New("collision: unhandled collider pair")

// overlapFunc resolves one unordered pair. a.Kind() >= b.Kind() always holds.
type overlapFunc func(a, b *Collider) bool

// dispatch is indexed [primary][secondary]. Only entries with
// primary >= secondary are populated; the rest are reached by swapping.
var dispatch = [kindCount][kindCount]overlapFunc{
	KindBox: {
		KindBox: boxBox,
	},
	KindCircle: {
		KindBox:    circleBox,
		KindCircle: circleCircle,
	},
	KindOrientedBox: {
		KindBox:         orientedBox,
		KindCircle:      orientedCircle,
		KindOrientedBox: orientedOriented,
	},
	KindConvexPolygon: {
		KindBox:           convexPolygon,
		KindCircle:        convexCircle,
		KindOrientedBox:   convexPolygon,
		KindConvexPolygon: convexPolygon,
	},
}

// Overlap resolves whether a and b intersect. A nil collider never overlaps
// and is not an error. Unknown kinds or missing routines return
// ErrUnhandledPair with a false result.
func Overlap(a, b *Collider) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	if !a.kind.Valid() || !b.kind.Valid() {
		return false, fmt.Errorf("%w: %s/%s", ErrUnhandledPair, a.kind, b.kind)
	}
	if !a.IsPrimaryHandler(b.kind) {
		a, b = b, a
	}
	fn := dispatch[a.kind][b.kind]
	if fn == nil {
		return false, fmt.Errorf("%w: %s/%s", ErrUnhandledPair, a.kind, b.kind)
	}
	return fn(a, b), nil
}
