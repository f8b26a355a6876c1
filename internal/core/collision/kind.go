// Package collision implements the narrow-phase shapes of the simulation core.
//
// Shapes form a closed set ordered Box < Circle < OrientedBox < ConvexPolygon.
// For every unordered pair exactly one routine is authoritative: the one
// registered under the higher-ordered kind. Callers holding the lower kind
// swap arguments before dispatching, so each pair has one implementation and
// can still be asked in either argument position.
package collision

import "fmt"

// Kind identifies a collider variant. The numeric order is the dispatch order.
type Kind uint8

const (
	KindBox Kind = iota
	KindCircle
	KindOrientedBox
	KindConvexPolygon

	kindCount
)

// String returns the kind name used in logs and the debug API.
func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindCircle:
		return "circle"
	case KindOrientedBox:
		return "oriented_box"
	case KindConvexPolygon:
		return "convex_polygon"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool {
	return k < kindCount
}

// rotates reports whether the owner's rotation affects the shape.
func (k Kind) rotates() bool {
	return k == KindOrientedBox || k == KindConvexPolygon
}

// IsPrimaryHandler reports whether self's routines are authoritative for the
// ordered pair (self, other). Each variant handles kinds at or below itself.
func IsPrimaryHandler(self, other Kind) bool {
	return self >= other
}

// ParseKind maps a kind name back to its value.
func ParseKind(name string) (Kind, bool) {
	for k := Kind(0); k < kindCount; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}
