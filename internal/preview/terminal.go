package preview

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"restep/internal/geom"
	"restep/internal/render"
)

// Terminal draws proxies as filled cells on a tcell screen. Terminal cells
// are roughly twice as tall as wide, so the viewport maps onto the full
// grid and shapes look stretched on non-square terminals.
type Terminal struct {
	screen tcell.Screen
	status string
}

// NewTerminal wraps an initialized screen.
func NewTerminal(screen tcell.Screen) *Terminal {
	return &Terminal{screen: screen}
}

// SetStatus sets the text drawn on the last row.
func (t *Terminal) SetStatus(format string, args ...any) {
	t.status = fmt.Sprintf(format, args...)
}

// Draw clears the screen, fills every proxy's cells and shows the result.
func (t *Terminal) Draw(ds []render.Drawable) {
	t.screen.Clear()
	cols, rows := t.screen.Size()
	if cols <= 0 || rows <= 1 {
		t.screen.Show()
		return
	}
	field := rows - 1 // last row is the status line

	for _, d := range ds {
		t.fill(d, cols, field)
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for i, r := range []rune(t.status) {
		if i >= cols {
			break
		}
		t.screen.SetContent(i, rows-1, r, nil, style)
	}
	t.screen.Show()
}

func (t *Terminal) fill(d render.Drawable, cols, rows int) {
	outline := d.Outline(circleSegments)
	if len(outline) < 3 {
		return
	}
	w, h := float64(cols), float64(rows)
	poly := make([]geom.Vector2, len(outline))
	lo, hi := geom.Vec(w, h), geom.Vec(0, 0)
	for i, p := range outline {
		poly[i] = toPixels(p, w, h)
		lo = lo.Min(poly[i])
		hi = hi.Max(poly[i])
	}

	style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(d.Color.R), int32(d.Color.G), int32(d.Color.B)))
	glyph := '█'
	if d.Opacity < 0.5 {
		glyph = '░'
	}

	x0, y0 := clamp(int(lo.X), 0, cols-1), clamp(int(lo.Y), 0, rows-1)
	x1, y1 := clamp(int(hi.X), 0, cols-1), clamp(int(hi.Y), 0, rows-1)
	drawn := false
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if insideConvex(poly, geom.Vec(float64(x)+0.5, float64(y)+0.5)) {
				t.screen.SetContent(x, y, glyph, nil, style)
				drawn = true
			}
		}
	}
	// Shapes smaller than a cell still show up.
	if !drawn {
		c := toPixels(d.Center(), w, h)
		x, y := int(c.X), int(c.Y)
		if x >= 0 && x < cols && y >= 0 && y < rows {
			t.screen.SetContent(x, y, '·', nil, style)
		}
	}
}

// insideConvex reports whether p lies inside the convex polygon, in
// either winding.
func insideConvex(poly []geom.Vector2, p geom.Vector2) bool {
	sign := 0
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		c := b.Sub(a).Cross(p.Sub(a))
		switch {
		case c > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case c < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
