// Package preview draws published render proxies. Raster produces images
// with gg for the debug API and frame dumps; Terminal draws into a tcell
// screen for the interactive viewer.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"restep/internal/geom"
	"restep/internal/metrics"
	"restep/internal/render"
)

// circleSegments is the polygon resolution used when a drawer cannot draw
// true circles.
const circleSegments = 24

// toPixels maps normalized device coordinates to a w x h pixel grid,
// y pointing down.
func toPixels(ndc geom.Vector2, w, h float64) geom.Vector2 {
	return geom.Vec((ndc.X+1)*0.5*w, (1-ndc.Y)*0.5*h)
}

func fade(c color.RGBA, opacity float64) color.RGBA {
	if opacity > 1 {
		opacity = 1
	}
	c.A = uint8(float64(c.A) * opacity)
	return c
}

// Raster renders proxies into an RGBA image. Safe for concurrent use.
type Raster struct {
	mu         sync.Mutex
	dc         *gg.Context
	width      int
	height     int
	background color.RGBA
	grid       float64 // grid spacing in pixels, 0 disables it
	frames     uint64
}

// NewRaster creates a width x height raster.
func NewRaster(width, height int) *Raster {
	return &Raster{
		dc:         gg.NewContext(width, height),
		width:      width,
		height:     height,
		background: color.RGBA{12, 12, 28, 255},
		grid:       50,
	}
}

// SetGrid sets the grid spacing in pixels. Zero disables the grid.
func (r *Raster) SetGrid(spacing float64) {
	r.mu.Lock()
	r.grid = spacing
	r.mu.Unlock()
}

// Draw renders one frame.
func (r *Raster) Draw(ds []render.Drawable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawLocked(ds)
}

func (r *Raster) drawLocked(ds []render.Drawable) {
	start := time.Now()
	dc := r.dc
	w, h := float64(r.width), float64(r.height)

	dc.SetColor(r.background)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	if r.grid > 0 {
		dc.SetColor(color.RGBA{30, 30, 45, 255})
		dc.SetLineWidth(1)
		for x := r.grid; x < w; x += r.grid {
			dc.DrawLine(x, 0, x, h)
			dc.Stroke()
		}
		for y := r.grid; y < h; y += r.grid {
			dc.DrawLine(0, y, w, y)
			dc.Stroke()
		}
	}

	for _, d := range ds {
		r.drawOne(d, w, h)
	}

	r.frames++
	metrics.RecordFrameRender(time.Since(start))
}

func (r *Raster) drawOne(d render.Drawable, w, h float64) {
	dc := r.dc
	c := fade(d.Color, d.Opacity)

	if d.Shape == render.ShapeCircle {
		center := toPixels(d.Center(), w, h)
		edge := toPixels(d.Matrix.Apply(geom.Vec(d.Size.X, 0)), w, h)
		dc.SetColor(c)
		dc.DrawCircle(center.X, center.Y, center.Dist(edge))
		dc.Fill()
		return
	}

	outline := d.Outline(circleSegments)
	if len(outline) < 2 {
		return
	}
	for i, p := range outline {
		px := toPixels(p, w, h)
		if i == 0 {
			dc.MoveTo(px.X, px.Y)
		} else {
			dc.LineTo(px.X, px.Y)
		}
	}
	dc.ClosePath()
	dc.SetColor(c)
	dc.FillPreserve()
	dc.SetColor(color.RGBA{255, 255, 255, c.A})
	dc.SetLineWidth(1)
	dc.Stroke()
}

// Image returns a copy of the last frame.
func (r *Raster) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// EncodePNG draws ds and writes the frame as PNG.
func (r *Raster) EncodePNG(w io.Writer, ds []render.Drawable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drawLocked(ds)
	return r.dc.EncodePNG(w)
}

// SaveFrame draws ds and writes it to dir as frame-NNNNNN.png.
func (r *Raster) SaveFrame(dir string, ds []render.Drawable) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drawLocked(ds)
	path := filepath.Join(dir, fmt.Sprintf("frame-%06d.png", r.frames))
	if err := r.dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("save frame: %w", err)
	}
	return path, nil
}

// Frames returns how many frames have been drawn.
func (r *Raster) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
