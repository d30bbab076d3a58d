package canvas

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"

	"github.com/fogleman/gg"
)

// Raster is a Surface backed by an in-memory RGBA image.
type Raster struct {
	dc     *gg.Context
	fill   color.Color
	stroke color.Color
	stack  [][2]color.Color
}

// NewRaster creates a transparent width x height raster.
func NewRaster(width, height int) *Raster {
	dc := gg.NewContext(width, height)
	dc.SetLineWidth(1)
	return &Raster{dc: dc, fill: color.Black, stroke: color.Black}
}

func (r *Raster) Size() (float64, float64) {
	return float64(r.dc.Width()), float64(r.dc.Height())
}

func (r *Raster) PixelRatio() float64 { return 1 }

func (r *Raster) Save() {
	r.dc.Push()
	r.stack = append(r.stack, [2]color.Color{r.fill, r.stroke})
}

func (r *Raster) Restore() {
	r.dc.Pop()
	if n := len(r.stack); n > 0 {
		r.fill, r.stroke = r.stack[n-1][0], r.stack[n-1][1]
		r.stack = r.stack[:n-1]
	}
}

func (r *Raster) ResetTransform()        { r.dc.Identity() }
func (r *Raster) Translate(x, y float64) { r.dc.Translate(x, y) }
func (r *Raster) Scale(x, y float64)     { r.dc.Scale(x, y) }

// ClearRect resets the pixels under the transformed rect to transparent.
func (r *Raster) ClearRect(x, y, w, h float64) {
	img, ok := r.dc.Image().(*image.RGBA)
	if !ok {
		return
	}
	x0, y0 := r.dc.TransformPoint(x, y)
	x1, y1 := r.dc.TransformPoint(x+w, y+h)
	rect := image.Rect(int(min(x0, x1)), int(min(y0, y1)), int(max(x0, x1)+0.5), int(max(y0, y1)+0.5))
	draw.Draw(img, rect, image.Transparent, image.Point{}, draw.Src)
}

// FillRect fills a rect with the fill style. The current path is discarded.
func (r *Raster) FillRect(x, y, w, h float64) {
	r.dc.ClearPath()
	r.dc.DrawRectangle(x, y, w, h)
	r.dc.SetColor(r.fill)
	r.dc.Fill()
}

func (r *Raster) BeginPath()          { r.dc.ClearPath() }
func (r *Raster) MoveTo(x, y float64) { r.dc.MoveTo(x, y) }
func (r *Raster) LineTo(x, y float64) { r.dc.LineTo(x, y) }
func (r *Raster) ClosePath()          { r.dc.ClosePath() }

func (r *Raster) SetFillStyle(style string) {
	if c, ok := parseStyle(style); ok {
		r.fill = c
	}
}

func (r *Raster) SetStrokeStyle(style string) {
	if c, ok := parseStyle(style); ok {
		r.stroke = c
	}
}

func (r *Raster) Fill() {
	r.dc.SetColor(r.fill)
	r.dc.FillPreserve()
}

func (r *Raster) Stroke() {
	r.dc.SetColor(r.stroke)
	r.dc.StrokePreserve()
}

// Image returns the rendered pixels.
func (r *Raster) Image() image.Image {
	return r.dc.Image()
}

// Background paints every transparent pixel with c.
func (r *Raster) Background(c color.Color) {
	bg := gg.NewContext(r.dc.Width(), r.dc.Height())
	bg.SetColor(c)
	bg.Clear()
	bg.DrawImage(r.dc.Image(), 0, 0)
	r.dc = bg
}

// EncodePNG writes the raster as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func parseStyle(style string) (color.Color, bool) {
	c, err := ParseColor(style)
	if err != nil {
		slog.Warn("ignoring style", "style", style, "error", err)
		return nil, false
	}
	return c, true
}
