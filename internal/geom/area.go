package geom

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Area is a discretized scalar field. A field built from a pixel region has I = J = 0;
// influence areas carved out of it carry their cell offset (I, J) within that field.
// Each cell covers PixelGroup x PixelGroup model pixels and is sampled at its corner.
type Area struct {
	PixelGroup int
	I          int
	J          int
	PixelX     float64 // model position of cell (0, 0)
	PixelY     float64
	Width      int
	Height     int

	values []float64
}

// NewArea allocates a zeroed area.
func NewArea(pixelGroup, i, j int, pixelX, pixelY float64, width, height int) *Area {
	width = max(width, 0)
	height = max(height, 0)
	return &Area{
		PixelGroup: max(pixelGroup, 1),
		I:          i,
		J:          j,
		PixelX:     pixelX,
		PixelY:     pixelY,
		Width:      width,
		Height:     height,
		values:     make([]float64, width*height),
	}
}

// FromPixelRegion builds the field covering region at the given granularity.
func FromPixelRegion(region Rect, pixelGroup int) *Area {
	pg := float64(max(pixelGroup, 1))
	w := int(math.Ceil(math.Max(region.Width, 0) / pg))
	h := int(math.Ceil(math.Max(region.Height, 0) / pg))
	return NewArea(pixelGroup, 0, 0, region.X, region.Y, w, h)
}

// ScaleX maps a model x coordinate to a cell column.
func (a *Area) ScaleX(px float64) int {
	return int(math.Floor((px - a.PixelX) / float64(a.PixelGroup)))
}

// ScaleY maps a model y coordinate to a cell row.
func (a *Area) ScaleY(py float64) int {
	return int(math.Floor((py - a.PixelY) / float64(a.PixelGroup)))
}

// InvertScaleX maps a cell column back to its model x coordinate.
func (a *Area) InvertScaleX(i int) float64 {
	return float64(i*a.PixelGroup) + a.PixelX
}

// InvertScaleY maps a cell row back to its model y coordinate.
func (a *Area) InvertScaleY(j int) float64 {
	return float64(j*a.PixelGroup) + a.PixelY
}

// Get returns the value of cell (x, y), or NaN outside the area.
func (a *Area) Get(x, y int) float64 {
	if x < 0 || y < 0 || x >= a.Width || y >= a.Height {
		return math.NaN()
	}
	return a.values[y*a.Width+x]
}

// Set stores v in cell (x, y); out of range cells are ignored.
func (a *Area) Set(x, y int, v float64) {
	if x < 0 || y < 0 || x >= a.Width || y >= a.Height {
		return
	}
	a.values[y*a.Width+x] = v
}

// Values exposes the row-major cell values.
func (a *Area) Values() []float64 {
	return a.values
}

// Clear zeroes every cell.
func (a *Area) Clear() {
	clear(a.values)
}

// Max returns the largest cell value, zero for an empty area.
func (a *Area) Max() float64 {
	if len(a.values) == 0 {
		return 0
	}
	return floats.Max(a.values)
}

// Equal reports whether both areas sit on the same cells with identical values.
func (a *Area) Equal(b *Area) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.I == b.I && a.J == b.J && a.Width == b.Width && a.Height == b.Height &&
		floats.Equal(a.values, b.values)
}

// Sub allocates an area on this field's grid covering the model rect r.
func (a *Area) Sub(r Rect) *Area {
	pg := float64(a.PixelGroup)
	i0 := a.ScaleX(r.X)
	j0 := a.ScaleY(r.Y)
	i1 := int(math.Ceil((r.X + r.Width - a.PixelX) / pg))
	j1 := int(math.Ceil((r.Y + r.Height - a.PixelY) / pg))
	return NewArea(a.PixelGroup, i0, j0, a.InvertScaleX(i0), a.InvertScaleY(j0), i1-i0+1, j1-j0+1)
}

// Copy places the values of sub on this field's grid with its top-left cell at origin.
// This is the cheap translate used when a contribution only moved.
func (a *Area) Copy(sub *Area, origin Point) *Area {
	i0 := a.ScaleX(origin.X)
	j0 := a.ScaleY(origin.Y)
	r := NewArea(a.PixelGroup, i0, j0, a.InvertScaleX(i0), a.InvertScaleY(j0), sub.Width, sub.Height)
	copy(r.values, sub.values)
	return r
}

// AddScaled adds factor * sub into the overlapping cells of this area.
func (a *Area) AddScaled(sub *Area, factor float64) {
	if sub == nil || factor == 0 {
		return
	}
	x0 := max(sub.I, 0)
	x1 := min(sub.I+sub.Width, a.Width)
	if x1 <= x0 {
		return
	}
	y0 := max(sub.J, 0)
	y1 := min(sub.J+sub.Height, a.Height)
	for y := y0; y < y1; y++ {
		sy := y - sub.J
		dst := a.values[y*a.Width+x0 : y*a.Width+x1]
		src := sub.values[sy*sub.Width+(x0-sub.I) : sy*sub.Width+(x1-sub.I)]
		floats.AddScaled(dst, factor, src)
	}
}
