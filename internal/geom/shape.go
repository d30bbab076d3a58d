package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a position in model (graph) coordinates.
type Point = r2.Vec

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Valid reports whether every component is finite and the size is not negative.
func (r Rect) Valid() bool {
	for _, v := range [4]float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.Width >= 0 && r.Height >= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Extend returns the smallest rect containing both rects, degenerate ones included.
func (r Rect) Extend(other Rect) Rect {
	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Pad grows the rect by d on every side.
func (r Rect) Pad(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, Width: r.Width + 2*d, Height: r.Height + 2*d}
}

// IntersectsSegment reports whether the segment a-b touches the rect (Liang-Barsky clipping).
func (r Rect) IntersectsSegment(a, b Point) bool {
	t0, t1 := 0.0, 1.0
	dx, dy := b.X-a.X, b.Y-a.Y
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			t0 = max(t0, t)
		} else {
			if t < t0 {
				return false
			}
			t1 = min(t1, t)
		}
		return true
	}
	return clip(-dx, a.X-r.X) &&
		clip(dx, r.X+r.Width-a.X) &&
		clip(-dy, a.Y-r.Y) &&
		clip(dy, r.Y+r.Height-a.Y)
}

// BoundsOf returns the bounding box of a point set, or the zero Rect for none.
func BoundsOf(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Shape is anything that radiates influence into a potential field.
type Shape interface {
	Bounds() Rect
	Center() Point
	// DistSquare is the squared distance from (x, y) to the shape, zero inside it.
	DistSquare(x, y float64) float64
	// Extremes are the points an enclosing outline has to contain.
	Extremes() []Point
}

// Circle is a disc shape.
type Circle struct {
	CX     float64
	CY     float64
	Radius float64
}

func (c Circle) Bounds() Rect {
	return Rect{X: c.CX - c.Radius, Y: c.CY - c.Radius, Width: 2 * c.Radius, Height: 2 * c.Radius}
}

func (c Circle) Center() Point { return Point{X: c.CX, Y: c.CY} }

func (c Circle) DistSquare(x, y float64) float64 {
	d := math.Hypot(x-c.CX, y-c.CY) - c.Radius
	if d <= 0 {
		return 0
	}
	return d * d
}

func (c Circle) Extremes() []Point {
	return []Point{
		{X: c.CX - c.Radius, Y: c.CY},
		{X: c.CX + c.Radius, Y: c.CY},
		{X: c.CX, Y: c.CY - c.Radius},
		{X: c.CX, Y: c.CY + c.Radius},
	}
}

// Rectangle is an axis-aligned box shape.
type Rectangle struct {
	Rect
}

func (r Rectangle) Bounds() Rect { return r.Rect }

func (r Rectangle) Center() Point {
	x, y := r.Rect.Center()
	return Point{X: x, Y: y}
}

func (r Rectangle) DistSquare(x, y float64) float64 {
	dx := axisDist(x, r.X, r.X+r.Width)
	dy := axisDist(y, r.Y, r.Y+r.Height)
	return dx*dx + dy*dy
}

func (r Rectangle) Extremes() []Point {
	return []Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X, Y: r.Y + r.Height},
		{X: r.X + r.Width, Y: r.Y + r.Height},
	}
}

func axisDist(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

// Line is a straight segment between two points.
type Line struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// LineBetween builds the segment a-b.
func LineBetween(a, b Point) Line {
	return Line{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y}
}

func (l Line) Start() Point { return Point{X: l.X1, Y: l.Y1} }
func (l Line) End() Point   { return Point{X: l.X2, Y: l.Y2} }

func (l Line) Length() float64 {
	return r2.Norm(r2.Sub(l.End(), l.Start()))
}

func (l Line) Bounds() Rect {
	return BoundsOf([]Point{l.Start(), l.End()})
}

func (l Line) Center() Point {
	return r2.Scale(0.5, r2.Add(l.Start(), l.End()))
}

// DistSquare is the squared distance from (x, y) to the closest point of the segment.
func (l Line) DistSquare(x, y float64) float64 {
	a, p := l.Start(), Point{X: x, Y: y}
	d := r2.Sub(l.End(), a)
	len2 := r2.Dot(d, d)
	if len2 == 0 {
		return r2.Norm2(r2.Sub(p, a))
	}
	t := r2.Dot(r2.Sub(p, a), d) / len2
	t = math.Max(0, math.Min(1, t))
	closest := r2.Add(a, r2.Scale(t, d))
	return r2.Norm2(r2.Sub(p, closest))
}

func (l Line) Extremes() []Point {
	return []Point{l.Start(), l.End()}
}
