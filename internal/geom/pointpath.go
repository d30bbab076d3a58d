package geom

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// PointPath is a closed polygon; the last point connects back to the first.
type PointPath []Point

// Bounds returns the bounding box of the path.
func (p PointPath) Bounds() Rect {
	return BoundsOf(p)
}

// Area returns the unsigned polygon area (shoelace formula).
func (p PointPath) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	sum := 0.0
	for i, a := range p {
		b := p[(i+1)%len(p)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// ContainsPoint is an even-odd ray casting test.
func (p PointPath) ContainsPoint(pt Point) bool {
	if len(p) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(p)-1; i < len(p); j, i = i, i+1 {
		a, b := p[i], p[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) && pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// ContainsShapes reports whether the centre and the extremes of every shape lie inside.
func (p PointPath) ContainsShapes(shapes []Shape) bool {
	if len(shapes) == 0 {
		return true
	}
	bb := p.Bounds()
	for _, s := range shapes {
		c := s.Center()
		if !bb.Contains(c.X, c.Y) || !p.ContainsPoint(c) {
			return false
		}
		for _, e := range s.Extremes() {
			if !p.ContainsPoint(e) {
				return false
			}
		}
	}
	return true
}

// Resample walks the closed path and emits a point every interval units of arc length,
// starting at the first point.
func (p PointPath) Resample(interval float64) PointPath {
	if len(p) < 3 || interval <= 0 {
		return slices.Clone(p)
	}
	out := PointPath{p[0]}
	carry := 0.0
	for i, a := range p {
		b := p[(i+1)%len(p)]
		d := r2.Sub(b, a)
		seg := r2.Norm(d)
		if seg == 0 {
			continue
		}
		pos := interval - carry
		for pos < seg {
			out = append(out, r2.Add(a, r2.Scale(pos/seg, d)))
			pos += interval
		}
		carry = seg - (pos - interval)
	}
	if len(out) < 3 {
		return slices.Clone(p)
	}
	return out
}

// Simplify drops duplicate points and points within tolerance of the line through
// their neighbours. A tolerance of zero only removes exactly collinear points.
func (p PointPath) Simplify(tolerance float64) PointPath {
	if len(p) < 4 {
		return slices.Clone(p)
	}
	out := make(PointPath, 0, len(p))
	for i, cur := range p {
		prev := p[len(p)-1]
		if len(out) > 0 {
			prev = out[len(out)-1]
		}
		if negligible(prev, cur, p[(i+1)%len(p)], tolerance) {
			continue
		}
		out = append(out, cur)
	}
	for len(out) > 3 && negligible(out[len(out)-1], out[0], out[1], tolerance) {
		out = out[1:]
	}
	if len(out) < 3 {
		return slices.Clone(p)
	}
	return out
}

func negligible(prev, cur, next Point, tolerance float64) bool {
	if cur == prev {
		return true
	}
	d := r2.Sub(next, prev)
	l := r2.Norm(d)
	if l == 0 {
		return false
	}
	e := r2.Sub(cur, prev)
	t := r2.Dot(e, d) / (l * l)
	if t < 0 || t > 1 {
		return false
	}
	dist := math.Abs(d.X*e.Y-d.Y*e.X) / l
	return dist <= tolerance+1e-9
}

// BSplines smooths the closed path with a uniform cubic B-spline, emitting
// granularity points per control point.
func (p PointPath) BSplines(granularity int) PointPath {
	n := len(p)
	if n < 4 || granularity < 1 {
		return slices.Clone(p)
	}
	out := make(PointPath, 0, n*granularity)
	for i := range n {
		p0, p1, p2, p3 := p[(i-1+n)%n], p[i], p[(i+1)%n], p[(i+2)%n]
		for s := range granularity {
			t := float64(s) / float64(granularity)
			t2, t3 := t*t, t*t*t
			it := 1 - t
			b0 := it * it * it / 6
			b1 := (3*t3 - 6*t2 + 4) / 6
			b2 := (-3*t3 + 3*t2 + 3*t + 1) / 6
			b3 := t3 / 6
			out = append(out, Point{
				X: b0*p0.X + b1*p1.X + b2*p2.X + b3*p3.X,
				Y: b0*p0.Y + b1*p1.Y + b2*p2.Y + b3*p3.Y,
			})
		}
	}
	return out
}
