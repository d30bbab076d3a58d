package geom

import "math"

// GenericInfluence samples the influence of any shape within radius r1 onto the grid of field.
// A cell at distance d < r1 gets (r1-d)^2.
func GenericInfluence(s Shape, field *Area, r1 float64) *Area {
	area := field.Sub(s.Bounds().Pad(r1))
	r2 := r1 * r1
	for y := 0; y < area.Height; y++ {
		py := area.InvertScaleY(y)
		for x := 0; x < area.Width; x++ {
			d2 := s.DistSquare(area.InvertScaleX(x), py)
			area.Set(x, y, falloff(d2, r1, r2))
		}
	}
	return area
}

// CircleInfluence is the influence of a circle, or of any shape without a faster path.
func CircleInfluence(s Shape, field *Area, r1 float64) *Area {
	return GenericInfluence(s, field, r1)
}

// RectangleInfluence is the influence of an axis-aligned rectangle. The squared
// distance is separable, so the per-column and per-row terms are computed once.
func RectangleInfluence(rect Rectangle, field *Area, r1 float64) *Area {
	area := field.Sub(rect.Bounds().Pad(r1))
	dxs := make([]float64, area.Width)
	for x := range dxs {
		d := axisDist(area.InvertScaleX(x), rect.X, rect.X+rect.Width)
		dxs[x] = d * d
	}
	r2 := r1 * r1
	for y := 0; y < area.Height; y++ {
		dy := axisDist(area.InvertScaleY(y), rect.Y, rect.Y+rect.Height)
		dy2 := dy * dy
		for x, dx2 := range dxs {
			area.Set(x, y, falloff(dx2+dy2, r1, r2))
		}
	}
	return area
}

// LineInfluence is the influence of a segment.
func LineInfluence(l Line, field *Area, r1 float64) *Area {
	return GenericInfluence(l, field, r1)
}

func falloff(d2, r1, r2 float64) float64 {
	if d2 == 0 {
		return r2
	}
	if d2 < r2 {
		dr := r1 - math.Sqrt(d2)
		return dr * dr
	}
	return 0
}
