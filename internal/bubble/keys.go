package bubble

import (
	"math"
	"slices"

	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
)

// round2 rounds to two decimals, expressed in hundredths so keys compare exactly.
func round2(v float64) int64 {
	return int64(math.Round(v * 100))
}

// ShapeKey identifies node contributions that are interchangeable up to translation.
type ShapeKey struct {
	W      int64
	H      int64
	Circle bool
}

func shapeKey(w, h float64, circle bool) ShapeKey {
	return ShapeKey{W: round2(w), H: round2(h), Circle: circle}
}

// LineKey identifies a segment by its rounded endpoints.
type LineKey struct {
	X1, Y1, X2, Y2 int64
}

func lineKey(l geom.Line) LineKey {
	return LineKey{X1: round2(l.X1), Y1: round2(l.Y1), X2: round2(l.X2), Y2: round2(l.Y2)}
}

// VectorKey identifies a segment by its rounded direction and length only.
type VectorKey struct {
	DX, DY int64
}

func vectorKey(l geom.Line) VectorKey {
	return VectorKey{DX: round2(l.X2 - l.X1), DY: round2(l.Y2 - l.Y1)}
}

func lineKeys(lines []geom.Line) []LineKey {
	keys := make([]LineKey, len(lines))
	for i, l := range lines {
		keys[i] = lineKey(l)
	}
	return keys
}

// polylineEqual compares two segment chains by their keys.
func polylineEqual(a, b []LineKey) bool {
	return slices.Equal(a, b)
}

func segments(points []geom.Point) []geom.Line {
	if len(points) < 2 {
		return nil
	}
	lines := make([]geom.Line, len(points)-1)
	for i := range lines {
		lines[i] = geom.LineBetween(points[i], points[i+1])
	}
	return lines
}

// isCircular reports whether a node shape is approximated by a circle.
func isCircular(s graph.NodeShape) bool {
	switch s {
	case graph.ShapeEllipse,
		graph.ShapeDiamond, graph.ShapeRoundDiamond,
		graph.ShapePentagon, graph.ShapeRoundPentagon,
		graph.ShapeHexagon, graph.ShapeRoundHexagon,
		graph.ShapeHeptagon, graph.ShapeRoundHeptagon,
		graph.ShapeOctagon, graph.ShapeRoundOctagon,
		graph.ShapeStar, graph.ShapeRoundStar:
		return true
	default:
		return false
	}
}
