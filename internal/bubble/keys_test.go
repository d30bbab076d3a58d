package bubble

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
)

func TestShapeKeyRounding(t *testing.T) {
	assert.Equal(t, shapeKey(20, 10, true), shapeKey(20.001, 9.999, true))
	assert.NotEqual(t, shapeKey(20, 10, true), shapeKey(20.01, 10, true))
	assert.NotEqual(t, shapeKey(20, 10, true), shapeKey(20, 10, false))
}

func TestLineKeys(t *testing.T) {
	l := geom.Line{X1: 1, Y1: 2, X2: 11, Y2: 7}
	moved := geom.Line{X1: 101.004, Y1: -48, X2: 111.004, Y2: -43}

	assert.NotEqual(t, lineKey(l), lineKey(moved))
	assert.Equal(t, vectorKey(l), vectorKey(moved))
	assert.Equal(t, VectorKey{DX: 1000, DY: 500}, vectorKey(l))
}

func TestSegments(t *testing.T) {
	assert.Nil(t, segments([]geom.Point{{X: 1, Y: 1}}))

	lines := segments([]geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5}})
	assert.Equal(t, []geom.Line{{X1: 0, Y1: 0, X2: 10, Y2: 0}, {X1: 10, Y1: 0, X2: 10, Y2: 5}}, lines)
	assert.True(t, polylineEqual(lineKeys(lines), lineKeys(lines)))
	assert.False(t, polylineEqual(lineKeys(lines), lineKeys(lines[:1])))
}

func TestIsCircular(t *testing.T) {
	for _, s := range []graph.NodeShape{graph.ShapeEllipse, graph.ShapeDiamond, graph.ShapeRoundOctagon, graph.ShapeStar} {
		assert.True(t, isCircular(s), s.String())
	}
	for _, s := range []graph.NodeShape{graph.ShapeRectangle, graph.ShapeRoundRectangle, graph.ShapeTriangle, graph.ShapeTag, graph.ShapeVee, graph.ShapeBarrel} {
		assert.False(t, isCircular(s), s.String())
	}
}
