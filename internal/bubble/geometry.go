package bubble

import "github.com/inamate/bubblesets/internal/geom"

// Geometry is the stateless geometry collaborator the caches call into.
type Geometry interface {
	BuildField(region geom.Rect, pixelGroup int) *geom.Area
	CircleContribution(s geom.Shape, field *geom.Area, r1 float64) *geom.Area
	RectangleContribution(r geom.Rectangle, field *geom.Area, r1 float64) *geom.Area
	LineContribution(l geom.Line, field *geom.Area, r1 float64) *geom.Area
	// TranslateContribution places a copy of area on field's grid at origin.
	TranslateContribution(field, area *geom.Area, origin geom.Point) *geom.Area
	RouteVirtualEdges(members, obstacles []geom.Shape, maxIterations int, buffer float64) []geom.Line
	ComputeOutline(field *geom.Area, members, edges, obstacles []*geom.Area, contains func(geom.PointPath) bool, o geom.OutlineOptions) geom.PointPath
}

// DefaultGeometry delegates to package geom.
type DefaultGeometry struct{}

func (DefaultGeometry) BuildField(region geom.Rect, pixelGroup int) *geom.Area {
	return geom.FromPixelRegion(region, pixelGroup)
}

func (DefaultGeometry) CircleContribution(s geom.Shape, field *geom.Area, r1 float64) *geom.Area {
	return geom.CircleInfluence(s, field, r1)
}

func (DefaultGeometry) RectangleContribution(r geom.Rectangle, field *geom.Area, r1 float64) *geom.Area {
	return geom.RectangleInfluence(r, field, r1)
}

func (DefaultGeometry) LineContribution(l geom.Line, field *geom.Area, r1 float64) *geom.Area {
	return geom.LineInfluence(l, field, r1)
}

func (DefaultGeometry) TranslateContribution(field, area *geom.Area, origin geom.Point) *geom.Area {
	return field.Copy(area, origin)
}

func (DefaultGeometry) RouteVirtualEdges(members, obstacles []geom.Shape, maxIterations int, buffer float64) []geom.Line {
	return geom.RouteVirtualEdges(members, obstacles, maxIterations, buffer)
}

func (DefaultGeometry) ComputeOutline(field *geom.Area, members, edges, obstacles []*geom.Area, contains func(geom.PointPath) bool, o geom.OutlineOptions) geom.PointPath {
	return geom.PotentialOutline(field, members, edges, obstacles, contains, o)
}
