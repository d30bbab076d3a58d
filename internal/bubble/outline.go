package bubble

import "github.com/inamate/bubblesets/internal/geom"

// composeOutline sums every contribution into the field, extracts the contour that
// encloses all members and smooths it: resample, simplify, B-spline, simplify.
func (p *Path) composeOutline(members, obstacles []*shapeEntry, edgeAreas []*geom.Area) geom.PointPath {
	if len(members) == 0 {
		return nil
	}

	memberShapes := shapesOf(members)
	memberAreas := make([]*geom.Area, len(members))
	for i, m := range members {
		memberAreas[i] = m.area
	}
	obstacleAreas := make([]*geom.Area, len(obstacles))
	for i, o := range obstacles {
		obstacleAreas[i] = o.area
	}

	contains := func(path geom.PointPath) bool {
		return path.ContainsShapes(memberShapes)
	}
	raw := p.geo.ComputeOutline(p.field, memberAreas, edgeAreas, obstacleAreas, contains, p.opts.outline())
	if len(raw) < 3 {
		return nil
	}
	return raw.
		Resample(p.opts.SampleInterval).
		Simplify(0).
		BSplines(p.opts.SmoothGranularity).
		Simplify(0)
}
