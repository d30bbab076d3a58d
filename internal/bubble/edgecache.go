package bubble

import (
	"fmt"
	"math"

	"github.com/inamate/bubblesets/internal/geom"
)

// edgeState is the routed polyline of an edge this cycle.
type edgeState struct {
	id     string
	points []geom.Point
}

// lineEntry is the cached contribution of one edge, one area per segment.
type lineEntry struct {
	lines []geom.Line
	keys  []LineKey
	areas []*geom.Area
}

// lineCache resolves segment contributions within one cycle. Absolute keys reuse an
// area verbatim; vector keys translate an area of a parallel segment of equal length.
type lineCache struct {
	abs map[LineKey]*geom.Area
	vec map[VectorKey]*geom.Area
}

func (p *Path) snapshotEdges() ([]edgeState, error) {
	out := make([]edgeState, 0, len(p.edgeIDs))
	for _, id := range p.edgeIDs {
		pts, ok := p.host.EdgePolyline(id)
		if !ok || len(pts) < 2 {
			continue
		}
		for _, pt := range pts {
			if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
				return nil, fmt.Errorf("edge %s: %w", id, ErrInvalidBounds)
			}
		}
		out = append(out, edgeState{id: id, points: pts})
	}
	return out, nil
}

// seedLines gathers the segment contributions of the previous cycle, virtual edges
// included. Absolute keys are only valid while the field keeps its origin.
func (p *Path) seedLines(dirty bool) *lineCache {
	c := &lineCache{
		abs: make(map[LineKey]*geom.Area),
		vec: make(map[VectorKey]*geom.Area),
	}
	add := func(l geom.Line, k LineKey, a *geom.Area) {
		if !dirty {
			if _, ok := c.abs[k]; !ok {
				c.abs[k] = a
			}
		}
		vk := vectorKey(l)
		if _, ok := c.vec[vk]; !ok {
			c.vec[vk] = a
		}
	}
	for _, v := range p.virtual {
		add(v.line, v.key, v.area)
	}
	for _, id := range p.edgeIDs {
		e, ok := p.lines[id]
		if !ok {
			continue
		}
		for i, l := range e.lines {
			add(l, e.keys[i], e.areas[i])
		}
	}
	return c
}

// lineArea returns the contribution of one segment, computing it only when no
// cached segment matches.
func (p *Path) lineArea(l geom.Line, c *lineCache, st *Stats) *geom.Area {
	k := lineKey(l)
	if a, ok := c.abs[k]; ok {
		st.LinesReused++
		return a
	}
	vk := vectorKey(l)
	var a *geom.Area
	if src, ok := c.vec[vk]; ok {
		b := l.Bounds()
		a = p.geo.TranslateContribution(p.field, src, geom.Point{X: b.X - p.opts.EdgeR1, Y: b.Y - p.opts.EdgeR1})
		st.LinesTranslated++
	} else {
		a = p.geo.LineContribution(l, p.field, p.opts.EdgeR1)
		c.vec[vk] = a
		st.LinesRecomputed++
	}
	c.abs[k] = a
	return a
}

// updateEdge refreshes the cache entry of one edge.
func (p *Path) updateEdge(s edgeState, dirty bool, c *lineCache, st *Stats) *lineEntry {
	lines := segments(s.points)
	keys := lineKeys(lines)
	prev := p.lines[s.id]
	if prev != nil && !dirty && polylineEqual(prev.keys, keys) {
		st.LinesReused += len(prev.areas)
		return prev
	}

	e := &lineEntry{lines: lines, keys: keys, areas: make([]*geom.Area, len(lines))}
	for i, l := range lines {
		e.areas[i] = p.lineArea(l, c, st)
	}
	p.lines[s.id] = e
	return e
}
