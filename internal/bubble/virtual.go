package bubble

import "github.com/inamate/bubblesets/internal/geom"

// virtualEdge is one routed connector between members.
type virtualEdge struct {
	key  LineKey
	line geom.Line
	area *geom.Area
}

// updateVirtual reroutes the virtual edges when a member or obstacle was recreated
// and otherwise keeps the previous set untouched. It returns the areas of the
// current set in routing order.
func (p *Path) updateVirtual(structural bool, members, obstacles []*shapeEntry, c *lineCache, st *Stats) []*geom.Area {
	if !p.opts.VirtualEdges {
		p.virtual = nil
		return nil
	}

	if structural {
		routed := p.geo.RouteVirtualEdges(shapesOf(members), shapesOf(obstacles), p.opts.MaxRoutingIterations, p.opts.MorphBuffer)
		next := make([]virtualEdge, 0, len(routed))
		seen := make(map[LineKey]struct{}, len(routed))
		for _, l := range routed {
			k := lineKey(l)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			next = append(next, virtualEdge{key: k, line: l, area: p.lineArea(l, c, st)})
		}
		p.virtual = next
		st.VirtualRerouted = true
	}

	st.VirtualEdges = len(p.virtual)
	areas := make([]*geom.Area, len(p.virtual))
	for i, v := range p.virtual {
		areas[i] = v.area
	}
	return areas
}

func shapesOf(entries []*shapeEntry) []geom.Shape {
	out := make([]geom.Shape, len(entries))
	for i, e := range entries {
		out[i] = e.shape
	}
	return out
}
