package bubble

import "github.com/inamate/bubblesets/internal/geom"

// activeRegion pads the bounds of the members and member edges by the widest
// influence radius plus the morph buffer. Obstacles do not size the region.
// ok is false when there are no members.
func activeRegion(members []nodeState, edges []edgeState, o Options) (region geom.Rect, ok bool) {
	if len(members) == 0 {
		return geom.Rect{}, false
	}
	bb := members[0].box
	for _, m := range members[1:] {
		bb = bb.Extend(m.box)
	}
	for _, e := range edges {
		bb = bb.Extend(geom.BoundsOf(e.points))
	}
	return bb.Pad(max(o.EdgeR1, o.NodeR1) + o.MorphBuffer), true
}

// trackRegion rebuilds the field when the region changed. A moved origin shifts
// every cell, so cached contributions are stale (dirty); a pure size change keeps
// the grid and with it every cached contribution.
func (p *Path) trackRegion(next geom.Rect, st *Stats) {
	switch {
	case p.field == nil || next.X != p.region.X || next.Y != p.region.Y:
		p.field = p.geo.BuildField(next, p.opts.PixelGroup)
		st.FieldRebuilt = true
		st.FieldDirty = true
	case next.Width != p.region.Width || next.Height != p.region.Height:
		p.field = p.geo.BuildField(next, p.opts.PixelGroup)
		st.FieldRebuilt = true
	}
	p.region = next
}
