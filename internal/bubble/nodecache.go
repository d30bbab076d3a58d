package bubble

import (
	"fmt"

	"github.com/inamate/bubblesets/internal/geom"
)

// nodeState is what the host reported for a node this cycle.
type nodeState struct {
	id     string
	box    geom.Rect
	circle bool
}

// shapeEntry is the cached contribution of one member or obstacle node.
type shapeEntry struct {
	box    geom.Rect
	circle bool
	key    ShapeKey
	shape  geom.Shape
	area   *geom.Area
}

func newShapeEntry(s nodeState) *shapeEntry {
	e := &shapeEntry{
		box:    s.box,
		circle: s.circle,
		key:    shapeKey(s.box.Width, s.box.Height, s.circle),
	}
	if s.circle {
		cx, cy := s.box.Center()
		e.shape = geom.Circle{CX: cx, CY: cy, Radius: max(s.box.Width, s.box.Height) / 2}
	} else {
		e.shape = geom.Rectangle{Rect: s.box}
	}
	return e
}

// origin is where the top-left cell of the contribution lands.
func (e *shapeEntry) origin(r1 float64) geom.Point {
	b := e.shape.Bounds()
	return geom.Point{X: b.X - r1, Y: b.Y - r1}
}

func (p *Path) snapshotNodes(ids []string) ([]nodeState, error) {
	out := make([]nodeState, 0, len(ids))
	for _, id := range ids {
		box, shape, ok := p.host.NodeBounds(id)
		if !ok {
			continue
		}
		if !box.Valid() {
			return nil, fmt.Errorf("node %s: %w", id, ErrInvalidBounds)
		}
		out = append(out, nodeState{id: id, box: box, circle: isCircular(shape)})
	}
	return out, nil
}

// seedShapes gathers the contributions of the previous cycle by key. They seed
// translate-reuse even when the field was rebuilt at a new origin.
func (p *Path) seedShapes() map[ShapeKey]*geom.Area {
	seed := make(map[ShapeKey]*geom.Area)
	for _, id := range p.nodeIDs {
		e, ok := p.nodes[id]
		if !ok || e.area == nil {
			continue
		}
		if _, ok := seed[e.key]; !ok {
			seed[e.key] = e.area
		}
	}
	return seed
}

// updateNode refreshes the cache entry of one node. It reports whether the entry
// was recreated, which invalidates the virtual edges.
func (p *Path) updateNode(s nodeState, dirty bool, seed map[ShapeKey]*geom.Area, st *Stats) (*shapeEntry, bool) {
	r1 := p.opts.NodeR1
	prev := p.nodes[s.id]

	switch {
	case prev == nil || dirty || prev.circle != s.circle ||
		prev.box.Width != s.box.Width || prev.box.Height != s.box.Height:
		e := newShapeEntry(s)
		if area, ok := seed[e.key]; ok {
			e.area = p.geo.TranslateContribution(p.field, area, e.origin(r1))
			st.NodesTranslated++
		} else {
			e.area = p.nodeContribution(e.shape)
			seed[e.key] = e.area
			st.NodesRecomputed++
		}
		p.nodes[s.id] = e
		return e, true

	case prev.box.X != s.box.X || prev.box.Y != s.box.Y:
		e := newShapeEntry(s)
		e.area = p.geo.TranslateContribution(p.field, prev.area, e.origin(r1))
		st.NodesTranslated++
		p.nodes[s.id] = e
		return e, false

	default:
		st.NodesReused++
		return prev, false
	}
}

func (p *Path) nodeContribution(s geom.Shape) *geom.Area {
	if r, ok := s.(geom.Rectangle); ok {
		return p.geo.RectangleContribution(r, p.field, p.opts.NodeR1)
	}
	return p.geo.CircleContribution(s, p.field, p.opts.NodeR1)
}
