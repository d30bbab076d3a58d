package document

import (
	"github.com/inamate/bubblesets/internal/graph"
	"github.com/inamate/bubblesets/internal/typeid"
)

// NewSampleScene builds a small graph with two groupings kept apart by a shared
// obstacle node.
func NewSampleScene(sceneID string) *Scene {
	s := NewEmptyScene(sceneID, "Sample")

	node := func(x, y, w, h float64, shape graph.NodeShape, fill string) string {
		id := typeid.NewNodeID()
		s.Nodes[id] = Node{ID: id, X: x, Y: y, Width: w, Height: h, Shape: shape, Fill: fill}
		return id
	}
	edge := func(source, target string, waypoints ...Point) string {
		id := typeid.NewEdgeID()
		s.Edges[id] = Edge{ID: id, Source: source, Target: target, Waypoints: waypoints}
		return id
	}

	a1 := node(120, 120, 40, 40, graph.ShapeEllipse, "#e94560")
	a2 := node(220, 100, 60, 40, graph.ShapeRectangle, "#e94560")
	a3 := node(180, 200, 50, 30, graph.ShapeRoundRectangle, "#e94560")
	b1 := node(480, 140, 40, 40, graph.ShapeHexagon, "#0f9b8e")
	b2 := node(560, 220, 36, 36, graph.ShapeEllipse, "#0f9b8e")
	b3 := node(460, 280, 60, 30, graph.ShapeRectangle, "#0f9b8e")
	d := node(340, 360, 40, 40, graph.ShapeEllipse, "#0f9b8e")
	obstacle := node(330, 160, 50, 50, graph.ShapeRectangle, "#f5f5f5")

	a12 := edge(a1, a2)
	a23 := edge(a2, a3)
	b12 := edge(b1, b2)
	b23 := edge(b2, b3)
	db3 := edge(d, b3, Point{X: 420, Y: 380})
	edge(a2, b1, Point{X: 355, Y: 100})

	teamA := typeid.NewGroupingID()
	s.Groupings[teamA] = Grouping{
		ID:      teamA,
		Name:    "Team A",
		Members: []string{a1, a2, a3},
		Edges:   []string{a12, a23},
		Avoid:   []string{obstacle, b1},
		Fill:    "rgba(233,69,96,0.25)",
		Stroke:  "#e94560",
	}
	teamB := typeid.NewGroupingID()
	s.Groupings[teamB] = Grouping{
		ID:      teamB,
		Name:    "Team B",
		Members: []string{b1, b2, b3, d},
		Edges:   []string{b12, b23, db3},
		Avoid:   []string{obstacle, a2},
		Fill:    "rgba(15,155,142,0.25)",
		Stroke:  "#0f9b8e",
	}
	return s
}
