package document

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
)

var ErrInvalidScene = errors.New("invalid scene")

// Scene is the stored form of a graph and the groupings outlined on it.
type Scene struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	Background string              `json:"background"`
	Viewport   Viewport            `json:"viewport"`
	Nodes      map[string]Node     `json:"nodes"`
	Edges      map[string]Edge     `json:"edges"`
	Groupings  map[string]Grouping `json:"groupings"`
}

type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Node struct {
	ID     string          `json:"id"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Width  float64         `json:"width"`
	Height float64         `json:"height"`
	Shape  graph.NodeShape `json:"shape"`
	Fill   string          `json:"fill,omitempty"`
}

type Edge struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Waypoints []Point `json:"waypoints,omitempty"`
}

// Grouping is one bubble set: the nodes it encloses, the edges it follows and the
// nodes it keeps out.
type Grouping struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Edges   []string `json:"edges,omitempty"`
	Avoid   []string `json:"avoid,omitempty"`
	Fill    string   `json:"fill,omitempty"`
	Stroke  string   `json:"stroke,omitempty"`
}

// NewEmptyScene creates a scene without nodes.
func NewEmptyScene(id, name string) *Scene {
	return &Scene{
		ID:         id,
		Name:       name,
		Width:      1280,
		Height:     720,
		Background: "#1a1a2e",
		Viewport:   Viewport{Zoom: 1},
		Nodes:      map[string]Node{},
		Edges:      map[string]Edge{},
		Groupings:  map[string]Grouping{},
	}
}

func (n Node) Box() geom.Rect {
	return geom.Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

func (e Edge) Points() []geom.Point {
	out := make([]geom.Point, len(e.Waypoints))
	for i, p := range e.Waypoints {
		out[i] = geom.Point{X: p.X, Y: p.Y}
	}
	return out
}

func (v Viewport) Graph() graph.Viewport {
	return graph.Viewport{Pan: geom.Point{X: v.X, Y: v.Y}, Zoom: v.Zoom}
}

// Validate checks ids and references.
func (s *Scene) Validate() error {
	for id, n := range s.Nodes {
		if id != n.ID {
			return fmt.Errorf("node %q stored under %q: %w", n.ID, id, ErrInvalidScene)
		}
		if !n.Box().Valid() {
			return fmt.Errorf("node %q bounds: %w", id, ErrInvalidScene)
		}
	}
	for id, e := range s.Edges {
		if id != e.ID {
			return fmt.Errorf("edge %q stored under %q: %w", e.ID, id, ErrInvalidScene)
		}
		if _, ok := s.Nodes[e.Source]; !ok {
			return fmt.Errorf("edge %q source %q: %w", id, e.Source, ErrInvalidScene)
		}
		if _, ok := s.Nodes[e.Target]; !ok {
			return fmt.Errorf("edge %q target %q: %w", id, e.Target, ErrInvalidScene)
		}
	}
	for id, g := range s.Groupings {
		if id != g.ID {
			return fmt.Errorf("grouping %q stored under %q: %w", g.ID, id, ErrInvalidScene)
		}
	}
	return nil
}

// Graph builds the host graph. Nodes and edges are added in id order.
func (s *Scene) Graph() (*graph.Graph, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	g := graph.New()
	for _, id := range slices.Sorted(maps.Keys(s.Nodes)) {
		n := s.Nodes[id]
		if err := g.AddNode(graph.Node{ID: n.ID, Box: n.Box(), Shape: n.Shape}); err != nil {
			return nil, fmt.Errorf("build graph: %w", err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(s.Edges)) {
		e := s.Edges[id]
		if err := g.AddEdge(graph.Edge{ID: e.ID, Source: e.Source, Target: e.Target, Waypoints: e.Points()}); err != nil {
			return nil, fmt.Errorf("build graph: %w", err)
		}
	}
	if s.Viewport.Zoom > 0 {
		g.SetViewport(s.Viewport.Graph())
	}
	return g, nil
}

// SortedGroupings returns the groupings in id order.
func (s *Scene) SortedGroupings() []Grouping {
	out := make([]Grouping, 0, len(s.Groupings))
	for _, id := range slices.Sorted(maps.Keys(s.Groupings)) {
		out = append(out, s.Groupings[id])
	}
	return out
}

// RemoveNode deletes a node with its edges and drops it from every grouping.
func (s *Scene) RemoveNode(id string) {
	delete(s.Nodes, id)
	for eid, e := range s.Edges {
		if e.Source == id || e.Target == id {
			s.RemoveEdge(eid)
		}
	}
	for gid, g := range s.Groupings {
		g.Members = slices.DeleteFunc(g.Members, func(m string) bool { return m == id })
		g.Avoid = slices.DeleteFunc(g.Avoid, func(m string) bool { return m == id })
		s.Groupings[gid] = g
	}
}

// RemoveEdge deletes an edge and drops it from every grouping.
func (s *Scene) RemoveEdge(id string) {
	delete(s.Edges, id)
	for gid, g := range s.Groupings {
		g.Edges = slices.DeleteFunc(g.Edges, func(e string) bool { return e == id })
		s.Groupings[gid] = g
	}
}
