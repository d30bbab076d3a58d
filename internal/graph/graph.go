package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/inamate/bubblesets/internal/geom"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
	ErrDuplicateID  = errors.New("duplicate id")
)

// Node is a positioned graph node. Box is its bounding box in model coordinates.
type Node struct {
	ID    string
	Box   geom.Rect
	Shape NodeShape
}

// Edge connects two nodes, optionally bending through waypoints.
type Edge struct {
	ID        string
	Source    string
	Target    string
	Waypoints []geom.Point
}

// Viewport is the pan/zoom transform from model to screen coordinates.
type Viewport struct {
	Pan  geom.Point
	Zoom float64
}

type subscription struct {
	id     int
	ids    map[string]struct{} // nil matches every element
	events Event
	fn     func(Change)
}

// Graph is the host graph. Changes are delivered synchronously to subscribers after
// the graph lock is released, so callbacks may query the graph.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	edges    map[string]*Edge
	viewport Viewport

	subMu   sync.Mutex
	subs    []*subscription
	nextSub int
}

func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		viewport: Viewport{Zoom: 1},
	}
}

// --- Queries ---

func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (g *Graph) Edge(id string) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	c := *e
	c.Waypoints = slices.Clone(e.Waypoints)
	return c, true
}

// Nodes returns every node ordered by ID.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	slices.SortFunc(out, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Edges returns every edge ordered by ID.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		c := *e
		c.Waypoints = slices.Clone(e.Waypoints)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Edge) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// NodeBounds returns the bounding box and shape of a node.
func (g *Graph) NodeBounds(id string) (geom.Rect, NodeShape, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return geom.Rect{}, 0, false
	}
	return n.Box, n.Shape, true
}

// EdgePolyline returns the routed path of an edge: the source centre, the
// waypoints, then the target centre.
func (g *Graph) EdgePolyline(id string) ([]geom.Point, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	if !ok {
		return nil, false
	}
	src, ok1 := g.nodes[e.Source]
	dst, ok2 := g.nodes[e.Target]
	if !ok1 || !ok2 {
		return nil, false
	}
	pts := make([]geom.Point, 0, len(e.Waypoints)+2)
	pts = append(pts, center(src.Box))
	pts = append(pts, e.Waypoints...)
	pts = append(pts, center(dst.Box))
	return pts, true
}

func (g *Graph) Viewport() Viewport {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.viewport
}

func center(r geom.Rect) geom.Point {
	x, y := r.Center()
	return geom.Point{X: x, Y: y}
}

// --- Mutations ---

func (g *Graph) AddNode(n Node) error {
	g.mu.Lock()
	if _, ok := g.nodes[n.ID]; ok {
		g.mu.Unlock()
		return fmt.Errorf("add node %s: %w", n.ID, ErrDuplicateID)
	}
	g.nodes[n.ID] = &n
	g.mu.Unlock()

	g.emit(Change{Event: EventAdd, ID: n.ID})
	return nil
}

// MoveNode places the node's top-left corner at (x, y). Connected edges report a
// position change too.
func (g *Graph) MoveNode(id string, x, y float64) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("move node %s: %w", id, ErrNodeNotFound)
	}
	n.Box.X, n.Box.Y = x, y
	changes := []Change{{Event: EventPosition, ID: id}}
	for _, eid := range g.connectedLocked(id) {
		changes = append(changes, Change{Event: EventPosition, ID: eid})
	}
	g.mu.Unlock()

	g.emit(changes...)
	return nil
}

func (g *Graph) ResizeNode(id string, width, height float64) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("resize node %s: %w", id, ErrNodeNotFound)
	}
	n.Box.Width, n.Box.Height = width, height
	changes := []Change{{Event: EventResize, ID: id}}
	for _, eid := range g.connectedLocked(id) {
		changes = append(changes, Change{Event: EventPosition, ID: eid})
	}
	g.mu.Unlock()

	g.emit(changes...)
	return nil
}

func (g *Graph) SetShape(id string, shape NodeShape) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("set shape %s: %w", id, ErrNodeNotFound)
	}
	n.Shape = shape
	g.mu.Unlock()

	g.emit(Change{Event: EventStyle, ID: id})
	return nil
}

// RemoveNode deletes the node and every edge attached to it.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	if _, ok := g.nodes[id]; !ok {
		g.mu.Unlock()
		return fmt.Errorf("remove node %s: %w", id, ErrNodeNotFound)
	}
	var changes []Change
	for _, eid := range g.connectedLocked(id) {
		delete(g.edges, eid)
		changes = append(changes, Change{Event: EventRemove, ID: eid})
	}
	delete(g.nodes, id)
	changes = append(changes, Change{Event: EventRemove, ID: id})
	g.mu.Unlock()

	g.emit(changes...)
	return nil
}

func (g *Graph) AddEdge(e Edge) error {
	g.mu.Lock()
	if _, ok := g.edges[e.ID]; ok {
		g.mu.Unlock()
		return fmt.Errorf("add edge %s: %w", e.ID, ErrDuplicateID)
	}
	for _, nid := range []string{e.Source, e.Target} {
		if _, ok := g.nodes[nid]; !ok {
			g.mu.Unlock()
			return fmt.Errorf("add edge %s: endpoint %s: %w", e.ID, nid, ErrNodeNotFound)
		}
	}
	e.Waypoints = slices.Clone(e.Waypoints)
	g.edges[e.ID] = &e
	g.mu.Unlock()

	g.emit(Change{Event: EventAdd, ID: e.ID})
	return nil
}

func (g *Graph) SetWaypoints(id string, waypoints []geom.Point) error {
	g.mu.Lock()
	e, ok := g.edges[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("set waypoints %s: %w", id, ErrEdgeNotFound)
	}
	e.Waypoints = slices.Clone(waypoints)
	g.mu.Unlock()

	g.emit(Change{Event: EventMove, ID: id})
	return nil
}

func (g *Graph) RemoveEdge(id string) error {
	g.mu.Lock()
	if _, ok := g.edges[id]; !ok {
		g.mu.Unlock()
		return fmt.Errorf("remove edge %s: %w", id, ErrEdgeNotFound)
	}
	delete(g.edges, id)
	g.mu.Unlock()

	g.emit(Change{Event: EventRemove, ID: id})
	return nil
}

func (g *Graph) SetViewport(v Viewport) {
	if v.Zoom <= 0 {
		v.Zoom = 1
	}
	g.mu.Lock()
	g.viewport = v
	g.mu.Unlock()

	g.emit(Change{Event: EventViewport})
}

// LayoutStop announces that a layout run has finished moving nodes.
func (g *Graph) LayoutStop() {
	g.emit(Change{Event: EventLayoutStop})
}

// Render announces that the host repainted and overlays should redraw.
func (g *Graph) Render() {
	g.emit(Change{Event: EventRender})
}

func (g *Graph) connectedLocked(nodeID string) []string {
	var ids []string
	for id, e := range g.edges {
		if e.Source == nodeID || e.Target == nodeID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// --- Notifications ---

// Subscribe calls fn for the given events on the listed element IDs. The returned
// func cancels the subscription.
func (g *Graph) Subscribe(ids []string, events Event, fn func(Change)) func() {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return g.subscribe(&subscription{ids: set, events: events, fn: fn})
}

// Listen calls fn for the given events on any element, including global events.
func (g *Graph) Listen(events Event, fn func(Change)) func() {
	return g.subscribe(&subscription{events: events, fn: fn})
}

func (g *Graph) subscribe(s *subscription) func() {
	g.subMu.Lock()
	g.nextSub++
	s.id = g.nextSub
	g.subs = append(g.subs, s)
	g.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.subMu.Lock()
			g.subs = slices.DeleteFunc(g.subs, func(o *subscription) bool { return o.id == s.id })
			g.subMu.Unlock()
		})
	}
}

func (g *Graph) emit(changes ...Change) {
	for _, c := range changes {
		g.subMu.Lock()
		var targets []func(Change)
		for _, s := range g.subs {
			if s.events&c.Event == 0 {
				continue
			}
			if s.ids != nil {
				if _, ok := s.ids[c.ID]; !ok {
					continue
				}
			}
			targets = append(targets, s.fn)
		}
		g.subMu.Unlock()

		for _, fn := range targets {
			fn(c)
		}
	}
}
