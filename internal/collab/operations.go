package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/graph"
)

var ErrInvalidOperation = errors.New("invalid operation")

// SceneState holds the authoritative scene of a room: the document, the host
// graph built from it and the registry outlining its groupings. Frames are
// recorded on a canvas.Recorder and handed to onFrame after every redraw.
type SceneState struct {
	mu        sync.Mutex
	doc       *document.Scene
	graph     *graph.Graph
	registry  *bubble.Registry
	recorder  *canvas.Recorder
	paths     map[string]*bubble.Path
	serverSeq int64
	dirty     bool

	frameMu   sync.Mutex
	lastFrame *FramePayload
	onFrame   func(*FramePayload)
}

// NewSceneState builds the graph and the grouping paths of doc and computes the
// first frame. onFrame runs under the registry lock and must not call back into
// the state.
func NewSceneState(doc *document.Scene, onFrame func(*FramePayload), opts ...bubble.Option) (*SceneState, error) {
	if doc.Nodes == nil {
		doc.Nodes = map[string]document.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = map[string]document.Edge{}
	}
	if doc.Groupings == nil {
		doc.Groupings = map[string]document.Grouping{}
	}
	g, err := doc.Graph()
	if err != nil {
		return nil, fmt.Errorf("new scene state: %w", err)
	}
	rec := canvas.NewRecorder(float64(doc.Width), float64(doc.Height), 1)
	reg, err := bubble.Register(g, rec, opts...)
	if err != nil {
		return nil, fmt.Errorf("new scene state: %w", err)
	}

	s := &SceneState{
		doc:      doc,
		graph:    g,
		registry: reg,
		recorder: rec,
		onFrame:  onFrame,
	}
	reg.OnDraw(s.frame)

	s.paths, err = document.Mount(reg, doc)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("new scene state: %w", err)
	}
	if err := reg.Update(); err != nil {
		slog.Warn("initial outline update failed", "scene", doc.ID, "error", err)
	}
	return s, nil
}

func (s *SceneState) frame() {
	w, h := s.recorder.Size()
	f := &FramePayload{Width: w, Height: h, Commands: s.recorder.Flush()}
	s.frameMu.Lock()
	s.lastFrame = f
	s.frameMu.Unlock()
	if s.onFrame != nil {
		s.onFrame(f)
	}
}

// LastFrame returns the most recent frame.
func (s *SceneState) LastFrame() *FramePayload {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.lastFrame
}

// Snapshot returns a copy of the document, the current sequence and whether it
// changed since the last MarkSaved.
func (s *SceneState) Snapshot() (*document.Scene, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(s.doc)
	if err != nil {
		return nil, 0, false, fmt.Errorf("snapshot scene: %w", err)
	}
	var doc document.Scene
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, false, fmt.Errorf("snapshot scene: %w", err)
	}
	return &doc, s.serverSeq, s.dirty, nil
}

// MarkSaved clears the dirty flag unless operations arrived after seq.
func (s *SceneState) MarkSaved(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serverSeq == seq {
		s.dirty = false
	}
}

// Outline returns the current outline of a grouping.
func (s *SceneState) Outline(groupingID string) ([]document.Point, bool) {
	s.mu.Lock()
	p, ok := s.paths[groupingID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	path := p.Outline()
	out := make([]document.Point, len(path))
	for i, pt := range path {
		out[i] = document.Point{X: pt.X, Y: pt.Y}
	}
	return out, true
}

// Nodes returns the nodes of the scene ordered by ID.
func (s *SceneState) Nodes() []graph.Node {
	return s.graph.Nodes()
}

// Viewport returns the current pan and zoom.
func (s *SceneState) Viewport() graph.Viewport {
	return s.graph.Viewport()
}

// Refresh recomputes every outline now instead of waiting for the throttle.
func (s *SceneState) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Update()
}

// Redraw repaints the cached outlines.
func (s *SceneState) Redraw() {
	s.graph.Render()
}

// Close detaches every path.
func (s *SceneState) Close() {
	s.registry.Close()
}

// ApplyOperation applies op to the graph and the document and returns the server
// sequence. Outlines follow through the throttled path updates.
func (s *SceneState) ApplyOperation(op Operation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyLocked(op); err != nil {
		return 0, fmt.Errorf("apply %s: %w", op.Type, err)
	}
	s.serverSeq++
	s.dirty = true
	return s.serverSeq, nil
}

func (s *SceneState) applyLocked(op Operation) error {
	switch op.Type {
	case OpNodeAdd:
		return s.addNode(op)
	case OpNodeMove:
		return s.moveNode(op)
	case OpNodeResize:
		return s.resizeNode(op)
	case OpNodeShape:
		return s.setShape(op)
	case OpNodeRemove:
		if err := s.graph.RemoveNode(op.NodeID); err != nil {
			return err
		}
		s.doc.RemoveNode(op.NodeID)
		return nil
	case OpEdgeAdd:
		return s.addEdge(op)
	case OpEdgeWaypoints:
		return s.setWaypoints(op)
	case OpEdgeRemove:
		if err := s.graph.RemoveEdge(op.EdgeID); err != nil {
			return err
		}
		s.doc.RemoveEdge(op.EdgeID)
		return nil
	case OpViewportSet:
		if op.Viewport == nil {
			return fmt.Errorf("missing viewport: %w", ErrInvalidOperation)
		}
		s.doc.Viewport = *op.Viewport
		s.graph.SetViewport(op.Viewport.Graph())
		return nil
	case OpGroupingAdd:
		return s.addGrouping(op)
	case OpGroupingRemove:
		return s.removeGrouping(op.GroupingID)
	case OpLayoutStop:
		s.graph.LayoutStop()
		return nil
	default:
		return fmt.Errorf("unknown operation type %q: %w", op.Type, ErrInvalidOperation)
	}
}

func (s *SceneState) addNode(op Operation) error {
	if op.Node == nil || op.Node.ID == "" {
		return fmt.Errorf("missing node: %w", ErrInvalidOperation)
	}
	n := *op.Node
	if !n.Box().Valid() {
		return fmt.Errorf("node %s bounds: %w", n.ID, ErrInvalidOperation)
	}
	if err := s.graph.AddNode(graph.Node{ID: n.ID, Box: n.Box(), Shape: n.Shape}); err != nil {
		return err
	}
	s.doc.Nodes[n.ID] = n
	return nil
}

func (s *SceneState) moveNode(op Operation) error {
	n, ok := s.doc.Nodes[op.NodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", op.NodeID, graph.ErrNodeNotFound)
	}
	if op.Position == nil || !finite(op.Position.X, op.Position.Y) {
		return fmt.Errorf("missing position: %w", ErrInvalidOperation)
	}
	if err := s.graph.MoveNode(n.ID, op.Position.X, op.Position.Y); err != nil {
		return err
	}
	n.X, n.Y = op.Position.X, op.Position.Y
	s.doc.Nodes[n.ID] = n
	return nil
}

func (s *SceneState) resizeNode(op Operation) error {
	n, ok := s.doc.Nodes[op.NodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", op.NodeID, graph.ErrNodeNotFound)
	}
	if op.Size == nil || !finite(op.Size.Width, op.Size.Height) || op.Size.Width < 0 || op.Size.Height < 0 {
		return fmt.Errorf("invalid size: %w", ErrInvalidOperation)
	}
	if err := s.graph.ResizeNode(n.ID, op.Size.Width, op.Size.Height); err != nil {
		return err
	}
	n.Width, n.Height = op.Size.Width, op.Size.Height
	s.doc.Nodes[n.ID] = n
	return nil
}

func (s *SceneState) setShape(op Operation) error {
	n, ok := s.doc.Nodes[op.NodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", op.NodeID, graph.ErrNodeNotFound)
	}
	shape := graph.ParseNodeShape(op.Shape)
	if err := s.graph.SetShape(n.ID, shape); err != nil {
		return err
	}
	n.Shape = shape
	s.doc.Nodes[n.ID] = n
	return nil
}

func (s *SceneState) addEdge(op Operation) error {
	if op.Edge == nil || op.Edge.ID == "" {
		return fmt.Errorf("missing edge: %w", ErrInvalidOperation)
	}
	e := *op.Edge
	if err := s.graph.AddEdge(graph.Edge{ID: e.ID, Source: e.Source, Target: e.Target, Waypoints: e.Points()}); err != nil {
		return err
	}
	s.doc.Edges[e.ID] = e
	return nil
}

func (s *SceneState) setWaypoints(op Operation) error {
	e, ok := s.doc.Edges[op.EdgeID]
	if !ok {
		return fmt.Errorf("edge %s: %w", op.EdgeID, graph.ErrEdgeNotFound)
	}
	for _, p := range op.Waypoints {
		if !finite(p.X, p.Y) {
			return fmt.Errorf("waypoint: %w", ErrInvalidOperation)
		}
	}
	e.Waypoints = slices.Clone(op.Waypoints)
	if err := s.graph.SetWaypoints(e.ID, e.Points()); err != nil {
		return err
	}
	s.doc.Edges[e.ID] = e
	return nil
}

// addGrouping adds or replaces a grouping and computes its outline right away.
func (s *SceneState) addGrouping(op Operation) error {
	if op.Grouping == nil || op.Grouping.ID == "" {
		return fmt.Errorf("missing grouping: %w", ErrInvalidOperation)
	}
	g := *op.Grouping
	if old, ok := s.paths[g.ID]; ok {
		if err := s.registry.RemovePath(old); err != nil && !errors.Is(err, bubble.ErrRemoved) {
			return err
		}
		delete(s.paths, g.ID)
	}
	p, err := s.registry.AddPath(g.Members, g.Edges, g.Avoid, g.PathOptions()...)
	if err != nil {
		return err
	}
	s.paths[g.ID] = p
	s.doc.Groupings[g.ID] = g
	if err := p.Update(); err != nil {
		slog.Warn("grouping outline failed", "grouping", g.ID, "error", err)
	}
	s.registry.Draw()
	return nil
}

func (s *SceneState) removeGrouping(id string) error {
	p, ok := s.paths[id]
	if !ok {
		return fmt.Errorf("grouping %s: %w", id, ErrInvalidOperation)
	}
	if err := s.registry.RemovePath(p); err != nil {
		return err
	}
	delete(s.paths, id)
	delete(s.doc.Groupings, id)
	s.registry.Draw()
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
