package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/collab"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
	"github.com/inamate/bubblesets/internal/typeid"
)

var ErrNoScene = errors.New("no scene loaded")

// Engine is the local, single-user editor behind the browser playground. It owns
// a scene state, applies edits from the frontend and hands back the frames the
// outline registry draws.
type Engine struct {
	mu        sync.Mutex
	state     *collab.SceneState
	opts      []bubble.Option
	selection []string

	// Frames arrive from throttle timers, so they have their own lock.
	frameMu sync.Mutex
	frame   *collab.FramePayload
	fresh   bool
}

// NewEngine creates an engine. opts are the outline defaults of every grouping.
func NewEngine(opts ...bubble.Option) *Engine {
	return &Engine{opts: opts}
}

// --- Commands (frontend → backend) ---

// LoadScene replaces the scene with the JSON document.
func (e *Engine) LoadScene(jsonData string) error {
	var doc document.Scene
	if err := json.Unmarshal([]byte(jsonData), &doc); err != nil {
		return fmt.Errorf("decode scene: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	return e.load(&doc)
}

// LoadSampleScene replaces the scene with the built-in sample.
func (e *Engine) LoadSampleScene(sceneID string) error {
	if sceneID == "" {
		sceneID = typeid.NewSceneID()
	}
	return e.load(document.NewSampleScene(sceneID))
}

func (e *Engine) load(doc *document.Scene) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// The old registry may still have a throttled redraw pending. Close it before
	// the new scene produces frames so a late callback cannot overwrite them.
	if e.state != nil {
		e.state.Close()
		e.state = nil
	}
	e.selection = nil
	e.frameMu.Lock()
	e.frame = nil
	e.fresh = false
	e.frameMu.Unlock()

	state, err := collab.NewSceneState(doc, e.setFrame, e.opts...)
	if err != nil {
		return err
	}
	e.state = state
	return nil
}

func (e *Engine) setFrame(f *collab.FramePayload) {
	e.frameMu.Lock()
	e.frame = f
	e.fresh = true
	e.frameMu.Unlock()
}

// Apply applies one edit and returns its sequence number.
func (e *Engine) Apply(op collab.Operation) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, ErrNoScene
	}
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}
	seq, err := e.state.ApplyOperation(op)
	if err != nil {
		return 0, err
	}
	if op.Type == collab.OpNodeRemove {
		e.selection = slices.DeleteFunc(e.selection, func(id string) bool { return id == op.NodeID })
	}
	return seq, nil
}

// ApplyJSON decodes and applies one edit.
func (e *Engine) ApplyJSON(jsonData string) (int64, error) {
	var op collab.Operation
	if err := json.Unmarshal([]byte(jsonData), &op); err != nil {
		return 0, fmt.Errorf("decode operation: %w", err)
	}
	return e.Apply(op)
}

func (e *Engine) MoveNode(id string, x, y float64) error {
	_, err := e.Apply(collab.Operation{Type: collab.OpNodeMove, NodeID: id, Position: &document.Point{X: x, Y: y}})
	return err
}

func (e *Engine) ResizeNode(id string, width, height float64) error {
	_, err := e.Apply(collab.Operation{Type: collab.OpNodeResize, NodeID: id, Size: &collab.Size{Width: width, Height: height}})
	return err
}

func (e *Engine) SetShape(id, shape string) error {
	_, err := e.Apply(collab.Operation{Type: collab.OpNodeShape, NodeID: id, Shape: shape})
	return err
}

func (e *Engine) RemoveNode(id string) error {
	_, err := e.Apply(collab.Operation{Type: collab.OpNodeRemove, NodeID: id})
	return err
}

func (e *Engine) RemoveEdge(id string) error {
	_, err := e.Apply(collab.Operation{Type: collab.OpEdgeRemove, EdgeID: id})
	return err
}

func (e *Engine) RemoveGrouping(id string) error {
	_, err := e.Apply(collab.Operation{Type: collab.OpGroupingRemove, GroupingID: id})
	return err
}

func (e *Engine) SetViewport(x, y, zoom float64) error {
	_, err := e.Apply(collab.Operation{Type: collab.OpViewportSet, Viewport: &document.Viewport{X: x, Y: y, Zoom: zoom}})
	return err
}

// LayoutStop tells the outlines that a layout run finished.
func (e *Engine) LayoutStop() error {
	_, err := e.Apply(collab.Operation{Type: collab.OpLayoutStop})
	return err
}

// Refresh recomputes every outline now.
func (e *Engine) Refresh() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return ErrNoScene
	}
	return e.state.Refresh()
}

// SetSelection sets the selected node IDs.
func (e *Engine) SetSelection(ids []string) {
	e.mu.Lock()
	e.selection = slices.Clone(ids)
	e.mu.Unlock()
}

// Tick returns the draw commands of a frame completed since the previous tick,
// or an empty string. It is called once per animation frame from the frontend.
func (e *Engine) Tick() string {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if !e.fresh || e.frame == nil {
		return ""
	}
	e.fresh = false
	result, _ := canvas.DrawCommandsToJSON(e.frame.Commands)
	return result
}

// --- Queries (frontend ← backend) ---

// Render repaints the cached outlines and returns the draw commands as JSON.
func (e *Engine) Render() string {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()
	if state == nil {
		return "[]"
	}
	state.Redraw()

	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.fresh = false
	if e.frame == nil {
		return "[]"
	}
	result, _ := canvas.DrawCommandsToJSON(e.frame.Commands)
	return result
}

// HitTest returns the topmost node under the screen point, or an empty string.
func (e *Engine) HitTest(x, y float64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return ""
	}
	vp := e.state.Viewport()
	if vp.Zoom <= 0 {
		vp.Zoom = 1
	}
	mx, my := (x-vp.Pan.X)/vp.Zoom, (y-vp.Pan.Y)/vp.Zoom

	nodes := e.state.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		if hit(nodes[i], mx, my) {
			return nodes[i].ID
		}
	}
	return ""
}

func hit(n graph.Node, x, y float64) bool {
	if !n.Box.Contains(x, y) {
		return false
	}
	if n.Shape != graph.ShapeEllipse {
		return true
	}
	cx, cy := n.Box.Center()
	rx, ry := n.Box.Width/2, n.Box.Height/2
	if rx == 0 || ry == 0 {
		return false
	}
	dx, dy := (x-cx)/rx, (y-cy)/ry
	return dx*dx+dy*dy <= 1
}

// GetSelectionBounds returns the model bounds of the selected nodes as JSON.
func (e *Engine) GetSelectionBounds() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var bounds geom.Rect
	if e.state != nil && len(e.selection) > 0 {
		for _, n := range e.state.Nodes() {
			if slices.Contains(e.selection, n.ID) {
				bounds = bounds.Union(n.Box)
			}
		}
	}
	data, _ := json.Marshal(map[string]float64{
		"x":      bounds.X,
		"y":      bounds.Y,
		"width":  bounds.Width,
		"height": bounds.Height,
	})
	return string(data)
}

// GetDocument returns the current scene as JSON.
func (e *Engine) GetDocument() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return "{}"
	}
	doc, _, _, err := e.state.Snapshot()
	if err != nil {
		return "{}"
	}
	data, _ := json.Marshal(doc)
	return string(data)
}

// GetOutline returns the outline of a grouping as a JSON point list.
func (e *Engine) GetOutline(groupingID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return "[]"
	}
	out, ok := e.state.Outline(groupingID)
	if !ok || out == nil {
		return "[]"
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// GetSelection returns the current selection as JSON.
func (e *Engine) GetSelection() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, _ := json.Marshal(e.selection)
	return string(data)
}

// Close releases the scene.
func (e *Engine) Close() {
	e.mu.Lock()
	state := e.state
	e.state = nil
	e.mu.Unlock()
	if state != nil {
		state.Close()
	}
}
