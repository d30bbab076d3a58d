package canvas

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/inamate/bubblesets/internal/geom"
)

// PathCommand is one path segment: {"M", x, y}, {"L", x, y} or {"Z"}.
type PathCommand []any

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
// Transforms are baked into every command, so the list needs no save/restore.
type DrawCommand struct {
	Op        string        `json:"op"`                  // "clear", "fill", "stroke", "rect"
	Transform []float64     `json:"transform,omitempty"` // [a, b, c, d, e, f] affine matrix
	Path      []PathCommand `json:"path,omitempty"`      // path data for fill/stroke
	Rect      []float64     `json:"rect,omitempty"`      // [x, y, w, h] for clear/rect
	Fill      string        `json:"fill,omitempty"`
	Stroke    string        `json:"stroke,omitempty"`
}

// Recorder is a Surface that records draw commands instead of rasterizing them.
// Commands accumulate until Flush.
type Recorder struct {
	mu       sync.Mutex
	width    float64
	height   float64
	ratio    float64
	matrix   Matrix2D
	stack    []recorderState
	path     []PathCommand
	fill     string
	stroke   string
	commands []DrawCommand
}

type recorderState struct {
	matrix Matrix2D
	fill   string
	stroke string
}

// NewRecorder creates a recorder for a width x height device-pixel surface.
func NewRecorder(width, height, ratio float64) *Recorder {
	if ratio <= 0 {
		ratio = 1
	}
	return &Recorder{
		width:  width,
		height: height,
		ratio:  ratio,
		matrix: Identity(),
		fill:   "black",
		stroke: "black",
	}
}

// Resize changes the surface size.
func (r *Recorder) Resize(width, height float64) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
}

func (r *Recorder) Size() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Recorder) PixelRatio() float64 { return r.ratio }

func (r *Recorder) Save() {
	r.mu.Lock()
	r.stack = append(r.stack, recorderState{matrix: r.matrix, fill: r.fill, stroke: r.stroke})
	r.mu.Unlock()
}

func (r *Recorder) Restore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return
	}
	s := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	r.matrix, r.fill, r.stroke = s.matrix, s.fill, s.stroke
}

func (r *Recorder) ResetTransform() {
	r.mu.Lock()
	r.matrix = Identity()
	r.mu.Unlock()
}

func (r *Recorder) Translate(x, y float64) {
	r.mu.Lock()
	r.matrix = r.matrix.Multiply(TranslateMatrix(x, y))
	r.mu.Unlock()
}

func (r *Recorder) Scale(x, y float64) {
	r.mu.Lock()
	r.matrix = r.matrix.Multiply(ScaleMatrix(x, y))
	r.mu.Unlock()
}

// ClearRect records the cleared area in device pixels.
func (r *Recorder) ClearRect(x, y, w, h float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.matrix.TransformRect(geom.Rect{X: x, Y: y, Width: w, Height: h})
	r.commands = append(r.commands, DrawCommand{Op: "clear", Rect: []float64{d.X, d.Y, d.Width, d.Height}})
}

func (r *Recorder) FillRect(x, y, w, h float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, DrawCommand{
		Op:        "rect",
		Transform: r.transformLocked(),
		Rect:      []float64{x, y, w, h},
		Fill:      r.fill,
	})
}

func (r *Recorder) BeginPath() {
	r.mu.Lock()
	r.path = nil
	r.mu.Unlock()
}

func (r *Recorder) MoveTo(x, y float64) {
	r.mu.Lock()
	r.path = append(r.path, PathCommand{"M", x, y})
	r.mu.Unlock()
}

func (r *Recorder) LineTo(x, y float64) {
	r.mu.Lock()
	r.path = append(r.path, PathCommand{"L", x, y})
	r.mu.Unlock()
}

func (r *Recorder) ClosePath() {
	r.mu.Lock()
	r.path = append(r.path, PathCommand{"Z"})
	r.mu.Unlock()
}

func (r *Recorder) SetFillStyle(style string) {
	r.mu.Lock()
	r.fill = style
	r.mu.Unlock()
}

func (r *Recorder) SetStrokeStyle(style string) {
	r.mu.Lock()
	r.stroke = style
	r.mu.Unlock()
}

func (r *Recorder) Fill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.path) == 0 {
		return
	}
	r.commands = append(r.commands, DrawCommand{
		Op:        "fill",
		Transform: r.transformLocked(),
		Path:      slices.Clone(r.path),
		Fill:      r.fill,
	})
}

func (r *Recorder) Stroke() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.path) == 0 {
		return
	}
	r.commands = append(r.commands, DrawCommand{
		Op:        "stroke",
		Transform: r.transformLocked(),
		Path:      slices.Clone(r.path),
		Stroke:    r.stroke,
	})
}

func (r *Recorder) transformLocked() []float64 {
	if r.matrix.IsIdentity() {
		return nil
	}
	return r.matrix.ToSlice()
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []DrawCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.commands)
}

// Flush returns the recorded commands and starts a new buffer.
func (r *Recorder) Flush() []DrawCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.commands
	r.commands = nil
	return out
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
