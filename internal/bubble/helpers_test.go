package bubble

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
)

// manualScheduler queues callbacks until the test fires them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
	return t
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Pending counts timers that neither fired nor were stopped.
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		t.mu.Lock()
		if !t.fired && !t.stopped {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

// Fire runs every queued callback. With late set, stopped timers run as well, the
// way a timer that already fired races with Stop.
func (s *manualScheduler) Fire(late bool) int {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	n := 0
	for _, t := range timers {
		t.mu.Lock()
		run := !t.fired && (!t.stopped || late)
		t.fired = true
		t.mu.Unlock()
		if run {
			t.f()
			n++
		}
	}
	return n
}

// countingGeometry counts calls into the geometry collaborator.
type countingGeometry struct {
	DefaultGeometry
	fields     int
	circles    int
	rects      int
	lines      int
	translates int
	routes     int
	outlines   int
}

func (g *countingGeometry) BuildField(region geom.Rect, pixelGroup int) *geom.Area {
	g.fields++
	return g.DefaultGeometry.BuildField(region, pixelGroup)
}

func (g *countingGeometry) CircleContribution(s geom.Shape, field *geom.Area, r1 float64) *geom.Area {
	g.circles++
	return g.DefaultGeometry.CircleContribution(s, field, r1)
}

func (g *countingGeometry) RectangleContribution(r geom.Rectangle, field *geom.Area, r1 float64) *geom.Area {
	g.rects++
	return g.DefaultGeometry.RectangleContribution(r, field, r1)
}

func (g *countingGeometry) LineContribution(l geom.Line, field *geom.Area, r1 float64) *geom.Area {
	g.lines++
	return g.DefaultGeometry.LineContribution(l, field, r1)
}

func (g *countingGeometry) TranslateContribution(field, area *geom.Area, origin geom.Point) *geom.Area {
	g.translates++
	return g.DefaultGeometry.TranslateContribution(field, area, origin)
}

func (g *countingGeometry) RouteVirtualEdges(members, obstacles []geom.Shape, maxIterations int, buffer float64) []geom.Line {
	g.routes++
	return g.DefaultGeometry.RouteVirtualEdges(members, obstacles, maxIterations, buffer)
}

func (g *countingGeometry) ComputeOutline(field *geom.Area, members, edges, obstacles []*geom.Area, contains func(geom.PointPath) bool, o geom.OutlineOptions) geom.PointPath {
	g.outlines++
	return g.DefaultGeometry.ComputeOutline(field, members, edges, obstacles, contains, o)
}

func (g *countingGeometry) computed() int {
	return g.circles + g.rects + g.lines
}

func (g *countingGeometry) reset() {
	*g = countingGeometry{}
}

type fixture struct {
	graph    *graph.Graph
	recorder *canvas.Recorder
	registry *Registry
	geo      *countingGeometry
	sched    *manualScheduler
	draws    int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		graph:    graph.New(),
		recorder: canvas.NewRecorder(800, 600, 1),
		geo:      &countingGeometry{},
		sched:    &manualScheduler{},
	}
	base := []Option{
		WithGeometry(f.geo),
		WithScheduler(f.sched),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	r, err := Register(f.graph, f.recorder, append(base, opts...)...)
	require.NoError(t, err)
	r.OnDraw(func() { f.draws++ })
	f.registry = r
	t.Cleanup(r.Close)
	return f
}

// circle adds an ellipse node of radius r centred at (cx, cy).
func (f *fixture) circle(t *testing.T, id string, cx, cy, r float64) {
	t.Helper()
	require.NoError(t, f.graph.AddNode(graph.Node{
		ID:    id,
		Box:   geom.Rect{X: cx - r, Y: cy - r, Width: 2 * r, Height: 2 * r},
		Shape: graph.ShapeEllipse,
	}))
}

func (f *fixture) rect(t *testing.T, id string, x, y, w, h float64) {
	t.Helper()
	require.NoError(t, f.graph.AddNode(graph.Node{ID: id, Box: geom.Rect{X: x, Y: y, Width: w, Height: h}}))
}

func (f *fixture) edge(t *testing.T, id, source, target string) {
	t.Helper()
	require.NoError(t, f.graph.AddEdge(graph.Edge{ID: id, Source: source, Target: target}))
}

func (f *fixture) shapes(t *testing.T, ids ...string) []geom.Shape {
	t.Helper()
	var out []geom.Shape
	for _, id := range ids {
		box, shape, ok := f.graph.NodeBounds(id)
		require.True(t, ok, id)
		out = append(out, newShapeEntry(nodeState{id: id, box: box, circle: isCircular(shape)}).shape)
	}
	return out
}
