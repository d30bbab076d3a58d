package document

import (
	"fmt"
	"math"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
)

const (
	nodeFill   = "#cccccc"
	nodeStroke = "#333333"
	edgeStroke = "#888888"
)

// PathOptions are the per-grouping overrides of the registry defaults.
func (g Grouping) PathOptions() []bubble.Option {
	if g.Fill == "" && g.Stroke == "" {
		return nil
	}
	return []bubble.Option{bubble.WithStyle(g.Fill, g.Stroke)}
}

// Mount adds one path per grouping to r, keyed by grouping id.
func Mount(r *bubble.Registry, sc *Scene) (map[string]*bubble.Path, error) {
	paths := make(map[string]*bubble.Path, len(sc.Groupings))
	for _, g := range sc.SortedGroupings() {
		p, err := r.AddPath(g.Members, g.Edges, g.Avoid, g.PathOptions()...)
		if err != nil {
			return nil, fmt.Errorf("mount grouping %s: %w", g.ID, err)
		}
		paths[g.ID] = p
	}
	return paths, nil
}

// Render computes every grouping outline of sc and draws the scene onto s, outlines
// below edges and nodes. It returns the outlines by grouping id.
func Render(sc *Scene, s canvas.Surface, opts ...bubble.Option) (map[string]geom.PointPath, error) {
	g, err := sc.Graph()
	if err != nil {
		return nil, fmt.Errorf("render scene %s: %w", sc.ID, err)
	}
	r, err := bubble.Register(g, s, opts...)
	if err != nil {
		return nil, fmt.Errorf("render scene %s: %w", sc.ID, err)
	}
	defer r.Close()

	paths, err := Mount(r, sc)
	if err != nil {
		return nil, fmt.Errorf("render scene %s: %w", sc.ID, err)
	}
	if err := r.Update(); err != nil {
		return nil, fmt.Errorf("render scene %s: %w", sc.ID, err)
	}
	DrawGraph(s, g)

	out := make(map[string]geom.PointPath, len(paths))
	for id, p := range paths {
		out[id] = p.Outline()
	}
	return out, nil
}

// DrawGraph draws the edges and nodes of g under its viewport transform.
func DrawGraph(s canvas.Surface, g *graph.Graph) {
	vp := g.Viewport()
	ratio := s.PixelRatio()
	s.Save()
	defer s.Restore()
	s.ResetTransform()
	s.Translate(vp.Pan.X*ratio, vp.Pan.Y*ratio)
	s.Scale(vp.Zoom*ratio, vp.Zoom*ratio)

	s.SetStrokeStyle(edgeStroke)
	for _, e := range g.Edges() {
		pts, ok := g.EdgePolyline(e.ID)
		if !ok || len(pts) < 2 {
			continue
		}
		s.BeginPath()
		s.MoveTo(pts[0].X, pts[0].Y)
		for _, p := range pts[1:] {
			s.LineTo(p.X, p.Y)
		}
		s.Stroke()
	}

	s.SetStrokeStyle(nodeStroke)
	for _, n := range g.Nodes() {
		s.BeginPath()
		if n.Shape == graph.ShapeEllipse {
			ellipse(s, n.Box)
		} else {
			s.MoveTo(n.Box.X, n.Box.Y)
			s.LineTo(n.Box.X+n.Box.Width, n.Box.Y)
			s.LineTo(n.Box.X+n.Box.Width, n.Box.Y+n.Box.Height)
			s.LineTo(n.Box.X, n.Box.Y+n.Box.Height)
		}
		s.ClosePath()
		s.SetFillStyle(nodeFill)
		s.Fill()
		s.Stroke()
	}
}

func ellipse(s canvas.Surface, box geom.Rect) {
	const steps = 24
	cx, cy := box.Center()
	rx, ry := box.Width/2, box.Height/2
	for i := range steps {
		a := 2 * math.Pi * float64(i) / steps
		x, y := cx+rx*math.Cos(a), cy+ry*math.Sin(a)
		if i == 0 {
			s.MoveTo(x, y)
		} else {
			s.LineTo(x, y)
		}
	}
}
