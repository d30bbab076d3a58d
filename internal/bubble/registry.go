package bubble

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
)

// Host is the graph the outlines are computed for.
type Host interface {
	NodeBounds(id string) (geom.Rect, graph.NodeShape, bool)
	EdgePolyline(id string) ([]geom.Point, bool)
	Viewport() graph.Viewport
	Subscribe(ids []string, events graph.Event, fn func(graph.Change)) func()
	Listen(events graph.Event, fn func(graph.Change)) func()
}

// globalThrottle delays the recompute that follows a layout run or a viewport move.
const globalThrottle = 200 * time.Millisecond

// Registry owns the drawing surface and the paths drawn on it. A single mutex
// serialises host callbacks, timer callbacks and API calls.
type Registry struct {
	mu       sync.Mutex
	host     Host
	surface  canvas.Surface
	opts     Options
	log      *slog.Logger
	paths    []*Path
	nextID   int
	hooks    []func()
	unlisten []func()
	throttle *throttle
	closed   bool
}

// Register attaches a registry to host. opts become the defaults of every path.
func Register(host Host, surface canvas.Surface, opts ...Option) (*Registry, error) {
	o, err := buildOptions(DefaultOptions(), opts...)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	r := &Registry{
		host:    host,
		surface: surface,
		opts:    o,
		log:     o.Logger,
	}
	r.throttle = newThrottle(o.Scheduler, globalThrottle, func() {
		if err := r.Update(); err != nil && !errors.Is(err, ErrClosed) {
			r.log.Warn("bubble update failed", "error", err)
		}
	})
	r.unlisten = append(r.unlisten,
		host.Listen(graph.EventRender, func(graph.Change) { r.Draw() }),
		host.Listen(graph.EventLayoutStop|graph.EventViewport, func(graph.Change) { r.throttle.Trigger() }),
	)
	return r, nil
}

// AddPath creates and attaches a path outlining members, following edges and
// avoiding the obstacle nodes. The outline is computed on the first update.
func (r *Registry) AddPath(members, edges, avoid []string, opts ...Option) (*Path, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	o, err := buildOptions(r.opts, opts...)
	if err != nil {
		return nil, fmt.Errorf("add path: %w", err)
	}
	r.nextID++
	p := newPath(r, fmt.Sprintf("bubble-%d", r.nextID), members, edges, avoid, o)
	p.attach()
	r.paths = append(r.paths, p)
	r.log.Debug("bubble path added", "path", p.id, "members", len(p.members), "edges", len(p.edgeIDs), "obstacles", len(p.avoid))
	return p, nil
}

// RemovePath removes p. It reports ErrRemoved when p was already removed.
func (r *Registry) RemovePath(p *Path) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(p)
}

func (r *Registry) removeLocked(p *Path) error {
	if err := p.remove(); err != nil {
		return err
	}
	r.paths = slices.DeleteFunc(r.paths, func(o *Path) bool { return o == p })
	return nil
}

// Paths returns the attached paths in registration order.
func (r *Registry) Paths() []*Path {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.paths)
}

// OnDraw registers fn to run after every completed redraw. fn runs under the
// registry lock and must not call back into the registry.
func (r *Registry) OnDraw(fn func()) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Update recomputes every path, then redraws.
func (r *Registry) Update() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	var errs []error
	for _, p := range r.paths {
		if err := p.update(); err != nil {
			errs = append(errs, err)
		}
	}
	r.drawLocked()
	return errors.Join(errs...)
}

// Draw redraws every path from its cached outline.
func (r *Registry) Draw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.drawLocked()
}

// refresh is the throttled update of a single path followed by a redraw.
func (r *Registry) refresh(p *Path) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || p.state != StateAttached {
		return
	}
	if err := p.update(); err != nil {
		p.log.Warn("bubble update failed", "error", err)
	}
	r.drawLocked()
}

func (r *Registry) drawLocked() {
	s := r.surface
	w, h := s.Size()
	ratio := s.PixelRatio()

	s.Save()
	s.ResetTransform()
	s.ClearRect(0, 0, w, h)
	s.Restore()

	vp := r.host.Viewport()
	s.Save()
	s.ResetTransform()
	s.Translate(vp.Pan.X*ratio, vp.Pan.Y*ratio)
	s.Scale(vp.Zoom*ratio, vp.Zoom*ratio)
	for _, p := range r.paths {
		p.draw(s)
	}
	s.Restore()

	for _, fn := range r.hooks {
		fn()
	}
}

// Close removes every path and detaches from the host.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, p := range r.paths {
		_ = p.remove()
	}
	r.paths = nil
	r.throttle.Stop()
	for _, fn := range r.unlisten {
		fn()
	}
	r.unlisten = nil
	r.closed = true
}
