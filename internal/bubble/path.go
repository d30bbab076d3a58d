package bubble

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/geom"
	"github.com/inamate/bubblesets/internal/graph"
)

// State is the lifecycle of a path. Transitions only move forward.
type State int

const (
	StateUninitialized State = iota
	StateAttached
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAttached:
		return "attached"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats describes what the last update recomputed and what it reused.
type Stats struct {
	FieldRebuilt    bool
	FieldDirty      bool
	NodesRecomputed int
	NodesTranslated int
	NodesReused     int
	LinesRecomputed int
	LinesTranslated int
	LinesReused     int
	VirtualRerouted bool
	VirtualEdges    int
	OutlinePoints   int
}

// Path maintains the outline of one grouping: member nodes it encloses, member
// edges it follows and obstacle nodes it avoids. All mutable state is guarded by
// the owning registry's lock.
type Path struct {
	id       string
	registry *Registry
	host     Host
	geo      Geometry
	opts     Options
	log      *slog.Logger

	members []string
	avoid   []string
	edgeIDs []string
	nodeIDs []string // members then obstacles

	state       State
	unsubscribe []func()
	throttle    *throttle

	region  geom.Rect
	field   *geom.Area
	nodes   map[string]*shapeEntry
	lines   map[string]*lineEntry
	virtual []virtualEdge
	outline geom.PointPath
	stats   Stats
}

func newPath(r *Registry, id string, members, edges, avoid []string, o Options) *Path {
	members = dedupe(members, nil)
	inMembers := make(map[string]struct{}, len(members))
	for _, m := range members {
		inMembers[m] = struct{}{}
	}
	avoid = dedupe(avoid, inMembers)

	p := &Path{
		id:       id,
		registry: r,
		host:     r.host,
		geo:      o.Geometry,
		opts:     o,
		log:      o.Logger.With("path", id),
		members:  members,
		avoid:    avoid,
		edgeIDs:  dedupe(edges, nil),
		nodeIDs:  append(slices.Clone(members), avoid...),
		nodes:    make(map[string]*shapeEntry),
		lines:    make(map[string]*lineEntry),
	}
	p.throttle = newThrottle(o.Scheduler, o.Throttle, func() { r.refresh(p) })
	return p
}

func dedupe(ids []string, skip map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// attach subscribes to the host changes the outline depends on.
func (p *Path) attach() {
	if p.state != StateUninitialized {
		return
	}
	trigger := func(graph.Change) { p.throttle.Trigger() }
	if len(p.nodeIDs) > 0 {
		p.unsubscribe = append(p.unsubscribe, p.host.Subscribe(p.nodeIDs, graph.NodeEvents, trigger))
	}
	if len(p.edgeIDs) > 0 {
		p.unsubscribe = append(p.unsubscribe, p.host.Subscribe(p.edgeIDs, graph.EdgeEvents, trigger))
	}
	p.state = StateAttached
}

func (p *Path) ID() string { return p.id }

func (p *Path) Members() []string   { return slices.Clone(p.members) }
func (p *Path) Edges() []string     { return slices.Clone(p.edgeIDs) }
func (p *Path) Obstacles() []string { return slices.Clone(p.avoid) }

func (p *Path) State() State {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return p.state
}

// Outline returns the last computed outline in model coordinates.
func (p *Path) Outline() geom.PointPath {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return slices.Clone(p.outline)
}

// Stats returns the statistics of the last update.
func (p *Path) Stats() Stats {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return p.stats
}

// Update recomputes the outline immediately.
func (p *Path) Update() error {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return p.update()
}

// Draw renders the cached outline onto s in model coordinates. It never recomputes.
func (p *Path) Draw(s canvas.Surface) error {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	if p.state == StateRemoved {
		return ErrRemoved
	}
	p.draw(s)
	return nil
}

// Remove unsubscribes, drops every cached contribution and detaches the path from
// its registry. A pending throttled update becomes a no-op.
func (p *Path) Remove() error {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return p.registry.removeLocked(p)
}

func (p *Path) remove() error {
	if p.state == StateRemoved {
		return ErrRemoved
	}
	p.throttle.Stop()
	for _, cancel := range p.unsubscribe {
		cancel()
	}
	p.unsubscribe = nil
	clear(p.nodes)
	clear(p.lines)
	p.virtual = nil
	p.outline = nil
	p.field = nil
	p.region = geom.Rect{}
	p.state = StateRemoved
	p.log.Debug("bubble path removed")
	return nil
}

// update runs one full cycle. Host input is read and validated before any cached
// state changes.
func (p *Path) update() error {
	if p.state == StateRemoved {
		return ErrRemoved
	}

	members, err := p.snapshotNodes(p.members)
	if err != nil {
		return fmt.Errorf("update path %s: %w", p.id, err)
	}
	obstacles, err := p.snapshotNodes(p.avoid)
	if err != nil {
		return fmt.Errorf("update path %s: %w", p.id, err)
	}
	edges, err := p.snapshotEdges()
	if err != nil {
		return fmt.Errorf("update path %s: %w", p.id, err)
	}

	var st Stats
	pruned := p.prune(members, obstacles, edges)

	region, ok := activeRegion(members, edges, p.opts)
	if !ok {
		p.region = geom.Rect{}
		p.field = nil
		p.virtual = nil
		p.outline = nil
		p.stats = st
		p.log.Debug("bubble path empty")
		return nil
	}
	p.trackRegion(region, &st)
	dirty := st.FieldDirty

	seed := p.seedShapes()
	structural := pruned
	memberEntries := make([]*shapeEntry, 0, len(members))
	for _, s := range members {
		e, recreated := p.updateNode(s, dirty, seed, &st)
		structural = structural || recreated
		memberEntries = append(memberEntries, e)
	}
	obstacleEntries := make([]*shapeEntry, 0, len(obstacles))
	for _, s := range obstacles {
		e, recreated := p.updateNode(s, dirty, seed, &st)
		structural = structural || recreated
		obstacleEntries = append(obstacleEntries, e)
	}

	lc := p.seedLines(dirty)
	var edgeAreas []*geom.Area
	for _, s := range edges {
		e := p.updateEdge(s, dirty, lc, &st)
		edgeAreas = append(edgeAreas, e.areas...)
	}
	edgeAreas = append(edgeAreas, p.updateVirtual(structural, memberEntries, obstacleEntries, lc, &st)...)

	p.outline = p.composeOutline(memberEntries, obstacleEntries, edgeAreas)
	st.OutlinePoints = len(p.outline)
	p.stats = st

	p.log.Debug("bubble path updated",
		"members", len(members),
		"obstacles", len(obstacles),
		"edges", len(edges),
		"dirty", st.FieldDirty,
		"nodes_recomputed", st.NodesRecomputed,
		"nodes_translated", st.NodesTranslated,
		"lines_recomputed", st.LinesRecomputed,
		"lines_translated", st.LinesTranslated,
		"virtual", st.VirtualEdges,
		"points", st.OutlinePoints,
	)
	return nil
}

// prune drops cache entries of elements the host no longer resolves. It reports
// whether a node entry went away.
func (p *Path) prune(members, obstacles []nodeState, edges []edgeState) bool {
	live := make(map[string]struct{}, len(members)+len(obstacles))
	for _, s := range members {
		live[s.id] = struct{}{}
	}
	for _, s := range obstacles {
		live[s.id] = struct{}{}
	}
	pruned := false
	for id := range p.nodes {
		if _, ok := live[id]; !ok {
			delete(p.nodes, id)
			pruned = true
		}
	}

	liveEdges := make(map[string]struct{}, len(edges))
	for _, s := range edges {
		liveEdges[s.id] = struct{}{}
	}
	for id := range p.lines {
		if _, ok := liveEdges[id]; !ok {
			delete(p.lines, id)
		}
	}
	return pruned
}

func (p *Path) draw(s canvas.Surface) {
	s.Save()
	defer s.Restore()

	if p.opts.DrawPotentialArea {
		p.drawField(s)
	}
	if len(p.outline) == 0 {
		return
	}
	s.BeginPath()
	s.MoveTo(p.outline[0].X, p.outline[0].Y)
	for _, pt := range p.outline[1:] {
		s.LineTo(pt.X, pt.Y)
	}
	s.ClosePath()
	if p.opts.StrokeStyle != "" {
		s.SetStrokeStyle(p.opts.StrokeStyle)
		s.Stroke()
	}
	if p.opts.FillStyle != "" {
		s.SetFillStyle(p.opts.FillStyle)
		s.Fill()
	}
}

// drawField paints every positive cell, darker with higher potential.
func (p *Path) drawField(s canvas.Surface) {
	if p.field == nil {
		return
	}
	peak := p.field.Max()
	if peak <= 0 {
		return
	}
	pg := float64(p.field.PixelGroup)
	for y := 0; y < p.field.Height; y++ {
		for x := 0; x < p.field.Width; x++ {
			v := p.field.Get(x, y)
			if v <= 0 {
				continue
			}
			s.SetFillStyle(fmt.Sprintf("rgba(0,0,255,%.2f)", 0.5*v/peak))
			s.FillRect(p.field.InvertScaleX(x), p.field.InvertScaleY(y), pg, pg)
		}
	}
}
