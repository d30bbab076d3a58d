package bubble

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/inamate/bubblesets/internal/geom"
)

// Options configures a bubble path. Registry options are the base every path's
// options are applied on top of.
type Options struct {
	PixelGroup int // field cell size in model pixels

	// Node influence is full strength within NodeR0 and none beyond NodeR1.
	NodeR0 float64
	NodeR1 float64
	// The same for edge segments.
	EdgeR0 float64
	EdgeR1 float64

	// MorphBuffer pads the active region and is also the routing clearance.
	MorphBuffer              float64
	Threshold                float64
	MemberInfluenceFactor    float64
	EdgeInfluenceFactor      float64
	NonMemberInfluenceFactor float64
	MaxRoutingIterations     int
	MaxMarchingIterations    int
	VirtualEdges             bool

	// Throttle is the delay between a change notification and its recompute.
	Throttle          time.Duration
	DrawPotentialArea bool
	FillStyle         string
	StrokeStyle       string
	SampleInterval    float64
	SmoothGranularity int

	Geometry  Geometry
	Scheduler Scheduler
	Logger    *slog.Logger
}

// Option represents a functional option for configuring a path or registry.
type Option func(*Options)

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		PixelGroup:               4,
		NodeR0:                   15,
		NodeR1:                   50,
		EdgeR0:                   10,
		EdgeR1:                   20,
		MorphBuffer:              10,
		Threshold:                1,
		MemberInfluenceFactor:    1,
		EdgeInfluenceFactor:      1,
		NonMemberInfluenceFactor: -0.8,
		MaxRoutingIterations:     100,
		MaxMarchingIterations:    20,
		VirtualEdges:             true,
		Throttle:                 100 * time.Millisecond,
		FillStyle:                "rgba(0,0,0,0.25)",
		StrokeStyle:              "black",
		SampleInterval:           8,
		SmoothGranularity:        6,
	}
}

// WithOptions replaces every tunable at once, keeping collaborators that are unset in o.
func WithOptions(o Options) Option {
	return func(dst *Options) {
		g, s, l := dst.Geometry, dst.Scheduler, dst.Logger
		*dst = o
		if dst.Geometry == nil {
			dst.Geometry = g
		}
		if dst.Scheduler == nil {
			dst.Scheduler = s
		}
		if dst.Logger == nil {
			dst.Logger = l
		}
	}
}

func WithPixelGroup(n int) Option {
	return func(o *Options) { o.PixelGroup = n }
}

func WithNodeRadii(r0, r1 float64) Option {
	return func(o *Options) { o.NodeR0, o.NodeR1 = r0, r1 }
}

func WithEdgeRadii(r0, r1 float64) Option {
	return func(o *Options) { o.EdgeR0, o.EdgeR1 = r0, r1 }
}

func WithMorphBuffer(d float64) Option {
	return func(o *Options) { o.MorphBuffer = d }
}

func WithMaxRoutingIterations(n int) Option {
	return func(o *Options) { o.MaxRoutingIterations = n }
}

func WithThrottle(d time.Duration) Option {
	return func(o *Options) { o.Throttle = d }
}

// WithVirtualEdges toggles routing of inferred edges between members.
func WithVirtualEdges(on bool) Option {
	return func(o *Options) { o.VirtualEdges = on }
}

// WithDrawPotentialArea renders the raw field under the outline.
func WithDrawPotentialArea(on bool) Option {
	return func(o *Options) { o.DrawPotentialArea = on }
}

// WithStyle sets the fill and stroke styles. An empty style is not drawn.
func WithStyle(fill, stroke string) Option {
	return func(o *Options) { o.FillStyle, o.StrokeStyle = fill, stroke }
}

// WithGeometry swaps the geometry collaborator.
func WithGeometry(g Geometry) Option {
	return func(o *Options) { o.Geometry = g }
}

// WithScheduler swaps the timer source used for throttling.
func WithScheduler(s Scheduler) Option {
	return func(o *Options) { o.Scheduler = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func buildOptions(base Options, opts ...Option) (Options, error) {
	o := base
	for _, opt := range opts {
		opt(&o)
	}
	if o.Geometry == nil {
		o.Geometry = DefaultGeometry{}
	}
	if o.Scheduler == nil {
		o.Scheduler = TimeScheduler{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, o.validate()
}

func (o Options) validate() error {
	switch {
	case o.PixelGroup < 1:
		return fmt.Errorf("pixel group %d: %w", o.PixelGroup, ErrInvalidOptions)
	case o.NodeR0 < 0 || o.NodeR1 <= o.NodeR0 || o.EdgeR0 < 0 || o.EdgeR1 <= o.EdgeR0:
		return fmt.Errorf("influence radii: %w", ErrInvalidOptions)
	case o.MorphBuffer < 0:
		return fmt.Errorf("morph buffer %v: %w", o.MorphBuffer, ErrInvalidOptions)
	case o.Throttle < 0:
		return fmt.Errorf("throttle %v: %w", o.Throttle, ErrInvalidOptions)
	case o.MaxMarchingIterations < 1 || o.MaxRoutingIterations < 0:
		return fmt.Errorf("iteration limits: %w", ErrInvalidOptions)
	}
	return nil
}

func (o Options) outline() geom.OutlineOptions {
	return geom.OutlineOptions{
		NodeR0:                   o.NodeR0,
		NodeR1:                   o.NodeR1,
		EdgeR0:                   o.EdgeR0,
		EdgeR1:                   o.EdgeR1,
		Threshold:                o.Threshold,
		MemberInfluenceFactor:    o.MemberInfluenceFactor,
		EdgeInfluenceFactor:      o.EdgeInfluenceFactor,
		NonMemberInfluenceFactor: o.NonMemberInfluenceFactor,
		MaxMarchingIterations:    o.MaxMarchingIterations,
	}
}
