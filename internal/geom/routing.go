package geom

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// RouteVirtualEdges links the members into a tree of segments that bends around
// obstacles. Members are attached closest to the centroid first; each new member
// connects to the visited member with the cheapest (length x (1 + blocking obstacles))
// straight link, which is then detoured around every obstacle it crosses.
// maxIterations bounds the total number of detours across the whole routing.
func RouteVirtualEdges(members, obstacles []Shape, maxIterations int, buffer float64) []Line {
	if len(members) < 2 {
		return nil
	}

	var centroid Point
	for _, m := range members {
		centroid = r2.Add(centroid, m.Center())
	}
	centroid = r2.Scale(1/float64(len(members)), centroid)

	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(
			r2.Norm2(r2.Sub(members[a].Center(), centroid)),
			r2.Norm2(r2.Sub(members[b].Center(), centroid)),
		)
	})

	r := &router{obstacles: obstacles, budget: maxIterations, buffer: buffer}
	var out []Line
	visited := []int{order[0]}
	for _, idx := range order[1:] {
		from := members[idx].Center()
		best, bestCost := -1, 0.0
		for _, v := range visited {
			to := members[v].Center()
			cost := r2.Norm(r2.Sub(to, from)) * float64(1+r.countBlocking(from, to))
			if best < 0 || cost < bestCost {
				best, bestCost = v, cost
			}
		}
		out = append(out, r.route(LineBetween(members[best].Center(), from))...)
		visited = append(visited, idx)
	}
	return out
}

type router struct {
	obstacles []Shape
	budget    int
	buffer    float64
}

// blocks reports whether obstacle o cuts the segment a-b. Obstacles containing
// either endpoint never block; the link has to leave them anyway.
func blocks(o Shape, a, b Point) bool {
	bb := o.Bounds()
	if bb.Contains(a.X, a.Y) || bb.Contains(b.X, b.Y) {
		return false
	}
	return bb.IntersectsSegment(a, b)
}

func (r *router) countBlocking(a, b Point) int {
	n := 0
	for _, o := range r.obstacles {
		if blocks(o, a, b) {
			n++
		}
	}
	return n
}

func (r *router) firstBlocking(a, b Point) Shape {
	var first Shape
	bestD := 0.0
	for _, o := range r.obstacles {
		if !blocks(o, a, b) {
			continue
		}
		d := r2.Norm2(r2.Sub(o.Center(), a))
		if first == nil || d < bestD {
			first, bestD = o, d
		}
	}
	return first
}

func (r *router) route(l Line) []Line {
	pending := []Line{l}
	var out []Line
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]
		a, b := cur.Start(), cur.End()
		o := r.firstBlocking(a, b)
		if o == nil || r.budget <= 0 {
			out = append(out, cur)
			continue
		}
		r.budget--
		wp, ok := r.detour(a, b, o)
		if !ok {
			out = append(out, cur)
			continue
		}
		pending = append([]Line{LineBetween(a, wp), LineBetween(wp, b)}, pending...)
	}
	return r.merge(out)
}

// detour picks the padded corner of o giving the cheapest bend from a to b.
// Corners inside another obstacle are rejected; the padding grows when every
// corner is rejected.
func (r *router) detour(a, b Point, o Shape) (Point, bool) {
	buffer := r.buffer
	for range 3 {
		bb := o.Bounds().Pad(buffer)
		corners := [4]Point{
			{X: bb.X, Y: bb.Y},
			{X: bb.X + bb.Width, Y: bb.Y},
			{X: bb.X, Y: bb.Y + bb.Height},
			{X: bb.X + bb.Width, Y: bb.Y + bb.Height},
		}
		var best Point
		bestCost, found := 0.0, false
		for _, c := range corners {
			if c == a || c == b || r.insideObstacle(c) {
				continue
			}
			blocked := r.countBlocking(a, c) + r.countBlocking(c, b)
			cost := (r2.Norm(r2.Sub(c, a)) + r2.Norm(r2.Sub(b, c))) * float64(1+blocked)
			if !found || cost < bestCost {
				best, bestCost, found = c, cost, true
			}
		}
		if found {
			return best, true
		}
		buffer *= 1.5
	}
	return Point{}, false
}

func (r *router) insideObstacle(p Point) bool {
	for _, o := range r.obstacles {
		if o.Bounds().Contains(p.X, p.Y) {
			return true
		}
	}
	return false
}

// merge collapses consecutive segments whose shortcut is unobstructed.
func (r *router) merge(lines []Line) []Line {
	if len(lines) < 2 {
		return lines
	}
	out := []Line{lines[0]}
	for _, l := range lines[1:] {
		last := out[len(out)-1]
		if r.countBlocking(last.Start(), l.End()) == 0 {
			out[len(out)-1] = LineBetween(last.Start(), l.End())
			continue
		}
		out = append(out, l)
	}
	return out
}
