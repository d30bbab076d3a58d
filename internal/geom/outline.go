package geom

// OutlineOptions tunes the iterative potential thresholding.
type OutlineOptions struct {
	NodeR0                   float64
	NodeR1                   float64
	EdgeR0                   float64
	EdgeR1                   float64
	Threshold                float64
	MemberInfluenceFactor    float64
	EdgeInfluenceFactor      float64
	NonMemberInfluenceFactor float64
	MaxMarchingIterations    int
}

// PotentialOutline sums the member, edge and non-member influences into field and
// extracts the threshold contour. While valid rejects the contour, the threshold is
// lowered and the positive influences are strengthened (first half of the iterations)
// or the negative influence is weakened (second half). When no contour validates,
// the last one traced is returned; nil means nothing rose above the threshold.
// field is overwritten.
func PotentialOutline(field *Area, members, edges, nonMembers []*Area, valid func(PointPath) bool, o OutlineOptions) PointPath {
	if field == nil || field.Width == 0 || field.Height == 0 {
		return nil
	}

	threshold := o.Threshold
	memberFactor := o.MemberInfluenceFactor
	edgeFactor := o.EdgeInfluenceFactor
	nonMemberFactor := o.NonMemberInfluenceFactor
	nodeInfA := (o.NodeR0 - o.NodeR1) * (o.NodeR0 - o.NodeR1)
	edgeInfA := (o.EdgeR0 - o.EdgeR1) * (o.EdgeR0 - o.EdgeR1)

	var last PointPath
	for it := 0; it < o.MaxMarchingIterations; it++ {
		field.Clear()
		if memberFactor != 0 && nodeInfA > 0 {
			f := memberFactor / nodeInfA
			for _, a := range members {
				field.AddScaled(a, f)
			}
		}
		if edgeFactor != 0 && edgeInfA > 0 {
			f := edgeFactor / edgeInfA
			for _, a := range edges {
				field.AddScaled(a, f)
			}
		}
		if nonMemberFactor != 0 && nodeInfA > 0 {
			f := nonMemberFactor / nodeInfA
			for _, a := range nonMembers {
				field.AddScaled(a, f)
			}
		}

		contour := MarchingSquares(field, threshold)
		if contour != nil {
			if valid == nil || valid(contour) {
				return contour
			}
			last = contour
		}

		threshold *= 0.95
		switch {
		case float64(it) <= float64(o.MaxMarchingIterations)*0.5:
			memberFactor *= 1.2
			edgeFactor *= 1.2
		case nonMemberFactor != 0 && len(nonMembers) > 0:
			nonMemberFactor *= 0.8
		default:
			return last
		}
	}
	return last
}

const (
	dirN = iota
	dirS
	dirE
	dirW
)

// MarchingSquares traces the first closed contour of cells above threshold, scanning
// column by column. Contour points are the centres of the 2x2 sample blocks the
// boundary passes through. Cells outside the area count as below threshold.
func MarchingSquares(a *Area, threshold float64) PointPath {
	inside := func(x, y int) bool {
		if x < 0 || y < 0 || x >= a.Width || y >= a.Height {
			return false
		}
		return a.values[y*a.Width+x] > threshold
	}
	state := func(x, y int) int {
		s := 0
		if inside(x, y) {
			s |= 1
		}
		if inside(x+1, y) {
			s |= 2
		}
		if inside(x, y+1) {
			s |= 4
		}
		if inside(x+1, y+1) {
			s |= 8
		}
		return s
	}

	for x := 0; x < a.Width; x++ {
		for y := 0; y < a.Height; y++ {
			if !inside(x, y) || state(x, y) == 15 {
				continue
			}
			return march(a, x, y, state)
		}
	}
	return nil
}

func march(a *Area, x, y int, state func(x, y int) int) PointPath {
	var contour PointPath
	seen := make(map[[2]int]struct{})
	dir := dirS
	half := float64(a.PixelGroup) / 2
	limit := 4 * (a.Width + 2) * (a.Height + 2)
	for range limit {
		key := [2]int{x, y}
		if _, ok := seen[key]; ok {
			break
		}
		seen[key] = struct{}{}
		contour = append(contour, Point{X: a.InvertScaleX(x) + half, Y: a.InvertScaleY(y) + half})

		switch state(x, y) {
		case 0, 2, 3, 7:
			dir = dirE
		case 4, 12, 14:
			dir = dirW
		case 6:
			if dir == dirN {
				dir = dirW
			} else {
				dir = dirE
			}
		case 1, 5, 13:
			dir = dirN
		case 9:
			if dir == dirE {
				dir = dirN
			} else {
				dir = dirS
			}
		case 8, 10, 11:
			dir = dirS
		default:
			return contour
		}

		switch dir {
		case dirN:
			y--
		case dirS:
			y++
		case dirE:
			x++
		case dirW:
			x--
		}
	}
	return contour
}
