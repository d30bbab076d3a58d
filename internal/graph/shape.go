package graph

import "fmt"

// NodeShape is the visual style a node is rendered with.
type NodeShape int

const (
	ShapeRectangle NodeShape = iota
	ShapeRoundRectangle
	ShapeEllipse
	ShapeTriangle
	ShapeRoundTriangle
	ShapeDiamond
	ShapeRoundDiamond
	ShapePentagon
	ShapeRoundPentagon
	ShapeHexagon
	ShapeRoundHexagon
	ShapeHeptagon
	ShapeRoundHeptagon
	ShapeOctagon
	ShapeRoundOctagon
	ShapeStar
	ShapeRoundStar
	ShapeTag
	ShapeRoundTag
	ShapeVee
	ShapeBarrel
)

var shapeNames = [...]string{
	ShapeRectangle:      "rectangle",
	ShapeRoundRectangle: "round-rectangle",
	ShapeEllipse:        "ellipse",
	ShapeTriangle:       "triangle",
	ShapeRoundTriangle:  "round-triangle",
	ShapeDiamond:        "diamond",
	ShapeRoundDiamond:   "round-diamond",
	ShapePentagon:       "pentagon",
	ShapeRoundPentagon:  "round-pentagon",
	ShapeHexagon:        "hexagon",
	ShapeRoundHexagon:   "round-hexagon",
	ShapeHeptagon:       "heptagon",
	ShapeRoundHeptagon:  "round-heptagon",
	ShapeOctagon:        "octagon",
	ShapeRoundOctagon:   "round-octagon",
	ShapeStar:           "star",
	ShapeRoundStar:      "round-star",
	ShapeTag:            "tag",
	ShapeRoundTag:       "round-tag",
	ShapeVee:            "vee",
	ShapeBarrel:         "barrel",
}

func (s NodeShape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("NodeShape(%d)", int(s))
	}
	return shapeNames[s]
}

// ParseNodeShape maps a style name to its shape. Unknown names render as rectangles.
func ParseNodeShape(name string) NodeShape {
	for i, n := range shapeNames {
		if n == name {
			return NodeShape(i)
		}
	}
	return ShapeRectangle
}

func (s NodeShape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *NodeShape) UnmarshalText(b []byte) error {
	*s = ParseNodeShape(string(b))
	return nil
}
