package graph

import "strings"

// Event is a bit set of change kinds.
type Event uint16

const (
	EventAdd Event = 1 << iota
	EventRemove
	EventPosition // node moved, or an edge endpoint moved with it
	EventResize
	EventStyle
	EventMove // edge rerouted (waypoints changed)
	EventRender
	EventLayoutStop
	EventViewport

	// NodeEvents are the changes an outline over nodes depends on.
	NodeEvents = EventAdd | EventRemove | EventPosition | EventResize | EventStyle
	// EdgeEvents are the changes an outline over edges depends on.
	EdgeEvents = EventAdd | EventRemove | EventPosition | EventMove
	// GlobalEvents carry no element ID.
	GlobalEvents = EventRender | EventLayoutStop | EventViewport
)

var eventNames = []struct {
	e    Event
	name string
}{
	{EventAdd, "add"},
	{EventRemove, "remove"},
	{EventPosition, "position"},
	{EventResize, "resize"},
	{EventStyle, "style"},
	{EventMove, "move"},
	{EventRender, "render"},
	{EventLayoutStop, "layoutstop"},
	{EventViewport, "viewport"},
}

func (e Event) String() string {
	var parts []string
	for _, n := range eventNames {
		if e&n.e != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// Change is one notification. ID is empty for global events.
type Change struct {
	Event Event
	ID    string
}
