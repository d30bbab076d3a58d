package collab

import (
	"encoding/json"

	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/document"
)

type Message struct {
	Type     string          `json:"type"`
	SceneID  string          `json:"sceneId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	Grouping    string     `json:"grouping,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

// CursorPos is in model coordinates.
type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	TypeWelcome = "welcome"
	TypeFrame   = "frame"

	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// Operation types.
const (
	OpNodeAdd        = "node.add"
	OpNodeMove       = "node.move"
	OpNodeResize     = "node.resize"
	OpNodeShape      = "node.shape"
	OpNodeRemove     = "node.remove"
	OpEdgeAdd        = "edge.add"
	OpEdgeWaypoints  = "edge.waypoints"
	OpEdgeRemove     = "edge.remove"
	OpViewportSet    = "viewport.set"
	OpGroupingAdd    = "grouping.add"
	OpGroupingRemove = "grouping.remove"
	OpLayoutStop     = "layout.stop"
)

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Operation is one scene mutation. Which fields are set depends on Type.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	NodeID     string `json:"nodeId,omitempty"`
	EdgeID     string `json:"edgeId,omitempty"`
	GroupingID string `json:"groupingId,omitempty"`

	Node      *document.Node     `json:"node,omitempty"`
	Edge      *document.Edge     `json:"edge,omitempty"`
	Grouping  *document.Grouping `json:"grouping,omitempty"`
	Position  *document.Point    `json:"position,omitempty"`
	Size      *Size              `json:"size,omitempty"`
	Shape     string             `json:"shape,omitempty"`
	Waypoints []document.Point   `json:"waypoints,omitempty"`
	Viewport  *document.Viewport `json:"viewport,omitempty"`
}

type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

type OperationAckPayload struct {
	OperationID     string `json:"operationId"`
	ServerSeq       int64  `json:"serverSeq"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}

type WelcomePayload struct {
	ClientID  string          `json:"clientId"`
	ServerSeq int64           `json:"serverSeq"`
	Scene     *document.Scene `json:"scene"`
}

// FramePayload is one completed redraw of the room's outline surface.
type FramePayload struct {
	Width    float64              `json:"width"`
	Height   float64              `json:"height"`
	Commands []canvas.DrawCommand `json:"commands"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessage(typ string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, Payload: data}, nil
}
