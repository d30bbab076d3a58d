package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/graph"
)

// queuedScheduler runs callbacks when the test flushes it.
type queuedScheduler struct {
	mu    sync.Mutex
	queue []func()
}

type queuedTimer struct{}

func (queuedTimer) Stop() bool { return false }

func (s *queuedScheduler) AfterFunc(_ time.Duration, f func()) bubble.Timer {
	s.mu.Lock()
	s.queue = append(s.queue, f)
	s.mu.Unlock()
	return queuedTimer{}
}

func (s *queuedScheduler) flush() int {
	s.mu.Lock()
	q := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, f := range q {
		f()
	}
	return len(q)
}

func pairScene() *document.Scene {
	sc := document.NewEmptyScene("scene_pair", "Pair")
	sc.Nodes["a"] = document.Node{ID: "a", X: 100, Y: 100, Width: 20, Height: 20, Shape: graph.ShapeEllipse}
	sc.Nodes["b"] = document.Node{ID: "b", X: 180, Y: 100, Width: 20, Height: 20, Shape: graph.ShapeEllipse}
	sc.Nodes["c"] = document.Node{ID: "c", X: 140, Y: 200, Width: 30, Height: 20}
	sc.Edges["ab"] = document.Edge{ID: "ab", Source: "a", Target: "b"}
	sc.Groupings["g"] = document.Grouping{ID: "g", Members: []string{"a", "b"}, Edges: []string{"ab"}, Avoid: []string{"c"}}
	return sc
}

func newState(t *testing.T, sched bubble.Scheduler) (*SceneState, *[]*FramePayload) {
	t.Helper()
	var frames []*FramePayload
	st, err := NewSceneState(pairScene(), func(f *FramePayload) { frames = append(frames, f) },
		bubble.WithScheduler(sched),
		bubble.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st, &frames
}

func TestSceneStateInitialFrame(t *testing.T) {
	st, frames := newState(t, &queuedScheduler{})
	require.Len(t, *frames, 1)
	assert.Same(t, (*frames)[0], st.LastFrame())
	assert.Equal(t, "clear", (*frames)[0].Commands[0].Op)

	out, ok := st.Outline("g")
	require.True(t, ok)
	assert.NotEmpty(t, out)
}

func TestSceneStateMoveIsThrottled(t *testing.T) {
	sched := &queuedScheduler{}
	st, frames := newState(t, sched)
	before, _ := st.Outline("g")

	for i, x := range []float64{185, 190, 195} {
		seq, err := st.ApplyOperation(Operation{Type: OpNodeMove, NodeID: "b", Position: &document.Point{X: x, Y: 100}})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}
	assert.Len(t, *frames, 1)
	assert.Equal(t, 1, sched.flush())
	assert.Len(t, *frames, 2)

	after, _ := st.Outline("g")
	assert.NotEqual(t, before, after)

	doc, seq, dirty, err := st.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 195.0, doc.Nodes["b"].X)
	assert.Equal(t, int64(3), seq)
	assert.True(t, dirty)

	st.MarkSaved(2)
	_, _, dirty, _ = st.Snapshot()
	assert.True(t, dirty)
	st.MarkSaved(3)
	_, _, dirty, _ = st.Snapshot()
	assert.False(t, dirty)
}

func TestSceneStateRejects(t *testing.T) {
	st, _ := newState(t, &queuedScheduler{})

	tests := []struct {
		name string
		op   Operation
		want error
	}{
		{"unknown type", Operation{Type: "node.explode"}, ErrInvalidOperation},
		{"missing node", Operation{Type: OpNodeMove, NodeID: "zz", Position: &document.Point{}}, graph.ErrNodeNotFound},
		{"no position", Operation{Type: OpNodeMove, NodeID: "a"}, ErrInvalidOperation},
		{"negative size", Operation{Type: OpNodeResize, NodeID: "a", Size: &Size{Width: -1, Height: 2}}, ErrInvalidOperation},
		{"duplicate node", Operation{Type: OpNodeAdd, Node: &document.Node{ID: "a", Width: 1, Height: 1}}, graph.ErrDuplicateID},
		{"dangling edge", Operation{Type: OpEdgeAdd, Edge: &document.Edge{ID: "e", Source: "a", Target: "zz"}}, graph.ErrNodeNotFound},
		{"unknown grouping", Operation{Type: OpGroupingRemove, GroupingID: "nope"}, ErrInvalidOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.ApplyOperation(tt.op)
			assert.True(t, errors.Is(err, tt.want), "%v", err)
		})
	}

	_, seq, dirty, err := st.Snapshot()
	require.NoError(t, err)
	assert.Zero(t, seq)
	assert.False(t, dirty)
}

func TestSceneStateGroupings(t *testing.T) {
	st, frames := newState(t, &queuedScheduler{})

	_, err := st.ApplyOperation(Operation{Type: OpGroupingAdd, Grouping: &document.Grouping{ID: "h", Members: []string{"b", "c"}, Fill: "red"}})
	require.NoError(t, err)
	out, ok := st.Outline("h")
	require.True(t, ok)
	assert.NotEmpty(t, out)
	assert.Len(t, *frames, 2)

	_, err = st.ApplyOperation(Operation{Type: OpNodeRemove, NodeID: "c"})
	require.NoError(t, err)
	doc, _, _, err := st.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, doc.Groupings["h"].Members)
	assert.Empty(t, doc.Groupings["g"].Avoid)

	_, err = st.ApplyOperation(Operation{Type: OpGroupingRemove, GroupingID: "h"})
	require.NoError(t, err)
	_, ok = st.Outline("h")
	assert.False(t, ok)
	assert.Len(t, *frames, 3)
}

func TestSceneStateGlobalEvents(t *testing.T) {
	sched := &queuedScheduler{}
	st, frames := newState(t, sched)

	_, err := st.ApplyOperation(Operation{Type: OpViewportSet, Viewport: &document.Viewport{X: 5, Y: 5, Zoom: 2}})
	require.NoError(t, err)
	_, err = st.ApplyOperation(Operation{Type: OpLayoutStop})
	require.NoError(t, err)
	assert.Equal(t, 1, sched.flush())
	require.Len(t, *frames, 2)

	var stroke bool
	for _, c := range (*frames)[1].Commands {
		if c.Op == "stroke" {
			stroke = true
			assert.Equal(t, []float64{2, 0, 0, 2, 5, 5}, c.Transform)
			break
		}
	}
	assert.True(t, stroke)
}

type memScenes struct {
	mu      sync.Mutex
	version int
	saved   []*document.Scene
}

func (m *memScenes) load(_ context.Context, sceneID string) (*document.Scene, int, error) {
	if sceneID != "scene_pair" {
		return nil, 0, errors.New("no such scene")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return pairScene(), m.version, nil
}

func (m *memScenes) save(_ context.Context, doc *document.Scene, version int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version != m.version {
		return 0, ErrConflict
	}
	m.saved = append(m.saved, doc)
	m.version++
	return m.version, nil
}

// bump stores a version the open rooms never saw.
func (m *memScenes) bump() {
	m.mu.Lock()
	m.version++
	m.mu.Unlock()
}

func (m *memScenes) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) *Message {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == typ {
			return &msg
		}
	}
}

// readAll reads until a message of every type arrived, in any order.
func readAll(t *testing.T, ctx context.Context, conn *websocket.Conn, types ...string) map[string]*Message {
	t.Helper()
	got := make(map[string]*Message, len(types))
	for len(got) < len(types) {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if slices.Contains(types, msg.Type) {
			if _, seen := got[msg.Type]; !seen {
				got[msg.Type] = &msg
			}
		}
	}
	return got
}

func TestHubRoundTrip(t *testing.T) {
	scenes := &memScenes{}
	hub := NewHub(scenes.load, scenes.save,
		bubble.WithThrottle(time.Millisecond),
		bubble.WithLogger(slog.New(slog.DiscardHandler)),
	)
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		sceneID := strings.TrimPrefix(r.URL.Path, "/")
		c := NewClient(hub, conn, "user_"+r.URL.Query().Get("u"), "tester", sceneID, r.URL.Query().Get("u"))
		if !hub.Register(c) {
			return
		}
		go c.WritePump(r.Context())
		c.ReadPump(r.Context())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	alice, _, err := websocket.Dial(ctx, url+"/scene_pair?u=alice", nil)
	require.NoError(t, err)
	defer alice.CloseNow()

	welcome := readUntil(t, ctx, alice, TypeWelcome)
	var w WelcomePayload
	require.NoError(t, json.Unmarshal(welcome.Payload, &w))
	assert.Equal(t, "alice", w.ClientID)
	assert.Len(t, w.Scene.Nodes, 3)
	readUntil(t, ctx, alice, TypeFrame)

	bob, _, err := websocket.Dial(ctx, url+"/scene_pair?u=bob", nil)
	require.NoError(t, err)
	defer bob.CloseNow()
	readAll(t, ctx, bob, TypeWelcome, TypeFrame)
	readUntil(t, ctx, alice, TypePresenceJoin)

	submit, err := newMessage(TypeOpSubmit, OperationSubmitPayload{Operation: Operation{
		ID: "op_1", Type: OpNodeMove, NodeID: "a", Position: &document.Point{X: 90, Y: 110},
	}})
	require.NoError(t, err)
	data, err := json.Marshal(submit)
	require.NoError(t, err)
	require.NoError(t, alice.Write(ctx, websocket.MessageText, data))

	ack := readUntil(t, ctx, alice, TypeOpAck)
	var a OperationAckPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &a))
	assert.Equal(t, "op_1", a.OperationID)
	assert.Equal(t, int64(1), a.ServerSeq)

	got := readAll(t, ctx, bob, TypeOpBroadcast, TypeFrame)
	assert.Equal(t, int64(1), got[TypeOpBroadcast].Seq)
	var f FramePayload
	require.NoError(t, json.Unmarshal(got[TypeFrame].Payload, &f))
	assert.NotEmpty(t, f.Commands)

	alice.Close(websocket.StatusNormalClosure, "")
	bob.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return scenes.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	hub.Stop()
	assert.Equal(t, 90.0, scenes.saved[0].Nodes["a"].X)
}

func TestHubConflictingSaveKeepsStoredScene(t *testing.T) {
	scenes := &memScenes{}
	hub := NewHub(scenes.load, scenes.save,
		bubble.WithThrottle(time.Millisecond),
		bubble.WithLogger(slog.New(slog.DiscardHandler)),
	)
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn, "user_alice", "alice", "scene_pair", "alice")
		if !hub.Register(c) {
			return
		}
		go c.WritePump(r.Context())
		c.ReadPump(r.Context())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	alice, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer alice.CloseNow()
	readAll(t, ctx, alice, TypeWelcome, TypeFrame)

	submit, err := newMessage(TypeOpSubmit, OperationSubmitPayload{Operation: Operation{
		ID: "op_1", Type: OpNodeMove, NodeID: "a", Position: &document.Point{X: 90, Y: 110},
	}})
	require.NoError(t, err)
	data, err := json.Marshal(submit)
	require.NoError(t, err)
	require.NoError(t, alice.Write(ctx, websocket.MessageText, data))
	readUntil(t, ctx, alice, TypeOpAck)

	// the stored scene moves on while the room is open
	scenes.bump()
	hub.Stop()

	msg := readUntil(t, ctx, alice, TypeError)
	assert.Contains(t, string(msg.Payload), "not saved")
	assert.Zero(t, scenes.count())
}

func TestHubUnknownScene(t *testing.T) {
	scenes := &memScenes{}
	hub := NewHub(scenes.load, scenes.save, bubble.WithLogger(slog.New(slog.DiscardHandler)))
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn, "user_x", "x", "scene_missing", "x")
		hub.Register(c)
		go c.WritePump(r.Context())
		c.ReadPump(r.Context())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	msg := readUntil(t, ctx, conn, TypeError)
	assert.Contains(t, string(msg.Payload), "scene unavailable")
}

func TestClientSendAndCloseConcurrently(t *testing.T) {
	for i := 0; i < 200; i++ {
		c := NewClient(nil, nil, "user_x", "x", "scene_x", "x")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Send(&Message{Type: TypePresenceUpdate})
		}()
		go func() {
			defer wg.Done()
			c.close()
		}()
		wg.Wait()
	}

	c := NewClient(nil, nil, "user_x", "x", "scene_x", "x")
	c.Send(&Message{Type: TypePresenceUpdate})
	c.close()
	c.close()
	c.Send(&Message{Type: TypePresenceUpdate})
	assert.Len(t, c.send, 1, "sends after close are dropped")
}
