package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/document"
)

// ErrConflict is returned by a Saver when the stored scene changed since the
// version the room holds.
var ErrConflict = errors.New("scene changed outside the room")

// Loader fetches the stored scene a room opens with and its version.
type Loader func(ctx context.Context, sceneID string) (*document.Scene, int, error)

// Saver stores the scene of a room if the stored version is still version, and
// returns the new version.
type Saver func(ctx context.Context, doc *document.Scene, version int) (int, error)

const saveTimeout = 10 * time.Second

type Room struct {
	sceneID  string
	mu       sync.RWMutex
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	state    *SceneState
	version  int // stored version the state derives from, only touched by Run
}

func newRoom(sceneID string) *Room {
	return &Room{
		sceneID:  sceneID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
}

// broadcast sends msg to every client except excludeClientID. It only takes the
// room's client lock, so it is safe from frame callbacks.
func (r *Room) broadcast(msg *Message, excludeClientID string) {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func (r *Room) broadcastFrame(f *FramePayload) {
	msg, err := newMessage(TypeFrame, f)
	if err != nil {
		slog.Error("marshal frame", "scene", r.sceneID, "error", err)
		return
	}
	msg.SceneID = r.sceneID
	r.broadcast(msg, "")
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sceneID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	load       Loader
	save       Saver
	opts       []bubble.Option
}

// NewHub creates a hub. opts are the outline defaults of every room.
func NewHub(load Loader, save Saver, opts ...bubble.Option) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		load:       load,
		save:       save,
		opts:       opts,
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.stop:
			h.saveAll()
			return
		}
	}
}

// Register adds client to the room of its scene. It returns false once the hub
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Stop saves every changed scene and ends Run.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok {
		var err error
		room, err = h.openRoom(client.SceneID)
		if err != nil {
			h.mu.Unlock()
			slog.Warn("open scene failed", "scene", client.SceneID, "error", err)
			if msg, merr := newMessage(TypeError, ErrorPayload{Message: "scene unavailable"}); merr == nil {
				client.Send(msg)
			}
			client.close()
			return
		}
		h.rooms[client.SceneID] = room
	}
	room.mu.Lock()
	room.clients[client.ClientID] = client
	room.mu.Unlock()
	h.mu.Unlock()

	doc, seq, _, err := room.state.Snapshot()
	if err != nil {
		slog.Error("snapshot scene", "scene", client.SceneID, "error", err)
	} else if msg, err := newMessage(TypeWelcome, WelcomePayload{ClientID: client.ClientID, ServerSeq: seq, Scene: doc}); err == nil {
		client.Send(msg)
	}
	if msg := room.presence.StateMessage(); msg != nil {
		client.Send(msg)
	}
	if f := room.state.LastFrame(); f != nil {
		if msg, err := newMessage(TypeFrame, f); err == nil {
			msg.SceneID = room.sceneID
			client.Send(msg)
		}
	}

	joinMsg, err := newMessage(TypePresenceJoin, PresenceJoinPayload{
		ClientID:    client.ClientID,
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	if err == nil {
		joinMsg.UserID = client.UserID
		room.broadcast(joinMsg, client.ClientID)
	}

	slog.Info("client joined", "user", client.UserID, "scene", client.SceneID)
}

// openRoom loads the scene. Caller holds h.mu.
func (h *Hub) openRoom(sceneID string) (*Room, error) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	doc, version, err := h.load(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	room := newRoom(sceneID)
	room.version = version
	room.state, err = NewSceneState(doc, room.broadcastFrame, h.opts...)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok {
		h.mu.Unlock()
		return
	}

	room.mu.Lock()
	if _, ok := room.clients[client.ClientID]; !ok {
		room.mu.Unlock()
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ClientID)
	empty := len(room.clients) == 0
	room.mu.Unlock()
	client.close()
	room.presence.Remove(client.ClientID)

	if empty {
		delete(h.rooms, client.SceneID)
	}
	h.mu.Unlock()

	if empty {
		h.saveRoom(room)
		room.state.Close()
	} else {
		leaveMsg, err := newMessage(TypePresenceLeave, PresenceLeavePayload{ClientID: client.ClientID, UserID: client.UserID})
		if err == nil {
			leaveMsg.UserID = client.UserID
			room.broadcast(leaveMsg, "")
		}
	}

	slog.Info("client left", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) saveRoom(room *Room) {
	doc, seq, dirty, err := room.state.Snapshot()
	if err != nil {
		slog.Error("snapshot scene", "scene", room.sceneID, "error", err)
		return
	}
	if !dirty {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	version, err := h.save(ctx, doc, room.version)
	if errors.Is(err, ErrConflict) {
		slog.Error("scene changed outside the room, edits not saved", "scene", room.sceneID, "version", room.version, "seq", seq)
		if msg, merr := newMessage(TypeError, ErrorPayload{Message: "scene changed elsewhere, live edits were not saved"}); merr == nil {
			msg.SceneID = room.sceneID
			room.broadcast(msg, "")
		}
		return
	}
	if err != nil {
		slog.Error("save scene", "scene", room.sceneID, "error", err)
		return
	}
	room.version = version
	room.state.MarkSaved(seq)
	slog.Info("scene saved", "scene", room.sceneID, "seq", seq, "version", version)
}

func (h *Hub) saveAll() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.saveRoom(r)
	}
}

func (h *Hub) room(sceneID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[sceneID]
	return r, ok
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	room, ok := h.room(sender.SceneID)
	if !ok {
		return
	}
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(room, sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(room, sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}
	presence.DisplayName = sender.DisplayName
	room.presence.Update(sender.ClientID, &presence)

	out, err := newMessage(TypePresenceUpdate, presence)
	if err != nil {
		return
	}
	out.UserID = sender.UserID
	out.ClientID = sender.ClientID
	room.broadcast(out, sender.ClientID)
}

func (h *Hub) handleOpSubmit(room *Room, sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		slog.Warn("invalid operation payload", "error", err, "user", sender.UserID)
		return
	}
	op := submit.Operation

	seq, err := room.state.ApplyOperation(op)
	if err != nil {
		slog.Debug("operation rejected", "op", op.Type, "error", err, "user", sender.UserID)
		if nack, merr := newMessage(TypeOpNack, OperationNackPayload{OperationID: op.ID, Reason: err.Error()}); merr == nil {
			sender.Send(nack)
		}
		return
	}
	if op.Type == OpGroupingRemove {
		room.presence.ForgetGrouping(op.GroupingID)
	}

	if ack, err := newMessage(TypeOpAck, OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       seq,
		ServerTimestamp: time.Now().UnixMilli(),
	}); err == nil {
		sender.Send(ack)
	}

	if out, err := newMessage(TypeOpBroadcast, OperationBroadcastPayload{Operation: op, UserID: sender.UserID, ServerSeq: seq}); err == nil {
		out.Seq = seq
		room.broadcast(out, sender.ClientID)
	}
}
