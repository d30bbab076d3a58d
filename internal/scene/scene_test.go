package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/bubblesets/internal/auth"
	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/store"
)

type memScenes struct {
	mu     sync.Mutex
	scenes map[string]store.Scene
}

func newMemScenes() *memScenes {
	return &memScenes{scenes: make(map[string]store.Scene)}
}

func (m *memScenes) CreateScene(_ context.Context, sc store.Scene) (store.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[sc.ID]; ok {
		return store.Scene{}, store.ErrDuplicate
	}
	sc.Version = 1
	sc.CreatedAt, sc.UpdatedAt = time.Now(), time.Now()
	m.scenes[sc.ID] = sc
	return sc, nil
}

func (m *memScenes) GetScene(_ context.Context, id string) (store.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenes[id]
	if !ok {
		return store.Scene{}, store.ErrNotFound
	}
	return sc, nil
}

func (m *memScenes) ListScenes(_ context.Context, ownerID string) ([]store.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Scene
	for _, sc := range m.scenes {
		if sc.OwnerID == ownerID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (m *memScenes) SaveSceneDocument(_ context.Context, id string, version int, doc json.RawMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenes[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if sc.Version != version {
		return 0, store.ErrConflict
	}
	sc.Document = doc
	sc.Version++
	m.scenes[id] = sc
	return sc.Version, nil
}

func (m *memScenes) DeleteScene(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.scenes, id)
	return nil
}

func newTestService() *Service {
	return NewService(newMemScenes(), bubble.WithLogger(slog.New(slog.DiscardHandler)))
}

func TestCreateAndOwnership(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	sc, err := s.Create(ctx, "Empty", "user_a", false)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Version)

	_, err = s.Get(ctx, sc.ID, "user_b")
	assert.True(t, errors.Is(err, ErrForbidden))
	_, err = s.Get(ctx, "scene_missing", "user_a")
	assert.True(t, errors.Is(err, ErrNotFound))

	doc, err := s.Document(ctx, sc.ID, "user_a")
	require.NoError(t, err)
	assert.Equal(t, sc.ID, doc.ID)
	assert.Empty(t, doc.Nodes)

	list, err := s.List(ctx, "user_a")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.True(t, errors.Is(s.Delete(ctx, sc.ID, "user_b"), ErrForbidden))
	require.NoError(t, s.Delete(ctx, sc.ID, "user_a"))
	assert.True(t, errors.Is(s.Authorize(ctx, sc.ID, "user_a"), ErrNotFound))
}

func TestGroupings(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	sc, err := s.Create(ctx, "Sample", "user_a", true)
	require.NoError(t, err)

	doc, err := s.Document(ctx, sc.ID, "user_a")
	require.NoError(t, err)
	require.Len(t, doc.Groupings, 2)

	var members []string
	for id := range doc.Nodes {
		members = append(members, id)
		if len(members) == 2 {
			break
		}
	}

	_, err = s.AddGrouping(ctx, sc.ID, "user_a", document.Grouping{Name: "empty"})
	assert.True(t, errors.Is(err, ErrInvalidGrouping))
	_, err = s.AddGrouping(ctx, sc.ID, "user_a", document.Grouping{Members: []string{"node_missing"}})
	assert.True(t, errors.Is(err, ErrInvalidGrouping))

	g, err := s.AddGrouping(ctx, sc.ID, "user_a", document.Grouping{Name: "pair", Members: members})
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)

	doc, err = s.Document(ctx, sc.ID, "user_a")
	require.NoError(t, err)
	assert.Len(t, doc.Groupings, 3)

	require.NoError(t, s.RemoveGrouping(ctx, sc.ID, "user_a", g.ID))
	assert.True(t, errors.Is(s.RemoveGrouping(ctx, sc.ID, "user_a", g.ID), ErrNotFound))

	updated, err := s.Get(ctx, sc.ID, "user_a")
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)
}

func TestStaleSaveConflicts(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	sc, err := s.Create(ctx, "Sample", "user_a", true)
	require.NoError(t, err)

	// a live session holds the document it loaded
	live, version, err := s.Load(ctx, sc.ID)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	var member string
	for id := range live.Nodes {
		member = id
		break
	}
	g, err := s.AddGrouping(ctx, sc.ID, "user_a", document.Grouping{Name: "solo", Members: []string{member}})
	require.NoError(t, err)

	_, err = s.Save(ctx, live, version)
	assert.ErrorIs(t, err, ErrConflict)

	doc, err := s.Document(ctx, sc.ID, "user_a")
	require.NoError(t, err)
	assert.Contains(t, doc.Groupings, g.ID)

	// saving against the current version goes through
	current, version, err := s.Load(ctx, sc.ID)
	require.NoError(t, err)
	next, err := s.Save(ctx, current, version)
	require.NoError(t, err)
	assert.Equal(t, version+1, next)

	rec := httptest.NewRecorder()
	handleServiceError(rec, fmt.Errorf("save scene: %w", ErrConflict))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOutline(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	sc, err := s.Create(ctx, "Sample", "user_a", true)
	require.NoError(t, err)

	out, err := s.Outline(ctx, sc.ID, "user_a")
	require.NoError(t, err)
	assert.Equal(t, 1280, out.Width)
	assert.Len(t, out.Outlines, 2)
	for id, pts := range out.Outlines {
		assert.NotEmpty(t, pts, id)
	}
	require.NotEmpty(t, out.Commands)
	assert.Equal(t, "clear", out.Commands[0].Op)
}

func newRouter(h *Handler, userID string) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	})
	h.Routes(api)
	return r
}

func TestHandlers(t *testing.T) {
	s := newTestService()
	router := newRouter(NewHandler(s), "user_a")
	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
		return rec
	}

	rec := do(http.MethodPost, "/api/scenes", map[string]any{"name": "", "sample": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/api/scenes", map[string]any{"name": "Demo", "sample": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sc Scene
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sc))

	rec = do(http.MethodGet, "/api/scenes/"+sc.ID+"/document", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc document.Scene
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Len(t, doc.Nodes, 8)

	rec = do(http.MethodPost, "/api/scenes/"+sc.ID+"/groupings", document.Grouping{Members: []string{"nope"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var member string
	for id := range doc.Nodes {
		member = id
		break
	}
	rec = do(http.MethodPut, "/api/scenes/"+sc.ID+"/groupings/grp_solo", document.Grouping{Members: []string{member}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var g document.Grouping
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&g))
	assert.Equal(t, "grp_solo", g.ID)

	rec = do(http.MethodGet, "/api/scenes/"+sc.ID+"/outline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out Outline
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Len(t, out.Outlines, 3)

	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/api/scenes/"+sc.ID+"/groupings/grp_solo", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/scenes/scene_missing", nil).Code)

	other := newRouter(NewHandler(s), "user_b")
	rec = httptest.NewRecorder()
	other.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenes/"+sc.ID, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/api/scenes/"+sc.ID, nil).Code)
}
