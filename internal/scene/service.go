package scene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/store"
	"github.com/inamate/bubblesets/internal/typeid"
)

var (
	ErrNotFound        = errors.New("scene not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidGrouping = errors.New("invalid grouping")
	ErrConflict        = errors.New("scene changed concurrently")
)

// Scenes is the scene storage the service needs.
type Scenes interface {
	CreateScene(ctx context.Context, sc store.Scene) (store.Scene, error)
	GetScene(ctx context.Context, id string) (store.Scene, error)
	ListScenes(ctx context.Context, ownerID string) ([]store.Scene, error)
	SaveSceneDocument(ctx context.Context, id string, version int, doc json.RawMessage) (int, error)
	DeleteScene(ctx context.Context, id string) error
}

type Service struct {
	scenes Scenes
	opts   []bubble.Option
}

// NewService creates the service. opts are the outline defaults used when
// rendering.
func NewService(scenes Scenes, opts ...bubble.Option) *Service {
	return &Service{scenes: scenes, opts: opts}
}

type Scene struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	Version   int    `json:"version"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Outline is a rendered scene: draw commands for a Canvas2D context plus the
// outline polygons in model coordinates.
type Outline struct {
	Width    int                         `json:"width"`
	Height   int                         `json:"height"`
	Commands []canvas.DrawCommand        `json:"commands"`
	Outlines map[string][]document.Point `json:"outlines"`
}

func (s *Service) Create(ctx context.Context, name, ownerID string, sample bool) (*Scene, error) {
	id := typeid.NewSceneID()
	doc := document.NewEmptyScene(id, name)
	if sample {
		doc = document.NewSampleScene(id)
		doc.Name = name
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}

	sc, err := s.scenes.CreateScene(ctx, store.Scene{ID: id, OwnerID: ownerID, Name: name, Document: data})
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}
	return toScene(sc), nil
}

func (s *Service) Get(ctx context.Context, sceneID, userID string) (*Scene, error) {
	sc, err := s.owned(ctx, sceneID, userID)
	if err != nil {
		return nil, err
	}
	return toScene(sc), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Scene, error) {
	rows, err := s.scenes.ListScenes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	out := make([]Scene, len(rows))
	for i, sc := range rows {
		out[i] = *toScene(sc)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, sceneID, userID string) error {
	if _, err := s.owned(ctx, sceneID, userID); err != nil {
		return err
	}
	if err := s.scenes.DeleteScene(ctx, sceneID); err != nil {
		return fmt.Errorf("delete scene: %w", translate(err))
	}
	return nil
}

// Authorize reports whether userID may open sceneID.
func (s *Service) Authorize(ctx context.Context, sceneID, userID string) error {
	_, err := s.owned(ctx, sceneID, userID)
	return err
}

// Document returns the stored scene document.
func (s *Service) Document(ctx context.Context, sceneID, userID string) (*document.Scene, error) {
	sc, err := s.owned(ctx, sceneID, userID)
	if err != nil {
		return nil, err
	}
	return decode(sc)
}

// Load returns the stored document and its version without an ownership check.
func (s *Service) Load(ctx context.Context, sceneID string) (*document.Scene, int, error) {
	sc, err := s.scenes.GetScene(ctx, sceneID)
	if err != nil {
		return nil, 0, fmt.Errorf("load scene: %w", translate(err))
	}
	doc, err := decode(sc)
	if err != nil {
		return nil, 0, err
	}
	return doc, sc.Version, nil
}

// Save stores doc as the version after version. It fails with ErrConflict when
// the stored scene is no longer at version.
func (s *Service) Save(ctx context.Context, doc *document.Scene, version int) (int, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal scene: %w", err)
	}
	v, err := s.scenes.SaveSceneDocument(ctx, doc.ID, version, data)
	if err != nil {
		return 0, fmt.Errorf("save scene: %w", translate(err))
	}
	return v, nil
}

// edit applies fn to the stored document and saves it against the version it
// was read at.
func (s *Service) edit(ctx context.Context, sceneID, userID string, fn func(*document.Scene) error) error {
	sc, err := s.owned(ctx, sceneID, userID)
	if err != nil {
		return err
	}
	doc, err := decode(sc)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	_, err = s.Save(ctx, doc, sc.Version)
	return err
}

// AddGrouping adds or replaces a grouping. Every referenced node and edge must
// exist.
func (s *Service) AddGrouping(ctx context.Context, sceneID, userID string, g document.Grouping) (*document.Grouping, error) {
	if g.ID == "" {
		g.ID = typeid.NewGroupingID()
	}
	err := s.edit(ctx, sceneID, userID, func(doc *document.Scene) error {
		if err := checkGrouping(doc, g); err != nil {
			return err
		}
		doc.Groupings[g.ID] = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) RemoveGrouping(ctx context.Context, sceneID, userID, groupingID string) error {
	return s.edit(ctx, sceneID, userID, func(doc *document.Scene) error {
		if _, ok := doc.Groupings[groupingID]; !ok {
			return fmt.Errorf("grouping %s: %w", groupingID, ErrNotFound)
		}
		delete(doc.Groupings, groupingID)
		return nil
	})
}

// Outline renders the scene at its own size.
func (s *Service) Outline(ctx context.Context, sceneID, userID string) (*Outline, error) {
	doc, err := s.Document(ctx, sceneID, userID)
	if err != nil {
		return nil, err
	}
	rec := canvas.NewRecorder(float64(doc.Width), float64(doc.Height), 1)
	outlines, err := document.Render(doc, rec, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("outline scene: %w", err)
	}

	out := &Outline{
		Width:    doc.Width,
		Height:   doc.Height,
		Commands: rec.Flush(),
		Outlines: make(map[string][]document.Point, len(outlines)),
	}
	for id, path := range outlines {
		pts := make([]document.Point, len(path))
		for i, p := range path {
			pts[i] = document.Point{X: p.X, Y: p.Y}
		}
		out.Outlines[id] = pts
	}
	return out, nil
}

func (s *Service) owned(ctx context.Context, sceneID, userID string) (store.Scene, error) {
	sc, err := s.scenes.GetScene(ctx, sceneID)
	if err != nil {
		return store.Scene{}, fmt.Errorf("get scene: %w", translate(err))
	}
	if sc.OwnerID != userID {
		return store.Scene{}, ErrForbidden
	}
	return sc, nil
}

func checkGrouping(doc *document.Scene, g document.Grouping) error {
	if len(g.Members) == 0 {
		return fmt.Errorf("no members: %w", ErrInvalidGrouping)
	}
	for _, ids := range [][]string{g.Members, g.Avoid} {
		for _, id := range ids {
			if _, ok := doc.Nodes[id]; !ok {
				return fmt.Errorf("unknown node %q: %w", id, ErrInvalidGrouping)
			}
		}
	}
	for _, id := range g.Edges {
		if _, ok := doc.Edges[id]; !ok {
			return fmt.Errorf("unknown edge %q: %w", id, ErrInvalidGrouping)
		}
	}
	return nil
}

func decode(sc store.Scene) (*document.Scene, error) {
	var doc document.Scene
	if err := json.Unmarshal(sc.Document, &doc); err != nil {
		return nil, fmt.Errorf("decode scene %s: %w", sc.ID, err)
	}
	if doc.Nodes == nil {
		doc.Nodes = map[string]document.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = map[string]document.Edge{}
	}
	if doc.Groupings == nil {
		doc.Groupings = map[string]document.Grouping{}
	}
	return &doc, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	}
	return err
}

func toScene(sc store.Scene) *Scene {
	return &Scene{
		ID:        sc.ID,
		Name:      sc.Name,
		OwnerID:   sc.OwnerID,
		Version:   sc.Version,
		CreatedAt: sc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: sc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
