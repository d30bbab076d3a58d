package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type Scene struct {
	ID        string
	OwnerID   string
	Name      string
	Document  json.RawMessage
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

const sceneColumns = `id, owner_id, name, document, version, created_at, updated_at`

func (s *Store) CreateScene(ctx context.Context, sc Scene) (Scene, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO scenes (id, owner_id, name, document) VALUES ($1, $2, $3, $4)
		 RETURNING `+sceneColumns,
		sc.ID, sc.OwnerID, sc.Name, []byte(sc.Document))
	out, err := scanScene(row)
	if err != nil {
		return Scene{}, fmt.Errorf("create scene: %w", mapError(err))
	}
	return out, nil
}

func (s *Store) GetScene(ctx context.Context, id string) (Scene, error) {
	out, err := scanScene(s.pool.QueryRow(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE id = $1`, id))
	if err != nil {
		return Scene{}, fmt.Errorf("get scene: %w", mapError(err))
	}
	return out, nil
}

func (s *Store) ListScenes(ctx context.Context, ownerID string) ([]Scene, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	scenes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Scene, error) {
		return scanScene(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	return scenes, nil
}

// SaveSceneDocument replaces the document if the stored version is still
// version, and bumps it. It returns the new version, or ErrConflict when the
// scene was saved in between.
func (s *Store) SaveSceneDocument(ctx context.Context, id string, version int, doc json.RawMessage) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx,
		`UPDATE scenes SET document = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2 RETURNING version`,
		id, version, []byte(doc)).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM scenes WHERE id = $1)`, id).Scan(&exists); err != nil {
			return 0, fmt.Errorf("save scene %s: %w", id, err)
		}
		if exists {
			return 0, fmt.Errorf("save scene %s at version %d: %w", id, version, ErrConflict)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("save scene %s: %w", id, mapError(err))
	}
	return next, nil
}

func (s *Store) DeleteScene(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete scene %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanScene(row rowScanner) (Scene, error) {
	var sc Scene
	var doc []byte
	err := row.Scan(&sc.ID, &sc.OwnerID, &sc.Name, &doc, &sc.Version, &sc.CreatedAt, &sc.UpdatedAt)
	sc.Document = doc
	return sc, err
}
