package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Store keeps scenes, checkpoints and retention settings in SQLite.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scenes (
		id TEXT PRIMARY KEY,
		data BLOB,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		scene_id TEXT NOT NULL,
		name TEXT,
		description TEXT,
		created_by TEXT,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS checkpoints_scene_id ON checkpoints (scene_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS scene_settings (
		scene_id TEXT PRIMARY KEY,
		max_checkpoints INTEGER DEFAULT 10
	);`,
}

// NewStore opens (creating if needed) the SQLite database at dataSourceName.
func NewStore(dataSourceName string) (*Store, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY under the debounced
	// save bursts and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &Store{db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, id string) (*core.SceneDocument, error) {
	log := logrus.WithField("scene_id", id)
	log.Debug("Retrieving scene by ID")

	var data []byte
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, "SELECT data, updated_at FROM scenes WHERE id = ?", id).Scan(&data, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("Scene not found")
			return nil, fmt.Errorf("scene with id %s: %w", id, core.ErrSceneNotFound)
		}
		log.WithError(err).Error("Failed to retrieve scene")
		return nil, err
	}

	log.Info("Scene retrieved successfully")
	return &core.SceneDocument{
		ID:        id,
		Data:      data,
		UpdatedAt: time.UnixMilli(updatedAt),
	}, nil
}

func (s *Store) Put(ctx context.Context, doc *core.SceneDocument) error {
	if err := core.ValidateID(doc.ID); err != nil {
		return err
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	log := logrus.WithFields(logrus.Fields{
		"scene_id":    doc.ID,
		"data_length": len(doc.Data),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO scenes (id, data, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		doc.ID, []byte(doc.Data), updatedAt.UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to save scene")
		return err
	}

	log.Info("Scene saved successfully")
	return nil
}

func (s *Store) ListScenes(ctx context.Context) ([]core.SceneInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, updated_at FROM scenes ORDER BY updated_at DESC, id ASC")
	if err != nil {
		logrus.WithError(err).Error("Failed to list scenes")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close scene rows")
		}
	}()

	scenes := []core.SceneInfo{}
	for rows.Next() {
		var info core.SceneInfo
		if err := rows.Scan(&info.ID, &info.UpdatedAt); err != nil {
			return nil, err
		}
		scenes = append(scenes, info)
	}
	return scenes, rows.Err()
}

// CreateCheckpoint archives a copy of a scene, evicting the oldest checkpoints beyond the
// scene's retention limit.
func (s *Store) CreateCheckpoint(ctx context.Context, cp *core.Checkpoint) (string, error) {
	if err := core.ValidateID(cp.SceneID); err != nil {
		return "", err
	}
	id := ulid.Make().String()
	createdAt := int64(ulid.Now())

	log := logrus.WithFields(logrus.Fields{
		"checkpoint_id": id,
		"scene_id":      cp.SceneID,
		"data_length":   len(cp.Data),
	})

	settings, err := s.GetSceneSettings(ctx, cp.SceneID)
	if err != nil {
		settings = core.DefaultSettings(cp.SceneID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM checkpoints WHERE scene_id = ?", cp.SceneID).Scan(&count); err != nil {
		log.WithError(err).Error("Failed to count checkpoints")
		return "", err
	}

	if excess := count - settings.MaxCheckpoints + 1; excess > 0 {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM checkpoints WHERE id IN (SELECT id FROM checkpoints WHERE scene_id = ? ORDER BY created_at ASC, id ASC LIMIT ?)",
			cp.SceneID, excess)
		if err != nil {
			log.WithError(err).Error("Failed to evict oldest checkpoints")
			return "", err
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO checkpoints (id, scene_id, name, description, created_by, created_at, data) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, cp.SceneID, cp.Name, cp.Description, cp.CreatedBy, createdAt, cp.Data)
	if err != nil {
		log.WithError(err).Error("Failed to create checkpoint")
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Info("Checkpoint created successfully")
	return id, nil
}

func (s *Store) ListCheckpoints(ctx context.Context, sceneID string) ([]core.Checkpoint, error) {
	log := logrus.WithField("scene_id", sceneID)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, scene_id, name, description, created_by, created_at FROM checkpoints WHERE scene_id = ? ORDER BY created_at DESC, id DESC",
		sceneID)
	if err != nil {
		log.WithError(err).Error("Failed to list checkpoints")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close checkpoint rows")
		}
	}()

	var checkpoints []core.Checkpoint
	for rows.Next() {
		var cp core.Checkpoint
		var name, description, createdBy sql.NullString
		if err := rows.Scan(&cp.ID, &cp.SceneID, &name, &description, &createdBy, &cp.CreatedAt); err != nil {
			log.WithError(err).Error("Failed to scan checkpoint")
			continue
		}
		cp.Name = name.String
		cp.Description = description.String
		cp.CreatedBy = createdBy.String
		checkpoints = append(checkpoints, cp)
	}

	return checkpoints, rows.Err()
}

func (s *Store) GetCheckpoint(ctx context.Context, id string) (*core.Checkpoint, error) {
	log := logrus.WithField("checkpoint_id", id)

	var cp core.Checkpoint
	var name, description, createdBy sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, scene_id, name, description, created_by, created_at, data FROM checkpoints WHERE id = ?",
		id).Scan(&cp.ID, &cp.SceneID, &name, &description, &createdBy, &cp.CreatedAt, &cp.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Checkpoint with specified ID not found")
			return nil, fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
		}
		log.WithError(err).Error("Failed to retrieve checkpoint")
		return nil, err
	}
	cp.Name = name.String
	cp.Description = description.String
	cp.CreatedBy = createdBy.String

	return &cp, nil
}

func (s *Store) DeleteCheckpoint(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE id = ?", id)
	if err != nil {
		logrus.WithField("checkpoint_id", id).WithError(err).Error("Failed to delete checkpoint")
		return err
	}
	return requireRow(result, id)
}

func (s *Store) UpdateCheckpointMetadata(ctx context.Context, id, name, description string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE checkpoints SET name = ?, description = ? WHERE id = ?",
		name, description, id)
	if err != nil {
		logrus.WithField("checkpoint_id", id).WithError(err).Error("Failed to update checkpoint metadata")
		return err
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
	}
	return nil
}

func (s *Store) GetSceneSettings(ctx context.Context, sceneID string) (*core.SceneSettings, error) {
	var settings core.SceneSettings
	err := s.db.QueryRowContext(ctx,
		"SELECT scene_id, max_checkpoints FROM scene_settings WHERE scene_id = ?",
		sceneID).Scan(&settings.SceneID, &settings.MaxCheckpoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DefaultSettings(sceneID), nil
		}
		logrus.WithField("scene_id", sceneID).WithError(err).Error("Failed to retrieve scene settings")
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpdateSceneSettings(ctx context.Context, sceneID string, maxCheckpoints int) error {
	log := logrus.WithFields(logrus.Fields{
		"scene_id":        sceneID,
		"max_checkpoints": maxCheckpoints,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO scene_settings (scene_id, max_checkpoints) VALUES (?, ?) ON CONFLICT(scene_id) DO UPDATE SET max_checkpoints = excluded.max_checkpoints",
		sceneID, maxCheckpoints)
	if err != nil {
		log.WithError(err).Error("Failed to update scene settings")
		return err
	}

	log.Info("Scene settings updated successfully")
	return nil
}
