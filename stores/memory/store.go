package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Store keeps scenes and checkpoints in process memory.
type Store struct {
	mu          sync.RWMutex
	scenes      map[string]core.SceneDocument
	checkpoints map[string]core.Checkpoint
	settings    map[string]core.SceneSettings
}

// NewStore creates an in-memory scene store. Contents are lost on restart.
func NewStore() *Store {
	return &Store{
		scenes:      make(map[string]core.SceneDocument),
		checkpoints: make(map[string]core.Checkpoint),
		settings:    make(map[string]core.SceneSettings),
	}
}

func (s *Store) Get(ctx context.Context, id string) (*core.SceneDocument, error) {
	log := logrus.WithField("scene_id", id)

	s.mu.RLock()
	doc, ok := s.scenes[id]
	s.mu.RUnlock()

	if !ok {
		log.Debug("Scene not found")
		return nil, fmt.Errorf("scene with id %s: %w", id, core.ErrSceneNotFound)
	}

	doc.Data = append([]byte(nil), doc.Data...)
	log.Info("Scene retrieved successfully")
	return &doc, nil
}

func (s *Store) Put(ctx context.Context, doc *core.SceneDocument) error {
	if err := core.ValidateID(doc.ID); err != nil {
		return err
	}

	stored := *doc
	stored.Data = append([]byte(nil), doc.Data...)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	s.scenes[doc.ID] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"scene_id":    doc.ID,
		"data_length": len(doc.Data),
	}).Info("Scene saved successfully")
	return nil
}

func (s *Store) ListScenes(ctx context.Context) ([]core.SceneInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scenes := make([]core.SceneInfo, 0, len(s.scenes))
	for id, doc := range s.scenes {
		scenes = append(scenes, core.SceneInfo{ID: id, UpdatedAt: doc.UpdatedAt.UnixMilli()})
	}

	sort.Slice(scenes, func(i, j int) bool {
		if scenes[i].UpdatedAt == scenes[j].UpdatedAt {
			return scenes[i].ID < scenes[j].ID
		}
		return scenes[i].UpdatedAt > scenes[j].UpdatedAt
	})

	return scenes, nil
}

func (s *Store) CreateCheckpoint(ctx context.Context, cp *core.Checkpoint) (string, error) {
	if err := core.ValidateID(cp.SceneID); err != nil {
		return "", err
	}

	id := ulid.Make().String()
	stored := *cp
	stored.ID = id
	stored.CreatedAt = int64(ulid.Now())
	stored.Data = append([]byte(nil), cp.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()

	limit := core.DefaultMaxCheckpoints
	if settings, ok := s.settings[cp.SceneID]; ok {
		limit = settings.MaxCheckpoints
	}

	existing := s.sceneCheckpointsLocked(cp.SceneID)
	for len(existing) >= limit && len(existing) > 0 {
		// oldest first
		delete(s.checkpoints, existing[len(existing)-1].ID)
		existing = existing[:len(existing)-1]
	}

	s.checkpoints[id] = stored
	logrus.WithFields(logrus.Fields{
		"checkpoint_id": id,
		"scene_id":      cp.SceneID,
		"data_length":   len(cp.Data),
	}).Info("Checkpoint created successfully")
	return id, nil
}

// sceneCheckpointsLocked returns the checkpoints of a scene, newest first.
func (s *Store) sceneCheckpointsLocked(sceneID string) []core.Checkpoint {
	var out []core.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.SceneID == sceneID {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

func (s *Store) ListCheckpoints(ctx context.Context, sceneID string) ([]core.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sceneCheckpointsLocked(sceneID)
	for i := range list {
		list[i].Data = nil
	}
	return list, nil
}

func (s *Store) GetCheckpoint(ctx context.Context, id string) (*core.Checkpoint, error) {
	s.mu.RLock()
	cp, ok := s.checkpoints[id]
	s.mu.RUnlock()

	if !ok {
		logrus.WithField("checkpoint_id", id).Warn("Checkpoint with specified ID not found")
		return nil, fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
	}
	return &cp, nil
}

func (s *Store) DeleteCheckpoint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkpoints[id]; !ok {
		return fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
	}
	delete(s.checkpoints, id)
	return nil
}

func (s *Store) UpdateCheckpointMetadata(ctx context.Context, id, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
	}
	cp.Name = name
	cp.Description = description
	s.checkpoints[id] = cp
	return nil
}

func (s *Store) GetSceneSettings(ctx context.Context, sceneID string) (*core.SceneSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if settings, ok := s.settings[sceneID]; ok {
		return &settings, nil
	}
	return core.DefaultSettings(sceneID), nil
}

func (s *Store) UpdateSceneSettings(ctx context.Context, sceneID string, maxCheckpoints int) error {
	if sceneID == "" {
		return fmt.Errorf("scene id is required")
	}

	s.mu.Lock()
	s.settings[sceneID] = core.SceneSettings{SceneID: sceneID, MaxCheckpoints: maxCheckpoints}
	s.mu.Unlock()
	return nil
}
