package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/core"

	"github.com/sirupsen/logrus"
)

// Store keeps one JSON file per scene.
type Store struct {
	basePath string
}

// NewStore creates a filesystem-backed scene store rooted at basePath. Each scene is one
// JSON file under <basePath>/scenes.
func NewStore(basePath string) (*Store, error) {
	dir := filepath.Join(basePath, core.SceneCollection)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scene directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) scenePath(id string) (string, error) {
	if err := core.ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, core.SceneCollection, id+".json"), nil
}

func (s *Store) Get(ctx context.Context, id string) (*core.SceneDocument, error) {
	filePath, err := s.scenePath(id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"scene_id": id, "file_path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Scene file not found")
			return nil, fmt.Errorf("scene with id %s: %w", id, core.ErrSceneNotFound)
		}
		log.WithError(err).Error("Failed to read scene file")
		return nil, err
	}

	var doc core.SceneDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.WithError(err).Error("Failed to unmarshal scene file")
		return nil, err
	}
	doc.ID = id

	log.Info("Scene retrieved successfully")
	return &doc, nil
}

func (s *Store) Put(ctx context.Context, doc *core.SceneDocument) error {
	filePath, err := s.scenePath(doc.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"scene_id": doc.ID, "file_path": filePath})

	stored := *doc
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(stored)
	if err != nil {
		log.WithError(err).Error("Failed to marshal scene for saving")
		return err
	}

	// Write to a sibling file and rename so readers never observe a partial document.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write scene file")
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		log.WithError(err).Error("Failed to replace scene file")
		return err
	}

	log.WithField("data_length", len(doc.Data)).Info("Scene saved successfully")
	return nil
}

func (s *Store) ListScenes(ctx context.Context) ([]core.SceneInfo, error) {
	dir := filepath.Join(s.basePath, core.SceneCollection)
	log := logrus.WithField("path", dir)

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []core.SceneInfo{}, nil
		}
		log.WithError(err).Error("Failed to read scene directory")
		return nil, err
	}

	scenes := make([]core.SceneInfo, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(file.Name(), ".json")
		doc, err := s.Get(ctx, id)
		if err != nil {
			log.WithError(err).Warnf("Failed to read scene %s, skipping", id)
			continue
		}
		scenes = append(scenes, core.SceneInfo{ID: id, UpdatedAt: doc.UpdatedAt.UnixMilli()})
	}

	sort.Slice(scenes, func(i, j int) bool {
		if scenes[i].UpdatedAt == scenes[j].UpdatedAt {
			return scenes[i].ID < scenes[j].ID
		}
		return scenes[i].UpdatedAt > scenes[j].UpdatedAt
	})

	log.Infof("Listed %d scenes", len(scenes))
	return scenes, nil
}
