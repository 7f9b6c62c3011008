package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// SceneCollection is the namespace every scene document lives under.
const SceneCollection = "scenes"

var (
	ErrSceneNotFound      = errors.New("scene not found")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrInvalidID          = errors.New("invalid id")
)

type (
	// SceneDocument is the remote copy of one scene: the serialized snapshot and the
	// time it was last written. Writes replace the whole document.
	SceneDocument struct {
		ID        string
		Data      json.RawMessage
		UpdatedAt time.Time
	}

	// SceneStore is the keyed document collection backing the editor.
	SceneStore interface {
		// Get returns ErrSceneNotFound when no document exists for id.
		Get(ctx context.Context, id string) (*SceneDocument, error)
		// Put creates or fully replaces the document.
		Put(ctx context.Context, doc *SceneDocument) error
	}

	SceneInfo struct {
		ID        string
		UpdatedAt int64
	}

	// SceneIndex is implemented by stores able to enumerate their documents.
	SceneIndex interface {
		ListScenes(ctx context.Context) ([]SceneInfo, error)
	}

	// Checkpoint is a named archived copy of a scene.
	Checkpoint struct {
		ID          string `json:"id"`
		SceneID     string `json:"scene_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		CreatedBy   string `json:"created_by"`
		CreatedAt   int64  `json:"created_at"`
		Data        []byte `json:"data,omitempty"`
	}

	SceneSettings struct {
		SceneID        string `json:"scene_id"`
		MaxCheckpoints int    `json:"max_checkpoints"`
	}

	CheckpointStore interface {
		CreateCheckpoint(ctx context.Context, cp *Checkpoint) (string, error)
		ListCheckpoints(ctx context.Context, sceneID string) ([]Checkpoint, error)
		GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error)
		DeleteCheckpoint(ctx context.Context, id string) error
		UpdateCheckpointMetadata(ctx context.Context, id, name, description string) error
		GetSceneSettings(ctx context.Context, sceneID string) (*SceneSettings, error)
		UpdateSceneSettings(ctx context.Context, sceneID string, maxCheckpoints int) error
	}
)

const DefaultMaxCheckpoints = 10

// DefaultSettings returns the retention settings used when a scene has none stored.
func DefaultSettings(sceneID string) *SceneSettings {
	return &SceneSettings{SceneID: sceneID, MaxCheckpoints: DefaultMaxCheckpoints}
}

type documentJSON struct {
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt int64           `json:"updatedAt"`
}

// MarshalJSON encodes UpdatedAt as Unix milliseconds.
func (d SceneDocument) MarshalJSON() ([]byte, error) {
	out := documentJSON{ID: d.ID, Data: d.Data}
	if !d.UpdatedAt.IsZero() {
		out.UpdatedAt = d.UpdatedAt.UnixMilli()
	}
	if len(out.Data) == 0 {
		out.Data = json.RawMessage("null")
	}
	return json.Marshal(out)
}

func (d *SceneDocument) UnmarshalJSON(b []byte) error {
	var in documentJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d.ID = in.ID
	d.Data = in.Data
	if string(d.Data) == "null" {
		d.Data = nil
	}
	d.UpdatedAt = time.Time{}
	if in.UpdatedAt > 0 {
		d.UpdatedAt = time.UnixMilli(in.UpdatedAt)
	}
	return nil
}

// HasData reports whether the document carries a snapshot.
func (d *SceneDocument) HasData() bool {
	return d != nil && len(d.Data) > 0 && string(d.Data) != "null"
}

// ValidateID rejects ids that cannot be used as a storage key.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("%w: must not be empty or a dot directory", ErrInvalidID)
	}
	if path.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: must not be a path", ErrInvalidID)
	}
	return nil
}
