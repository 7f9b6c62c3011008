package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/core"
)

var (
	_ core.SceneStore = (*Store)(nil)
	_ core.SceneIndex = (*Store)(nil)
)

func TestNewStore_CreatesDirectory(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "nested", "path")
	store, err := NewStore(tempDir)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}

	if _, err := os.Stat(filepath.Join(tempDir, core.SceneCollection)); os.IsNotExist(err) {
		t.Error("NewStore() did not create the scene collection directory")
	}
}

func TestPut_WritesFile(t *testing.T) {
	tempDir := t.TempDir()
	store, _ := NewStore(tempDir)
	ctx := context.Background()

	doc := &core.SceneDocument{ID: "abc123", Data: json.RawMessage(`{"objects":[]}`)}
	if err := store.Put(ctx, doc); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	filePath := filepath.Join(tempDir, core.SceneCollection, "abc123.json")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Error("Put() did not create file on disk")
	}
	if _, err := os.Stat(filePath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Put() left a temporary file behind")
	}
}

func TestGet_RoundTrip(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	ctx := context.Background()

	updated := time.UnixMilli(1700000000000)
	doc := &core.SceneDocument{ID: "s1", Data: json.RawMessage(`{"objects":[{"type":"rect"}]}`), UpdatedAt: updated}
	if err := store.Put(ctx, doc); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got.Data) != `{"objects":[{"type":"rect"}]}` {
		t.Errorf("data mismatch: got %q", got.Data)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt mismatch: got %v, want %v", got.UpdatedAt, updated)
	}
}

func TestPut_Overwrites(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	ctx := context.Background()

	_ = store.Put(ctx, &core.SceneDocument{ID: "s1", Data: json.RawMessage(`{"v":1}`)})
	_ = store.Put(ctx, &core.SceneDocument{ID: "s1", Data: json.RawMessage(`{"v":2}`)})

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got.Data) != `{"v":2}` {
		t.Errorf("expected replaced document, got %q", got.Data)
	}
}

func TestGet_NotFound(t *testing.T) {
	store, _ := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), "missing-id")
	if !errors.Is(err, core.ErrSceneNotFound) {
		t.Errorf("expected ErrSceneNotFound, got %v", err)
	}
}

func TestGet_PathTraversal(t *testing.T) {
	store, _ := NewStore(t.TempDir())

	for _, id := range []string{"../etc/passwd", "a/b", ".."} {
		if _, err := store.Get(context.Background(), id); !errors.Is(err, core.ErrInvalidID) {
			t.Errorf("Get(%q) should reject the id, got %v", id, err)
		}
	}
}

func TestListScenes(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	ctx := context.Background()

	_ = store.Put(ctx, &core.SceneDocument{ID: "old", Data: json.RawMessage(`{}`), UpdatedAt: time.UnixMilli(1000)})
	_ = store.Put(ctx, &core.SceneDocument{ID: "new", Data: json.RawMessage(`{}`), UpdatedAt: time.UnixMilli(2000)})

	scenes, err := store.ListScenes(ctx)
	if err != nil {
		t.Fatalf("ListScenes() failed: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(scenes))
	}
	if scenes[0].ID != "new" {
		t.Errorf("expected newest scene first, got %s", scenes[0].ID)
	}
}
