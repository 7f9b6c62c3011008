package stores

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/godwinm8/Stateless-2D-Editor/config"
	"github.com/godwinm8/Stateless-2D-Editor/core"
)

func TestGetStore_DefaultsToMemory(t *testing.T) {
	store, err := GetStore(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatalf("GetStore() failed: %v", err)
	}
	if _, ok := store.(core.CheckpointStore); !ok {
		t.Error("expected memory store to support checkpoints")
	}
}

func TestGetStore_Filesystem(t *testing.T) {
	store, err := GetStore(context.Background(), config.StorageConfig{
		Type: "filesystem",
		Path: filepath.Join(t.TempDir(), "data"),
	})
	if err != nil {
		t.Fatalf("GetStore() failed: %v", err)
	}
	if _, ok := store.(core.SceneIndex); !ok {
		t.Error("expected filesystem store to implement SceneIndex")
	}
}

func TestGetStore_Remote(t *testing.T) {
	store, err := GetStore(context.Background(), config.StorageConfig{
		Type: "remote",
		URL:  "http://localhost:3002",
	})
	if err != nil {
		t.Fatalf("GetStore() failed: %v", err)
	}
	if _, ok := store.(core.SceneIndex); ok {
		t.Error("remote store should not advertise an index")
	}
}

func TestGetStore_S3RequiresBucket(t *testing.T) {
	if _, err := GetStore(context.Background(), config.StorageConfig{Type: "s3"}); err == nil {
		t.Error("expected error without a bucket")
	}
}

func TestGetStore_Unknown(t *testing.T) {
	if _, err := GetStore(context.Background(), config.StorageConfig{Type: "etcd"}); err == nil {
		t.Error("expected error for an unknown storage type")
	}
}
