package stores

import (
	"context"
	"fmt"

	"github.com/godwinm8/Stateless-2D-Editor/config"
	"github.com/godwinm8/Stateless-2D-Editor/core"
	"github.com/godwinm8/Stateless-2D-Editor/stores/aws"
	"github.com/godwinm8/Stateless-2D-Editor/stores/filesystem"
	"github.com/godwinm8/Stateless-2D-Editor/stores/memory"
	"github.com/godwinm8/Stateless-2D-Editor/stores/remote"
	"github.com/godwinm8/Stateless-2D-Editor/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the scene store selected by cfg.Type. Backends may additionally implement
// core.SceneIndex, core.CheckpointStore and io.Closer.
func GetStore(ctx context.Context, cfg config.StorageConfig) (core.SceneStore, error) {
	var (
		store core.SceneStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.Path
		store, err = filesystem.NewStore(cfg.Path)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DSN
		storageField["cgo"] = sqlite.CGOEnabled
		store, err = sqlite.NewStore(cfg.DSN)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage.bucket must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.Bucket
		storageField["endpoint"] = cfg.Endpoint
		store, err = aws.NewStore(ctx, cfg.Bucket, cfg.Endpoint)
	case "remote":
		storageField["url"] = cfg.URL
		var opts []remote.Option
		if cfg.Token != "" {
			opts = append(opts, remote.WithToken(cfg.Token))
		}
		store = remote.NewStore(cfg.URL, opts...)
	case "", "memory":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		logrus.WithFields(storageField).WithError(err).Error("Failed to open storage")
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
