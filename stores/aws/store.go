package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// objectAPI is the subset of the S3 client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store keeps scenes as S3 objects.
type Store struct {
	s3Client objectAPI
	bucket   string
}

// NewStore creates an S3-backed scene store. A non-empty endpoint targets an S3 compatible
// service (path-style addressing).
func NewStore(ctx context.Context, bucketName, endpoint string) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return newStore(s3Client, bucketName), nil
}

func newStore(client objectAPI, bucket string) *Store {
	return &Store{s3Client: client, bucket: bucket}
}

func sceneKey(id string) (string, error) {
	if err := core.ValidateID(id); err != nil {
		return "", err
	}
	return path.Join(core.SceneCollection, id), nil
}

func (s *Store) Get(ctx context.Context, id string) (*core.SceneDocument, error) {
	key, err := sceneKey(id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"scene_id": id, "key": key})

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Debug("Scene object not found")
			return nil, fmt.Errorf("scene with id %s: %w", id, core.ErrSceneNotFound)
		}
		return nil, fmt.Errorf("failed to get scene %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene data: %w", err)
	}

	var doc core.SceneDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene data: %w", err)
	}
	doc.ID = id

	log.Info("Scene retrieved successfully")
	return &doc, nil
}

func (s *Store) Put(ctx context.Context, doc *core.SceneDocument) error {
	key, err := sceneKey(doc.ID)
	if err != nil {
		return err
	}

	stored := *doc
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save scene %s: %w", doc.ID, err)
	}

	logrus.WithFields(logrus.Fields{
		"scene_id":    doc.ID,
		"data_length": len(doc.Data),
	}).Info("Scene saved successfully")
	return nil
}

func (s *Store) ListScenes(ctx context.Context) ([]core.SceneInfo, error) {
	prefix := core.SceneCollection + "/"
	scenes := []core.SceneInfo{}

	var token *string
	for {
		output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list scenes: %w", err)
		}

		for _, object := range output.Contents {
			id := strings.TrimPrefix(aws.ToString(object.Key), prefix)
			if id == "" {
				continue
			}
			info := core.SceneInfo{ID: id}
			if object.LastModified != nil {
				info.UpdatedAt = object.LastModified.UnixMilli()
			}
			scenes = append(scenes, info)
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		token = output.NextContinuationToken
	}

	sort.Slice(scenes, func(i, j int) bool {
		if scenes[i].UpdatedAt == scenes[j].UpdatedAt {
			return scenes[i].ID < scenes[j].ID
		}
		return scenes[i].UpdatedAt > scenes[j].UpdatedAt
	})
	return scenes, nil
}
