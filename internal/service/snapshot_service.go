package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"redline-be/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/patrickmn/go-cache"
)

var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrDownloadUnavailable = errors.New("snapshot download is not available")
)

// ISnapshotService stores serialized editor states.
type ISnapshotService interface {
	Save(ctx context.Context, documentID string, data []byte) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
	DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

func SnapshotKey(documentID string) string {
	return fmt.Sprintf("documents/%s.json", documentID)
}

type minioSnapshotService struct {
	client *minio.Client
	bucket string
}

func NewMinioSnapshotService(ctx context.Context, cfg config.MinIOConfig) (ISnapshotService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &minioSnapshotService{client: client, bucket: cfg.Bucket}, nil
}

func (s *minioSnapshotService) Save(ctx context.Context, documentID string, data []byte) (string, error) {
	key := SnapshotKey(documentID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return key, nil
}

func (s *minioSnapshotService) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (s *minioSnapshotService) DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", "attachment")
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign snapshot: %w", err)
	}
	return u.String(), nil
}

// memorySnapshotService keeps snapshots in process when no object store is
// configured. Nothing survives a restart.
type memorySnapshotService struct {
	cache *cache.Cache
}

func NewMemorySnapshotService() ISnapshotService {
	return &memorySnapshotService{cache: cache.New(cache.NoExpiration, 0)}
}

func (s *memorySnapshotService) Save(_ context.Context, documentID string, data []byte) (string, error) {
	key := SnapshotKey(documentID)
	s.cache.Set(key, append([]byte(nil), data...), cache.NoExpiration)
	return key, nil
}

func (s *memorySnapshotService) Load(_ context.Context, key string) ([]byte, error) {
	x, found := s.cache.Get(key)
	if !found {
		return nil, ErrSnapshotNotFound
	}
	return append([]byte(nil), x.([]byte)...), nil
}

func (s *memorySnapshotService) DownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrDownloadUnavailable
}
