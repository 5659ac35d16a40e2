package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/facevault/internal/config"
)

type MinIOStore struct {
	client    *minio.Client
	publicURL string
	buckets   []string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{
		client:    client,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		buckets:   []string{cfg.PhotosBucket, cfg.CropsBucket},
	}, nil
}

// EnsureBuckets creates the photo and crop buckets if they don't exist.
func (s *MinIOStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range s.buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// PutObjectExclusive uploads data under key and refuses to replace an
// existing object, returning ErrObjectExists instead.
func (s *MinIOStore) PutObjectExclusive(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return ErrObjectExists
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}

	reader := bytes.NewReader(data)
	_, err = s.client.PutObject(ctx, bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ObjectURL returns the public path-style URL of an object.
func (s *MinIOStore) ObjectURL(bucket, key string) string {
	return s.publicURL + "/" + bucket + "/" + (&url.URL{Path: key}).EscapedPath()
}

// ListObjects returns all object keys in bucket, in the order MinIO returns them.
func (s *MinIOStore) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", bucket, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// DeleteObjects removes multiple objects from a bucket in a single batch request.
func (s *MinIOStore) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)
	for result := range s.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return fmt.Errorf("delete object %s/%s: %w", bucket, result.ObjectName, result.Err)
		}
	}
	return nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.buckets[0])
	return err
}
