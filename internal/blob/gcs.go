package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"shipdocs/internal/util"

	"cloud.google.com/go/storage"
)

// GCSStore maps buckets onto Cloud Storage buckets. A non-empty Prefix is
// prepended to bucket names so environments can share a project.
type GCSStore struct {
	client *storage.Client
	Prefix string
}

func NewGCSStore(ctx context.Context, prefix string) (*GCSStore, error) {
	cs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: cs, Prefix: prefix}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) bucket(name string) *storage.BucketHandle {
	return s.client.Bucket(s.Prefix + name)
}

func (s *GCSStore) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (Object, error) {
	w := s.bucket(bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("write gs://%s%s/%s: %w", s.Prefix, bucket, objectPath, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("close gs://%s%s/%s: %w", s.Prefix, bucket, objectPath, err)
	}
	return Object{
		Bucket: bucket,
		Path:   objectPath,
		URL:    fmt.Sprintf("https://storage.googleapis.com/%s%s/%s", s.Prefix, bucket, objectPath),
		Size:   len(data),
	}, nil
}

func (s *GCSStore) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	r, err := s.bucket(bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("read gs://%s%s/%s: %w", s.Prefix, bucket, objectPath, util.ErrNotFound)
		}
		return nil, fmt.Errorf("read gs://%s%s/%s: %w", s.Prefix, bucket, objectPath, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) Delete(ctx context.Context, bucket, objectPath string) error {
	err := s.bucket(bucket).Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s%s/%s: %w", s.Prefix, bucket, objectPath, err)
	}
	return nil
}

// URL signs a GET link valid for ttl (one hour when ttl is zero).
func (s *GCSStore) URL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	_ = ctx
	if ttl <= 0 {
		ttl = time.Hour
	}
	u, err := s.bucket(bucket).SignedURL(objectPath, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign gs://%s%s/%s: %w", s.Prefix, bucket, objectPath, err)
	}
	return u, nil
}
