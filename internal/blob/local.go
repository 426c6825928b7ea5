package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shipdocs/internal/util"
)

// LocalStore keeps buckets as directories under Root. PublicBase, when set,
// is the HTTP prefix that serves Root.
type LocalStore struct {
	Root       string
	PublicBase string
}

func NewLocalStore(root, publicBase string) (*LocalStore, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, err
	}
	return &LocalStore{Root: root, PublicBase: strings.TrimRight(publicBase, "/")}, nil
}

func (s *LocalStore) resolve(bucket, objectPath string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(objectPath))
	if strings.Contains(bucket, "..") || strings.ContainsAny(bucket, `/\`) || bucket == "" {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return filepath.Join(s.Root, bucket, clean), nil
}

func (s *LocalStore) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (Object, error) {
	_ = ctx
	_ = contentType
	p, err := s.resolve(bucket, objectPath)
	if err != nil {
		return Object{}, err
	}
	if err := util.WriteFileAtomic(p, data); err != nil {
		return Object{}, fmt.Errorf("put %s/%s: %w", bucket, objectPath, err)
	}
	u, _ := s.URL(ctx, bucket, objectPath, 0)
	return Object{Bucket: bucket, Path: objectPath, URL: u, Size: len(data)}, nil
}

func (s *LocalStore) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	_ = ctx
	p, err := s.resolve(bucket, objectPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("get %s/%s: %w", bucket, objectPath, util.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", bucket, objectPath, err)
	}
	return b, nil
}

func (s *LocalStore) Delete(ctx context.Context, bucket, objectPath string) error {
	_ = ctx
	p, err := s.resolve(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

func (s *LocalStore) URL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	_ = ctx
	_ = ttl
	if s.PublicBase != "" {
		return s.PublicBase + "/" + url.PathEscape(bucket) + "/" + strings.TrimLeft(objectPath, "/"), nil
	}
	p, err := s.resolve(bucket, objectPath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
