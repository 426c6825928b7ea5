// Package blob stores uploaded and generated files in buckets under
// YYYY/MM/ prefixes.
package blob

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

type Store interface {
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, bucket, objectPath string) ([]byte, error)
	Delete(ctx context.Context, bucket, objectPath string) error
	// URL returns a link a browser can download the object from.
	URL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
}

type Object struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Size   int    `json:"size"`
}

// ObjectPath places name under a YYYY/MM/ prefix.
func ObjectPath(t time.Time, name string) string {
	return path.Join(t.Format("2006"), t.Format("01"), name)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SecureFilename strips directories and characters that are unsafe in
// object keys, keeping the extension.
func SecureFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

// UploadName prefixes a sanitized upload name with its arrival time.
func UploadName(t time.Time, name string) string {
	return fmt.Sprintf("%s_%s", t.Format("20060102_150405"), SecureFilename(name))
}

func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
