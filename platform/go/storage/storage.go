package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrObjectNotFound is returned when a key or URL resolves to nothing.
var ErrObjectNotFound = errors.New("object not found")

// Store persists opaque blobs such as template images and roster files.
// Put returns the public reference callers store in the database; Get and
// Delete accept either that reference or the bare object key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Owns(ref string) bool
	Check(ctx context.Context) error
}

// GetText reads an object and returns it as a string.
func GetText(ctx context.Context, s Store, ref string) (string, error) {
	raw, err := s.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ContentTypeFor maps the extensions this service stores to MIME types.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// cleanKey rejects empty keys and keys that try to climb out of the root.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", errors.New("object key escapes storage root")
	}
	return cleaned, nil
}

func keyFromRef(base, ref string) string {
	ref = strings.TrimSpace(ref)
	base = strings.TrimSuffix(base, "/")
	if base != "" && strings.HasPrefix(ref, base+"/") {
		return strings.TrimPrefix(ref, base+"/")
	}
	return ref
}
