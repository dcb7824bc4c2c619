package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects under BaseDir and serves them below PublicURL.
// Used for development and single-node deployments.
type LocalStore struct {
	BaseDir   string
	PublicURL string
}

func NewLocalStore(baseDir, publicURL string) *LocalStore {
	if baseDir == "" {
		panic("local store requires baseDir")
	}
	if publicURL == "" {
		publicURL = "/files"
	}
	return &LocalStore{BaseDir: baseDir, PublicURL: strings.TrimSuffix(publicURL, "/")}
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return s.PublicURL + "/" + key, nil
}

func (s *LocalStore) Get(ctx context.Context, ref string) ([]byte, error) {
	key, err := cleanKey(keyFromRef(s.PublicURL, ref))
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.BaseDir, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return raw, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	key, err := cleanKey(keyFromRef(s.PublicURL, ref))
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.BaseDir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *LocalStore) DeletePrefix(ctx context.Context, prefix string) error {
	key, err := cleanKey(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.BaseDir, filepath.FromSlash(key))); err != nil {
		return fmt.Errorf("delete prefix: %w", err)
	}
	return nil
}

func (s *LocalStore) Owns(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), s.PublicURL+"/")
}

// Check ensures the base directory exists; safe and idempotent.
func (s *LocalStore) Check(ctx context.Context) error {
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	return nil
}

var _ Store = (*LocalStore)(nil)
