package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore keeps objects in one Cloud Storage bucket.
type GCSStore struct {
	Client    *storage.Client
	Bucket    string
	PublicURL string
}

// NewGCSStore builds a store. publicURL defaults to the bucket's
// storage.googleapis.com address.
func NewGCSStore(client *storage.Client, bucket, publicURL string) *GCSStore {
	if client == nil {
		panic("gcs store requires client")
	}
	if bucket == "" {
		panic("gcs store requires bucket")
	}
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{Client: client, Bucket: bucket, PublicURL: strings.TrimSuffix(publicURL, "/")}
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	w := s.Client.Bucket(s.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object writer: %w", err)
	}
	return s.PublicURL + "/" + key, nil
}

func (s *GCSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	key, err := cleanKey(keyFromRef(s.PublicURL, ref))
	if err != nil {
		return nil, err
	}
	r, err := s.Client.Bucket(s.Bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	key, err := cleanKey(keyFromRef(s.PublicURL, ref))
	if err != nil {
		return err
	}
	err = s.Client.Bucket(s.Bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *GCSStore) DeletePrefix(ctx context.Context, prefix string) error {
	key, err := cleanKey(prefix)
	if err != nil {
		return err
	}
	bkt := s.Client.Bucket(s.Bucket)
	it := bkt.Objects(ctx, &storage.Query{Prefix: key + "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list prefix: %w", err)
		}
		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
	}
}

func (s *GCSStore) Owns(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), s.PublicURL+"/")
}

// Check verifies the bucket is reachable and listable; no write.
func (s *GCSStore) Check(ctx context.Context) error {
	bkt := s.Client.Bucket(s.Bucket)
	if _, err := bkt.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs: %w", err)
	}
	it := bkt.Objects(ctx, &storage.Query{Prefix: "clubs/"})
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("list bucket: %w", err)
	}
	return nil
}

var _ Store = (*GCSStore)(nil)
