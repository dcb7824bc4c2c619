package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher reads template images and roster files wherever their stored
// reference points: objects the store owns go through the store, other
// http(s) URLs are downloaded.
type Fetcher struct {
	Store    Store
	Client   *http.Client
	MaxBytes int64
}

func NewFetcher(store Store, maxBytes int64) *Fetcher {
	if store == nil {
		panic("fetcher requires store")
	}
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Fetcher{Store: store, Client: &http.Client{Timeout: 15 * time.Second}, MaxBytes: maxBytes}
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if f.Store.Owns(ref) || !isRemote(ref) {
		return f.Store.Get(ctx, ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", ref, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if int64(len(raw)) > f.MaxBytes {
		return nil, fmt.Errorf("fetch %s: object exceeds %d bytes", ref, f.MaxBytes)
	}
	return raw, nil
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
