package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/platform/go/gcp"
	"github.com/Ixotic27/certifyhub/platform/go/storage"
)

// objectStore is the configured backend plus, for the local backend, the
// handler that serves stored files and the path it is mounted on.
type objectStore struct {
	store     storage.Store
	filesPath string
	files     http.Handler
	close     func()
}

func buildObjectStore(ctx context.Context, cfg config, logger *zap.Logger) (objectStore, error) {
	switch cfg.StorageBackend {
	case "gcs":
		if cfg.StorageBucket == "" {
			return objectStore{}, fmt.Errorf("storage bucket required when STORAGE_BACKEND=gcs")
		}
		client, err := gcp.NewStorageClient(ctx, cfg.GCPCredentialsFile)
		if err != nil {
			return objectStore{}, fmt.Errorf("init gcs client: %w", err)
		}
		logger.Info("using gcs object storage", zap.String("bucket", cfg.StorageBucket))
		return objectStore{
			store: storage.NewGCSStore(client, cfg.StorageBucket, cfg.StoragePublicURL),
			close: func() { _ = client.Close() },
		}, nil
	case "local":
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			return objectStore{}, fmt.Errorf("storage local dir required when STORAGE_BACKEND=local")
		}
		local := storage.NewLocalStore(cfg.StorageLocalDir, cfg.StoragePublicURL)
		out := objectStore{store: local, close: func() {}}
		if strings.HasPrefix(local.PublicURL, "/") {
			out.filesPath = local.PublicURL
			out.files = http.StripPrefix(local.PublicURL, http.FileServer(http.Dir(local.BaseDir)))
		}
		logger.Info("using local object storage", zap.String("dir", local.BaseDir), zap.String("publicUrl", local.PublicURL))
		return out, nil
	default:
		return objectStore{}, fmt.Errorf("invalid STORAGE_BACKEND %q (use gcs or local)", cfg.StorageBackend)
	}
}
