package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageStore reports stored bytes for quota decisions. Template images and
// roster files both count against a club's budget.
type UsageStore struct {
	pool *pgxpool.Pool
}

// NewUsageStore returns a store backed by the shared pool.
func NewUsageStore(ctx context.Context, pool *pgxpool.Pool) (*UsageStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &UsageStore{pool: pool}, nil
}

// ClubBytes returns the bytes stored for one club.
func (s *UsageStore) ClubBytes(ctx context.Context, clubID uuid.UUID) (int64, error) {
	var used int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT
            (COALESCE((SELECT SUM(image_size_bytes) FROM %s WHERE club_id = $1), 0) +
             COALESCE((SELECT SUM(file_size_bytes) FROM %s WHERE club_id = $1), 0))::BIGINT
    `, TemplatesTable, ImportsTable), clubID).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("club storage usage: %w", err)
	}
	return used, nil
}

// PlatformBytes returns the bytes stored across every club.
func (s *UsageStore) PlatformBytes(ctx context.Context) (int64, error) {
	var used int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT
            (COALESCE((SELECT SUM(image_size_bytes) FROM %s), 0) +
             COALESCE((SELECT SUM(file_size_bytes) FROM %s), 0))::BIGINT
    `, TemplatesTable, ImportsTable)).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("platform storage usage: %w", err)
	}
	return used, nil
}
