package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// Repository defines the persistence operations required by the clubs service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateClubParams) (persistence.ClubRecord, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	GetActiveBySlug(ctx context.Context, slug string) (persistence.ClubRecord, error)
	List(ctx context.Context, params persistence.ListClubsParams) (persistence.ListClubsResult, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (persistence.ClubRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (persistence.ClubStats, error)
	PlatformStats(ctx context.Context) (persistence.PlatformStats, error)
	ActiveTemplates(ctx context.Context, clubID uuid.UUID) ([]persistence.TemplateRecord, error)
	ClubBytes(ctx context.Context, clubID uuid.UUID) (int64, error)
	PlatformBytes(ctx context.Context) (int64, error)
}

type postgresRepository struct {
	*persistence.ClubStore
	*persistence.UsageStore
	templates *persistence.TemplateStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(clubs *persistence.ClubStore, templates *persistence.TemplateStore, usage *persistence.UsageStore) Repository {
	if clubs == nil || templates == nil || usage == nil {
		panic("club, template and usage stores are required")
	}
	return &postgresRepository{ClubStore: clubs, UsageStore: usage, templates: templates}
}

func (r *postgresRepository) ActiveTemplates(ctx context.Context, clubID uuid.UUID) ([]persistence.TemplateRecord, error) {
	return r.templates.List(ctx, clubID, true)
}
