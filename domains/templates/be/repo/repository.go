package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// Repository abstracts persistence operations for club templates.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateTemplateParams) (persistence.TemplateRecord, error)
	Get(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
	List(ctx context.Context, clubID uuid.UUID, activeOnly bool) ([]persistence.TemplateRecord, error)
	UpdateFields(ctx context.Context, clubID, id uuid.UUID, fields []persistence.FieldDescriptor) (persistence.TemplateRecord, error)
	Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
	Stats(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateStats, error)
}

type postgresRepository struct {
	store *persistence.TemplateStore
}

// NewPostgresRepository returns a Repository backed by the template store.
func NewPostgresRepository(store *persistence.TemplateStore) Repository {
	if store == nil {
		panic("template store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateTemplateParams) (persistence.TemplateRecord, error) {
	return r.store.Create(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	return r.store.Get(ctx, clubID, id)
}

func (r *postgresRepository) List(ctx context.Context, clubID uuid.UUID, activeOnly bool) ([]persistence.TemplateRecord, error) {
	return r.store.List(ctx, clubID, activeOnly)
}

func (r *postgresRepository) UpdateFields(ctx context.Context, clubID, id uuid.UUID, fields []persistence.FieldDescriptor) (persistence.TemplateRecord, error) {
	return r.store.UpdateFields(ctx, clubID, id, fields)
}

func (r *postgresRepository) Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	return r.store.Deactivate(ctx, clubID, id)
}

func (r *postgresRepository) Stats(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateStats, error) {
	return r.store.Stats(ctx, clubID, id)
}
