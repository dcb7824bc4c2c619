package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// Repository abstracts persistence operations for certificate events and the
// template and import records an event binds together.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateEventParams) (persistence.EventRecord, error)
	Get(ctx context.Context, clubID, id uuid.UUID) (persistence.EventRecord, error)
	List(ctx context.Context, clubID uuid.UUID) ([]persistence.EventRecord, error)
	Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.EventRecord, error)
	GetActiveTemplate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
	GetImport(ctx context.Context, clubID, id uuid.UUID) (persistence.ImportRecord, error)
}

type postgresRepository struct {
	*persistence.EventStore
	templates *persistence.TemplateStore
	imports   *persistence.ImportStore
}

// NewPostgresRepository returns a Repository backed by the shared stores.
func NewPostgresRepository(events *persistence.EventStore, templates *persistence.TemplateStore, imports *persistence.ImportStore) (Repository, error) {
	if events == nil || templates == nil || imports == nil {
		return nil, errors.New("event, template and import stores are required")
	}
	return &postgresRepository{EventStore: events, templates: templates, imports: imports}, nil
}

func (r *postgresRepository) GetActiveTemplate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	return r.templates.GetActive(ctx, clubID, id)
}

func (r *postgresRepository) GetImport(ctx context.Context, clubID, id uuid.UUID) (persistence.ImportRecord, error) {
	return r.imports.Get(ctx, clubID, id)
}
