package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// Repository abstracts the roster persistence: duplicate lookups, the atomic
// import commit and the read side over imports and attendees.
type Repository interface {
	ExistingStudentIDs(ctx context.Context, clubID uuid.UUID, templateID *uuid.UUID, ids []string) (map[string]struct{}, error)
	Commit(ctx context.Context, params persistence.CommitImportParams) (persistence.CommitImportResult, error)
	GetImport(ctx context.Context, clubID, id uuid.UUID) (persistence.ImportRecord, error)
	ListImports(ctx context.Context, clubID uuid.UUID) ([]persistence.ImportRecord, error)
	ListAttendees(ctx context.Context, params persistence.ListAttendeesParams) (persistence.ListAttendeesResult, error)
	GetActiveTemplate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
}

type postgresRepository struct {
	attendees *persistence.AttendeeStore
	imports   *persistence.ImportStore
	templates *persistence.TemplateStore
}

// NewPostgresRepository returns a Repository backed by the shared stores.
func NewPostgresRepository(attendees *persistence.AttendeeStore, imports *persistence.ImportStore, templates *persistence.TemplateStore) (Repository, error) {
	if attendees == nil || imports == nil || templates == nil {
		return nil, errors.New("attendee, import and template stores are required")
	}
	return &postgresRepository{attendees: attendees, imports: imports, templates: templates}, nil
}

func (r *postgresRepository) ExistingStudentIDs(ctx context.Context, clubID uuid.UUID, templateID *uuid.UUID, ids []string) (map[string]struct{}, error) {
	return r.attendees.ExistingStudentIDs(ctx, clubID, templateID, ids)
}

func (r *postgresRepository) Commit(ctx context.Context, params persistence.CommitImportParams) (persistence.CommitImportResult, error) {
	return r.imports.Commit(ctx, params)
}

func (r *postgresRepository) GetImport(ctx context.Context, clubID, id uuid.UUID) (persistence.ImportRecord, error) {
	return r.imports.Get(ctx, clubID, id)
}

func (r *postgresRepository) ListImports(ctx context.Context, clubID uuid.UUID) ([]persistence.ImportRecord, error) {
	return r.imports.List(ctx, clubID)
}

func (r *postgresRepository) ListAttendees(ctx context.Context, params persistence.ListAttendeesParams) (persistence.ListAttendeesResult, error) {
	return r.attendees.List(ctx, params)
}

func (r *postgresRepository) GetActiveTemplate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	return r.templates.GetActive(ctx, clubID, id)
}
