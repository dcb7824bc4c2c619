package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/domains/certificates/be/resolve"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// PostgresRepository implements the certificate read and ledger paths over the shared stores.
type PostgresRepository struct {
	clubs       *persistence.ClubStore
	templates   *persistence.TemplateStore
	attendees   *persistence.AttendeeStore
	events      *persistence.EventStore
	generations *persistence.GenerationStore
}

// NewPostgresRepository constructs a repository backed by the persistence stores.
func NewPostgresRepository(
	clubs *persistence.ClubStore,
	templates *persistence.TemplateStore,
	attendees *persistence.AttendeeStore,
	events *persistence.EventStore,
	generations *persistence.GenerationStore,
) *PostgresRepository {
	if clubs == nil || templates == nil || attendees == nil || events == nil || generations == nil {
		panic("certificate repository requires every store")
	}
	return &PostgresRepository{clubs: clubs, templates: templates, attendees: attendees, events: events, generations: generations}
}

func (r *PostgresRepository) ActiveClubBySlug(ctx context.Context, slug string) (persistence.ClubRecord, error) {
	c, err := r.clubs.GetActiveBySlug(ctx, slug)
	return c, mapNotFound(err)
}

func (r *PostgresRepository) Club(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	c, err := r.clubs.Get(ctx, id)
	return c, mapNotFound(err)
}

func (r *PostgresRepository) ActiveEvent(ctx context.Context, id uuid.UUID) (persistence.EventRecord, error) {
	e, err := r.events.GetActive(ctx, id)
	return e, mapNotFound(err)
}

func (r *PostgresRepository) AttendeeForEvent(ctx context.Context, clubID, importID uuid.UUID, role, studentID, name string) (persistence.AttendeeRecord, error) {
	a, err := r.attendees.FindForEvent(ctx, clubID, importID, role, studentID, name)
	return a, mapNotFound(err)
}

func (r *PostgresRepository) AttendeeInClub(ctx context.Context, clubID uuid.UUID, studentID, name string, role *string) (persistence.AttendeeRecord, error) {
	a, err := r.attendees.FindInClub(ctx, clubID, studentID, name, role)
	return a, mapNotFound(err)
}

func (r *PostgresRepository) AttendeeAcrossClubs(ctx context.Context, studentID, name string, role *string) (persistence.AttendeeRecord, persistence.ClubRecord, error) {
	a, c, err := r.attendees.FindAcrossClubs(ctx, studentID, name, role)
	return a, c, mapNotFound(err)
}

func (r *PostgresRepository) ActiveTemplate(ctx context.Context, clubID, templateID uuid.UUID) (persistence.TemplateRecord, error) {
	t, err := r.templates.GetActive(ctx, clubID, templateID)
	return t, mapNotFound(err)
}

func (r *PostgresRepository) NewestActiveTemplate(ctx context.Context, clubID uuid.UUID, audience *string) (persistence.TemplateRecord, error) {
	t, err := r.templates.NewestActive(ctx, clubID, audience)
	return t, mapNotFound(err)
}

func (r *PostgresRepository) TemplateByID(ctx context.Context, id uuid.UUID) (persistence.TemplateRecord, error) {
	t, err := r.templates.GetByID(ctx, id)
	return t, mapNotFound(err)
}

func (r *PostgresRepository) RecordGeneration(ctx context.Context, params persistence.RecordGenerationParams) (persistence.GenerationRecord, persistence.AttendeeRecord, error) {
	g, a, err := r.generations.Record(ctx, params)
	return g, a, mapNotFound(err)
}

func (r *PostgresRepository) Generations(ctx context.Context, clubID, attendeeID uuid.UUID) ([]persistence.GenerationRecord, error) {
	if _, err := r.attendees.Get(ctx, clubID, attendeeID); err != nil {
		return nil, mapNotFound(err)
	}
	return r.generations.ListForAttendee(ctx, clubID, attendeeID)
}

func mapNotFound(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrClubNotFound),
		errors.Is(err, persistence.ErrEventNotFound),
		errors.Is(err, persistence.ErrAttendeeNotFound),
		errors.Is(err, persistence.ErrTemplateNotFound):
		return resolve.ErrNotFound
	default:
		return err
	}
}
