package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventsTable binds a template, an import batch and a role into a verifiable cohort.
const EventsTable = "certificate_events"

// EventRecord represents a row in the certificate_events table.
type EventRecord struct {
	EventID     uuid.UUID `db:"event_id" json:"eventId"`
	ClubID      uuid.UUID `db:"club_id" json:"clubId"`
	TemplateID  uuid.UUID `db:"template_id" json:"templateId"`
	ImportID    uuid.UUID `db:"import_id" json:"importId"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	EventDate   time.Time `db:"event_date" json:"eventDate"`
	Role        string    `db:"role" json:"role"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// ErrEventNotFound indicates a missing or inactive event.
var ErrEventNotFound = errors.New("event not found")

const eventColumns = `event_id, club_id, template_id, import_id, name, description, event_date, role, is_active, created_at`

// EventStore exposes persistence helpers for certificate events.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore returns a store backed by the shared pool.
func NewEventStore(ctx context.Context, pool *pgxpool.Pool) (*EventStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &EventStore{pool: pool}, nil
}

// CreateEventParams captures the fields required to insert an event.
type CreateEventParams struct {
	ClubID      uuid.UUID
	TemplateID  uuid.UUID
	ImportID    uuid.UUID
	Name        string
	Description *string
	EventDate   time.Time
	Role        string
}

// Create inserts a new active event.
func (s *EventStore) Create(ctx context.Context, params CreateEventParams) (EventRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (club_id, template_id, import_id, name, description, event_date, role)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING %s
    `, EventsTable, eventColumns),
		params.ClubID, params.TemplateID, params.ImportID, strings.TrimSpace(params.Name),
		params.Description, params.EventDate, params.Role,
	)
	return scanEvent(row)
}

// Get returns one event of the club, active or not.
func (s *EventStore) Get(ctx context.Context, clubID, id uuid.UUID) (EventRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE event_id = $1 AND club_id = $2`, eventColumns, EventsTable)
	return scanEvent(s.pool.QueryRow(ctx, query, id, clubID))
}

// GetActive returns an active event by id, whatever its club.
func (s *EventStore) GetActive(ctx context.Context, id uuid.UUID) (EventRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE event_id = $1 AND is_active = TRUE`, eventColumns, EventsTable)
	return scanEvent(s.pool.QueryRow(ctx, query, id))
}

// List returns the club's events, newest first.
func (s *EventStore) List(ctx context.Context, clubID uuid.UUID) ([]EventRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE club_id = $1 ORDER BY created_at DESC`,
		eventColumns, EventsTable), clubID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []EventRecord{}
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Deactivate stops an event from scoping verification.
func (s *EventStore) Deactivate(ctx context.Context, clubID, id uuid.UUID) (EventRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = FALSE WHERE event_id = $1 AND club_id = $2
        RETURNING %s
    `, EventsTable, eventColumns), id, clubID)
	return scanEvent(row)
}

func scanEvent(row pgx.Row) (EventRecord, error) {
	var rec EventRecord
	if err := row.Scan(&rec.EventID, &rec.ClubID, &rec.TemplateID, &rec.ImportID, &rec.Name, &rec.Description,
		&rec.EventDate, &rec.Role, &rec.IsActive, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EventRecord{}, ErrEventNotFound
		}
		return EventRecord{}, err
	}
	return rec, nil
}
