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

// AttendeesTable holds people eligible for certificates, one row per (club, student_id).
const AttendeesTable = "attendees"

// AttendeeRecord represents a row in the attendees table.
type AttendeeRecord struct {
	AttendeeID       uuid.UUID  `db:"attendee_id" json:"attendeeId"`
	ClubID           uuid.UUID  `db:"club_id" json:"clubId"`
	ImportID         *uuid.UUID `db:"import_id" json:"importId,omitempty"`
	TemplateID       *uuid.UUID `db:"template_id" json:"templateId,omitempty"`
	Name             string     `db:"name" json:"name"`
	StudentID        string     `db:"student_id" json:"studentId"`
	Email            *string    `db:"email" json:"email,omitempty"`
	Course           *string    `db:"course" json:"course,omitempty"`
	Role             string     `db:"role" json:"role"`
	EventName        *string    `db:"event_name" json:"eventName,omitempty"`
	EventDate        *time.Time `db:"event_date" json:"eventDate,omitempty"`
	GenerationCount  int        `db:"generation_count" json:"generationCount"`
	FirstGeneratedAt *time.Time `db:"first_generated_at" json:"firstGeneratedAt,omitempty"`
	LastGeneratedAt  *time.Time `db:"last_generated_at" json:"lastGeneratedAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// ErrAttendeeNotFound indicates no attendee matched the lookup.
var ErrAttendeeNotFound = errors.New("attendee not found")

const attendeeColumns = `a.attendee_id, a.club_id, a.import_id, a.template_id, a.name, a.student_id, a.email,
        a.course, a.role, a.event_name, a.event_date, a.generation_count, a.first_generated_at,
        a.last_generated_at, a.created_at, a.updated_at`

// AttendeeStore exposes identity lookups over the attendees table.
type AttendeeStore struct {
	pool *pgxpool.Pool
}

// NewAttendeeStore returns a store backed by the shared pool.
func NewAttendeeStore(ctx context.Context, pool *pgxpool.Pool) (*AttendeeStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AttendeeStore{pool: pool}, nil
}

// Get returns one attendee of the club.
func (s *AttendeeStore) Get(ctx context.Context, clubID, id uuid.UUID) (AttendeeRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s a WHERE a.attendee_id = $1 AND a.club_id = $2`, attendeeColumns, AttendeesTable)
	return scanAttendee(s.pool.QueryRow(ctx, query, id, clubID))
}

// FindForEvent matches an attendee inside an event's cohort: same club, same
// import batch, the event's role, exact student id and case-insensitive name.
func (s *AttendeeStore) FindForEvent(ctx context.Context, clubID, importID uuid.UUID, role, studentID, name string) (AttendeeRecord, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s a
        WHERE a.club_id = $1 AND a.import_id = $2 AND a.role = $3
          AND a.student_id = $4 AND LOWER(a.name) = LOWER($5)
        LIMIT 1
    `, attendeeColumns, AttendeesTable)
	return scanAttendee(s.pool.QueryRow(ctx, query, clubID, importID, role, strings.TrimSpace(studentID), strings.TrimSpace(name)))
}

// FindInClub matches an attendee in one club with an optional role filter.
func (s *AttendeeStore) FindInClub(ctx context.Context, clubID uuid.UUID, studentID, name string, role *string) (AttendeeRecord, error) {
	args := []any{clubID, strings.TrimSpace(studentID), strings.TrimSpace(name)}
	where := "a.club_id = $1 AND a.student_id = $2 AND LOWER(a.name) = LOWER($3)"
	if role != nil && *role != "" {
		args = append(args, *role)
		where += " AND a.role = $4"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s a WHERE %s ORDER BY a.updated_at DESC LIMIT 1`, attendeeColumns, AttendeesTable, where)
	return scanAttendee(s.pool.QueryRow(ctx, query, args...))
}

// FindAcrossClubs searches every active club and prefers the most recently
// updated match when several clubs share an identifier.
func (s *AttendeeStore) FindAcrossClubs(ctx context.Context, studentID, name string, role *string) (AttendeeRecord, ClubRecord, error) {
	args := []any{strings.TrimSpace(studentID), strings.TrimSpace(name)}
	where := "c.is_active = TRUE AND a.student_id = $1 AND LOWER(a.name) = LOWER($2)"
	if role != nil && *role != "" {
		args = append(args, *role)
		where += " AND a.role = $3"
	}
	query := fmt.Sprintf(`
        SELECT %s, c.club_id, c.slug, c.name, c.contact_email, c.logo_url, c.is_active, c.created_at, c.updated_at
        FROM %s a JOIN %s c ON c.club_id = a.club_id
        WHERE %s
        ORDER BY a.updated_at DESC
        LIMIT 1
    `, attendeeColumns, AttendeesTable, ClubsTable, where)

	var att AttendeeRecord
	var club ClubRecord
	dest := append(attendeeDest(&att), &club.ClubID, &club.Slug, &club.Name, &club.ContactEmail, &club.LogoURL,
		&club.IsActive, &club.CreatedAt, &club.UpdatedAt)
	if err := s.pool.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AttendeeRecord{}, ClubRecord{}, ErrAttendeeNotFound
		}
		return AttendeeRecord{}, ClubRecord{}, err
	}
	return att, club, nil
}

// ExistingStudentIDs returns which of ids already exist in the club. When
// templateID is set the lookup narrows to attendees tied to that template,
// either by their last used template or by the template of their import batch.
func (s *AttendeeStore) ExistingStudentIDs(ctx context.Context, clubID uuid.UUID, templateID *uuid.UUID, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := []any{clubID, ids}
	query := fmt.Sprintf(`SELECT DISTINCT a.student_id FROM %s a WHERE a.club_id = $1 AND a.student_id = ANY($2)`, AttendeesTable)
	if templateID != nil {
		args = append(args, *templateID)
		query = fmt.Sprintf(`
            SELECT DISTINCT a.student_id FROM %s a
            LEFT JOIN %s i ON i.import_id = a.import_id
            WHERE a.club_id = $1 AND a.student_id = ANY($2)
              AND (a.template_id = $3 OR i.template_id = $3)
        `, AttendeesTable, ImportsTable)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup existing student ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// ListAttendeesParams captures filters and pagination for List.
type ListAttendeesParams struct {
	ClubID   uuid.UUID
	ImportID *uuid.UUID
	Search   *string
	Page     int
	PageSize int
}

// ListAttendeesResult includes the rows and the total count for pagination metadata.
type ListAttendeesResult struct {
	Attendees  []AttendeeRecord
	TotalItems int
}

// List returns a page of the club's attendees ordered by name.
func (s *AttendeeStore) List(ctx context.Context, params ListAttendeesParams) (ListAttendeesResult, error) {
	whereParts := []string{"a.club_id = $1"}
	args := []any{params.ClubID}
	if params.ImportID != nil {
		args = append(args, *params.ImportID)
		whereParts = append(whereParts, fmt.Sprintf("a.import_id = $%d", len(args)))
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*params.Search))+"%")
		whereParts = append(whereParts, fmt.Sprintf("(LOWER(a.name) LIKE $%d OR LOWER(a.student_id) LIKE $%d)", len(args), len(args)))
	}
	whereSQL := strings.Join(whereParts, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s a WHERE %s", AttendeesTable, whereSQL), args...).Scan(&total); err != nil {
		return ListAttendeesResult{}, fmt.Errorf("count attendees: %w", err)
	}

	result := ListAttendeesResult{Attendees: []AttendeeRecord{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	limit, offset := pageWindow(params.Page, params.PageSize)
	dataArgs := append(append([]any{}, args...), limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM %s a WHERE %s ORDER BY a.name ASC LIMIT $%d OFFSET $%d`,
		attendeeColumns, AttendeesTable, whereSQL, len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, query, dataArgs...)
	if err != nil {
		return ListAttendeesResult{}, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanAttendee(rows)
		if err != nil {
			return ListAttendeesResult{}, err
		}
		result.Attendees = append(result.Attendees, rec)
	}
	if err := rows.Err(); err != nil {
		return ListAttendeesResult{}, err
	}
	return result, nil
}

func attendeeDest(rec *AttendeeRecord) []any {
	return []any{&rec.AttendeeID, &rec.ClubID, &rec.ImportID, &rec.TemplateID, &rec.Name, &rec.StudentID, &rec.Email,
		&rec.Course, &rec.Role, &rec.EventName, &rec.EventDate, &rec.GenerationCount, &rec.FirstGeneratedAt,
		&rec.LastGeneratedAt, &rec.CreatedAt, &rec.UpdatedAt}
}

func scanAttendee(row pgx.Row) (AttendeeRecord, error) {
	var rec AttendeeRecord
	if err := row.Scan(attendeeDest(&rec)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AttendeeRecord{}, ErrAttendeeNotFound
		}
		return AttendeeRecord{}, err
	}
	return rec, nil
}
