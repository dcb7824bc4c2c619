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

// ClubsTable is the tenant registry. Every other table cascades from it.
const ClubsTable = "clubs"

// ClubRecord represents a row in the clubs table.
type ClubRecord struct {
	ClubID       uuid.UUID `db:"club_id" json:"clubId"`
	Slug         string    `db:"slug" json:"slug"`
	Name         string    `db:"name" json:"name"`
	ContactEmail string    `db:"contact_email" json:"contactEmail"`
	LogoURL      *string   `db:"logo_url" json:"logoUrl,omitempty"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrClubNotFound indicates a missing (or inactive, for public lookups) club.
	ErrClubNotFound = errors.New("club not found")
	// ErrClubConflict indicates a duplicated slug or contact email.
	ErrClubConflict = errors.New("club conflict")
)

const clubColumns = `club_id, slug, name, contact_email, logo_url, is_active, created_at, updated_at`

// ClubStore provides access to the clubs table.
type ClubStore struct {
	pool *pgxpool.Pool
}

// NewClubStore creates a store; assumes ApplySchema already created the table.
func NewClubStore(ctx context.Context, pool *pgxpool.Pool) (*ClubStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ClubStore{pool: pool}, nil
}

// CreateClubParams captures the fields required to register a club.
type CreateClubParams struct {
	Slug         string
	Name         string
	ContactEmail string
	LogoURL      *string
}

// Create inserts a new active club.
func (s *ClubStore) Create(ctx context.Context, params CreateClubParams) (ClubRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (slug, name, contact_email, logo_url)
        VALUES ($1, $2, $3, $4)
        RETURNING %s
    `, ClubsTable, clubColumns),
		params.Slug,
		strings.TrimSpace(params.Name),
		strings.ToLower(strings.TrimSpace(params.ContactEmail)),
		params.LogoURL,
	)

	rec, err := scanClub(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ClubRecord{}, ErrClubConflict
		}
		return ClubRecord{}, err
	}
	return rec, nil
}

// Get returns a club regardless of its active flag.
func (s *ClubStore) Get(ctx context.Context, id uuid.UUID) (ClubRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE club_id = $1`, clubColumns, ClubsTable)
	return scanClub(s.pool.QueryRow(ctx, query, id))
}

// GetActiveBySlug returns the active club for a public slug.
func (s *ClubStore) GetActiveBySlug(ctx context.Context, slug string) (ClubRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE slug = $1 AND is_active = TRUE`, clubColumns, ClubsTable)
	return scanClub(s.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(slug))))
}

// ListClubsParams captures filters and pagination for List.
type ListClubsParams struct {
	Page       int
	PageSize   int
	ActiveOnly bool
}

// ListClubsResult includes the rows and the total count for pagination metadata.
type ListClubsResult struct {
	Clubs      []ClubRecord
	TotalItems int
}

// List returns clubs ordered by name.
func (s *ClubStore) List(ctx context.Context, params ListClubsParams) (ListClubsResult, error) {
	where := "WHERE 1=1"
	if params.ActiveOnly {
		where += " AND is_active = TRUE"
	}

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s %s", ClubsTable, where)).Scan(&total); err != nil {
		return ListClubsResult{}, fmt.Errorf("count clubs: %w", err)
	}

	result := ListClubsResult{Clubs: []ClubRecord{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	limit, offset := pageWindow(params.Page, params.PageSize)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY name ASC LIMIT $1 OFFSET $2`,
		clubColumns, ClubsTable, where), limit, offset)
	if err != nil {
		return ListClubsResult{}, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanClub(rows)
		if err != nil {
			return ListClubsResult{}, err
		}
		result.Clubs = append(result.Clubs, rec)
	}
	if err := rows.Err(); err != nil {
		return ListClubsResult{}, err
	}

	return result, nil
}

// SetActive flips the soft activation flag. History is untouched.
func (s *ClubStore) SetActive(ctx context.Context, id uuid.UUID, active bool) (ClubRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = $2, updated_at = NOW()
        WHERE club_id = $1
        RETURNING %s
    `, ClubsTable, clubColumns), id, active)
	return scanClub(row)
}

// Delete permanently removes a club. Dependent rows go with it through the
// ON DELETE CASCADE constraints declared in the schema.
func (s *ClubStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE club_id = $1", ClubsTable), id)
	if err != nil {
		return fmt.Errorf("delete club: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClubNotFound
	}
	return nil
}

// ClubStats aggregates counters for one club.
type ClubStats struct {
	Attendees       int
	Templates       int
	ActiveTemplates int
	Imports         int
	Events          int
	Generations     int
	LastGeneratedAt *time.Time
}

// Stats returns per-club counters.
func (s *ClubStore) Stats(ctx context.Context, id uuid.UUID) (ClubStats, error) {
	var stats ClubStats
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT
            (SELECT COUNT(*) FROM %s WHERE club_id = $1),
            (SELECT COUNT(*) FROM %s WHERE club_id = $1),
            (SELECT COUNT(*) FROM %s WHERE club_id = $1 AND is_active),
            (SELECT COUNT(*) FROM %s WHERE club_id = $1),
            (SELECT COUNT(*) FROM %s WHERE club_id = $1),
            (SELECT COUNT(*) FROM %s WHERE club_id = $1),
            (SELECT MAX(generated_at) FROM %s WHERE club_id = $1)
    `, AttendeesTable, TemplatesTable, TemplatesTable, ImportsTable, EventsTable, GenerationsTable, GenerationsTable), id).
		Scan(&stats.Attendees, &stats.Templates, &stats.ActiveTemplates, &stats.Imports, &stats.Events, &stats.Generations, &stats.LastGeneratedAt)
	if err != nil {
		return ClubStats{}, fmt.Errorf("club stats: %w", err)
	}
	return stats, nil
}

// PlatformStats aggregates counters across every club.
type PlatformStats struct {
	Clubs       int
	ActiveClubs int
	Templates   int
	Attendees   int
	Generations int
}

// PlatformStats returns platform-wide counters.
func (s *ClubStore) PlatformStats(ctx context.Context) (PlatformStats, error) {
	var stats PlatformStats
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT
            (SELECT COUNT(*) FROM %s),
            (SELECT COUNT(*) FROM %s WHERE is_active),
            (SELECT COUNT(*) FROM %s),
            (SELECT COUNT(*) FROM %s),
            (SELECT COUNT(*) FROM %s)
    `, ClubsTable, ClubsTable, TemplatesTable, AttendeesTable, GenerationsTable)).
		Scan(&stats.Clubs, &stats.ActiveClubs, &stats.Templates, &stats.Attendees, &stats.Generations)
	if err != nil {
		return PlatformStats{}, fmt.Errorf("platform stats: %w", err)
	}
	return stats, nil
}

func scanClub(row pgx.Row) (ClubRecord, error) {
	var rec ClubRecord
	if err := row.Scan(&rec.ClubID, &rec.Slug, &rec.Name, &rec.ContactEmail, &rec.LogoURL, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClubRecord{}, ErrClubNotFound
		}
		return ClubRecord{}, err
	}
	return rec, nil
}
