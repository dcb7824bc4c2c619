package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// TemplatesTable stores certificate backgrounds and their overlay fields.
	TemplatesTable = "club_templates"
	// TemplateVersionsTable retains the descriptor list replaced by each coordinate update.
	TemplateVersionsTable = "template_versions"
)

// Field types understood by the renderer.
const (
	FieldTypeName        = "name"
	FieldTypeStudentID   = "student_id"
	FieldTypeDate        = "date"
	FieldTypeAchievement = "achievement"
	FieldTypeCustom      = "custom"
)

// Text alignments for a field origin.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Attendee roles, also used as template audiences.
const (
	RoleStudent    = "student"
	RoleManagement = "management"
)

// FieldDescriptor is one text overlay stored in the template's text_fields JSONB column.
type FieldDescriptor struct {
	Type       string `json:"field_type"`
	Label      string `json:"field_name"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	FontSize   int    `json:"font_size"`
	FontColor  string `json:"font_color"`
	FontFamily string `json:"font_family"`
	Align      string `json:"align"`
}

// TemplateRecord represents a row in the club_templates table.
type TemplateRecord struct {
	TemplateID     uuid.UUID         `db:"template_id" json:"templateId"`
	ClubID         uuid.UUID         `db:"club_id" json:"clubId"`
	Name           string            `db:"name" json:"name"`
	ImageURL       string            `db:"image_url" json:"imageUrl"`
	ImageSizeBytes int64             `db:"image_size_bytes" json:"imageSizeBytes"`
	Fields         []FieldDescriptor `db:"text_fields" json:"fields"`
	Audience       string            `db:"audience" json:"audience"`
	EventName      *string           `db:"event_name" json:"eventName,omitempty"`
	Version        int               `db:"version" json:"version"`
	IsActive       bool              `db:"is_active" json:"isActive"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrTemplateNotFound indicates a missing or inactive template.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateConflict indicates an active template with the same name and audience.
	ErrTemplateConflict = errors.New("template conflict")
)

const templateColumns = `template_id, club_id, name, image_url, image_size_bytes, text_fields,
        audience, event_name, version, is_active, created_at, updated_at`

// TemplateStore exposes persistence helpers for club templates.
type TemplateStore struct {
	pool *pgxpool.Pool
}

// NewTemplateStore returns a store backed by the shared pool.
func NewTemplateStore(ctx context.Context, pool *pgxpool.Pool) (*TemplateStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TemplateStore{pool: pool}, nil
}

// CreateTemplateParams captures the fields required to insert a template at version 1.
type CreateTemplateParams struct {
	ClubID         uuid.UUID
	Name           string
	ImageURL       string
	ImageSizeBytes int64
	Fields         []FieldDescriptor
	Audience       string
	EventName      *string
}

// Create inserts a new active template.
func (s *TemplateStore) Create(ctx context.Context, params CreateTemplateParams) (TemplateRecord, error) {
	fields, err := encodeFields(params.Fields)
	if err != nil {
		return TemplateRecord{}, err
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (club_id, name, image_url, image_size_bytes, text_fields, audience, event_name)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING %s
    `, TemplatesTable, templateColumns),
		params.ClubID,
		strings.TrimSpace(params.Name),
		params.ImageURL,
		params.ImageSizeBytes,
		fields,
		params.Audience,
		params.EventName,
	)

	rec, err := scanTemplate(row)
	if err != nil {
		if isUniqueViolation(err) {
			return TemplateRecord{}, ErrTemplateConflict
		}
		if isForeignKeyViolation(err) {
			return TemplateRecord{}, ErrClubNotFound
		}
		return TemplateRecord{}, err
	}
	return rec, nil
}

// Get returns a template owned by the club, active or not.
func (s *TemplateStore) Get(ctx context.Context, clubID, id uuid.UUID) (TemplateRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE template_id = $1 AND club_id = $2`, templateColumns, TemplatesTable)
	return scanTemplate(s.pool.QueryRow(ctx, query, id, clubID))
}

// GetByID returns a template without a club scope; used to derive the owning club.
func (s *TemplateStore) GetByID(ctx context.Context, id uuid.UUID) (TemplateRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE template_id = $1`, templateColumns, TemplatesTable)
	return scanTemplate(s.pool.QueryRow(ctx, query, id))
}

// GetActive returns an active template owned by the club.
func (s *TemplateStore) GetActive(ctx context.Context, clubID, id uuid.UUID) (TemplateRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE template_id = $1 AND club_id = $2 AND is_active = TRUE`,
		templateColumns, TemplatesTable)
	return scanTemplate(s.pool.QueryRow(ctx, query, id, clubID))
}

// NewestActive returns the most recently updated active template for the club,
// filtered by audience when one is provided.
func (s *TemplateStore) NewestActive(ctx context.Context, clubID uuid.UUID, audience *string) (TemplateRecord, error) {
	args := []any{clubID}
	where := "club_id = $1 AND is_active = TRUE"
	if audience != nil && *audience != "" {
		args = append(args, *audience)
		where += " AND audience = $2"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY updated_at DESC LIMIT 1`, templateColumns, TemplatesTable, where)
	return scanTemplate(s.pool.QueryRow(ctx, query, args...))
}

// List returns the club's templates, newest first.
func (s *TemplateStore) List(ctx context.Context, clubID uuid.UUID, activeOnly bool) ([]TemplateRecord, error) {
	where := "club_id = $1"
	if activeOnly {
		where += " AND is_active = TRUE"
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC`,
		templateColumns, TemplatesTable, where), clubID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := []TemplateRecord{}
	for rows.Next() {
		rec, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateFields replaces the descriptor list and bumps the version in place.
// The outgoing descriptor list is copied into template_versions first.
func (s *TemplateStore) UpdateFields(ctx context.Context, clubID, id uuid.UUID, fields []FieldDescriptor) (TemplateRecord, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return TemplateRecord{}, err
	}

	var out TemplateRecord
	err = withTx(ctx, s.pool, func(tx pgx.Tx) error {
		archive := fmt.Sprintf(`
            INSERT INTO %s (template_id, version, text_fields)
            SELECT template_id, version, text_fields FROM %s
            WHERE template_id = $1 AND club_id = $2
            ON CONFLICT (template_id, version) DO NOTHING
        `, TemplateVersionsTable, TemplatesTable)
		if _, err := tx.Exec(ctx, archive, id, clubID); err != nil {
			return fmt.Errorf("archive template version: %w", err)
		}

		row := tx.QueryRow(ctx, fmt.Sprintf(`
            UPDATE %s SET text_fields = $3, version = version + 1, updated_at = NOW()
            WHERE template_id = $1 AND club_id = $2
            RETURNING %s
        `, TemplatesTable, templateColumns), id, clubID, encoded)

		rec, err := scanTemplate(row)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return TemplateRecord{}, err
	}
	return out, nil
}

// Deactivate hides the template from resolution without deleting it.
func (s *TemplateStore) Deactivate(ctx context.Context, clubID, id uuid.UUID) (TemplateRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = FALSE, updated_at = NOW()
        WHERE template_id = $1 AND club_id = $2
        RETURNING %s
    `, TemplatesTable, templateColumns), id, clubID)
	return scanTemplate(row)
}

// TemplateStats reports generation usage for one template.
type TemplateStats struct {
	Generations     int
	LastGeneratedAt *time.Time
}

// Stats returns generation counters for a template.
func (s *TemplateStore) Stats(ctx context.Context, clubID, id uuid.UUID) (TemplateStats, error) {
	var stats TemplateStats
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT COUNT(*), MAX(generated_at) FROM %s WHERE template_id = $1 AND club_id = $2
    `, GenerationsTable), id, clubID).Scan(&stats.Generations, &stats.LastGeneratedAt)
	if err != nil {
		return TemplateStats{}, fmt.Errorf("template stats: %w", err)
	}
	return stats, nil
}

func encodeFields(fields []FieldDescriptor) ([]byte, error) {
	if fields == nil {
		fields = []FieldDescriptor{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode text fields: %w", err)
	}
	return encoded, nil
}

func scanTemplate(row pgx.Row) (TemplateRecord, error) {
	var rec TemplateRecord
	var fields []byte
	if err := row.Scan(&rec.TemplateID, &rec.ClubID, &rec.Name, &rec.ImageURL, &rec.ImageSizeBytes, &fields,
		&rec.Audience, &rec.EventName, &rec.Version, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TemplateRecord{}, ErrTemplateNotFound
		}
		return TemplateRecord{}, err
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return TemplateRecord{}, fmt.Errorf("decode text fields: %w", err)
	}
	return rec, nil
}
