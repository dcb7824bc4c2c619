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

// ImportsTable records each roster upload.
const ImportsTable = "attendee_imports"

// ImportRecord represents a row in the attendee_imports table.
type ImportRecord struct {
	ImportID      uuid.UUID  `db:"import_id" json:"importId"`
	ClubID        uuid.UUID  `db:"club_id" json:"clubId"`
	TemplateID    *uuid.UUID `db:"template_id" json:"templateId,omitempty"`
	BatchName     *string    `db:"batch_name" json:"batchName,omitempty"`
	Filename      string     `db:"filename" json:"filename"`
	FileURL       *string    `db:"file_url" json:"fileUrl,omitempty"`
	Role          string     `db:"role" json:"role"`
	RowsCount     int        `db:"rows_count" json:"rowsCount"`
	FileSizeBytes int64      `db:"file_size_bytes" json:"fileSizeBytes"`
	UploadedBy    *string    `db:"uploaded_by" json:"uploadedBy,omitempty"`
	UploadedAt    time.Time  `db:"uploaded_at" json:"uploadedAt"`
}

// ErrImportNotFound indicates a missing import batch.
var ErrImportNotFound = errors.New("import not found")

const importColumns = `import_id, club_id, template_id, batch_name, filename, file_url, role, rows_count,
        file_size_bytes, uploaded_by, uploaded_at`

// ImportStore persists import batches together with the attendees they create.
type ImportStore struct {
	pool *pgxpool.Pool
}

// NewImportStore returns a store backed by the shared pool.
func NewImportStore(ctx context.Context, pool *pgxpool.Pool) (*ImportStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ImportStore{pool: pool}, nil
}

// NewAttendee is one row to insert as part of an import.
type NewAttendee struct {
	Name       string
	StudentID  string
	Email      *string
	Course     *string
	Role       string
	TemplateID *uuid.UUID
}

// CommitImportParams captures the batch metadata and the rows believed to be new.
type CommitImportParams struct {
	ClubID        uuid.UUID
	TemplateID    *uuid.UUID
	BatchName     *string
	Filename      string
	FileURL       *string
	Role          string
	FileSizeBytes int64
	UploadedBy    *string
	Attendees     []NewAttendee
}

// CommitImportResult reports what the transaction actually wrote.
// Conflicts lists student ids another writer committed first.
type CommitImportResult struct {
	Import    ImportRecord
	Inserted  []AttendeeRecord
	Conflicts []string
}

// Commit inserts the import batch and all of its attendees in one transaction.
// Rows colliding with the (club_id, student_id) unique index are skipped and
// reported back as conflicts instead of failing the batch.
func (s *ImportStore) Commit(ctx context.Context, params CommitImportParams) (CommitImportResult, error) {
	var result CommitImportResult

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (club_id, template_id, batch_name, filename, file_url, role, file_size_bytes, uploaded_by)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING %s
        `, ImportsTable, importColumns),
			params.ClubID, params.TemplateID, params.BatchName, params.Filename, params.FileURL,
			params.Role, params.FileSizeBytes, params.UploadedBy,
		)
		imp, err := scanImport(row)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrClubNotFound
			}
			return fmt.Errorf("insert import: %w", err)
		}

		insert := fmt.Sprintf(`
            INSERT INTO %s AS a (club_id, import_id, template_id, name, student_id, email, course, role)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (club_id, student_id) DO NOTHING
            RETURNING %s
        `, AttendeesTable, attendeeColumns)

		result.Inserted = make([]AttendeeRecord, 0, len(params.Attendees))
		for _, att := range params.Attendees {
			rec, err := scanAttendee(tx.QueryRow(ctx, insert,
				params.ClubID, imp.ImportID, att.TemplateID,
				strings.TrimSpace(att.Name), strings.TrimSpace(att.StudentID),
				att.Email, att.Course, att.Role,
			))
			if errors.Is(err, ErrAttendeeNotFound) {
				result.Conflicts = append(result.Conflicts, att.StudentID)
				continue
			}
			if err != nil {
				return fmt.Errorf("insert attendee %q: %w", att.StudentID, err)
			}
			result.Inserted = append(result.Inserted, rec)
		}

		row = tx.QueryRow(ctx, fmt.Sprintf(`UPDATE %s SET rows_count = $2 WHERE import_id = $1 RETURNING %s`,
			ImportsTable, importColumns), imp.ImportID, len(result.Inserted))
		imp, err = scanImport(row)
		if err != nil {
			return fmt.Errorf("update import row count: %w", err)
		}
		result.Import = imp
		return nil
	})
	if err != nil {
		return CommitImportResult{}, err
	}
	return result, nil
}

// Get returns one import batch of the club.
func (s *ImportStore) Get(ctx context.Context, clubID, id uuid.UUID) (ImportRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE import_id = $1 AND club_id = $2`, importColumns, ImportsTable)
	return scanImport(s.pool.QueryRow(ctx, query, id, clubID))
}

// List returns the club's import batches, newest first.
func (s *ImportStore) List(ctx context.Context, clubID uuid.UUID) ([]ImportRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE club_id = $1 ORDER BY uploaded_at DESC`,
		importColumns, ImportsTable), clubID)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	out := []ImportRecord{}
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanImport(row pgx.Row) (ImportRecord, error) {
	var rec ImportRecord
	if err := row.Scan(&rec.ImportID, &rec.ClubID, &rec.TemplateID, &rec.BatchName, &rec.Filename, &rec.FileURL,
		&rec.Role, &rec.RowsCount, &rec.FileSizeBytes, &rec.UploadedBy, &rec.UploadedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ImportRecord{}, ErrImportNotFound
		}
		return ImportRecord{}, err
	}
	return rec, nil
}
