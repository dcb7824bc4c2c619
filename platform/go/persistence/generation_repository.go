package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenerationsTable is the append-only certificate issuance ledger.
const GenerationsTable = "certificate_generations"

// GenerationRecord represents a row in the certificate_generations table.
type GenerationRecord struct {
	GenerationID  uuid.UUID  `db:"generation_id" json:"generationId"`
	ClubID        uuid.UUID  `db:"club_id" json:"clubId"`
	AttendeeID    uuid.UUID  `db:"attendee_id" json:"attendeeId"`
	TemplateID    uuid.UUID  `db:"template_id" json:"templateId"`
	EventID       *uuid.UUID `db:"event_id" json:"eventId,omitempty"`
	CertificateID string     `db:"certificate_id" json:"certificateId"`
	GeneratedBy   string     `db:"generated_by" json:"generatedBy"`
	IPAddress     *string    `db:"ip_address" json:"ipAddress,omitempty"`
	GeneratedAt   time.Time  `db:"generated_at" json:"generatedAt"`
}

const generationColumns = `generation_id, club_id, attendee_id, template_id, event_id, certificate_id,
        generated_by, ip_address, generated_at`

// GenerationStore writes ledger rows and the attendee counters they drive.
type GenerationStore struct {
	pool *pgxpool.Pool
}

// NewGenerationStore returns a store backed by the shared pool.
func NewGenerationStore(ctx context.Context, pool *pgxpool.Pool) (*GenerationStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &GenerationStore{pool: pool}, nil
}

// RecordGenerationParams captures one successful composition.
type RecordGenerationParams struct {
	ClubID        uuid.UUID
	AttendeeID    uuid.UUID
	TemplateID    uuid.UUID
	EventID       *uuid.UUID
	CertificateID string
	GeneratedBy   string
	IPAddress     *string
}

// Record inserts the immutable ledger row and advances the attendee counters in
// the same transaction. NOW() is fixed per transaction, so a first issuance
// leaves first_generated_at equal to last_generated_at and generated_at.
// Callers may only rely on one ledger row per call; concurrent issuances for
// one attendee are allowed to lose counter updates. This store does not: the
// in-place increment row-locks the attendee until commit.
func (s *GenerationStore) Record(ctx context.Context, params RecordGenerationParams) (GenerationRecord, AttendeeRecord, error) {
	var gen GenerationRecord
	var att AttendeeRecord

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (club_id, attendee_id, template_id, event_id, certificate_id, generated_by, ip_address)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING %s
        `, GenerationsTable, generationColumns),
			params.ClubID, params.AttendeeID, params.TemplateID, params.EventID,
			params.CertificateID, params.GeneratedBy, params.IPAddress,
		)
		rec, err := scanGeneration(row)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrAttendeeNotFound
			}
			return fmt.Errorf("insert generation: %w", err)
		}
		gen = rec

		row = tx.QueryRow(ctx, fmt.Sprintf(`
            UPDATE %s AS a SET
                generation_count = a.generation_count + 1,
                first_generated_at = COALESCE(a.first_generated_at, NOW()),
                last_generated_at = NOW(),
                template_id = $3,
                updated_at = NOW()
            WHERE a.attendee_id = $1 AND a.club_id = $2
            RETURNING %s
        `, AttendeesTable, attendeeColumns), params.AttendeeID, params.ClubID, params.TemplateID)
		updated, err := scanAttendee(row)
		if err != nil {
			return fmt.Errorf("advance attendee counters: %w", err)
		}
		att = updated
		return nil
	})
	if err != nil {
		return GenerationRecord{}, AttendeeRecord{}, err
	}
	return gen, att, nil
}

// ListForAttendee returns the attendee's ledger, newest first.
func (s *GenerationStore) ListForAttendee(ctx context.Context, clubID, attendeeID uuid.UUID) ([]GenerationRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE club_id = $1 AND attendee_id = $2 ORDER BY generated_at DESC
    `, generationColumns, GenerationsTable), clubID, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	out := []GenerationRecord{}
	for rows.Next() {
		rec, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanGeneration(row pgx.Row) (GenerationRecord, error) {
	var rec GenerationRecord
	if err := row.Scan(&rec.GenerationID, &rec.ClubID, &rec.AttendeeID, &rec.TemplateID, &rec.EventID,
		&rec.CertificateID, &rec.GeneratedBy, &rec.IPAddress, &rec.GeneratedAt); err != nil {
		return GenerationRecord{}, err
	}
	return rec, nil
}
