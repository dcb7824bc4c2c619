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

// ActivityLogsTable is the append-only admin audit trail.
const ActivityLogsTable = "activity_logs"

// ActivityRecord represents a row in the activity_logs table.
type ActivityRecord struct {
	ActivityID   uuid.UUID      `db:"activity_id" json:"activityId"`
	ClubID       *uuid.UUID     `db:"club_id" json:"clubId,omitempty"`
	ActorID      *string        `db:"actor_id" json:"actorId,omitempty"`
	ActorKind    string         `db:"actor_kind" json:"actorKind"`
	Action       string         `db:"action" json:"action"`
	ResourceType string         `db:"resource_type" json:"resourceType"`
	ResourceID   *string        `db:"resource_id" json:"resourceId,omitempty"`
	Details      map[string]any `db:"details" json:"details"`
	IPAddress    *string        `db:"ip_address" json:"ipAddress,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

const activityColumns = `activity_id, club_id, actor_id, actor_kind, action, resource_type, resource_id, details, ip_address, created_at`

// ActivityStore appends and queries activity log entries.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore returns a store backed by the shared pool.
func NewActivityStore(ctx context.Context, pool *pgxpool.Pool) (*ActivityStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ActivityStore{pool: pool}, nil
}

// AppendActivityParams captures one audit entry.
type AppendActivityParams struct {
	ClubID       *uuid.UUID
	ActorID      *string
	ActorKind    string
	Action       string
	ResourceType string
	ResourceID   *string
	Details      map[string]any
	IPAddress    *string
}

// Append inserts one entry.
func (s *ActivityStore) Append(ctx context.Context, params AppendActivityParams) (ActivityRecord, error) {
	details := params.Details
	if details == nil {
		details = map[string]any{}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return ActivityRecord{}, fmt.Errorf("encode activity details: %w", err)
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (club_id, actor_id, actor_kind, action, resource_type, resource_id, details, ip_address)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING %s
    `, ActivityLogsTable, activityColumns),
		params.ClubID, params.ActorID, params.ActorKind, params.Action, params.ResourceType,
		params.ResourceID, encoded, params.IPAddress,
	)
	return scanActivity(row)
}

// ListActivityParams captures filters and pagination for List.
type ListActivityParams struct {
	ClubID   *uuid.UUID
	Action   *string
	Since    *time.Time
	Page     int
	PageSize int
}

// ListActivityResult includes the rows and the total count for pagination metadata.
type ListActivityResult struct {
	Entries    []ActivityRecord
	TotalItems int
}

// List returns entries newest first.
func (s *ActivityStore) List(ctx context.Context, params ListActivityParams) (ListActivityResult, error) {
	whereSQL, args := activityFilter(params.ClubID, params.Action, params.Since)

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", ActivityLogsTable, whereSQL), args...).Scan(&total); err != nil {
		return ListActivityResult{}, fmt.Errorf("count activity: %w", err)
	}

	result := ListActivityResult{Entries: []ActivityRecord{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	limit, offset := pageWindow(params.Page, params.PageSize)
	dataArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		activityColumns, ActivityLogsTable, whereSQL, len(args)+1, len(args)+2), dataArgs...)
	if err != nil {
		return ListActivityResult{}, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanActivity(rows)
		if err != nil {
			return ListActivityResult{}, err
		}
		result.Entries = append(result.Entries, rec)
	}
	if err := rows.Err(); err != nil {
		return ListActivityResult{}, err
	}
	return result, nil
}

// CountByAction groups entries by action.
func (s *ActivityStore) CountByAction(ctx context.Context, clubID *uuid.UUID, since *time.Time) (map[string]int, error) {
	whereSQL, args := activityFilter(clubID, nil, since)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT action, COUNT(*) FROM %s WHERE %s GROUP BY action`,
		ActivityLogsTable, whereSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("count activity by action: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		out[action] = count
	}
	return out, rows.Err()
}

func activityFilter(clubID *uuid.UUID, action *string, since *time.Time) (string, []any) {
	whereParts := []string{"1=1"}
	var args []any
	if clubID != nil {
		args = append(args, *clubID)
		whereParts = append(whereParts, fmt.Sprintf("club_id = $%d", len(args)))
	}
	if action != nil && strings.TrimSpace(*action) != "" {
		args = append(args, strings.TrimSpace(*action))
		whereParts = append(whereParts, fmt.Sprintf("action = $%d", len(args)))
	}
	if since != nil {
		args = append(args, *since)
		whereParts = append(whereParts, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	return strings.Join(whereParts, " AND "), args
}

func scanActivity(row pgx.Row) (ActivityRecord, error) {
	var rec ActivityRecord
	var details []byte
	if err := row.Scan(&rec.ActivityID, &rec.ClubID, &rec.ActorID, &rec.ActorKind, &rec.Action, &rec.ResourceType,
		&rec.ResourceID, &details, &rec.IPAddress, &rec.CreatedAt); err != nil {
		return ActivityRecord{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return ActivityRecord{}, fmt.Errorf("decode activity details: %w", err)
		}
	}
	return rec, nil
}
