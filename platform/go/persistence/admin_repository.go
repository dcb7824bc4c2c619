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

// AdminsTable is the club administrator directory. Credentials live with the
// identity provider; this table maps its accounts onto clubs.
const AdminsTable = "club_administrators"

// AdminRecord represents a row in the club_administrators table.
type AdminRecord struct {
	AdminID   uuid.UUID `db:"admin_id" json:"adminId"`
	ClubID    uuid.UUID `db:"club_id" json:"clubId"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"fullName"`
	AuthUID   string    `db:"auth_uid" json:"authUid"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrAdminNotFound indicates a missing administrator.
	ErrAdminNotFound = errors.New("administrator not found")
	// ErrAdminConflict indicates a duplicated email or identity.
	ErrAdminConflict = errors.New("administrator conflict")
)

const adminColumns = `admin_id, club_id, email, full_name, auth_uid, is_active, created_at, updated_at`

// AdminStore provides access to the club_administrators table.
type AdminStore struct {
	pool *pgxpool.Pool
}

// NewAdminStore returns a store backed by the shared pool.
func NewAdminStore(ctx context.Context, pool *pgxpool.Pool) (*AdminStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AdminStore{pool: pool}, nil
}

// CreateAdminParams captures the fields required to register an administrator.
type CreateAdminParams struct {
	ClubID   uuid.UUID
	Email    string
	FullName string
	AuthUID  string
}

// Create inserts an active administrator. A missing club surfaces as ErrClubNotFound.
func (s *AdminStore) Create(ctx context.Context, params CreateAdminParams) (AdminRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (club_id, email, full_name, auth_uid)
        VALUES ($1, $2, $3, $4)
        RETURNING %s
    `, AdminsTable, adminColumns),
		params.ClubID,
		strings.ToLower(strings.TrimSpace(params.Email)),
		strings.TrimSpace(params.FullName),
		params.AuthUID,
	)

	rec, err := scanAdmin(row)
	switch {
	case err == nil:
		return rec, nil
	case isUniqueViolation(err):
		return AdminRecord{}, ErrAdminConflict
	case isForeignKeyViolation(err):
		return AdminRecord{}, ErrClubNotFound
	default:
		return AdminRecord{}, err
	}
}

// Get returns one administrator.
func (s *AdminStore) Get(ctx context.Context, id uuid.UUID) (AdminRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE admin_id = $1`, adminColumns, AdminsTable)
	return scanAdmin(s.pool.QueryRow(ctx, query, id))
}

// GetByEmail returns the administrator registered under email, case-insensitively.
func (s *AdminStore) GetByEmail(ctx context.Context, email string) (AdminRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE LOWER(email) = LOWER($1)`, adminColumns, AdminsTable)
	return scanAdmin(s.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

// ListAdminsParams captures pagination for List.
type ListAdminsParams struct {
	ClubID   uuid.UUID
	Page     int
	PageSize int
}

// ListAdminsResult includes the rows and the total count for pagination metadata.
type ListAdminsResult struct {
	Admins     []AdminRecord
	TotalItems int
}

// List returns a club's administrators, newest first.
func (s *AdminStore) List(ctx context.Context, params ListAdminsParams) (ListAdminsResult, error) {
	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE club_id = $1", AdminsTable), params.ClubID).Scan(&total); err != nil {
		return ListAdminsResult{}, fmt.Errorf("count administrators: %w", err)
	}

	result := ListAdminsResult{Admins: []AdminRecord{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	limit, offset := pageWindow(params.Page, params.PageSize)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE club_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		adminColumns, AdminsTable), params.ClubID, limit, offset)
	if err != nil {
		return ListAdminsResult{}, fmt.Errorf("list administrators: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanAdmin(rows)
		if err != nil {
			return ListAdminsResult{}, err
		}
		result.Admins = append(result.Admins, rec)
	}
	if err := rows.Err(); err != nil {
		return ListAdminsResult{}, err
	}
	return result, nil
}

// SetActive flips the active flag.
func (s *AdminStore) SetActive(ctx context.Context, id uuid.UUID, active bool) (AdminRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = $2, updated_at = NOW() WHERE admin_id = $1
        RETURNING %s
    `, AdminsTable, adminColumns), id, active)
	return scanAdmin(row)
}

func scanAdmin(row pgx.Row) (AdminRecord, error) {
	var rec AdminRecord
	if err := row.Scan(&rec.AdminID, &rec.ClubID, &rec.Email, &rec.FullName, &rec.AuthUID, &rec.IsActive,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdminRecord{}, ErrAdminNotFound
		}
		return AdminRecord{}, err
	}
	return rec, nil
}
