package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// Repository defines the persistence operations required by the admins service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateAdminParams) (persistence.AdminRecord, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.AdminRecord, error)
	GetByEmail(ctx context.Context, email string) (persistence.AdminRecord, error)
	List(ctx context.Context, params persistence.ListAdminsParams) (persistence.ListAdminsResult, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (persistence.AdminRecord, error)
	Club(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
}

type postgresRepository struct {
	*persistence.AdminStore
	clubs *persistence.ClubStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(admins *persistence.AdminStore, clubs *persistence.ClubStore) Repository {
	if admins == nil || clubs == nil {
		panic("admin and club stores are required")
	}
	return &postgresRepository{AdminStore: admins, clubs: clubs}
}

func (r *postgresRepository) Club(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	return r.clubs.Get(ctx, id)
}
