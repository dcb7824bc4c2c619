package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Space captures the club an admin request operates on. Middleware attaches it
// once the club claim was resolved to an active club.
type Space struct {
	ClubID        uuid.UUID
	Slug          string
	Name          string
	StoragePrefix string
}

type ctxKey string

const spaceKey ctxKey = "CERTIFYHUB_CLUB_SPACE"

// WithSpace returns a derived context carrying the club Space.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, spaceKey, space)
}

// FromContext extracts the club Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	v := ctx.Value(spaceKey)
	if v == nil {
		return Space{}, false
	}

	space, ok := v.(Space)
	return space, ok
}
