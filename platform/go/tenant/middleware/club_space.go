package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
)

// ErrClubInactive is returned by resolvers for deactivated clubs.
var ErrClubInactive = errors.New("club inactive")

// Resolver defines the minimal lookup capability required to populate a club Space.
// Implemented by the clubs service.
type Resolver interface {
	ResolveClubSpace(ctx context.Context, clubID uuid.UUID) (tenant.Space, error)
}

// Config controls middleware behavior.
type Config struct {
	// Optional small in-memory TTL cache to avoid DB hits; zero disables caching.
	CacheTTL time.Duration
}

// WithClubSpace resolves the club from the admin's clubId claim and attaches tenant.Space to context.
// Requests without a club claim are rejected, as are claims naming a missing or inactive club.
func WithClubSpace(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("club middleware: resolver is required")
	}

	var cache *spaceCache
	if cfg.CacheTTL > 0 {
		cache = newSpaceCache(cfg.CacheTTL)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := platformauth.AdminFromContext(r.Context())
			if !ok || creds == nil || creds.ClubID == nil || *creds.ClubID == "" {
				http.Error(w, "club required", http.StatusForbidden)
				return
			}

			clubID, err := uuid.Parse(*creds.ClubID)
			if err != nil {
				http.Error(w, "invalid club id", http.StatusForbidden)
				return
			}

			if cached, ok := cache.get(clubID); ok {
				next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), cached)))
				return
			}

			space, err := resolver.ResolveClubSpace(r.Context(), clubID)
			if errors.Is(err, ErrClubInactive) {
				http.Error(w, "club inactive", http.StatusForbidden)
				return
			}
			if err != nil {
				http.Error(w, "club not found", http.StatusForbidden)
				return
			}

			cache.put(space)
			next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), space)))
		})
	}
}

type spaceCache struct {
	ttl   time.Duration
	mu    sync.Mutex
	items map[uuid.UUID]cacheItem
}

type cacheItem struct {
	space     tenant.Space
	expiresAt time.Time
}

func newSpaceCache(ttl time.Duration) *spaceCache {
	return &spaceCache{ttl: ttl, items: make(map[uuid.UUID]cacheItem)}
}

func (c *spaceCache) get(id uuid.UUID) (tenant.Space, bool) {
	if c == nil {
		return tenant.Space{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok || time.Now().After(item.expiresAt) {
		delete(c.items, id)
		return tenant.Space{}, false
	}
	return item.space, true
}

func (c *spaceCache) put(space tenant.Space) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[space.ClubID] = cacheItem{space: space, expiresAt: time.Now().Add(c.ttl)}
}
