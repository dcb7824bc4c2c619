package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
)

type resolverFunc func(ctx context.Context, clubID uuid.UUID) (tenant.Space, error)

func (f resolverFunc) ResolveClubSpace(ctx context.Context, clubID uuid.UUID) (tenant.Space, error) {
	return f(ctx, clubID)
}

func requestWithClub(club string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/club", nil)
	creds := &platformauth.AdminCredentials{Id: "admin-1"}
	if club != "" {
		creds.ClubID = &club
	}
	return req.WithContext(platformauth.WithAdmin(req.Context(), creds))
}

func TestWithClubSpaceResolvesAndCaches(t *testing.T) {
	t.Parallel()

	clubID := uuid.New()
	var calls int32
	resolver := resolverFunc(func(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, clubID, id)
		return tenant.Space{ClubID: id, Slug: "acme", StoragePrefix: tenant.BuildStoragePrefix(id)}, nil
	})

	var seen tenant.Space
	h := WithClubSpace(resolver, Config{CacheTTL: time.Minute})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithClub(clubID.String()))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, "acme", seen.Slug)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWithClubSpaceRejects(t *testing.T) {
	t.Parallel()

	inactive := resolverFunc(func(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
		return tenant.Space{}, ErrClubInactive
	})
	h := WithClubSpace(inactive, Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := map[string]*http.Request{
		"missing claim": requestWithClub(""),
		"malformed id":  requestWithClub("acme"),
		"inactive club": requestWithClub(uuid.NewString()),
	}
	for name, req := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code, name)
	}
}
