package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ixotic27/certifyhub/domains/clubs/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
)

type mockService struct {
	createFn     func(ctx context.Context, input service.CreateInput) (persistence.ClubRecord, error)
	getFn        func(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	getPublicFn  func(ctx context.Context, slug string) (service.PublicClub, error)
	listFn       func(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	deactivateFn func(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	reactivateFn func(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	statsFn      func(ctx context.Context, id uuid.UUID) (service.Stats, error)
	analyticsFn  func(ctx context.Context) (service.Analytics, error)
}

func (m *mockService) Create(ctx context.Context, input service.CreateInput) (persistence.ClubRecord, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, input)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockService) GetPublic(ctx context.Context, slug string) (service.PublicClub, error) {
	if m.getPublicFn == nil {
		panic("getPublicFn not configured")
	}
	return m.getPublicFn(ctx, slug)
}

func (m *mockService) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, opts)
}

func (m *mockService) Deactivate(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	if m.deactivateFn == nil {
		panic("deactivateFn not configured")
	}
	return m.deactivateFn(ctx, id)
}

func (m *mockService) Reactivate(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	if m.reactivateFn == nil {
		panic("reactivateFn not configured")
	}
	return m.reactivateFn(ctx, id)
}

func (m *mockService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

func (m *mockService) Stats(ctx context.Context, id uuid.UUID) (service.Stats, error) {
	if m.statsFn == nil {
		panic("statsFn not configured")
	}
	return m.statsFn(ctx, id)
}

func (m *mockService) Analytics(ctx context.Context) (service.Analytics, error) {
	if m.analyticsFn == nil {
		panic("analyticsFn not configured")
	}
	return m.analyticsFn(ctx)
}

func (m *mockService) ResolveClubSpace(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
	panic("ResolveClubSpace not used by the handler")
}

func router(t *testing.T, svc service.Service, space *tenant.Space) http.Handler {
	t.Helper()
	h := New(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Route("/public", h.PublicRoutes)
	r.Route("/platform", h.PlatformRoutes)
	r.Route("/admin", func(r chi.Router) {
		if space != nil {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					next.ServeHTTP(w, req.WithContext(tenant.WithSpace(req.Context(), *space)))
				})
			})
		}
		h.AdminRoutes(r)
	})
	return r
}

func TestListPublicOnlyActive(t *testing.T) {
	t.Parallel()

	svc := &mockService{listFn: func(_ context.Context, opts service.ListOptions) (service.ListResult, error) {
		require.True(t, opts.ActiveOnly)
		require.Equal(t, 2, opts.Page)
		return service.ListResult{Clubs: []persistence.ClubRecord{{Slug: "acme", Name: "Acme", ContactEmail: "private@acme.example"}}, Page: 2, PageSize: 20, TotalItems: 21, TotalPages: 2}, nil
	}}

	rec := httptest.NewRecorder()
	router(t, svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/clubs?page=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "private@acme.example")
	var page struct {
		Items []map[string]any `json:"items"`
		Page  int              `json:"page"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, "acme", page.Items[0]["slug"])
	require.Equal(t, 2, page.Page)
}

func TestGetPublicIncludesTemplates(t *testing.T) {
	t.Parallel()

	svc := &mockService{getPublicFn: func(_ context.Context, slug string) (service.PublicClub, error) {
		require.Equal(t, "acme", slug)
		return service.PublicClub{
			Club:      persistence.ClubRecord{Slug: "acme", Name: "Acme"},
			Templates: []persistence.TemplateRecord{{Name: "Participation", Audience: "student"}},
		}, nil
	}}

	rec := httptest.NewRecorder()
	router(t, svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/clubs/acme", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "acme", body["slug"])
	require.Len(t, body["templates"], 1)
}

func TestCreateClub(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{createFn: func(_ context.Context, input service.CreateInput) (persistence.ClubRecord, error) {
		require.Equal(t, "acme", input.Slug)
		require.Equal(t, "lead@acme.example", input.ContactEmail)
		return persistence.ClubRecord{ClubID: id, Slug: "acme"}, nil
	}}

	rec := httptest.NewRecorder()
	router(t, svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/platform/clubs",
		strings.NewReader(`{"slug":"acme","name":"Acme","contactEmail":"lead@acme.example"}`)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/platform/clubs/"+id.String(), rec.Header().Get("Location"))
}

func TestCreateClubErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
	}{
		{&service.ValidationError{Fields: service.FieldErrors{"slug": {"is required"}}}, http.StatusBadRequest},
		{service.ErrConflict, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &mockService{createFn: func(context.Context, service.CreateInput) (persistence.ClubRecord, error) {
			return persistence.ClubRecord{}, tc.err
		}}
		rec := httptest.NewRecorder()
		router(t, svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/platform/clubs", strings.NewReader(`{}`)))
		require.Equal(t, tc.status, rec.Code)
	}
}

func TestDeleteAndToggle(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{
		deleteFn: func(_ context.Context, got uuid.UUID) error {
			require.Equal(t, id, got)
			return nil
		},
		deactivateFn: func(_ context.Context, got uuid.UUID) (persistence.ClubRecord, error) {
			return persistence.ClubRecord{ClubID: got, IsActive: false}, nil
		},
		reactivateFn: func(_ context.Context, got uuid.UUID) (persistence.ClubRecord, error) {
			return persistence.ClubRecord{}, service.ErrNotFound
		},
	}
	r := router(t, svc, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/platform/clubs/"+id.String(), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/platform/clubs/"+id.String()+"/deactivate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"isActive":false`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/platform/clubs/"+id.String()+"/reactivate", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/platform/clubs/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnClubStats(t *testing.T) {
	t.Parallel()

	space := tenant.Space{ClubID: uuid.New(), Slug: "acme"}
	svc := &mockService{statsFn: func(_ context.Context, id uuid.UUID) (service.Stats, error) {
		require.Equal(t, space.ClubID, id)
		return service.Stats{ClubStats: persistence.ClubStats{Generations: 7}, BytesUsed: 10, BytesLimit: 100}, nil
	}}

	rec := httptest.NewRecorder()
	router(t, svc, &space).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/club/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 7, body.Generations)
	require.EqualValues(t, 100, body.BytesLimit)

	rec = httptest.NewRecorder()
	router(t, svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/club", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
