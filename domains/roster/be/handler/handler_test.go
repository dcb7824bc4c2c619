package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ixotic27/certifyhub/domains/roster/be/csvimport"
	"github.com/Ixotic27/certifyhub/domains/roster/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
)

type mockService struct {
	previewFn       func(ctx context.Context, clubID uuid.UUID, data []byte, opts service.Options) (service.Preview, error)
	importFn        func(ctx context.Context, space tenant.Space, input service.ImportInput) (service.ImportResult, error)
	confirmFn       func(ctx context.Context, clubID uuid.UUID, input service.ConfirmInput) (service.ImportResult, error)
	listImportsFn   func(ctx context.Context, clubID uuid.UUID) ([]persistence.ImportRecord, error)
	importRowsFn    func(ctx context.Context, clubID, importID uuid.UUID, limit int) ([]csvimport.Row, error)
	listAttendeesFn func(ctx context.Context, clubID uuid.UUID, opts service.ListAttendeesOptions) (service.AttendeeList, error)
}

func (m *mockService) Preview(ctx context.Context, clubID uuid.UUID, data []byte, opts service.Options) (service.Preview, error) {
	if m.previewFn == nil {
		panic("previewFn not configured")
	}
	return m.previewFn(ctx, clubID, data, opts)
}

func (m *mockService) Import(ctx context.Context, space tenant.Space, input service.ImportInput) (service.ImportResult, error) {
	if m.importFn == nil {
		panic("importFn not configured")
	}
	return m.importFn(ctx, space, input)
}

func (m *mockService) Confirm(ctx context.Context, clubID uuid.UUID, input service.ConfirmInput) (service.ImportResult, error) {
	if m.confirmFn == nil {
		panic("confirmFn not configured")
	}
	return m.confirmFn(ctx, clubID, input)
}

func (m *mockService) ListImports(ctx context.Context, clubID uuid.UUID) ([]persistence.ImportRecord, error) {
	if m.listImportsFn == nil {
		panic("listImportsFn not configured")
	}
	return m.listImportsFn(ctx, clubID)
}

func (m *mockService) ImportRows(ctx context.Context, clubID, importID uuid.UUID, limit int) ([]csvimport.Row, error) {
	if m.importRowsFn == nil {
		panic("importRowsFn not configured")
	}
	return m.importRowsFn(ctx, clubID, importID, limit)
}

func (m *mockService) ListAttendees(ctx context.Context, clubID uuid.UUID, opts service.ListAttendeesOptions) (service.AttendeeList, error) {
	if m.listAttendeesFn == nil {
		panic("listAttendeesFn not configured")
	}
	return m.listAttendeesFn(ctx, clubID, opts)
}

func router(t *testing.T, svc service.Service, space *tenant.Space) http.Handler {
	t.Helper()
	h := New(svc, zaptest.NewLogger(t), 1<<20)
	r := chi.NewRouter()
	if space != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(tenant.WithSpace(req.Context(), *space)))
			})
		})
	}
	r.Route("/admin", h.AdminRoutes)
	return r
}

func uploadRequest(t *testing.T, target string, fields map[string]string, csv string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if csv != "" {
		part, err := mw.CreateFormFile("file", "roster.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(csv))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPreviewUpload(t *testing.T) {
	t.Parallel()

	space := tenant.Space{ClubID: uuid.New()}
	templateID := uuid.New()
	svc := &mockService{previewFn: func(_ context.Context, clubID uuid.UUID, data []byte, opts service.Options) (service.Preview, error) {
		require.Equal(t, space.ClubID, clubID)
		require.Equal(t, "name,student_id\nAda,S1\n", string(data))
		require.Equal(t, templateID, *opts.TemplateID)
		require.Equal(t, csvimport.ModeLenient, opts.Mode)
		require.True(t, opts.SkipErrors)
		return service.Preview{TotalRows: 1, NewCount: 1, NewRows: []csvimport.Row{{Line: 2, Name: "Ada", StudentID: "S1"}}}, nil
	}}

	rec := httptest.NewRecorder()
	router(t, svc, &space).ServeHTTP(rec, uploadRequest(t, "/admin/roster/preview", map[string]string{
		"templateId": templateID.String(),
		"mode":       "lenient",
		"skipErrors": "true",
	}, "name,student_id\nAda,S1\n"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 1, body["newCount"])
	require.Equal(t, []any{}, body["duplicateRows"])
	require.Equal(t, "S1", body["newRows"].([]any)[0].(map[string]any)["studentId"])
}

func TestUploadFormValidation(t *testing.T) {
	t.Parallel()

	space := tenant.Space{ClubID: uuid.New()}
	rec := httptest.NewRecorder()
	router(t, &mockService{}, &space).ServeHTTP(rec, uploadRequest(t, "/admin/roster/import", map[string]string{
		"mode":       "loose",
		"templateId": "nope",
	}, ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Errors, "file")
	require.Contains(t, body.Errors, "mode")
	require.Contains(t, body.Errors, "templateId")
}

func TestImportErrorMapping(t *testing.T) {
	t.Parallel()

	space := tenant.Space{ClubID: uuid.New()}
	cases := []struct {
		err    error
		status int
		key    string
	}{
		{&csvimport.MissingColumnsError{Missing: []string{"student_id"}}, http.StatusBadRequest, "file"},
		{&csvimport.RowError{Line: 3, Field: "email", Message: "must be a valid email address"}, http.StatusBadRequest, "rows[line 3].email"},
		{csvimport.ErrMalformedInput, http.StatusBadRequest, ""},
		{service.ErrNotFound, http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		svc := &mockService{importFn: func(context.Context, tenant.Space, service.ImportInput) (service.ImportResult, error) {
			return service.ImportResult{}, tc.err
		}}
		rec := httptest.NewRecorder()
		router(t, svc, &space).ServeHTTP(rec, uploadRequest(t, "/admin/roster/import", nil, "name\n"))
		require.Equal(t, tc.status, rec.Code)
		if tc.key != "" {
			require.Contains(t, rec.Body.String(), tc.key)
		}
	}
}

func TestImportCreated(t *testing.T) {
	t.Parallel()

	space := tenant.Space{ClubID: uuid.New()}
	svc := &mockService{importFn: func(_ context.Context, _ tenant.Space, input service.ImportInput) (service.ImportResult, error) {
		require.Equal(t, "roster.csv", input.Filename)
		require.Equal(t, "Week 1", *input.BatchName)
		require.Equal(t, "management", input.Role)
		return service.ImportResult{Imported: 2, TotalRows: 2}, nil
	}}
	rec := httptest.NewRecorder()
	router(t, svc, &space).ServeHTTP(rec, uploadRequest(t, "/admin/roster/import", map[string]string{
		"batchName": "Week 1",
		"role":      "management",
	}, "name,student_id\nAda,S1\nBo,S2\n"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"imported":2`)
}

func TestConfirmDecodesRows(t *testing.T) {
	t.Parallel()

	space := tenant.Space{ClubID: uuid.New()}
	svc := &mockService{confirmFn: func(_ context.Context, _ uuid.UUID, input service.ConfirmInput) (service.ImportResult, error) {
		require.Len(t, input.Rows, 1)
		require.Equal(t, "S1", input.Rows[0].StudentID)
		return service.ImportResult{Imported: 1}, nil
	}}
	rec := httptest.NewRecorder()
	router(t, svc, &space).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/roster/confirm",
		strings.NewReader(`{"role":"student","rows":[{"line":2,"name":"Ada","studentId":"S1"}]}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestListEndpoints(t *testing.T) {
	t.Parallel()

	space := tenant.Space{ClubID: uuid.New()}
	importID := uuid.New()
	svc := &mockService{
		importRowsFn: func(_ context.Context, _, got uuid.UUID, limit int) ([]csvimport.Row, error) {
			require.Equal(t, importID, got)
			require.Equal(t, 5, limit)
			return nil, service.ErrFileUnavailable
		},
		listAttendeesFn: func(_ context.Context, _ uuid.UUID, opts service.ListAttendeesOptions) (service.AttendeeList, error) {
			require.Equal(t, "ada", *opts.Search)
			require.Equal(t, importID, *opts.ImportID)
			return service.AttendeeList{Attendees: []persistence.AttendeeRecord{{Name: "Ada"}}, Page: 1, PageSize: 20, TotalItems: 1, TotalPages: 1}, nil
		},
	}
	r := router(t, svc, &space)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/roster/imports/"+importID.String()+"/rows?limit=5", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/attendees?search=ada&importId="+importID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"totalItems":1`)

	rec = httptest.NewRecorder()
	router(t, svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/roster/imports", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
