package httpapi

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
)

func TestWriteProblem(t *testing.T) {
	t.Parallel()

	fields := map[string][]string{"name": {"is required"}}
	p := Problem("Validation failed", "one or more fields are invalid", ProblemTypeValidation, http.StatusBadRequest, fields)
	fields["name"][0] = "mutated"

	rec := httptest.NewRecorder()
	WriteProblem(rec, p)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ProblemTypeValidation, body["type"])
	require.Equal(t, map[string]any{"name": []any{"is required"}}, body["errors"])
}

func TestProblemOmitsEmptyParts(t *testing.T) {
	t.Parallel()

	p := Problem("Not found", "", "", http.StatusNotFound, nil)
	require.Nil(t, p.Detail)
	require.Nil(t, p.Type)
	require.Nil(t, p.Errors)
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"acme"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	require.Equal(t, "acme", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.EqualError(t, DecodeJSON(httptest.NewRecorder(), req, &dst), "request body is required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	require.Error(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
}

func TestParams(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/x?page=3&active=true&bad=x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	rctx.URLParams.Add("other", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := UUIDParam(req, "id")
	require.NoError(t, err)
	require.Equal(t, id, got)
	_, err = UUIDParam(req, "other")
	require.EqualError(t, err, "other must be a UUID")

	page, err := IntQuery(req, "page", 1)
	require.NoError(t, err)
	require.Equal(t, 3, page)
	size, err := IntQuery(req, "pageSize", 20)
	require.NoError(t, err)
	require.Equal(t, 20, size)
	_, err = IntQuery(req, "bad", 0)
	require.Error(t, err)

	active, err := BoolQuery(req, "active", false)
	require.NoError(t, err)
	require.True(t, active)

	opt, err := OptionalUUID("  ", "template_id")
	require.NoError(t, err)
	require.Nil(t, opt)
	_, err = OptionalUUID("x", "template_id")
	require.EqualError(t, err, "template_id must be a UUID")
	require.Nil(t, OptionalString(" "))
	require.Equal(t, "a", *OptionalString(" a "))
}
