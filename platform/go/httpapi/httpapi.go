// Package httpapi holds the response plumbing shared by every domain handler:
// JSON bodies, RFC 7807 problem documents and request parameter parsing.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	platformlogging "github.com/Ixotic27/certifyhub/platform/go/logging"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
)

const (
	ProblemTypeValidation   = "https://certifyhub.dev/problems/validation-error"
	ProblemTypeNotFound     = "https://certifyhub.dev/problems/not-found"
	ProblemTypeConflict     = "https://certifyhub.dev/problems/conflict"
	ProblemTypeQuota        = "https://certifyhub.dev/problems/quota-exceeded"
	ProblemTypeUnauthorized = "https://certifyhub.dev/problems/unauthorized"
	ProblemTypeForbidden    = "https://certifyhub.dev/problems/forbidden"
	ProblemTypeInternal     = "https://certifyhub.dev/problems/internal-error"

	problemContentType = "application/problem+json"
	maxJSONBody        = 1 << 20
)

// ProblemDetails is the error body every endpoint returns.
type ProblemDetails struct {
	Type   *string             `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail *string             `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Problem builds a problem document. fieldErrors is copied.
func Problem(title, detail, problemType string, status int, fieldErrors map[string][]string) ProblemDetails {
	problem := ProblemDetails{
		Title:  title,
		Status: status,
	}
	if detail != "" {
		problem.Detail = &detail
	}
	if problemType != "" {
		problem.Type = &problemType
	}
	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = copied
	}
	return problem
}

// BadRequest is a validation problem with no field detail.
func BadRequest(detail string) ProblemDetails {
	return Problem("Invalid request", detail, ProblemTypeValidation, http.StatusBadRequest, nil)
}

// Internal hides the cause behind a generic message.
func Internal() ProblemDetails {
	return Problem("Internal server error", "an unexpected error occurred", ProblemTypeInternal, http.StatusInternalServerError, nil)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem writes p using its own status.
func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// LogProblem logs a rejected operation at a level matching its status.
func LogProblem(ctx context.Context, fallback *zap.Logger, domain, op string, status int, err error) {
	logger := platformlogging.FromContextOr(ctx, fallback)
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("operation", op),
		zap.Int("status", status),
		zap.Error(err),
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error(domain+" operation failed", fields...)
	case status == http.StatusNotFound:
		logger.Info(domain+" resource not found", fields...)
	default:
		logger.Warn(domain+" request rejected", fields...)
	}
}

// DecodeJSON reads a JSON body of at most 1 MiB into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// UUIDParam parses a chi path parameter.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID", name)
	}
	return id, nil
}

// OptionalUUID parses a query or form value; blank means nil.
func OptionalUUID(raw, name string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID", name)
	}
	return &id, nil
}

// OptionalString returns nil for blank values.
func OptionalString(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

// IntQuery reads an integer query parameter, def when absent.
func IntQuery(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// BoolQuery reads a boolean query parameter, def when absent.
func BoolQuery(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return v, nil
}

// ClubSpace returns the club attached by the club space middleware, writing a
// 403 problem when it is missing.
func ClubSpace(w http.ResponseWriter, r *http.Request) (tenant.Space, bool) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		WriteProblem(w, Problem("Forbidden", "club scope required", ProblemTypeForbidden, http.StatusForbidden, nil))
		return tenant.Space{}, false
	}
	return space, true
}

// Page is the pagination envelope of list responses.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Items is the envelope of unpaginated list responses.
type Items[T any] struct {
	Items []T `json:"items"`
}
