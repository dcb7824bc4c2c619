package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/events/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

const (
	domain        = "events"
	adminBasePath = "/api/v1/admin/events"
)

type operation string

const (
	listOperation       operation = "listEvents"
	createOperation     operation = "createEvent"
	getOperation        operation = "getEvent"
	deactivateOperation operation = "deactivateEvent"
)

// Handler wires the events service to the club admin routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("events service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// AdminRoutes mounts the club scoped event endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/events", h.List)
	r.Post("/events", h.Create)
	r.Get("/events/{eventId}", h.Get)
	r.Post("/events/{eventId}/deactivate", h.Deactivate)
}

type createRequest struct {
	TemplateID  uuid.UUID `json:"templateId"`
	ImportID    uuid.UUID `json:"importId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	EventDate   string    `json:"eventDate"`
	Role        string    `json:"role"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	events, err := h.svc.List(r.Context(), space.ClubID)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Items[persistence.EventRecord]{Items: events})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	input := service.CreateInput{
		TemplateID:  req.TemplateID,
		ImportID:    req.ImportID,
		Name:        req.Name,
		Description: req.Description,
		Role:        req.Role,
	}
	if strings.TrimSpace(req.EventDate) != "" {
		date, err := parseDate(req.EventDate)
		if err != nil {
			httpapi.WriteProblem(w, httpapi.Problem("Validation failed", "one or more fields are invalid", httpapi.ProblemTypeValidation,
				http.StatusBadRequest, map[string][]string{"eventDate": {"must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"}}))
			return
		}
		input.EventDate = date
	}

	event, err := h.svc.Create(r.Context(), space.ClubID, input)
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%s", adminBasePath, event.EventID))
	httpapi.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	clubID, id, ok := scope(w, r)
	if !ok {
		return
	}
	event, err := h.svc.Get(r.Context(), clubID, id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	clubID, id, ok := scope(w, r)
	if !ok {
		return
	}
	event, err := h.svc.Deactivate(r.Context(), clubID, id)
	if err != nil {
		h.writeError(w, r, err, deactivateOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, event)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := httpapi.UUIDParam(r, "eventId")
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return uuid.Nil, uuid.Nil, false
	}
	return space.ClubID, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	problem := classifyError(err)
	httpapi.LogProblem(r.Context(), h.logger, domain, string(op), problem.Status, err)
	httpapi.WriteProblem(w, problem)
}

func classifyError(err error) httpapi.ProblemDetails {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return httpapi.Problem("Validation failed", "one or more fields are invalid", httpapi.ProblemTypeValidation, http.StatusBadRequest, validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return httpapi.Problem("Resource not found", "event not found", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	default:
		return httpapi.Internal()
	}
}
