package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/admins/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

const (
	domain   = "admins"
	basePath = "/api/v1/platform/administrators"
)

type operation string

const (
	createOperation     operation = "createAdministrator"
	listOperation       operation = "listAdministrators"
	getOperation        operation = "getAdministrator"
	activateOperation   operation = "activateAdministrator"
	deactivateOperation operation = "deactivateAdministrator"
)

// Handler wires the administrator directory to the platform routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("admins service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) PlatformRoutes(r chi.Router) {
	r.Post("/clubs/{clubId}/administrators", h.Create)
	r.Get("/clubs/{clubId}/administrators", h.List)
	r.Get("/administrators/{adminId}", h.Get)
	r.Post("/administrators/{adminId}/activate", h.Activate)
	r.Post("/administrators/{adminId}/deactivate", h.Deactivate)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	clubID, ok := uuidParam(w, r, "clubId")
	if !ok {
		return
	}
	var input service.CreateInput
	if err := httpapi.DecodeJSON(w, r, &input); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	admin, err := h.svc.Create(r.Context(), clubID, input)
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%s", basePath, admin.AdminID))
	httpapi.WriteJSON(w, http.StatusCreated, admin)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	clubID, ok := uuidParam(w, r, "clubId")
	if !ok {
		return
	}
	page, err := httpapi.IntQuery(r, "page", 1)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	pageSize, err := httpapi.IntQuery(r, "pageSize", 50)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	res, err := h.svc.List(r.Context(), clubID, service.ListOptions{Page: page, PageSize: pageSize})
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Page[persistence.AdminRecord]{
		Items: res.Admins, Page: res.Page, PageSize: res.PageSize, TotalItems: res.TotalItems, TotalPages: res.TotalPages,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "adminId")
	if !ok {
		return
	}
	admin, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, admin)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Activate, activateOperation)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Deactivate, deactivateOperation)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (persistence.AdminRecord, error), op operation) {
	id, ok := uuidParam(w, r, "adminId")
	if !ok {
		return
	}
	admin, err := fn(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, op)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, admin)
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := httpapi.UUIDParam(r, name)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return uuid.Nil, false
	}
	return id, true
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
	case errors.Is(err, service.ErrClubNotFound):
		return httpapi.Problem("Resource not found", "club not found", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrNotFound):
		return httpapi.Problem("Resource not found", "administrator not found", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrConflict):
		return httpapi.Problem("Conflict", "an administrator with this email already exists", httpapi.ProblemTypeConflict, http.StatusConflict, nil)
	default:
		return httpapi.Internal()
	}
}
