package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/templates/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/quota"
)

const (
	domain        = "templates"
	adminBasePath = "/api/v1/admin/templates"
	formOverhead  = 1 << 20
)

type operation string

const (
	listOperation         operation = "listTemplates"
	createOperation       operation = "createTemplate"
	getOperation          operation = "getTemplate"
	updateFieldsOperation operation = "updateTemplateFields"
	deactivateOperation   operation = "deactivateTemplate"
	statsOperation        operation = "getTemplateStats"
)

// Handler wires the templates service to the club admin routes.
type Handler struct {
	svc           service.Service
	logger        *zap.Logger
	maxUploadSize int64
}

// New constructs a Handler instance. maxUploadSize bounds the multipart body.
func New(svc service.Service, logger *zap.Logger, maxUploadSize int64) *Handler {
	if svc == nil {
		panic("templates service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if maxUploadSize <= 0 {
		maxUploadSize = service.DefaultMaxUploadSize
	}
	return &Handler{svc: svc, logger: logger, maxUploadSize: maxUploadSize}
}

// AdminRoutes mounts the club scoped template endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/templates", h.List)
	r.Post("/templates", h.Create)
	r.Route("/templates/{templateId}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/fields", h.UpdateFields)
		r.Post("/deactivate", h.Deactivate)
		r.Get("/stats", h.Stats)
	})
}

type updateFieldsRequest struct {
	Fields json.RawMessage `json:"fields"`
}

type statsResponse struct {
	TemplateID      uuid.UUID  `json:"templateId"`
	Name            string     `json:"name"`
	Version         int        `json:"version"`
	IsActive        bool       `json:"isActive"`
	Generations     int        `json:"generations"`
	LastGeneratedAt *time.Time `json:"lastGeneratedAt,omitempty"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	activeOnly, err := httpapi.BoolQuery(r, "activeOnly", false)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	templates, err := h.svc.List(r.Context(), space.ClubID, activeOnly)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Items[persistence.TemplateRecord]{Items: templates})
}

// Create accepts a multipart form with name, audience, eventName, fields and
// the image file.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize + formOverhead); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest("request must be multipart/form-data within the upload limit"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	input := service.CreateInput{
		Name:      r.FormValue("name"),
		Audience:  r.FormValue("audience"),
		EventName: httpapi.OptionalString(r.FormValue("eventName")),
		Fields:    []byte(r.FormValue("fields")),
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		httpapi.WriteProblem(w, httpapi.BadRequest("image could not be read"))
		return
	default:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
		if err != nil {
			httpapi.WriteProblem(w, httpapi.BadRequest("image could not be read"))
			return
		}
		input.Image = service.Image{
			Filename:    header.Filename,
			ContentType: strings.TrimSpace(strings.SplitN(header.Header.Get("Content-Type"), ";", 2)[0]),
			Data:        data,
		}
	}

	record, err := h.svc.Create(r.Context(), space, input)
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%s", adminBasePath, record.TemplateID))
	httpapi.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	clubID, id, ok := scope(w, r)
	if !ok {
		return
	}
	record, err := h.svc.Get(r.Context(), clubID, id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, record)
}

// UpdateFields accepts {"fields": [...]}.
func (h *Handler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	clubID, id, ok := scope(w, r)
	if !ok {
		return
	}
	var req updateFieldsRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	record, err := h.svc.UpdateFields(r.Context(), clubID, id, req.Fields)
	if err != nil {
		h.writeError(w, r, err, updateFieldsOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	clubID, id, ok := scope(w, r)
	if !ok {
		return
	}
	record, err := h.svc.Deactivate(r.Context(), clubID, id)
	if err != nil {
		h.writeError(w, r, err, deactivateOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	clubID, id, ok := scope(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(r.Context(), clubID, id)
	if err != nil {
		h.writeError(w, r, err, statsOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, statsResponse{
		TemplateID:      stats.Template.TemplateID,
		Name:            stats.Template.Name,
		Version:         stats.Template.Version,
		IsActive:        stats.Template.IsActive,
		Generations:     stats.Generations,
		LastGeneratedAt: stats.LastGeneratedAt,
	})
}

func scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := httpapi.UUIDParam(r, "templateId")
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
		return httpapi.Problem("Resource not found", "template not found", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrConflict):
		return httpapi.Problem("Conflict", "an active template with this name and audience already exists", httpapi.ProblemTypeConflict, http.StatusConflict, nil)
	case errors.Is(err, quota.ErrQuotaExceeded):
		return httpapi.Problem("Storage quota exceeded", "the upload would exceed the storage quota", httpapi.ProblemTypeQuota, http.StatusRequestEntityTooLarge, nil)
	default:
		return httpapi.Internal()
	}
}
