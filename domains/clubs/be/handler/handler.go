package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/clubs/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

const (
	domain           = "clubs"
	platformBasePath = "/api/v1/platform/clubs"
)

type operation string

const (
	listPublicOperation operation = "listPublicClubs"
	getPublicOperation  operation = "getPublicClub"
	getOwnOperation     operation = "getOwnClub"
	ownStatsOperation   operation = "getOwnClubStats"
	listOperation       operation = "listClubs"
	createOperation     operation = "createClub"
	getOperation        operation = "getClub"
	deleteOperation     operation = "deleteClub"
	deactivateOperation operation = "deactivateClub"
	reactivateOperation operation = "reactivateClub"
	statsOperation      operation = "getClubStats"
	analyticsOperation  operation = "getPlatformAnalytics"
)

// Handler wires the clubs service to the public, club admin and platform routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("clubs service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/clubs", h.ListPublic)
	r.Get("/clubs/{slug}", h.GetPublic)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/club", h.GetOwn)
	r.Get("/club/stats", h.OwnStats)
}

func (h *Handler) PlatformRoutes(r chi.Router) {
	r.Get("/clubs", h.List)
	r.Post("/clubs", h.Create)
	r.Get("/clubs/{clubId}", h.Get)
	r.Delete("/clubs/{clubId}", h.Delete)
	r.Post("/clubs/{clubId}/deactivate", h.Deactivate)
	r.Post("/clubs/{clubId}/reactivate", h.Reactivate)
	r.Get("/clubs/{clubId}/stats", h.Stats)
	r.Get("/analytics", h.Analytics)
}

type publicClub struct {
	ClubID  uuid.UUID `json:"clubId"`
	Slug    string    `json:"slug"`
	Name    string    `json:"name"`
	LogoURL *string   `json:"logoUrl,omitempty"`
}

type publicTemplate struct {
	TemplateID uuid.UUID `json:"templateId"`
	Name       string    `json:"name"`
	Audience   string    `json:"audience"`
	EventName  *string   `json:"eventName,omitempty"`
	ImageURL   string    `json:"imageUrl"`
}

type publicClubDetail struct {
	publicClub
	Templates []publicTemplate `json:"templates"`
}

type statsResponse struct {
	Attendees       int        `json:"attendees"`
	Templates       int        `json:"templates"`
	ActiveTemplates int        `json:"activeTemplates"`
	Imports         int        `json:"imports"`
	Events          int        `json:"events"`
	Generations     int        `json:"generations"`
	LastGeneratedAt *time.Time `json:"lastGeneratedAt,omitempty"`
	BytesUsed       int64      `json:"bytesUsed"`
	BytesLimit      int64      `json:"bytesLimit"`
}

type analyticsResponse struct {
	Clubs       int   `json:"clubs"`
	ActiveClubs int   `json:"activeClubs"`
	Templates   int   `json:"templates"`
	Attendees   int   `json:"attendees"`
	Generations int   `json:"generations"`
	BytesUsed   int64 `json:"bytesUsed"`
	BytesLimit  int64 `json:"bytesLimit"`
}

func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}
	res, err := h.svc.List(r.Context(), service.ListOptions{ActiveOnly: true, Page: page, PageSize: pageSize})
	if err != nil {
		h.writeError(w, r, err, listPublicOperation)
		return
	}
	items := make([]publicClub, 0, len(res.Clubs))
	for _, c := range res.Clubs {
		items = append(items, toPublicClub(c))
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Page[publicClub]{
		Items: items, Page: res.Page, PageSize: res.PageSize, TotalItems: res.TotalItems, TotalPages: res.TotalPages,
	})
}

func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	club, err := h.svc.GetPublic(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err, getPublicOperation)
		return
	}
	detail := publicClubDetail{publicClub: toPublicClub(club.Club), Templates: make([]publicTemplate, 0, len(club.Templates))}
	for _, t := range club.Templates {
		detail.Templates = append(detail.Templates, publicTemplate{
			TemplateID: t.TemplateID, Name: t.Name, Audience: t.Audience, EventName: t.EventName, ImageURL: t.ImageURL,
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) GetOwn(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	club, err := h.svc.Get(r.Context(), space.ClubID)
	if err != nil {
		h.writeError(w, r, err, getOwnOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, club)
}

func (h *Handler) OwnStats(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	h.writeStats(w, r, space.ClubID, ownStatsOperation)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}
	activeOnly, err := httpapi.BoolQuery(r, "activeOnly", false)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	res, err := h.svc.List(r.Context(), service.ListOptions{ActiveOnly: activeOnly, Page: page, PageSize: pageSize})
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Page[persistence.ClubRecord]{
		Items: res.Clubs, Page: res.Page, PageSize: res.PageSize, TotalItems: res.TotalItems, TotalPages: res.TotalPages,
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := httpapi.DecodeJSON(w, r, &input); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	club, err := h.svc.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%s", platformBasePath, club.ClubID))
	httpapi.WriteJSON(w, http.StatusCreated, club)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := clubID(w, r)
	if !ok {
		return
	}
	club, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, club)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := clubID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err, deleteOperation)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Deactivate, deactivateOperation)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Reactivate, reactivateOperation)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (persistence.ClubRecord, error), op operation) {
	id, ok := clubID(w, r)
	if !ok {
		return
	}
	club, err := fn(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, op)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, club)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := clubID(w, r)
	if !ok {
		return
	}
	h.writeStats(w, r, id, statsOperation)
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Analytics(r.Context())
	if err != nil {
		h.writeError(w, r, err, analyticsOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, analyticsResponse{
		Clubs: a.Clubs, ActiveClubs: a.ActiveClubs, Templates: a.Templates, Attendees: a.Attendees,
		Generations: a.Generations, BytesUsed: a.BytesUsed, BytesLimit: a.BytesLimit,
	})
}

func (h *Handler) writeStats(w http.ResponseWriter, r *http.Request, id uuid.UUID, op operation) {
	s, err := h.svc.Stats(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, op)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, statsResponse{
		Attendees: s.Attendees, Templates: s.Templates, ActiveTemplates: s.ActiveTemplates, Imports: s.Imports,
		Events: s.Events, Generations: s.Generations, LastGeneratedAt: s.LastGeneratedAt,
		BytesUsed: s.BytesUsed, BytesLimit: s.BytesLimit,
	})
}

func toPublicClub(c persistence.ClubRecord) publicClub {
	return publicClub{ClubID: c.ClubID, Slug: c.Slug, Name: c.Name, LogoURL: c.LogoURL}
}

func clubID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := httpapi.UUIDParam(r, "clubId")
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return uuid.Nil, false
	}
	return id, true
}

func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := httpapi.IntQuery(r, "page", 1)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return 0, 0, false
	}
	pageSize, err := httpapi.IntQuery(r, "pageSize", 20)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return 0, 0, false
	}
	return page, pageSize, true
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
		return httpapi.Problem("Resource not found", "club not found", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrConflict):
		return httpapi.Problem("Conflict", "a club with this slug or contact email already exists", httpapi.ProblemTypeConflict, http.StatusConflict, nil)
	default:
		return httpapi.Internal()
	}
}
