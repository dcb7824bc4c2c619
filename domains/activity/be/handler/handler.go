package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

const domain = "activity"

type operation string

const (
	listOperation  operation = "listActivity"
	statsOperation operation = "getActivityStats"
)

// Reader is the read side of the activity service.
type Reader interface {
	List(ctx context.Context, clubID uuid.UUID, opts service.ListOptions) (service.ListResult, error)
	Stats(ctx context.Context, clubID uuid.UUID, days int) (map[string]int, error)
}

type Handler struct {
	svc    Reader
	logger *zap.Logger
}

func New(svc Reader, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("activity service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/activity", h.List)
	r.Get("/activity/stats", h.Stats)
}

type statsResponse struct {
	Days     int            `json:"days"`
	Total    int            `json:"total"`
	ByAction map[string]int `json:"byAction"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	opts := service.ListOptions{Action: httpapi.OptionalString(r.URL.Query().Get("action"))}
	var err error
	if opts.Days, err = httpapi.IntQuery(r, "days", 0); err == nil {
		if opts.Page, err = httpapi.IntQuery(r, "page", 1); err == nil {
			opts.PageSize, err = httpapi.IntQuery(r, "pageSize", 20)
		}
	}
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}

	res, err := h.svc.List(r.Context(), space.ClubID, opts)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Page[persistence.ActivityRecord]{
		Items: res.Entries, Page: res.Page, PageSize: res.PageSize, TotalItems: res.TotalItems, TotalPages: res.TotalPages,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	days, err := httpapi.IntQuery(r, "days", 30)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	counts, err := h.svc.Stats(r.Context(), space.ClubID, days)
	if err != nil {
		h.writeError(w, r, err, statsOperation)
		return
	}
	resp := statsResponse{Days: days, ByAction: counts}
	for _, n := range counts {
		resp.Total += n
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	httpapi.LogProblem(r.Context(), h.logger, domain, string(op), http.StatusInternalServerError, err)
	httpapi.WriteProblem(w, httpapi.Internal())
}
