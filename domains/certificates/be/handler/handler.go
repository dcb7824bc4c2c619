package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/certificates/be/render"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/resolve"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

const domain = "certificates"

type operation string

const (
	verifyOperation   operation = "verifyCertificate"
	downloadOperation operation = "downloadCertificate"
	historyOperation  operation = "listAttendeeGenerations"
)

// Service is the certificate flow the handler drives.
type Service interface {
	Verify(ctx context.Context, q resolve.Query) (service.Verification, error)
	Download(ctx context.Context, q resolve.Query) (service.Certificate, error)
	History(ctx context.Context, clubID, attendeeID uuid.UUID) ([]persistence.GenerationRecord, error)
}

// Handler exposes certificate verification and download.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("certificates service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// PublicRoutes mounts the unauthenticated endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/certificates/verify", h.Verify)
	r.Get("/certificates/download", h.Download)
}

// AdminRoutes mounts the club scoped endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/attendees/{attendeeId}/generations", h.History)
}

type verifyRequest struct {
	ClubSlug   string  `json:"clubSlug"`
	Name       string  `json:"name"`
	StudentID  string  `json:"studentId"`
	Role       *string `json:"role,omitempty"`
	EventID    *string `json:"eventId,omitempty"`
	TemplateID *string `json:"templateId,omitempty"`
}

type clubSummary struct {
	ClubID uuid.UUID `json:"clubId"`
	Slug   string    `json:"slug"`
	Name   string    `json:"name"`
}

type attendeeSummary struct {
	AttendeeID uuid.UUID `json:"attendeeId"`
	Name       string    `json:"name"`
	StudentID  string    `json:"studentId"`
	Email      *string   `json:"email,omitempty"`
	Course     *string   `json:"course,omitempty"`
	Role       string    `json:"role"`
	EventName  *string   `json:"eventName,omitempty"`
	EventDate  *string   `json:"eventDate,omitempty"`
}

type templateSummary struct {
	TemplateID uuid.UUID                     `json:"templateId"`
	Name       string                        `json:"name"`
	Version    int                           `json:"version"`
	ImageURL   string                        `json:"imageUrl"`
	Fields     []persistence.FieldDescriptor `json:"fields"`
}

type eventSummary struct {
	EventID   uuid.UUID `json:"eventId"`
	Name      string    `json:"name"`
	EventDate string    `json:"eventDate"`
}

type verifyResponse struct {
	Verified        bool            `json:"verified"`
	CertificateID   string          `json:"certificateId"`
	GenerationCount int             `json:"generationCount"`
	Club            clubSummary     `json:"club"`
	Attendee        attendeeSummary `json:"attendee"`
	Template        templateSummary `json:"template"`
	Event           *eventSummary   `json:"event,omitempty"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := httpapi.DecodeJSON(w, r, &body); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}

	q, err := buildQuery(body.ClubSlug, body.Name, body.StudentID, body.Role, body.EventID, body.TemplateID)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}

	v, err := h.svc.Verify(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err, verifyOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toVerifyResponse(v))
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q, err := buildQuery(
		query.Get("clubSlug"), query.Get("name"), query.Get("studentId"),
		httpapi.OptionalString(query.Get("role")),
		httpapi.OptionalString(query.Get("eventId")),
		httpapi.OptionalString(query.Get("templateId")),
	)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}

	cert, err := h.svc.Download(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err, downloadOperation)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", cert.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(cert.PDF)))
	w.Header().Set("X-Certificate-Id", cert.Receipt.CertificateID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cert.PDF)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	attendeeID, err := httpapi.UUIDParam(r, "attendeeId")
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}

	items, err := h.svc.History(r.Context(), space.ClubID, attendeeID)
	if err != nil {
		h.writeError(w, r, err, historyOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Items[persistence.GenerationRecord]{Items: items})
}

func buildQuery(clubSlug, name, studentID string, role, eventID, templateID *string) (resolve.Query, error) {
	q := resolve.Query{ClubSlug: clubSlug, Name: name, StudentID: studentID, Role: role}
	if eventID != nil {
		id, err := httpapi.OptionalUUID(*eventID, "eventId")
		if err != nil {
			return resolve.Query{}, err
		}
		q.EventID = id
	}
	if templateID != nil {
		id, err := httpapi.OptionalUUID(*templateID, "templateId")
		if err != nil {
			return resolve.Query{}, err
		}
		q.TemplateID = id
	}
	return q, nil
}

func toVerifyResponse(v service.Verification) verifyResponse {
	resp := verifyResponse{
		Verified:        true,
		CertificateID:   v.CertificateID,
		GenerationCount: v.GenerationCount,
		Club:            clubSummary{ClubID: v.Club.ClubID, Slug: v.Club.Slug, Name: v.Club.Name},
		Attendee: attendeeSummary{
			AttendeeID: v.Attendee.AttendeeID,
			Name:       v.Attendee.Name,
			StudentID:  v.Attendee.StudentID,
			Email:      v.Attendee.Email,
			Course:     v.Attendee.Course,
			Role:       v.Attendee.Role,
			EventName:  v.Attendee.EventName,
		},
		Template: templateSummary{
			TemplateID: v.Template.TemplateID,
			Name:       v.Template.Name,
			Version:    v.Template.Version,
			ImageURL:   v.Template.ImageURL,
			Fields:     v.Template.Fields,
		},
	}
	if v.Attendee.EventDate != nil {
		d := v.Attendee.EventDate.Format(time.DateOnly)
		resp.Attendee.EventDate = &d
	}
	if resp.Template.Fields == nil {
		resp.Template.Fields = []persistence.FieldDescriptor{}
	}
	if v.Event != nil {
		resp.Event = &eventSummary{EventID: v.Event.EventID, Name: v.Event.Name, EventDate: v.Event.EventDate.Format(time.DateOnly)}
	}
	return resp
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
	case errors.Is(err, resolve.ErrScopeRequired):
		return httpapi.Problem("Validation failed", "a club or event is required", httpapi.ProblemTypeValidation, http.StatusBadRequest, nil)
	case errors.Is(err, resolve.ErrNotFound):
		return httpapi.Problem("Not found", "no certificate matches the given details", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, resolve.ErrNoActiveTemplate):
		return httpapi.Problem("Not found", "no active certificate template is available", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, render.ErrMissingEventDate):
		return httpapi.Problem("Validation failed", "this certificate needs an event date", httpapi.ProblemTypeValidation, http.StatusUnprocessableEntity, nil)
	case errors.Is(err, render.ErrComposition):
		return httpapi.Problem("Certificate unavailable", "the certificate could not be generated", httpapi.ProblemTypeInternal, http.StatusInternalServerError, nil)
	default:
		return httpapi.Internal()
	}
}
