package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/roster/be/csvimport"
	"github.com/Ixotic27/certifyhub/domains/roster/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/quota"
)

const (
	domain       = "roster"
	formOverhead = 1 << 20
)

type operation string

const (
	previewOperation       operation = "previewRoster"
	importOperation        operation = "importRoster"
	confirmOperation       operation = "confirmRoster"
	listImportsOperation   operation = "listImports"
	importRowsOperation    operation = "listImportRows"
	listAttendeesOperation operation = "listAttendees"
)

// Handler wires the roster service to the club admin routes.
type Handler struct {
	svc         service.Service
	logger      *zap.Logger
	maxFileSize int64
}

// New constructs a Handler instance. maxFileSize bounds the uploaded CSV.
func New(svc service.Service, logger *zap.Logger, maxFileSize int64) *Handler {
	if svc == nil {
		panic("roster service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &Handler{svc: svc, logger: logger, maxFileSize: maxFileSize}
}

// AdminRoutes mounts the club scoped roster endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/roster/preview", h.Preview)
	r.Post("/roster/import", h.Import)
	r.Post("/roster/confirm", h.Confirm)
	r.Get("/roster/imports", h.ListImports)
	r.Get("/roster/imports/{importId}/rows", h.ImportRows)
	r.Get("/attendees", h.ListAttendees)
}

type previewResponse struct {
	TotalRows      int                  `json:"totalRows"`
	NewCount       int                  `json:"newCount"`
	DuplicateCount int                  `json:"duplicateCount"`
	InvalidCount   int                  `json:"invalidCount"`
	NewRows        []csvimport.Row      `json:"newRows"`
	DuplicateRows  []csvimport.Row      `json:"duplicateRows"`
	Errors         []csvimport.RowError `json:"errors"`
	Rows           []csvimport.Row      `json:"rows"`
}

type importResponse struct {
	Import         persistence.ImportRecord `json:"import"`
	TotalRows      int                      `json:"totalRows"`
	Imported       int                      `json:"imported"`
	DuplicateCount int                      `json:"duplicateCount"`
	InvalidCount   int                      `json:"invalidCount"`
	DuplicateRows  []csvimport.Row          `json:"duplicateRows"`
	Errors         []csvimport.RowError     `json:"errors"`
}

type confirmRequest struct {
	TemplateID *uuid.UUID      `json:"templateId"`
	Role       string          `json:"role"`
	BatchName  *string         `json:"batchName"`
	Rows       []csvimport.Row `json:"rows"`
}

// upload is the parsed multipart roster form.
type upload struct {
	filename string
	data     []byte
	opts     service.Options
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	preview, err := h.svc.Preview(r.Context(), space.ClubID, up.data, up.opts)
	if err != nil {
		h.writeError(w, r, err, previewOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, previewResponse{
		TotalRows:      preview.TotalRows,
		NewCount:       preview.NewCount,
		DuplicateCount: preview.DuplicateCount,
		InvalidCount:   preview.InvalidCount,
		NewRows:        nonNil(preview.NewRows),
		DuplicateRows:  nonNil(preview.DuplicateRows),
		Errors:         nonNilErrors(preview.Errors),
		Rows:           nonNil(preview.Rows),
	})
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Import(r.Context(), space, service.ImportInput{
		Options:   up.opts,
		Filename:  up.filename,
		Data:      up.data,
		BatchName: httpapi.OptionalString(r.FormValue("batchName")),
	})
	if err != nil {
		h.writeError(w, r, err, importOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toImportResponse(res))
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	res, err := h.svc.Confirm(r.Context(), space.ClubID, service.ConfirmInput{
		TemplateID: req.TemplateID,
		Role:       req.Role,
		BatchName:  req.BatchName,
		Rows:       req.Rows,
	})
	if err != nil {
		h.writeError(w, r, err, confirmOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toImportResponse(res))
}

func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	imports, err := h.svc.ListImports(r.Context(), space.ClubID)
	if err != nil {
		h.writeError(w, r, err, listImportsOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Items[persistence.ImportRecord]{Items: imports})
}

func (h *Handler) ImportRows(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	importID, err := httpapi.UUIDParam(r, "importId")
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	limit, err := httpapi.IntQuery(r, "limit", service.DefaultRowsLimit)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	rows, err := h.svc.ImportRows(r.Context(), space.ClubID, importID, limit)
	if err != nil {
		h.writeError(w, r, err, importRowsOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Items[csvimport.Row]{Items: nonNil(rows)})
}

func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	space, ok := httpapi.ClubSpace(w, r)
	if !ok {
		return
	}
	page, err := httpapi.IntQuery(r, "page", 1)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	pageSize, err := httpapi.IntQuery(r, "pageSize", 20)
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	importID, err := httpapi.OptionalUUID(r.URL.Query().Get("importId"), "importId")
	if err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest(err.Error()))
		return
	}
	list, err := h.svc.ListAttendees(r.Context(), space.ClubID, service.ListAttendeesOptions{
		ImportID: importID,
		Search:   httpapi.OptionalString(r.URL.Query().Get("search")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(w, r, err, listAttendeesOperation)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, httpapi.Page[persistence.AttendeeRecord]{
		Items: list.Attendees, Page: list.Page, PageSize: list.PageSize, TotalItems: list.TotalItems, TotalPages: list.TotalPages,
	})
}

// readUpload parses the multipart form: file, templateId, role, mode and
// skipErrors. It writes a 400 and returns false on malformed input.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+formOverhead)
	if err := r.ParseMultipartForm(h.maxFileSize + formOverhead); err != nil {
		httpapi.WriteProblem(w, httpapi.BadRequest("request must be multipart/form-data within the upload limit"))
		return upload{}, false
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var up upload
	fieldErrors := map[string][]string{}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		fieldErrors["file"] = []string{"is required"}
	case err != nil:
		fieldErrors["file"] = []string{"could not be read"}
	default:
		defer file.Close()
		up.filename = header.Filename
		up.data, err = io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
		if err != nil {
			fieldErrors["file"] = []string{"could not be read"}
		}
	}

	if up.opts.TemplateID, err = httpapi.OptionalUUID(r.FormValue("templateId"), "templateId"); err != nil {
		fieldErrors["templateId"] = []string{err.Error()}
	}
	if up.opts.Mode, err = csvimport.ParseMode(r.FormValue("mode")); err != nil {
		fieldErrors["mode"] = []string{"must be one of: strict, lenient"}
	}
	if raw := strings.TrimSpace(r.FormValue("skipErrors")); raw != "" {
		if up.opts.SkipErrors, err = strconv.ParseBool(raw); err != nil {
			fieldErrors["skipErrors"] = []string{"must be a boolean"}
		}
	}
	up.opts.Role = r.FormValue("role")

	if len(fieldErrors) > 0 {
		httpapi.WriteProblem(w, httpapi.Problem("Validation failed", "one or more fields are invalid", httpapi.ProblemTypeValidation, http.StatusBadRequest, fieldErrors))
		return upload{}, false
	}
	return up, true
}

func toImportResponse(res service.ImportResult) importResponse {
	return importResponse{
		Import:         res.Import,
		TotalRows:      res.TotalRows,
		Imported:       res.Imported,
		DuplicateCount: res.DuplicateCount,
		InvalidCount:   res.InvalidCount,
		DuplicateRows:  nonNil(res.DuplicateRows),
		Errors:         nonNilErrors(res.Errors),
	}
}

func nonNil(rows []csvimport.Row) []csvimport.Row {
	if rows == nil {
		return []csvimport.Row{}
	}
	return rows
}

func nonNilErrors(errs []csvimport.RowError) []csvimport.RowError {
	if errs == nil {
		return []csvimport.RowError{}
	}
	return errs
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	problem := classifyError(err)
	httpapi.LogProblem(r.Context(), h.logger, domain, string(op), problem.Status, err)
	httpapi.WriteProblem(w, problem)
}

func classifyError(err error) httpapi.ProblemDetails {
	var (
		validationErr *service.ValidationError
		missingErr    *csvimport.MissingColumnsError
		rowErr        *csvimport.RowError
	)
	switch {
	case errors.As(err, &validationErr):
		return httpapi.Problem("Validation failed", "one or more fields are invalid", httpapi.ProblemTypeValidation, http.StatusBadRequest, validationErr.Fields)
	case errors.As(err, &missingErr):
		return httpapi.Problem("Validation failed", missingErr.Error(), httpapi.ProblemTypeValidation, http.StatusBadRequest,
			map[string][]string{"file": {missingErr.Error()}})
	case errors.As(err, &rowErr):
		key := fmt.Sprintf("rows[line %d].%s", rowErr.Line, rowErr.Field)
		return httpapi.Problem("Validation failed", rowErr.Error(), httpapi.ProblemTypeValidation, http.StatusBadRequest,
			map[string][]string{key: {rowErr.Message}})
	case errors.Is(err, csvimport.ErrMalformedInput):
		return httpapi.Problem("Validation failed", "the file is not a usable CSV roster", httpapi.ProblemTypeValidation, http.StatusBadRequest, nil)
	case errors.Is(err, quota.ErrQuotaExceeded):
		return httpapi.Problem("Storage quota exceeded", "the upload would exceed the storage quota", httpapi.ProblemTypeQuota, http.StatusRequestEntityTooLarge, nil)
	case errors.Is(err, service.ErrNotFound):
		return httpapi.Problem("Resource not found", "import not found", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrFileUnavailable):
		return httpapi.Problem("Resource not found", "the import has no stored file", httpapi.ProblemTypeNotFound, http.StatusNotFound, nil)
	default:
		return httpapi.Internal()
	}
}
