package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/domains/roster/be/csvimport"
	"github.com/Ixotic27/certifyhub/domains/roster/be/dedup"
	"github.com/Ixotic27/certifyhub/domains/roster/be/repo"
	"github.com/Ixotic27/certifyhub/platform/go/metrics"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/requesttrace"
	"github.com/Ixotic27/certifyhub/platform/go/storage"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: FieldErrors{field: {message}}}
}

// Domain sentinel errors.
var (
	ErrNotFound        = errors.New("import not found")
	ErrFileUnavailable = errors.New("import file unavailable")
)

const (
	// PreviewLimit caps each row list echoed back to the caller.
	PreviewLimit = 50
	// DefaultRowsLimit and MaxRowsLimit bound ImportRows.
	DefaultRowsLimit = 100
	MaxRowsLimit     = 1000

	defaultMaxFileSize int64 = 5 << 20
)

// Options are the row handling knobs shared by preview and import.
type Options struct {
	TemplateID *uuid.UUID
	Role       string
	Mode       csvimport.Mode
	SkipErrors bool
}

// ImportInput is an uploaded roster file.
type ImportInput struct {
	Options
	Filename  string
	Data      []byte
	BatchName *string
}

// ConfirmInput commits rows returned by an earlier preview.
type ConfirmInput struct {
	TemplateID *uuid.UUID
	Role       string
	BatchName  *string
	Rows       []csvimport.Row
}

// Preview is the dry-run report for a roster.
type Preview struct {
	TotalRows      int
	NewCount       int
	DuplicateCount int
	InvalidCount   int
	NewRows        []csvimport.Row
	DuplicateRows  []csvimport.Row
	Errors         []csvimport.RowError
	// Rows holds every new row so a client can confirm them unchanged.
	Rows []csvimport.Row
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	Import         persistence.ImportRecord
	TotalRows      int
	Imported       int
	DuplicateCount int
	InvalidCount   int
	DuplicateRows  []csvimport.Row
	Errors         []csvimport.RowError
}

// ListAttendeesOptions filters and pages the attendee listing.
type ListAttendeesOptions struct {
	ImportID *uuid.UUID
	Search   *string
	Page     int
	PageSize int
}

// AttendeeList wraps a page of attendees with pagination metadata.
type AttendeeList struct {
	Attendees  []persistence.AttendeeRecord
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// QuotaChecker rejects uploads that would overflow a storage budget.
type QuotaChecker interface {
	Check(ctx context.Context, clubID uuid.UUID, incoming int64) error
}

// ActivityRecorder receives audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, e activityservice.Entry)
}

// Service defines the roster operations. Every call is scoped to a club.
type Service interface {
	Preview(ctx context.Context, clubID uuid.UUID, data []byte, opts Options) (Preview, error)
	Import(ctx context.Context, space tenant.Space, input ImportInput) (ImportResult, error)
	Confirm(ctx context.Context, clubID uuid.UUID, input ConfirmInput) (ImportResult, error)
	ListImports(ctx context.Context, clubID uuid.UUID) ([]persistence.ImportRecord, error)
	ImportRows(ctx context.Context, clubID, importID uuid.UUID, limit int) ([]csvimport.Row, error)
	ListAttendees(ctx context.Context, clubID uuid.UUID, opts ListAttendeesOptions) (AttendeeList, error)
}

// Config carries the roster knobs.
type Config struct {
	DedupScope  dedup.ScopeMode
	MaxFileSize int64
}

// Deps are the collaborators beyond the repository. Objects is required.
type Deps struct {
	Objects  storage.Store
	Quota    QuotaChecker
	Activity ActivityRecorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type service struct {
	repo     repo.Repository
	objects  storage.Store
	quota    QuotaChecker
	activity ActivityRecorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config
}

// New constructs a roster Service instance backed by the provided repository.
func New(r repo.Repository, cfg Config, deps Deps) Service {
	if r == nil {
		panic("roster repository is required")
	}
	if deps.Objects == nil {
		panic("object store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.DedupScope == "" {
		cfg.DedupScope = dedup.ScopeClub
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	return &service{
		repo:     r,
		objects:  deps.Objects,
		quota:    deps.Quota,
		activity: deps.Activity,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      cfg,
	}
}

// checked is a roster after parsing, validation and partitioning.
type checked struct {
	total     int
	role      string
	partition dedup.Result
	errors    []csvimport.RowError
}

func (s *service) Preview(ctx context.Context, clubID uuid.UUID, data []byte, opts Options) (Preview, error) {
	if err := s.checkFile(data); err != nil {
		return Preview{}, err
	}
	rows, err := csvimport.Parse(data)
	if err != nil {
		return Preview{}, err
	}
	c, err := s.check(ctx, clubID, rows, opts)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		TotalRows:      c.total,
		NewCount:       len(c.partition.New),
		DuplicateCount: len(c.partition.Duplicates),
		InvalidCount:   len(c.errors),
		NewRows:        head(c.partition.New),
		DuplicateRows:  head(c.partition.Duplicates),
		Errors:         c.errors,
		Rows:           c.partition.New,
	}, nil
}

// Import runs the full pipeline: parse, validate with the default role,
// partition, quota, store the file and commit. Rows another writer committed
// first come back as conflicts and are reported as duplicates.
func (s *service) Import(ctx context.Context, space tenant.Space, input ImportInput) (ImportResult, error) {
	filename := strings.TrimSpace(path.Base(strings.ReplaceAll(input.Filename, `\`, "/")))
	if filename == "" || filename == "." || filename == "/" {
		filename = "attendees.csv"
	}
	if err := s.checkFile(input.Data); err != nil {
		return ImportResult{}, err
	}
	rows, err := csvimport.Parse(input.Data)
	if err != nil {
		return ImportResult{}, err
	}
	c, err := s.check(ctx, space.ClubID, rows, input.Options)
	if err != nil {
		return ImportResult{}, err
	}

	size := int64(len(input.Data))
	if s.quota != nil {
		if err := s.quota.Check(ctx, space.ClubID, size); err != nil {
			return ImportResult{}, err
		}
	}

	key := tenant.ObjectKey(space.StoragePrefix, tenant.KindImports, "attendees", ".csv")
	url, err := s.objects.Put(ctx, key, input.Data, storage.ContentTypeFor(key))
	if err != nil {
		return ImportResult{}, fmt.Errorf("store roster file: %w", err)
	}

	result, err := s.commit(ctx, space.ClubID, persistence.CommitImportParams{
		ClubID:        space.ClubID,
		TemplateID:    input.TemplateID,
		BatchName:     input.BatchName,
		Filename:      filename,
		FileURL:       &url,
		Role:          c.role,
		FileSizeBytes: size,
	}, c)
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), url); delErr != nil {
			s.logger.Warn("orphaned roster file", zap.String("url", url), zap.Error(delErr))
		}
		return ImportResult{}, err
	}

	s.record(ctx, space.ClubID, activityservice.ActionRosterImported, result)
	return result, nil
}

// Confirm commits previewed rows. They are validated and partitioned again
// because the roster may have changed since the preview.
func (s *service) Confirm(ctx context.Context, clubID uuid.UUID, input ConfirmInput) (ImportResult, error) {
	if len(input.Rows) == 0 {
		return ImportResult{}, invalid("rows", "at least one row is required")
	}
	c, err := s.check(ctx, clubID, input.Rows, Options{TemplateID: input.TemplateID, Role: input.Role, Mode: csvimport.ModeStrict})
	if err != nil {
		return ImportResult{}, err
	}
	filename := "confirmed.csv"
	if input.BatchName != nil {
		filename = *input.BatchName
	}
	result, err := s.commit(ctx, clubID, persistence.CommitImportParams{
		ClubID:     clubID,
		TemplateID: input.TemplateID,
		BatchName:  input.BatchName,
		Filename:   filename,
		Role:       c.role,
	}, c)
	if err != nil {
		return ImportResult{}, err
	}
	s.record(ctx, clubID, activityservice.ActionRosterConfirmed, result)
	return result, nil
}

func (s *service) ListImports(ctx context.Context, clubID uuid.UUID) ([]persistence.ImportRecord, error) {
	return s.repo.ListImports(ctx, clubID)
}

// ImportRows re-reads the stored roster file through the importer.
func (s *service) ImportRows(ctx context.Context, clubID, importID uuid.UUID, limit int) ([]csvimport.Row, error) {
	if limit <= 0 {
		limit = DefaultRowsLimit
	}
	limit = min(limit, MaxRowsLimit)

	imp, err := s.repo.GetImport(ctx, clubID, importID)
	if err != nil {
		if errors.Is(err, persistence.ErrImportNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if imp.FileURL == nil {
		return nil, ErrFileUnavailable
	}
	text, err := storage.GetText(ctx, s.objects, *imp.FileURL)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrFileUnavailable
		}
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	return csvimport.ParseLimit([]byte(text), limit)
}

func (s *service) ListAttendees(ctx context.Context, clubID uuid.UUID, opts ListAttendeesOptions) (AttendeeList, error) {
	page, pageSize := normalizePage(opts.Page, opts.PageSize)
	res, err := s.repo.ListAttendees(ctx, persistence.ListAttendeesParams{
		ClubID:   clubID,
		ImportID: opts.ImportID,
		Search:   opts.Search,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return AttendeeList{}, err
	}
	totalPages := 0
	if res.TotalItems > 0 {
		totalPages = (res.TotalItems + pageSize - 1) / pageSize
	}
	return AttendeeList{
		Attendees:  res.Attendees,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: res.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) checkFile(data []byte) error {
	if len(data) == 0 {
		return invalid("file", "is required")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return invalid("file", fmt.Sprintf("must be at most %d bytes", s.cfg.MaxFileSize))
	}
	return nil
}

func (s *service) check(ctx context.Context, clubID uuid.UUID, rows []csvimport.Row, opts Options) (checked, error) {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = persistence.RoleStudent
	}
	if !slices.Contains([]string{persistence.RoleStudent, persistence.RoleManagement}, role) {
		return checked{}, invalid("role", "must be one of: student, management")
	}
	if opts.Mode == "" {
		opts.Mode = csvimport.ModeStrict
	}
	if opts.TemplateID != nil {
		if _, err := s.repo.GetActiveTemplate(ctx, clubID, *opts.TemplateID); err != nil {
			if errors.Is(err, persistence.ErrTemplateNotFound) {
				return checked{}, invalid("templateId", "no active template with this id in the club")
			}
			return checked{}, err
		}
	}

	validated, err := csvimport.Validate(rows, csvimport.Policy{Mode: opts.Mode, SkipErrors: opts.SkipErrors, DefaultRole: role})
	if err != nil {
		return checked{}, err
	}
	if len(validated.Valid) == 0 {
		return checked{}, invalid("file", "contains no valid rows")
	}

	scope := dedup.NewScope(s.cfg.DedupScope, clubID, opts.TemplateID)
	partition, err := dedup.Partition(ctx, s.repo, validated.Valid, scope)
	if err != nil {
		return checked{}, err
	}
	return checked{total: len(rows), role: role, partition: partition, errors: validated.Errors}, nil
}

func (s *service) commit(ctx context.Context, clubID uuid.UUID, params persistence.CommitImportParams, c checked) (ImportResult, error) {
	audit := requesttrace.FromContextOrAnonymous(ctx)
	params.UploadedBy = audit.UserID
	params.Attendees = make([]persistence.NewAttendee, 0, len(c.partition.New))
	for _, row := range c.partition.New {
		params.Attendees = append(params.Attendees, persistence.NewAttendee{
			Name:       row.Name,
			StudentID:  row.StudentID,
			Email:      optional(row.Email),
			Course:     optional(row.Course),
			Role:       row.Role,
			TemplateID: params.TemplateID,
		})
	}

	committed, err := s.repo.Commit(ctx, params)
	if err != nil {
		if errors.Is(err, persistence.ErrClubNotFound) {
			return ImportResult{}, invalid("clubId", "club not found")
		}
		return ImportResult{}, fmt.Errorf("commit roster: %w", err)
	}

	duplicates := c.partition.Duplicates
	if len(committed.Conflicts) > 0 {
		lost := make(map[string]struct{}, len(committed.Conflicts))
		for _, id := range committed.Conflicts {
			lost[id] = struct{}{}
		}
		duplicates = slices.Clone(duplicates)
		for _, row := range c.partition.New {
			if _, ok := lost[row.StudentID]; ok {
				duplicates = append(duplicates, row)
			}
		}
		s.logger.Info("roster rows claimed by a concurrent import",
			zap.String("club_id", clubID.String()), zap.Int("conflicts", len(committed.Conflicts)))
	}

	s.metrics.RosterRows("new", len(committed.Inserted))
	s.metrics.RosterRows("duplicate", len(duplicates))
	s.metrics.RosterRows("invalid", len(c.errors))

	return ImportResult{
		Import:         committed.Import,
		TotalRows:      c.total,
		Imported:       len(committed.Inserted),
		DuplicateCount: len(duplicates),
		InvalidCount:   len(c.errors),
		DuplicateRows:  head(duplicates),
		Errors:         c.errors,
	}, nil
}

func (s *service) record(ctx context.Context, clubID uuid.UUID, action string, result ImportResult) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, activityservice.Entry{
		ClubID:       &clubID,
		Action:       action,
		ResourceType: "import",
		ResourceID:   result.Import.ImportID.String(),
		Details: map[string]any{
			"filename":   result.Import.Filename,
			"imported":   result.Imported,
			"duplicates": result.DuplicateCount,
			"invalid":    result.InvalidCount,
		},
	})
}

func head(rows []csvimport.Row) []csvimport.Row {
	if len(rows) > PreviewLimit {
		return rows[:PreviewLimit]
	}
	return rows
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
