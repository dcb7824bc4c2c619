package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/platform/go/metrics"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/requesttrace"
)

// Actions recorded in the activity log.
const (
	ActionCertificateGenerated = "certificate.generated"
	ActionTemplateCreated      = "template.created"
	ActionTemplateUpdated      = "template.fields_updated"
	ActionTemplateDeactivated  = "template.deactivated"
	ActionRosterImported       = "roster.imported"
	ActionRosterConfirmed      = "roster.confirmed"
	ActionEventCreated         = "event.created"
	ActionEventDeactivated     = "event.deactivated"
	ActionClubCreated          = "club.created"
	ActionClubDeactivated      = "club.deactivated"
	ActionClubReactivated      = "club.reactivated"
	ActionClubDeleted          = "club.deleted"
	ActionAdminCreated         = "admin.created"
	ActionAdminActivated       = "admin.activated"
	ActionAdminDeactivated     = "admin.deactivated"
)

// Entry is one thing an actor did. The actor and IP come from the request trace.
type Entry struct {
	ClubID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

// Repository abstracts the append-only log table.
type Repository interface {
	Append(ctx context.Context, params persistence.AppendActivityParams) (persistence.ActivityRecord, error)
	List(ctx context.Context, params persistence.ListActivityParams) (persistence.ListActivityResult, error)
	CountByAction(ctx context.Context, clubID *uuid.UUID, since *time.Time) (map[string]int, error)
}

// ListOptions filters a club's log. Days limits to the trailing window; zero means all.
type ListOptions struct {
	Action   *string
	Days     int
	Page     int
	PageSize int
}

// ListResult wraps paginated entries.
type ListResult struct {
	Entries    []persistence.ActivityRecord
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service records and reads activity entries.
type Service struct {
	repo    Repository
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(repo Repository, logger *zap.Logger, m *metrics.Metrics) *Service {
	if repo == nil {
		panic("activity repo is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, metrics: m, now: time.Now}
}

// Record appends e and never fails: a write error is logged, counted and swallowed.
func (s *Service) Record(ctx context.Context, e Entry) {
	audit := requesttrace.FromContextOrAnonymous(ctx)

	params := persistence.AppendActivityParams{
		ClubID:       e.ClubID,
		ActorKind:    string(audit.ActorKind),
		ActorID:      audit.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		Details:      e.Details,
	}
	if e.ResourceID != "" {
		id := e.ResourceID
		params.ResourceID = &id
	}
	if audit.ClientIP != "" {
		ip := audit.ClientIP
		params.IPAddress = &ip
	}

	if _, err := s.repo.Append(context.WithoutCancel(ctx), params); err != nil {
		s.metrics.ActivityLogFailed()
		s.logger.Warn("activity log write failed",
			zap.String("action", e.Action),
			zap.String("resource_type", e.ResourceType),
			zap.String("request_id", audit.RequestID),
			zap.Error(err),
		)
	}
}

// List returns a club's entries, newest first.
func (s *Service) List(ctx context.Context, clubID uuid.UUID, opts ListOptions) (ListResult, error) {
	page, size := normalizePage(opts.Page, opts.PageSize)
	res, err := s.repo.List(ctx, persistence.ListActivityParams{
		ClubID:   &clubID,
		Action:   opts.Action,
		Since:    s.since(opts.Days),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Entries:    res.Entries,
		Page:       page,
		PageSize:   size,
		TotalItems: res.TotalItems,
		TotalPages: (res.TotalItems + size - 1) / size,
	}, nil
}

// Stats counts a club's entries per action over the trailing days.
func (s *Service) Stats(ctx context.Context, clubID uuid.UUID, days int) (map[string]int, error) {
	return s.repo.CountByAction(ctx, &clubID, s.since(days))
}

func (s *Service) since(days int) *time.Time {
	if days <= 0 {
		return nil
	}
	t := s.now().UTC().AddDate(0, 0, -days)
	return &t
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
