package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/domains/certificates/be/ledger"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/resolve"
	"github.com/Ixotic27/certifyhub/platform/go/metrics"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/requesttrace"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the request is malformed.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

const (
	maxNameLength      = 200
	maxStudentIDLength = 50
)

// Repository is everything the certificate flow reads and writes.
type Repository interface {
	resolve.Repository
	ledger.Store
	TemplateByID(ctx context.Context, id uuid.UUID) (persistence.TemplateRecord, error)
	Generations(ctx context.Context, clubID, attendeeID uuid.UUID) ([]persistence.GenerationRecord, error)
}

// ImageFetcher loads a template image by its stored URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Composer renders a certificate PDF.
type Composer interface {
	Compose(ctx context.Context, templateImage []byte, fields []persistence.FieldDescriptor, att persistence.AttendeeRecord, tpl persistence.TemplateRecord) ([]byte, error)
}

// Verification is what a requester sees before downloading.
type Verification struct {
	Club            persistence.ClubRecord
	Attendee        persistence.AttendeeRecord
	Template        persistence.TemplateRecord
	Event           *persistence.EventRecord
	CertificateID   string
	GenerationCount int
}

// Certificate is a composed and recorded PDF.
type Certificate struct {
	PDF      []byte
	Filename string
	Receipt  ledger.Receipt
}

// Config carries the public surface knobs.
type Config struct {
	// GlobalLookup lets queries without a club or event search every club.
	GlobalLookup bool
}

type Service struct {
	repo     Repository
	engine   *resolve.Engine
	ledger   *ledger.Ledger
	images   ImageFetcher
	composer Composer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config
}

// New wires the service. m and logger may be nil.
func New(repo Repository, l *ledger.Ledger, images ImageFetcher, composer Composer, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Service {
	if repo == nil {
		panic("certificates repository is required")
	}
	if l == nil {
		panic("certificates ledger is required")
	}
	if images == nil {
		panic("template image fetcher is required")
	}
	if composer == nil {
		panic("certificate composer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		engine:   resolve.New(repo),
		ledger:   l,
		images:   images,
		composer: composer,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// Verify resolves the attendee and template without recording anything.
func (s *Service) Verify(ctx context.Context, q resolve.Query) (Verification, error) {
	res, err := s.resolve(ctx, q)
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Club:            res.Club,
		Attendee:        res.Attendee,
		Template:        res.Template,
		Event:           res.Event,
		CertificateID:   ledger.CertificateID(res.Club.Slug, res.Attendee.StudentID),
		GenerationCount: res.Attendee.GenerationCount,
	}, nil
}

// Download resolves, composes and records one certificate. Nothing is
// recorded unless composition succeeded, and the PDF is only returned once
// the ledger write succeeded.
func (s *Service) Download(ctx context.Context, q resolve.Query) (Certificate, error) {
	res, err := s.resolve(ctx, q)
	if err != nil {
		return Certificate{}, err
	}

	image, err := s.images.Fetch(ctx, res.Template.ImageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Certificate{}, ctxErr
		}
		// The composer decides whether an unusable image is fatal.
		s.logger.Warn("template image fetch failed",
			zap.String("template_id", res.Template.TemplateID.String()),
			zap.String("image_url", res.Template.ImageURL),
			zap.Error(err),
		)
		image = nil
	}

	started := time.Now()
	pdf, err := s.composer.Compose(ctx, image, res.Template.Fields, res.Attendee, res.Template)
	if err != nil {
		return Certificate{}, fmt.Errorf("compose certificate: %w", err)
	}
	s.metrics.CompositionDone(started)

	audit := requesttrace.FromContextOrAnonymous(ctx)
	generatedBy := audit.Actor()
	if audit.ActorKind == requesttrace.ActorKindAnonymous {
		generatedBy = "public"
	}

	receipt, err := s.ledger.Record(ctx, ledger.Entry{
		Club:        res.Club,
		Attendee:    res.Attendee,
		Template:    res.Template,
		Event:       res.Event,
		RequesterIP: audit.ClientIP,
		GeneratedBy: generatedBy,
	})
	if err != nil {
		return Certificate{}, err
	}
	return Certificate{PDF: pdf, Filename: receipt.Filename, Receipt: receipt}, nil
}

// History lists an attendee's generations, newest first.
func (s *Service) History(ctx context.Context, clubID, attendeeID uuid.UUID) ([]persistence.GenerationRecord, error) {
	return s.repo.Generations(ctx, clubID, attendeeID)
}

func (s *Service) resolve(ctx context.Context, q resolve.Query) (resolve.Resolution, error) {
	if err := validateQuery(q); err != nil {
		return resolve.Resolution{}, err
	}
	q = s.withTemplateClub(ctx, q)
	return s.engine.Resolve(ctx, q, s.cfg.GlobalLookup)
}

// withTemplateClub scopes a club-less query to the club owning its template.
func (s *Service) withTemplateClub(ctx context.Context, q resolve.Query) resolve.Query {
	if strings.TrimSpace(q.ClubSlug) != "" || q.EventID != nil || q.TemplateID == nil {
		return q
	}
	tpl, err := s.repo.TemplateByID(ctx, *q.TemplateID)
	if err != nil {
		if !errors.Is(err, resolve.ErrNotFound) {
			s.logger.Warn("template club lookup failed", zap.String("template_id", q.TemplateID.String()), zap.Error(err))
		}
		return q
	}
	club, err := s.repo.Club(ctx, tpl.ClubID)
	if err != nil || !club.IsActive {
		return q
	}
	q.ClubSlug = club.Slug
	return q
}

func validateQuery(q resolve.Query) error {
	fieldErrors := FieldErrors{}
	name := strings.TrimSpace(q.Name)
	switch {
	case name == "":
		fieldErrors["name"] = append(fieldErrors["name"], "is required")
	case len(name) > maxNameLength:
		fieldErrors["name"] = append(fieldErrors["name"], fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	studentID := strings.TrimSpace(q.StudentID)
	switch {
	case studentID == "":
		fieldErrors["studentId"] = append(fieldErrors["studentId"], "is required")
	case len(studentID) > maxStudentIDLength:
		fieldErrors["studentId"] = append(fieldErrors["studentId"], fmt.Sprintf("must be at most %d characters", maxStudentIDLength))
	}
	if q.Role != nil {
		switch strings.ToLower(strings.TrimSpace(*q.Role)) {
		case "", persistence.RoleStudent, persistence.RoleManagement:
		default:
			fieldErrors["role"] = append(fieldErrors["role"], "must be student or management")
		}
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}
