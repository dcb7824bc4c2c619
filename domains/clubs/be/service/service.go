package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/domains/clubs/be/repo"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/quota"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
	tenantmiddleware "github.com/Ixotic27/certifyhub/platform/go/tenant/middleware"
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

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("club not found")
	ErrConflict = errors.New("club conflict")
)

// CreateInput is the payload for registering a club.
type CreateInput struct {
	Slug         string  `json:"slug" validate:"required"`
	Name         string  `json:"name" validate:"required,min=2,max=200"`
	ContactEmail string  `json:"contactEmail" validate:"required,email,max=255"`
	LogoURL      *string `json:"logoUrl" validate:"omitempty,url,max=500"`
}

// ListOptions controls pagination and the active filter.
type ListOptions struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}

// ListResult wraps a page of clubs with pagination metadata.
type ListResult struct {
	Clubs      []persistence.ClubRecord
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// PublicClub is an active club with the templates it currently issues.
type PublicClub struct {
	Club      persistence.ClubRecord
	Templates []persistence.TemplateRecord
}

// Stats are a club's counters plus its storage budget.
type Stats struct {
	persistence.ClubStats
	BytesUsed  int64
	BytesLimit int64
}

// Analytics are platform-wide counters plus the platform storage budget.
type Analytics struct {
	persistence.PlatformStats
	BytesUsed  int64
	BytesLimit int64
}

// ObjectPurger removes every stored object under a key prefix.
type ObjectPurger interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// ActivityRecorder receives audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, e activityservice.Entry)
}

// Service defines the business operations for the clubs domain.
type Service interface {
	Create(ctx context.Context, input CreateInput) (persistence.ClubRecord, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	GetPublic(ctx context.Context, slug string) (PublicClub, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Deactivate(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	Reactivate(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (Stats, error)
	Analytics(ctx context.Context) (Analytics, error)
	ResolveClubSpace(ctx context.Context, id uuid.UUID) (tenant.Space, error)
}

// Deps are the collaborators beyond the repository. All are optional.
type Deps struct {
	Objects       ObjectPurger
	Activity      ActivityRecorder
	Logger        *zap.Logger
	ClubLimit     int64
	PlatformLimit int64
}

type service struct {
	repo          repo.Repository
	objects       ObjectPurger
	activity      ActivityRecorder
	logger        *zap.Logger
	clubLimit     int64
	platformLimit int64
}

// New constructs a clubs Service instance backed by the provided repository.
func New(r repo.Repository, deps Deps) Service {
	if r == nil {
		panic("clubs repository is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ClubLimit <= 0 {
		deps.ClubLimit = quota.DefaultClubLimit
	}
	if deps.PlatformLimit <= 0 {
		deps.PlatformLimit = quota.DefaultPlatformLimit
	}
	return &service{
		repo:          r,
		objects:       deps.Objects,
		activity:      deps.Activity,
		logger:        deps.Logger,
		clubLimit:     deps.ClubLimit,
		platformLimit: deps.PlatformLimit,
	}
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func (s *service) Create(ctx context.Context, input CreateInput) (persistence.ClubRecord, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.ContactEmail = strings.TrimSpace(input.ContactEmail)
	if input.LogoURL != nil && strings.TrimSpace(*input.LogoURL) == "" {
		input.LogoURL = nil
	}

	fieldErrors := FieldErrors{}
	slug, slugErr := persistence.NormalizeSlug(input.Slug)
	if slugErr != nil {
		fieldErrors.add("slug", slugErr.Error())
	}
	if err := inputValidator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return persistence.ClubRecord{}, err
		}
		for _, fe := range verrs {
			if fe.Field() == "slug" && slugErr != nil {
				continue
			}
			fieldErrors.add(fe.Field(), ruleMessage(fe))
		}
	}
	if len(fieldErrors) > 0 {
		return persistence.ClubRecord{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.Create(ctx, persistence.CreateClubParams{
		Slug:         slug,
		Name:         input.Name,
		ContactEmail: input.ContactEmail,
		LogoURL:      input.LogoURL,
	})
	if err != nil {
		return persistence.ClubRecord{}, mapPersistenceError(err)
	}

	s.record(ctx, &record.ClubID, activityservice.ActionClubCreated, record.ClubID, map[string]any{"slug": record.Slug})
	return record, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	if id == uuid.Nil {
		return persistence.ClubRecord{}, ErrNotFound
	}
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return persistence.ClubRecord{}, mapPersistenceError(err)
	}
	return record, nil
}

func (s *service) GetPublic(ctx context.Context, slug string) (PublicClub, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return PublicClub{}, ErrNotFound
	}
	club, err := s.repo.GetActiveBySlug(ctx, slug)
	if err != nil {
		return PublicClub{}, mapPersistenceError(err)
	}
	templates, err := s.repo.ActiveTemplates(ctx, club.ClubID)
	if err != nil {
		return PublicClub{}, err
	}
	return PublicClub{Club: club, Templates: templates}, nil
}

func (s *service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	page, pageSize := normalizePage(opts.Page, opts.PageSize)
	result, err := s.repo.List(ctx, persistence.ListClubsParams{Page: page, PageSize: pageSize, ActiveOnly: opts.ActiveOnly})
	if err != nil {
		return ListResult{}, err
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}
	return ListResult{
		Clubs:      result.Clubs,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	return s.setActive(ctx, id, false, activityservice.ActionClubDeactivated)
}

func (s *service) Reactivate(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	return s.setActive(ctx, id, true, activityservice.ActionClubReactivated)
}

func (s *service) setActive(ctx context.Context, id uuid.UUID, active bool, action string) (persistence.ClubRecord, error) {
	if id == uuid.Nil {
		return persistence.ClubRecord{}, ErrNotFound
	}
	record, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return persistence.ClubRecord{}, mapPersistenceError(err)
	}
	s.record(ctx, &record.ClubID, action, record.ClubID, nil)
	return record, nil
}

// Delete removes the club and, through the schema's cascades, everything it
// owns. Stored objects are purged afterwards on a best effort basis.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}
	club, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapPersistenceError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapPersistenceError(err)
	}

	if s.objects != nil {
		prefix := tenant.BuildStoragePrefix(id)
		if err := s.objects.DeletePrefix(context.WithoutCancel(ctx), prefix); err != nil {
			s.logger.Warn("club object purge failed", zap.String("club_id", id.String()), zap.String("prefix", prefix), zap.Error(err))
		}
	}

	// The log row must not reference the deleted club.
	s.record(ctx, nil, activityservice.ActionClubDeleted, id, map[string]any{"slug": club.Slug, "name": club.Name})
	return nil
}

func (s *service) Stats(ctx context.Context, id uuid.UUID) (Stats, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Stats{}, err
	}
	counters, err := s.repo.Stats(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	used, err := s.repo.ClubBytes(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ClubStats: counters, BytesUsed: used, BytesLimit: s.clubLimit}, nil
}

func (s *service) Analytics(ctx context.Context) (Analytics, error) {
	counters, err := s.repo.PlatformStats(ctx)
	if err != nil {
		return Analytics{}, err
	}
	used, err := s.repo.PlatformBytes(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return Analytics{PlatformStats: counters, BytesUsed: used, BytesLimit: s.platformLimit}, nil
}

// ResolveClubSpace backs the club space middleware.
func (s *service) ResolveClubSpace(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
	club, err := s.Get(ctx, id)
	if err != nil {
		return tenant.Space{}, err
	}
	if !club.IsActive {
		return tenant.Space{}, tenantmiddleware.ErrClubInactive
	}
	return tenant.Space{
		ClubID:        club.ClubID,
		Slug:          club.Slug,
		Name:          club.Name,
		StoragePrefix: tenant.BuildStoragePrefix(club.ClubID),
	}, nil
}

func (s *service) record(ctx context.Context, clubID *uuid.UUID, action string, resourceID uuid.UUID, details map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, activityservice.Entry{
		ClubID:       clubID,
		Action:       action,
		ResourceType: "club",
		ResourceID:   resourceID.String(),
		Details:      details,
	})
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrClubNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrClubConflict):
		return ErrConflict
	default:
		return err
	}
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

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
