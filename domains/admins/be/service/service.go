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

	"github.com/Ixotic27/certifyhub/domains/admins/be/repo"
	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
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
	ErrNotFound     = errors.New("administrator not found")
	ErrClubNotFound = errors.New("club not found")
	ErrConflict     = errors.New("administrator conflict")
)

// Identities provisions the sign-in accounts behind administrators.
type Identities interface {
	CreateIdentity(ctx context.Context, identity platformauth.NewIdentity) (string, error)
	SetDisabled(ctx context.Context, uid string, disabled bool) error
	DeleteIdentity(ctx context.Context, uid string) error
}

// ActivityRecorder receives audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, e activityservice.Entry)
}

// CreateInput is the payload for adding an administrator to a club.
type CreateInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"fullName" validate:"required,min=1,max=100"`
}

// ListOptions controls pagination.
type ListOptions struct {
	Page     int
	PageSize int
}

// ListResult wraps a page of administrators with pagination metadata.
type ListResult struct {
	Admins     []persistence.AdminRecord
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service defines the business operations for the club administrator directory.
type Service interface {
	Create(ctx context.Context, clubID uuid.UUID, input CreateInput) (persistence.AdminRecord, error)
	List(ctx context.Context, clubID uuid.UUID, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.AdminRecord, error)
	Activate(ctx context.Context, id uuid.UUID) (persistence.AdminRecord, error)
	Deactivate(ctx context.Context, id uuid.UUID) (persistence.AdminRecord, error)
}

// Deps are the collaborators beyond the repository. Activity and Logger are optional.
type Deps struct {
	Identities Identities
	Activity   ActivityRecorder
	Logger     *zap.Logger
}

type service struct {
	repo       repo.Repository
	identities Identities
	activity   ActivityRecorder
	logger     *zap.Logger
}

// New constructs an admins Service instance backed by the provided repository.
func New(r repo.Repository, deps Deps) Service {
	if r == nil {
		panic("admins repository is required")
	}
	if deps.Identities == nil {
		panic("identity directory is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &service{repo: r, identities: deps.Identities, activity: deps.Activity, logger: deps.Logger}
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

// Create provisions the identity first and then the directory row. A failed
// insert removes the identity again.
func (s *service) Create(ctx context.Context, clubID uuid.UUID, input CreateInput) (persistence.AdminRecord, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)

	if err := inputValidator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return persistence.AdminRecord{}, err
		}
		fieldErrors := FieldErrors{}
		for _, fe := range verrs {
			fieldErrors.add(fe.Field(), ruleMessage(fe))
		}
		return persistence.AdminRecord{}, &ValidationError{Fields: fieldErrors}
	}

	if err := s.requireClub(ctx, clubID); err != nil {
		return persistence.AdminRecord{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return persistence.AdminRecord{}, ErrConflict
	} else if !errors.Is(err, persistence.ErrAdminNotFound) {
		return persistence.AdminRecord{}, err
	}

	uid, err := s.identities.CreateIdentity(ctx, platformauth.NewIdentity{
		Email:       input.Email,
		DisplayName: input.FullName,
		ClubID:      clubID.String(),
	})
	if err != nil {
		if errors.Is(err, platformauth.ErrIdentityExists) {
			return persistence.AdminRecord{}, ErrConflict
		}
		return persistence.AdminRecord{}, fmt.Errorf("provision identity: %w", err)
	}

	record, err := s.repo.Create(ctx, persistence.CreateAdminParams{
		ClubID:   clubID,
		Email:    input.Email,
		FullName: input.FullName,
		AuthUID:  uid,
	})
	if err != nil {
		if delErr := s.identities.DeleteIdentity(context.WithoutCancel(ctx), uid); delErr != nil {
			s.logger.Warn("orphaned administrator identity", zap.String("auth_uid", uid), zap.Error(delErr))
		}
		return persistence.AdminRecord{}, mapPersistenceError(err)
	}

	s.record(ctx, record, activityservice.ActionAdminCreated, map[string]any{"email": record.Email})
	return record, nil
}

func (s *service) List(ctx context.Context, clubID uuid.UUID, opts ListOptions) (ListResult, error) {
	if err := s.requireClub(ctx, clubID); err != nil {
		return ListResult{}, err
	}

	page, pageSize := normalizePage(opts.Page, opts.PageSize)
	result, err := s.repo.List(ctx, persistence.ListAdminsParams{ClubID: clubID, Page: page, PageSize: pageSize})
	if err != nil {
		return ListResult{}, err
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}
	return ListResult{
		Admins:     result.Admins,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (persistence.AdminRecord, error) {
	if id == uuid.Nil {
		return persistence.AdminRecord{}, ErrNotFound
	}
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return persistence.AdminRecord{}, mapPersistenceError(err)
	}
	return record, nil
}

func (s *service) Activate(ctx context.Context, id uuid.UUID) (persistence.AdminRecord, error) {
	return s.setActive(ctx, id, true, activityservice.ActionAdminActivated)
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (persistence.AdminRecord, error) {
	return s.setActive(ctx, id, false, activityservice.ActionAdminDeactivated)
}

// setActive changes sign-in at the provider before the directory row, so a
// deactivated row never belongs to an account that can still sign in.
func (s *service) setActive(ctx context.Context, id uuid.UUID, active bool, action string) (persistence.AdminRecord, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return persistence.AdminRecord{}, err
	}
	if err := s.identities.SetDisabled(ctx, current.AuthUID, !active); err != nil {
		if errors.Is(err, platformauth.ErrIdentityNotFound) {
			return persistence.AdminRecord{}, ErrNotFound
		}
		return persistence.AdminRecord{}, fmt.Errorf("update identity: %w", err)
	}
	record, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return persistence.AdminRecord{}, mapPersistenceError(err)
	}
	s.record(ctx, record, action, nil)
	return record, nil
}

func (s *service) requireClub(ctx context.Context, clubID uuid.UUID) error {
	if clubID == uuid.Nil {
		return ErrClubNotFound
	}
	if _, err := s.repo.Club(ctx, clubID); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func (s *service) record(ctx context.Context, admin persistence.AdminRecord, action string, details map[string]any) {
	if s.activity == nil {
		return
	}
	clubID := admin.ClubID
	s.activity.Record(ctx, activityservice.Entry{
		ClubID:       &clubID,
		Action:       action,
		ResourceType: "administrator",
		ResourceID:   admin.AdminID.String(),
		Details:      details,
	})
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrAdminNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrAdminConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrClubNotFound):
		return ErrClubNotFound
	default:
		return err
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
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
	default:
		return "is invalid"
	}
}
