package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/domains/templates/be/repo"
	"github.com/Ixotic27/certifyhub/platform/go/imageprep"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
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

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("template not found")
	ErrConflict = errors.New("template conflict")
)

// Upload limits used when Config leaves them unset.
const (
	DefaultMaxUploadSize int64 = 5 << 20
)

// DefaultAllowedImageTypes are the background formats accepted on create.
var DefaultAllowedImageTypes = []string{"image/png", "image/jpeg", "image/jpg"}

// Image is an uploaded background.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateInput is the payload for a new template.
type CreateInput struct {
	Name      string  `json:"name" validate:"required,min=1,max=200"`
	Audience  string  `json:"audience" validate:"oneof=student management"`
	EventName *string `json:"eventName" validate:"omitempty,max=200"`
	Fields    []byte  `json:"-"`
	Image     Image   `json:"-"`
}

// Stats reports how often a template has been issued.
type Stats struct {
	Template        persistence.TemplateRecord
	Generations     int
	LastGeneratedAt *time.Time
}

// ObjectStore holds template backgrounds.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// QuotaChecker rejects uploads that would overflow a storage budget.
type QuotaChecker interface {
	Check(ctx context.Context, clubID uuid.UUID, incoming int64) error
}

// ActivityRecorder receives audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, e activityservice.Entry)
}

// Service defines the business operations for club templates. Every call is
// scoped to a club space.
type Service interface {
	Create(ctx context.Context, space tenant.Space, input CreateInput) (persistence.TemplateRecord, error)
	Get(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
	List(ctx context.Context, clubID uuid.UUID, activeOnly bool) ([]persistence.TemplateRecord, error)
	UpdateFields(ctx context.Context, clubID, id uuid.UUID, fields []byte) (persistence.TemplateRecord, error)
	Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
	Stats(ctx context.Context, clubID, id uuid.UUID) (Stats, error)
}

// Config carries the upload limits.
type Config struct {
	MaxUploadSize     int64
	AllowedImageTypes []string
	MaxImageDimension int
}

// Deps are the collaborators beyond the repository. Objects is required.
type Deps struct {
	Objects  ObjectStore
	Quota    QuotaChecker
	Activity ActivityRecorder
	Logger   *zap.Logger
}

type service struct {
	repo     repo.Repository
	objects  ObjectStore
	quota    QuotaChecker
	activity ActivityRecorder
	logger   *zap.Logger
	cfg      Config
}

// New constructs a templates Service instance backed by the provided repository.
func New(r repo.Repository, cfg Config, deps Deps) Service {
	if r == nil {
		panic("templates repository is required")
	}
	if deps.Objects == nil {
		panic("object store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	if len(cfg.AllowedImageTypes) == 0 {
		cfg.AllowedImageTypes = DefaultAllowedImageTypes
	}
	if cfg.MaxImageDimension <= 0 {
		cfg.MaxImageDimension = imageprep.DefaultMaxDimension
	}
	return &service{
		repo:     r,
		objects:  deps.Objects,
		quota:    deps.Quota,
		activity: deps.Activity,
		logger:   deps.Logger,
		cfg:      cfg,
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

func (s *service) Create(ctx context.Context, space tenant.Space, input CreateInput) (persistence.TemplateRecord, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Audience = strings.ToLower(strings.TrimSpace(input.Audience))
	if input.Audience == "" {
		input.Audience = persistence.RoleStudent
	}
	if input.EventName != nil && strings.TrimSpace(*input.EventName) == "" {
		input.EventName = nil
	}

	fieldErrors := FieldErrors{}
	if err := inputValidator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return persistence.TemplateRecord{}, err
		}
		for _, fe := range verrs {
			fieldErrors.add(fe.Field(), ruleMessage(fe))
		}
	}
	contentType := strings.ToLower(strings.TrimSpace(input.Image.ContentType))
	switch {
	case len(input.Image.Data) == 0:
		fieldErrors.add("image", "is required")
	case !slices.Contains(s.cfg.AllowedImageTypes, contentType):
		fieldErrors.add("image", fmt.Sprintf("must be one of %s", strings.Join(s.cfg.AllowedImageTypes, ", ")))
	case int64(len(input.Image.Data)) > s.cfg.MaxUploadSize:
		fieldErrors.add("image", fmt.Sprintf("must be at most %d bytes", s.cfg.MaxUploadSize))
	}

	fields, err := ParseFields(input.Fields)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return persistence.TemplateRecord{}, err
		}
		for k, msgs := range verr.Fields {
			fieldErrors[k] = append(fieldErrors[k], msgs...)
		}
	}
	if len(fieldErrors) > 0 {
		return persistence.TemplateRecord{}, &ValidationError{Fields: fieldErrors}
	}

	img := imageprep.Optimize(input.Image.Data, contentType, imageExt(input.Image.Filename, contentType), s.cfg.MaxImageDimension)
	if !img.Optimized {
		s.logger.Info("template image kept as uploaded", zap.String("club_id", space.ClubID.String()), zap.Int("bytes", len(img.Data)))
	}

	if s.quota != nil {
		if err := s.quota.Check(ctx, space.ClubID, int64(len(img.Data))); err != nil {
			return persistence.TemplateRecord{}, err
		}
	}

	key := tenant.ObjectKey(space.StoragePrefix, tenant.KindTemplates, "template", img.Ext)
	url, err := s.objects.Put(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return persistence.TemplateRecord{}, fmt.Errorf("store template image: %w", err)
	}

	record, err := s.repo.Create(ctx, persistence.CreateTemplateParams{
		ClubID:         space.ClubID,
		Name:           input.Name,
		ImageURL:       url,
		ImageSizeBytes: int64(len(img.Data)),
		Fields:         fields,
		Audience:       input.Audience,
		EventName:      input.EventName,
	})
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), url); delErr != nil {
			s.logger.Warn("orphaned template image", zap.String("url", url), zap.Error(delErr))
		}
		return persistence.TemplateRecord{}, mapPersistenceError(err)
	}

	s.record(ctx, record, activityservice.ActionTemplateCreated, map[string]any{
		"name":      record.Name,
		"audience":  record.Audience,
		"bytes":     record.ImageSizeBytes,
		"optimized": img.Optimized,
	})
	return record, nil
}

func (s *service) Get(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	if id == uuid.Nil {
		return persistence.TemplateRecord{}, ErrNotFound
	}
	record, err := s.repo.Get(ctx, clubID, id)
	if err != nil {
		return persistence.TemplateRecord{}, mapPersistenceError(err)
	}
	return record, nil
}

func (s *service) List(ctx context.Context, clubID uuid.UUID, activeOnly bool) ([]persistence.TemplateRecord, error) {
	return s.repo.List(ctx, clubID, activeOnly)
}

// UpdateFields replaces the descriptor list. The background image is untouched
// and the previous list is archived by the store.
func (s *service) UpdateFields(ctx context.Context, clubID, id uuid.UUID, raw []byte) (persistence.TemplateRecord, error) {
	fields, err := ParseFields(raw)
	if err != nil {
		return persistence.TemplateRecord{}, err
	}
	if _, err := s.Get(ctx, clubID, id); err != nil {
		return persistence.TemplateRecord{}, err
	}
	record, err := s.repo.UpdateFields(ctx, clubID, id, fields)
	if err != nil {
		return persistence.TemplateRecord{}, mapPersistenceError(err)
	}
	s.record(ctx, record, activityservice.ActionTemplateUpdated, map[string]any{
		"version": record.Version,
		"fields":  len(record.Fields),
	})
	return record, nil
}

func (s *service) Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	if id == uuid.Nil {
		return persistence.TemplateRecord{}, ErrNotFound
	}
	record, err := s.repo.Deactivate(ctx, clubID, id)
	if err != nil {
		return persistence.TemplateRecord{}, mapPersistenceError(err)
	}
	s.record(ctx, record, activityservice.ActionTemplateDeactivated, map[string]any{"name": record.Name})
	return record, nil
}

func (s *service) Stats(ctx context.Context, clubID, id uuid.UUID) (Stats, error) {
	record, err := s.Get(ctx, clubID, id)
	if err != nil {
		return Stats{}, err
	}
	counters, err := s.repo.Stats(ctx, clubID, id)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Template: record, Generations: counters.Generations, LastGeneratedAt: counters.LastGeneratedAt}, nil
}

func (s *service) record(ctx context.Context, t persistence.TemplateRecord, action string, details map[string]any) {
	if s.activity == nil {
		return
	}
	clubID := t.ClubID
	s.activity.Record(ctx, activityservice.Entry{
		ClubID:       &clubID,
		Action:       action,
		ResourceType: "template",
		ResourceID:   t.TemplateID.String(),
		Details:      details,
	})
}

func imageExt(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext == ".png" || ext == ".jpg" || ext == ".jpeg" {
		return ext
	}
	if contentType == "image/png" {
		return ".png"
	}
	return ".jpg"
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrTemplateNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrTemplateConflict):
		return ErrConflict
	default:
		return err
	}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "hexcolor":
		return "must be a hex color such as #1a2b3c"
	default:
		return "is invalid"
	}
}
