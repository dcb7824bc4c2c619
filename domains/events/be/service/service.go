package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/domains/events/be/repo"
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

// ErrNotFound indicates a missing event.
var ErrNotFound = errors.New("event not found")

// CreateInput binds an active template and an import batch of the club into
// an event that scopes verification to one role.
type CreateInput struct {
	TemplateID  uuid.UUID `json:"templateId" validate:"required"`
	ImportID    uuid.UUID `json:"importId" validate:"required"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	EventDate   time.Time `json:"eventDate" validate:"required"`
	Role        string    `json:"role" validate:"oneof=student management"`
}

// ActivityRecorder receives audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, e activityservice.Entry)
}

// Service defines the business operations for events.
type Service interface {
	Create(ctx context.Context, clubID uuid.UUID, input CreateInput) (persistence.EventRecord, error)
	Get(ctx context.Context, clubID, id uuid.UUID) (persistence.EventRecord, error)
	List(ctx context.Context, clubID uuid.UUID) ([]persistence.EventRecord, error)
	Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.EventRecord, error)
}

type service struct {
	repo     repo.Repository
	activity ActivityRecorder
}

// New constructs an events Service. activity may be nil.
func New(r repo.Repository, activity ActivityRecorder) Service {
	if r == nil {
		panic("events repository is required")
	}
	return &service{repo: r, activity: activity}
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

func (s *service) Create(ctx context.Context, clubID uuid.UUID, input CreateInput) (persistence.EventRecord, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Role = strings.ToLower(strings.TrimSpace(input.Role))
	if input.Role == "" {
		input.Role = persistence.RoleStudent
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		input.Description = nil
	}

	fieldErrors := FieldErrors{}
	if err := inputValidator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return persistence.EventRecord{}, err
		}
		for _, fe := range verrs {
			fieldErrors.add(fe.Field(), ruleMessage(fe))
		}
	}

	if _, ok := fieldErrors["templateId"]; !ok {
		if _, err := s.repo.GetActiveTemplate(ctx, clubID, input.TemplateID); err != nil {
			if !errors.Is(err, persistence.ErrTemplateNotFound) {
				return persistence.EventRecord{}, err
			}
			fieldErrors.add("templateId", "no active template with this id in the club")
		}
	}
	if _, ok := fieldErrors["importId"]; !ok {
		if _, err := s.repo.GetImport(ctx, clubID, input.ImportID); err != nil {
			if !errors.Is(err, persistence.ErrImportNotFound) {
				return persistence.EventRecord{}, err
			}
			fieldErrors.add("importId", "no import with this id in the club")
		}
	}
	if len(fieldErrors) > 0 {
		return persistence.EventRecord{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.Create(ctx, persistence.CreateEventParams{
		ClubID:      clubID,
		TemplateID:  input.TemplateID,
		ImportID:    input.ImportID,
		Name:        input.Name,
		Description: input.Description,
		EventDate:   input.EventDate,
		Role:        input.Role,
	})
	if err != nil {
		return persistence.EventRecord{}, mapPersistenceError(err)
	}
	s.record(ctx, record, activityservice.ActionEventCreated, map[string]any{
		"name": record.Name,
		"role": record.Role,
	})
	return record, nil
}

func (s *service) Get(ctx context.Context, clubID, id uuid.UUID) (persistence.EventRecord, error) {
	if id == uuid.Nil {
		return persistence.EventRecord{}, ErrNotFound
	}
	record, err := s.repo.Get(ctx, clubID, id)
	if err != nil {
		return persistence.EventRecord{}, mapPersistenceError(err)
	}
	return record, nil
}

func (s *service) List(ctx context.Context, clubID uuid.UUID) ([]persistence.EventRecord, error) {
	return s.repo.List(ctx, clubID)
}

func (s *service) Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.EventRecord, error) {
	if id == uuid.Nil {
		return persistence.EventRecord{}, ErrNotFound
	}
	record, err := s.repo.Deactivate(ctx, clubID, id)
	if err != nil {
		return persistence.EventRecord{}, mapPersistenceError(err)
	}
	s.record(ctx, record, activityservice.ActionEventDeactivated, nil)
	return record, nil
}

func (s *service) record(ctx context.Context, e persistence.EventRecord, action string, details map[string]any) {
	if s.activity == nil {
		return
	}
	clubID := e.ClubID
	s.activity.Record(ctx, activityservice.Entry{
		ClubID:       &clubID,
		Action:       action,
		ResourceType: "event",
		ResourceID:   e.EventID.String(),
		Details:      details,
	})
}

func mapPersistenceError(err error) error {
	if errors.Is(err, persistence.ErrEventNotFound) {
		return ErrNotFound
	}
	return err
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return "is invalid"
	}
}
