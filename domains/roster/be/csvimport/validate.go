package csvimport

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode selects how much of a row is checked before import.
type Mode string

const (
	// ModeStrict applies every field rule: lengths, email shape, role enumeration.
	ModeStrict Mode = "strict"
	// ModeLenient checks required fields only.
	ModeLenient Mode = "lenient"
)

// ParseMode maps user input onto a Mode, defaulting to strict.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeLenient:
		return ModeLenient, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q", raw)
	}
}

// Policy configures Validate.
type Policy struct {
	Mode Mode
	// SkipErrors collects failing rows instead of aborting on the first one.
	SkipErrors bool
	// DefaultRole fills rows that carry no role of their own.
	DefaultRole string
}

// RowError describes one row that failed a field rule.
type RowError struct {
	Line      int    `json:"line"`
	StudentID string `json:"studentId,omitempty"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s %s", e.Line, e.Field, e.Message)
}

// Result splits validated rows from the ones that were rejected.
type Result struct {
	Valid  []Row
	Errors []RowError
}

var rowValidator = newRowValidator()

func newRowValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate applies the policy to parsed rows. Without SkipErrors the first
// failing row is returned as a *RowError and nothing is accepted.
func Validate(rows []Row, policy Policy) (Result, error) {
	defaultRole := strings.ToLower(strings.TrimSpace(policy.DefaultRole))
	if defaultRole == "" {
		defaultRole = "student"
	}

	result := Result{Valid: make([]Row, 0, len(rows))}
	for _, row := range rows {
		if row.Role == "" {
			row.Role = defaultRole
		}

		rowErr := checkRow(row, policy.Mode)
		if rowErr == nil {
			result.Valid = append(result.Valid, row)
			continue
		}
		if !policy.SkipErrors {
			return Result{}, rowErr
		}
		result.Errors = append(result.Errors, *rowErr)
	}
	return result, nil
}

func checkRow(row Row, mode Mode) *RowError {
	if mode == ModeLenient {
		switch {
		case strings.TrimSpace(row.Name) == "":
			return &RowError{Line: row.Line, StudentID: row.StudentID, Field: "name", Message: "is required"}
		case strings.TrimSpace(row.StudentID) == "":
			return &RowError{Line: row.Line, Field: "studentId", Message: "is required"}
		}
		return nil
	}

	err := rowValidator.Struct(row)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &RowError{Line: row.Line, StudentID: row.StudentID, Field: "row", Message: err.Error()}
	}

	fe := fieldErrs[0]
	return &RowError{Line: row.Line, StudentID: row.StudentID, Field: fe.Field(), Message: ruleMessage(fe)}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
