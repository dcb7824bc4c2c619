package csvimport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateStrictAbortsOnFirstViolation(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{Line: 2, Name: "Ada", StudentID: "S1", Email: "ada@example.com"},
		{Line: 3, Name: "Lin", StudentID: "S2", Email: "not-an-email"},
		{Line: 4, Name: "Bo", StudentID: "S3", Role: "teacher"},
	}

	_, err := Validate(rows, Policy{Mode: ModeStrict})

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	require.Equal(t, 3, rowErr.Line)
	require.Equal(t, "email", rowErr.Field)
	require.Equal(t, "row 3: email must be a valid email address", rowErr.Error())
}

func TestValidateStrictSkipErrorsCollects(t *testing.T) {
	t.Parallel()

	rows := []Row{
		{Line: 2, Name: "Ada", StudentID: "S1"},
		{Line: 3, Name: "Lin", StudentID: "S2", Email: "not-an-email"},
		{Line: 4, Name: "Bo", StudentID: "S3", Role: "teacher"},
	}

	result, err := Validate(rows, Policy{Mode: ModeStrict, SkipErrors: true, DefaultRole: "management"})
	require.NoError(t, err)
	require.Len(t, result.Valid, 1)
	require.Equal(t, "management", result.Valid[0].Role)
	require.Len(t, result.Errors, 2)
	require.Equal(t, "role", result.Errors[1].Field)
	require.Equal(t, "must be one of: student, management", result.Errors[1].Message)
}

func TestValidateLenientChecksRequiredOnly(t *testing.T) {
	t.Parallel()

	rows := []Row{{Line: 2, Name: "Lin", StudentID: "S2", Email: "not-an-email"}}

	result, err := Validate(rows, Policy{Mode: ModeLenient})
	require.NoError(t, err)
	require.Len(t, result.Valid, 1)
	require.Equal(t, "student", result.Valid[0].Role)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeStrict, mode)

	mode, err = ParseMode(" Lenient ")
	require.NoError(t, err)
	require.Equal(t, ModeLenient, mode)

	_, err = ParseMode("loose")
	require.Error(t, err)
}
