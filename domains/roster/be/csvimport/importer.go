package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMalformedInput reports a roster without a usable header row.
var ErrMalformedInput = errors.New("malformed roster input")

// MissingColumnsError names the required canonical columns no header mapped to.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// Row is one roster entry after header normalization. Line is the 1-based
// line of the source file the row started on.
type Row struct {
	Line      int    `json:"line"`
	Name      string `json:"name" validate:"required,max=200"`
	StudentID string `json:"studentId" validate:"required,max=50"`
	Email     string `json:"email,omitempty" validate:"omitempty,max=254,email"`
	Course    string `json:"course,omitempty" validate:"max=200"`
	Role      string `json:"role,omitempty" validate:"omitempty,oneof=student management"`
}

// Parse decodes a CSV roster. A leading UTF-8 (or UTF-16) byte-order mark is
// honored, unknown columns are ignored, and rows whose name or student id is
// blank are skipped. Parse holds no state between calls.
func Parse(data []byte) ([]Row, error) {
	decoded := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMalformedInput
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	columns, blank := mapHeaders(header)
	if blank {
		return nil, ErrMalformedInput
	}
	if missing := missingKeys(columns); len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	rows := []Row{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		line, _ := reader.FieldPos(0)
		row := Row{
			Line:      line,
			Name:      cell(record, columns, KeyName),
			StudentID: cell(record, columns, KeyStudentID),
			Email:     cell(record, columns, KeyEmail),
			Course:    cell(record, columns, KeyCourse),
			Role:      strings.ToLower(cell(record, columns, KeyRole)),
		}
		if row.Name == "" || row.StudentID == "" {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ParseLimit parses data and keeps at most limit rows. A non-positive limit keeps all rows.
func ParseLimit(data []byte, limit int) ([]Row, error) {
	rows, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// mapHeaders returns the column index for each canonical key. When two
// headers normalize to the same key the leftmost one is used.
func mapHeaders(header []string) (map[Key]int, bool) {
	columns := make(map[Key]int, len(keyOrder))
	blank := true
	for idx, raw := range header {
		if strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")) != "" {
			blank = false
		}
		key, ok := Normalize(raw)
		if !ok {
			continue
		}
		if _, taken := columns[key]; !taken {
			columns[key] = idx
		}
	}
	return columns, blank
}

func missingKeys(columns map[Key]int) []string {
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := columns[key]; !ok {
			missing = append(missing, string(key))
		}
	}
	sort.Strings(missing)
	return missing
}

func cell(record []string, columns map[Key]int, key Key) string {
	idx, ok := columns[key]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
