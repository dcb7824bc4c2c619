package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/domains/roster/be/csvimport"
)

// ScopeMode selects how wide the "already imported" check reaches.
type ScopeMode string

const (
	// ScopeClub treats any attendee of the club as a duplicate.
	ScopeClub ScopeMode = "club"
	// ScopeTemplate only considers attendees tied to the import's template.
	ScopeTemplate ScopeMode = "template"
)

// ParseScopeMode maps configuration input onto a ScopeMode.
func ParseScopeMode(raw string) (ScopeMode, error) {
	switch ScopeMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopeClub:
		return ScopeClub, nil
	case ScopeTemplate:
		return ScopeTemplate, nil
	default:
		return "", fmt.Errorf("unknown dedup scope %q", raw)
	}
}

// Scope is the club plus an optional narrowing template.
type Scope struct {
	ClubID     uuid.UUID
	TemplateID *uuid.UUID
}

// NewScope builds the scope for an import. Template narrowing only applies in
// ScopeTemplate mode and when the import names a template.
func NewScope(mode ScopeMode, clubID uuid.UUID, templateID *uuid.UUID) Scope {
	scope := Scope{ClubID: clubID}
	if mode == ScopeTemplate && templateID != nil {
		id := *templateID
		scope.TemplateID = &id
	}
	return scope
}

// Lookup reports which student ids already exist within a scope.
type Lookup interface {
	ExistingStudentIDs(ctx context.Context, clubID uuid.UUID, templateID *uuid.UUID, ids []string) (map[string]struct{}, error)
}

// Result is the outcome of Partition. Both slices keep input order.
type Result struct {
	New        []csvimport.Row
	Duplicates []csvimport.Row
}

// Partition splits candidates into new and duplicate rows with one lookup.
// A row is a duplicate when its student id is already persisted in scope or
// appeared earlier in the same batch, so the first occurrence wins.
//
// The result is a hint: a concurrent import may commit the same id before
// this batch does, and the write path must reclassify such rows.
func Partition(ctx context.Context, lookup Lookup, rows []csvimport.Row, scope Scope) (Result, error) {
	result := Result{New: []csvimport.Row{}, Duplicates: []csvimport.Row{}}
	if len(rows) == 0 {
		return result, nil
	}

	ids := distinctIDs(rows)
	existing, err := lookup.ExistingStudentIDs(ctx, scope.ClubID, scope.TemplateID, ids)
	if err != nil {
		return Result{}, fmt.Errorf("lookup existing attendees: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.StudentID)
		_, persisted := existing[id]
		_, repeated := seen[id]
		if persisted || repeated {
			result.Duplicates = append(result.Duplicates, row)
			continue
		}
		seen[id] = struct{}{}
		result.New = append(result.New, row)
	}
	return result, nil
}

func distinctIDs(rows []csvimport.Row) []string {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.StudentID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
