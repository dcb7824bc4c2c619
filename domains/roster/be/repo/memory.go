package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// MemoryRepository keeps imports and attendees in maps and enforces the
// (club, student id) uniqueness the Postgres schema enforces.
type MemoryRepository struct {
	mu        sync.RWMutex
	imports   map[uuid.UUID]persistence.ImportRecord
	attendees map[uuid.UUID]persistence.AttendeeRecord
	templates map[uuid.UUID]persistence.TemplateRecord
	commitErr error
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		imports:   make(map[uuid.UUID]persistence.ImportRecord),
		attendees: make(map[uuid.UUID]persistence.AttendeeRecord),
		templates: make(map[uuid.UUID]persistence.TemplateRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PutTemplate stores t, assigning an id when unset.
func (r *MemoryRepository) PutTemplate(t persistence.TemplateRecord) persistence.TemplateRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.TemplateID == uuid.Nil {
		t.TemplateID = uuid.New()
	}
	r.templates[t.TemplateID] = t
	return t
}

// PutAttendee stores a directly, simulating a concurrent writer.
func (r *MemoryRepository) PutAttendee(a persistence.AttendeeRecord) persistence.AttendeeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.AttendeeID == uuid.Nil {
		a.AttendeeID = uuid.New()
	}
	r.attendees[a.AttendeeID] = a
	return a
}

// FailCommitWith makes every later Commit return err.
func (r *MemoryRepository) FailCommitWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitErr = err
}

// Attendees returns the club's attendees ordered by student id.
func (r *MemoryRepository) Attendees(clubID uuid.UUID) []persistence.AttendeeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []persistence.AttendeeRecord{}
	for _, a := range r.attendees {
		if a.ClubID == clubID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func (r *MemoryRepository) ExistingStudentIDs(_ context.Context, clubID uuid.UUID, templateID *uuid.UUID, ids []string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := map[string]struct{}{}
	for _, a := range r.attendees {
		if a.ClubID != clubID {
			continue
		}
		if templateID != nil && (a.TemplateID == nil || *a.TemplateID != *templateID) {
			continue
		}
		if _, ok := wanted[a.StudentID]; ok {
			out[a.StudentID] = struct{}{}
		}
	}
	return out, nil
}

func (r *MemoryRepository) Commit(_ context.Context, params persistence.CommitImportParams) (persistence.CommitImportResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return persistence.CommitImportResult{}, r.commitErr
	}

	taken := map[string]struct{}{}
	for _, a := range r.attendees {
		if a.ClubID == params.ClubID {
			taken[a.StudentID] = struct{}{}
		}
	}

	now := r.now()
	imp := persistence.ImportRecord{
		ImportID:      uuid.New(),
		ClubID:        params.ClubID,
		TemplateID:    params.TemplateID,
		BatchName:     params.BatchName,
		Filename:      params.Filename,
		FileURL:       params.FileURL,
		Role:          params.Role,
		FileSizeBytes: params.FileSizeBytes,
		UploadedBy:    params.UploadedBy,
		UploadedAt:    now,
	}
	result := persistence.CommitImportResult{Inserted: []persistence.AttendeeRecord{}}
	for _, att := range params.Attendees {
		studentID := strings.TrimSpace(att.StudentID)
		if _, ok := taken[studentID]; ok {
			result.Conflicts = append(result.Conflicts, att.StudentID)
			continue
		}
		taken[studentID] = struct{}{}
		importID := imp.ImportID
		rec := persistence.AttendeeRecord{
			AttendeeID: uuid.New(),
			ClubID:     params.ClubID,
			ImportID:   &importID,
			TemplateID: att.TemplateID,
			Name:       strings.TrimSpace(att.Name),
			StudentID:  studentID,
			Email:      att.Email,
			Course:     att.Course,
			Role:       att.Role,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		r.attendees[rec.AttendeeID] = rec
		result.Inserted = append(result.Inserted, rec)
	}
	imp.RowsCount = len(result.Inserted)
	r.imports[imp.ImportID] = imp
	result.Import = imp
	return result, nil
}

func (r *MemoryRepository) GetImport(_ context.Context, clubID, id uuid.UUID) (persistence.ImportRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	imp, ok := r.imports[id]
	if !ok || imp.ClubID != clubID {
		return persistence.ImportRecord{}, persistence.ErrImportNotFound
	}
	return imp, nil
}

func (r *MemoryRepository) ListImports(_ context.Context, clubID uuid.UUID) ([]persistence.ImportRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []persistence.ImportRecord{}
	for _, imp := range r.imports {
		if imp.ClubID == clubID {
			out = append(out, imp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *MemoryRepository) ListAttendees(_ context.Context, params persistence.ListAttendeesParams) (persistence.ListAttendeesResult, error) {
	r.mu.RLock()
	matched := []persistence.AttendeeRecord{}
	for _, a := range r.attendees {
		if a.ClubID != params.ClubID {
			continue
		}
		if params.ImportID != nil && (a.ImportID == nil || *a.ImportID != *params.ImportID) {
			continue
		}
		if params.Search != nil {
			term := strings.ToLower(strings.TrimSpace(*params.Search))
			if !strings.Contains(strings.ToLower(a.Name), term) && !strings.Contains(strings.ToLower(a.StudentID), term) {
				continue
			}
		}
		matched = append(matched, a)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	result := persistence.ListAttendeesResult{Attendees: []persistence.AttendeeRecord{}, TotalItems: len(matched)}
	start := (params.Page - 1) * params.PageSize
	if params.Page < 1 || params.PageSize <= 0 || start >= len(matched) {
		return result, nil
	}
	end := min(start+params.PageSize, len(matched))
	result.Attendees = append(result.Attendees, matched[start:end]...)
	return result, nil
}

func (r *MemoryRepository) GetActiveTemplate(_ context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok || t.ClubID != clubID || !t.IsActive {
		return persistence.TemplateRecord{}, persistence.ErrTemplateNotFound
	}
	return t, nil
}

var _ Repository = (*MemoryRepository)(nil)
