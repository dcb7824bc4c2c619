package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/domains/certificates/be/resolve"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// MemoryRepository is an in-memory catalog suitable for tests and early development.
// It mirrors the Postgres adapter's matching rules.
type MemoryRepository struct {
	mu          sync.RWMutex
	clubs       map[uuid.UUID]persistence.ClubRecord
	templates   map[uuid.UUID]persistence.TemplateRecord
	attendees   map[uuid.UUID]persistence.AttendeeRecord
	events      map[uuid.UUID]persistence.EventRecord
	generations []persistence.GenerationRecord
	now         func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clubs:     make(map[uuid.UUID]persistence.ClubRecord),
		templates: make(map[uuid.UUID]persistence.TemplateRecord),
		attendees: make(map[uuid.UUID]persistence.AttendeeRecord),
		events:    make(map[uuid.UUID]persistence.EventRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PutClub stores c, assigning an id when unset.
func (r *MemoryRepository) PutClub(c persistence.ClubRecord) persistence.ClubRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ClubID == uuid.Nil {
		c.ClubID = uuid.New()
	}
	r.clubs[c.ClubID] = c
	return c
}

// PutTemplate stores t, assigning an id when unset.
func (r *MemoryRepository) PutTemplate(t persistence.TemplateRecord) persistence.TemplateRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.TemplateID == uuid.Nil {
		t.TemplateID = uuid.New()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = r.now()
	}
	r.templates[t.TemplateID] = t
	return t
}

// PutAttendee stores a, assigning an id when unset.
func (r *MemoryRepository) PutAttendee(a persistence.AttendeeRecord) persistence.AttendeeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.AttendeeID == uuid.Nil {
		a.AttendeeID = uuid.New()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = r.now()
	}
	r.attendees[a.AttendeeID] = a
	return a
}

// PutEvent stores e, assigning an id when unset.
func (r *MemoryRepository) PutEvent(e persistence.EventRecord) persistence.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	r.events[e.EventID] = e
	return e
}

// Attendee returns the stored attendee row.
func (r *MemoryRepository) Attendee(id uuid.UUID) (persistence.AttendeeRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attendees[id]
	return a, ok
}

func (r *MemoryRepository) ActiveClubBySlug(ctx context.Context, slug string) (persistence.ClubRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clubs {
		if c.Slug == slug && c.IsActive {
			return c, nil
		}
	}
	return persistence.ClubRecord{}, resolve.ErrNotFound
}

func (r *MemoryRepository) Club(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clubs[id]
	if !ok {
		return persistence.ClubRecord{}, resolve.ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepository) ActiveEvent(ctx context.Context, id uuid.UUID) (persistence.EventRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok || !e.IsActive {
		return persistence.EventRecord{}, resolve.ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepository) AttendeeForEvent(ctx context.Context, clubID, importID uuid.UUID, role, studentID, name string) (persistence.AttendeeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attendees {
		if a.ClubID == clubID && a.ImportID != nil && *a.ImportID == importID && a.Role == role && identityMatches(a, studentID, name) {
			return a, nil
		}
	}
	return persistence.AttendeeRecord{}, resolve.ErrNotFound
}

func (r *MemoryRepository) AttendeeInClub(ctx context.Context, clubID uuid.UUID, studentID, name string, role *string) (persistence.AttendeeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.newestFirst() {
		if a.ClubID == clubID && roleMatches(a, role) && identityMatches(a, studentID, name) {
			return a, nil
		}
	}
	return persistence.AttendeeRecord{}, resolve.ErrNotFound
}

func (r *MemoryRepository) AttendeeAcrossClubs(ctx context.Context, studentID, name string, role *string) (persistence.AttendeeRecord, persistence.ClubRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.newestFirst() {
		club, ok := r.clubs[a.ClubID]
		if !ok || !club.IsActive {
			continue
		}
		if roleMatches(a, role) && identityMatches(a, studentID, name) {
			return a, club, nil
		}
	}
	return persistence.AttendeeRecord{}, persistence.ClubRecord{}, resolve.ErrNotFound
}

func (r *MemoryRepository) ActiveTemplate(ctx context.Context, clubID, templateID uuid.UUID) (persistence.TemplateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[templateID]
	if !ok || t.ClubID != clubID || !t.IsActive {
		return persistence.TemplateRecord{}, resolve.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) NewestActiveTemplate(ctx context.Context, clubID uuid.UUID, audience *string) (persistence.TemplateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *persistence.TemplateRecord
	for _, t := range r.templates {
		t := t
		if t.ClubID != clubID || !t.IsActive {
			continue
		}
		if audience != nil && *audience != "" && t.Audience != *audience {
			continue
		}
		if best == nil || t.UpdatedAt.After(best.UpdatedAt) {
			best = &t
		}
	}
	if best == nil {
		return persistence.TemplateRecord{}, resolve.ErrNotFound
	}
	return *best, nil
}

func (r *MemoryRepository) TemplateByID(ctx context.Context, id uuid.UUID) (persistence.TemplateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return persistence.TemplateRecord{}, resolve.ErrNotFound
	}
	return t, nil
}

// RecordGeneration uses one timestamp for the whole write, matching the
// transaction-fixed NOW() of the Postgres store.
func (r *MemoryRepository) RecordGeneration(ctx context.Context, params persistence.RecordGenerationParams) (persistence.GenerationRecord, persistence.AttendeeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	att, ok := r.attendees[params.AttendeeID]
	if !ok || att.ClubID != params.ClubID {
		return persistence.GenerationRecord{}, persistence.AttendeeRecord{}, resolve.ErrNotFound
	}

	now := r.now()
	gen := persistence.GenerationRecord{
		GenerationID:  uuid.New(),
		ClubID:        params.ClubID,
		AttendeeID:    params.AttendeeID,
		TemplateID:    params.TemplateID,
		EventID:       params.EventID,
		CertificateID: params.CertificateID,
		GeneratedBy:   params.GeneratedBy,
		IPAddress:     params.IPAddress,
		GeneratedAt:   now,
	}
	r.generations = append(r.generations, gen)

	att.GenerationCount++
	if att.FirstGeneratedAt == nil {
		first := now
		att.FirstGeneratedAt = &first
	}
	last := now
	att.LastGeneratedAt = &last
	tpl := params.TemplateID
	att.TemplateID = &tpl
	att.UpdatedAt = now
	r.attendees[att.AttendeeID] = att

	return gen, att, nil
}

func (r *MemoryRepository) Generations(ctx context.Context, clubID, attendeeID uuid.UUID) ([]persistence.GenerationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []persistence.GenerationRecord{}
	for i := len(r.generations) - 1; i >= 0; i-- {
		g := r.generations[i]
		if g.ClubID == clubID && g.AttendeeID == attendeeID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *MemoryRepository) newestFirst() []persistence.AttendeeRecord {
	out := make([]persistence.AttendeeRecord, 0, len(r.attendees))
	for _, a := range r.attendees {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func identityMatches(a persistence.AttendeeRecord, studentID, name string) bool {
	return a.StudentID == strings.TrimSpace(studentID) && strings.EqualFold(a.Name, strings.TrimSpace(name))
}

func roleMatches(a persistence.AttendeeRecord, role *string) bool {
	return role == nil || *role == "" || a.Role == *role
}
