package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// MemoryRepository is an in-memory activity log for tests and local runs.
// FailWith, when set, makes Append return it.
type MemoryRepository struct {
	mu       sync.RWMutex
	entries  []persistence.ActivityRecord
	FailWith error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(ctx context.Context, params persistence.AppendActivityParams) (persistence.ActivityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWith != nil {
		return persistence.ActivityRecord{}, r.FailWith
	}
	details := params.Details
	if details == nil {
		details = map[string]any{}
	}
	rec := persistence.ActivityRecord{
		ActivityID:   uuid.New(),
		ClubID:       params.ClubID,
		ActorID:      params.ActorID,
		ActorKind:    params.ActorKind,
		Action:       params.Action,
		ResourceType: params.ResourceType,
		ResourceID:   params.ResourceID,
		Details:      details,
		IPAddress:    params.IPAddress,
		CreatedAt:    time.Now().UTC(),
	}
	r.entries = append(r.entries, rec)
	return rec, nil
}

func (r *MemoryRepository) List(ctx context.Context, params persistence.ListActivityParams) (persistence.ListActivityResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []persistence.ActivityRecord{}
	for _, e := range r.entries {
		if matches(e, params.ClubID, params.Action, params.Since) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page, size := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return persistence.ListActivityResult{Entries: matched[start:end], TotalItems: len(matched)}, nil
}

func (r *MemoryRepository) CountByAction(ctx context.Context, clubID *uuid.UUID, since *time.Time) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[string]int{}
	for _, e := range r.entries {
		if matches(e, clubID, nil, since) {
			out[e.Action]++
		}
	}
	return out, nil
}

// All returns a copy of every entry in insertion order.
func (r *MemoryRepository) All() []persistence.ActivityRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]persistence.ActivityRecord(nil), r.entries...)
}

func matches(e persistence.ActivityRecord, clubID *uuid.UUID, action *string, since *time.Time) bool {
	if clubID != nil && (e.ClubID == nil || *e.ClubID != *clubID) {
		return false
	}
	if action != nil && *action != "" && e.Action != *action {
		return false
	}
	if since != nil && e.CreatedAt.Before(*since) {
		return false
	}
	return true
}
