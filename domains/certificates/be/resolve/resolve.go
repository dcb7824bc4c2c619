// Package resolve turns partial verification input into exactly one attendee
// and one certificate template.
//
// Attendee precedence, most specific first:
//
//  1. event: the event's club, import batch and role scope the match;
//  2. club: club slug plus optional role filter;
//  3. any club: opt-in only, see ResolveAttendeeAnyClub.
//
// Template precedence: explicit id, then the attendee's last used template,
// then the newest active template for the audience. The first tier that
// finds a row wins.
package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

var (
	// ErrNotFound covers a missing or inactive club, event or attendee.
	ErrNotFound = errors.New("no matching attendee found")
	// ErrNoActiveTemplate means no template tier produced an active template.
	ErrNoActiveTemplate = errors.New("no active template found")
	// ErrScopeRequired means neither an event nor a club was given on the scoped path.
	ErrScopeRequired = errors.New("club or event is required")
)

// Repository is the read side the engine needs. Implementations return
// ErrNotFound when a lookup matches nothing; inactive clubs, events and
// templates count as missing.
type Repository interface {
	ActiveClubBySlug(ctx context.Context, slug string) (persistence.ClubRecord, error)
	Club(ctx context.Context, id uuid.UUID) (persistence.ClubRecord, error)
	ActiveEvent(ctx context.Context, id uuid.UUID) (persistence.EventRecord, error)
	AttendeeForEvent(ctx context.Context, clubID, importID uuid.UUID, role, studentID, name string) (persistence.AttendeeRecord, error)
	AttendeeInClub(ctx context.Context, clubID uuid.UUID, studentID, name string, role *string) (persistence.AttendeeRecord, error)
	AttendeeAcrossClubs(ctx context.Context, studentID, name string, role *string) (persistence.AttendeeRecord, persistence.ClubRecord, error)
	ActiveTemplate(ctx context.Context, clubID, templateID uuid.UUID) (persistence.TemplateRecord, error)
	NewestActiveTemplate(ctx context.Context, clubID uuid.UUID, audience *string) (persistence.TemplateRecord, error)
}

// Query is the caller supplied verification input.
type Query struct {
	ClubSlug   string
	Name       string
	StudentID  string
	Role       *string
	EventID    *uuid.UUID
	TemplateID *uuid.UUID
}

func (q Query) normalized() Query {
	q.ClubSlug = strings.ToLower(strings.TrimSpace(q.ClubSlug))
	q.Name = strings.TrimSpace(q.Name)
	q.StudentID = strings.TrimSpace(q.StudentID)
	if q.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*q.Role))
		if role == "" {
			q.Role = nil
		} else {
			q.Role = &role
		}
	}
	return q
}

// Subject is a resolved attendee with the club and, on the event path, the
// event that scoped it. On the event path the attendee's EventName and
// EventDate carry the event's values.
type Subject struct {
	Club     persistence.ClubRecord
	Attendee persistence.AttendeeRecord
	Event    *persistence.EventRecord
}

// TemplateHint returns the explicit template id the template tiers should
// try first: the event's template on the event path, else the query's.
func (s Subject) TemplateHint(q Query) *uuid.UUID {
	if s.Event != nil {
		id := s.Event.TemplateID
		return &id
	}
	return q.TemplateID
}

// Audience is the template audience to match in the last tier.
func (s Subject) Audience() *string {
	if s.Attendee.Role == "" {
		return nil
	}
	role := s.Attendee.Role
	return &role
}

// Engine implements the precedence rules over a Repository.
type Engine struct {
	repo Repository
}

func New(repo Repository) *Engine {
	if repo == nil {
		panic("resolve repository is required")
	}
	return &Engine{repo: repo}
}

// ResolveAttendee applies the event tier, then the club tier. It never
// searches across clubs; without an event or club slug it fails with
// ErrScopeRequired.
func (e *Engine) ResolveAttendee(ctx context.Context, q Query) (Subject, error) {
	q = q.normalized()
	if q.Name == "" || q.StudentID == "" {
		return Subject{}, ErrNotFound
	}

	if q.EventID != nil {
		return e.resolveForEvent(ctx, q)
	}
	if q.ClubSlug == "" {
		return Subject{}, ErrScopeRequired
	}

	club, err := e.repo.ActiveClubBySlug(ctx, q.ClubSlug)
	if err != nil {
		return Subject{}, err
	}
	att, err := e.repo.AttendeeInClub(ctx, club.ClubID, q.StudentID, q.Name, q.Role)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Club: club, Attendee: att}, nil
}

// resolveForEvent ignores the caller's role in favor of the event's own role.
// A club slug, when given, must name the event's club.
func (e *Engine) resolveForEvent(ctx context.Context, q Query) (Subject, error) {
	event, err := e.repo.ActiveEvent(ctx, *q.EventID)
	if err != nil {
		return Subject{}, err
	}

	var club persistence.ClubRecord
	if q.ClubSlug != "" {
		club, err = e.repo.ActiveClubBySlug(ctx, q.ClubSlug)
		if err != nil {
			return Subject{}, err
		}
		if club.ClubID != event.ClubID {
			return Subject{}, ErrNotFound
		}
	} else {
		club, err = e.repo.Club(ctx, event.ClubID)
		if err != nil {
			return Subject{}, err
		}
		if !club.IsActive {
			return Subject{}, ErrNotFound
		}
	}

	att, err := e.repo.AttendeeForEvent(ctx, club.ClubID, event.ImportID, event.Role, q.StudentID, q.Name)
	if err != nil {
		return Subject{}, err
	}

	name := event.Name
	date := event.EventDate
	att.EventName = &name
	att.EventDate = &date
	return Subject{Club: club, Attendee: att, Event: &event}, nil
}

// ResolveAttendeeAnyClub searches every active club and takes the most
// recently updated match. Clubs sharing student identifiers make this
// ambiguous, so callers expose it only when global lookup is enabled.
func (e *Engine) ResolveAttendeeAnyClub(ctx context.Context, q Query) (Subject, error) {
	q = q.normalized()
	if q.Name == "" || q.StudentID == "" {
		return Subject{}, ErrNotFound
	}
	att, club, err := e.repo.AttendeeAcrossClubs(ctx, q.StudentID, q.Name, q.Role)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Club: club, Attendee: att}, nil
}

// ResolveTemplate walks the template tiers. Explicit and attendee ids are
// only honored when they name an active template of clubID; a tier that
// finds nothing falls through to the next one.
func (e *Engine) ResolveTemplate(ctx context.Context, clubID uuid.UUID, explicit, attendeeTemplate *uuid.UUID, audience *string) (persistence.TemplateRecord, error) {
	for _, id := range []*uuid.UUID{explicit, attendeeTemplate} {
		if id == nil || *id == uuid.Nil {
			continue
		}
		tpl, err := e.repo.ActiveTemplate(ctx, clubID, *id)
		if err == nil {
			return tpl, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return persistence.TemplateRecord{}, err
		}
	}

	tpl, err := e.repo.NewestActiveTemplate(ctx, clubID, audience)
	if errors.Is(err, ErrNotFound) {
		return persistence.TemplateRecord{}, ErrNoActiveTemplate
	}
	return tpl, err
}

// Resolution bundles a subject with its template.
type Resolution struct {
	Subject
	Template persistence.TemplateRecord
}

// Resolve runs attendee resolution then template resolution. When global is
// true and the query names neither a club nor an event, the any-club mode is
// used instead of failing with ErrScopeRequired.
func (e *Engine) Resolve(ctx context.Context, q Query, global bool) (Resolution, error) {
	var (
		subject Subject
		err     error
	)
	if global && q.EventID == nil && strings.TrimSpace(q.ClubSlug) == "" {
		subject, err = e.ResolveAttendeeAnyClub(ctx, q)
	} else {
		subject, err = e.ResolveAttendee(ctx, q)
	}
	if err != nil {
		return Resolution{}, err
	}

	tpl, err := e.ResolveTemplate(ctx, subject.Club.ClubID, subject.TemplateHint(q), subject.Attendee.TemplateID, subject.Audience())
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Subject: subject, Template: tpl}, nil
}
