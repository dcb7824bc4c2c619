// Package ledger records certificate issuances.
//
// Each successful composition inserts one immutable generation row and
// advances the attendee's counters in the same write. That write is the
// audit record: if it fails the certificate must not be delivered. The
// activity entry that follows is best effort.
//
// Record is not idempotent. Calling it twice for one composition counts
// twice, so callers invoke it once, after composition succeeded.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/metrics"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// ErrLedgerWrite wraps any failure of the generation write.
var ErrLedgerWrite = errors.New("certificate ledger write failed")

// Store persists a generation and returns the attendee with advanced counters.
type Store interface {
	RecordGeneration(ctx context.Context, params persistence.RecordGenerationParams) (persistence.GenerationRecord, persistence.AttendeeRecord, error)
}

// Recorder receives the best-effort activity entry.
type Recorder interface {
	Record(ctx context.Context, e activityservice.Entry)
}

// Entry describes one delivered certificate.
type Entry struct {
	Club        persistence.ClubRecord
	Attendee    persistence.AttendeeRecord
	Template    persistence.TemplateRecord
	Event       *persistence.EventRecord
	RequesterIP string
	GeneratedBy string
}

// Receipt is what the caller hands back to the requester.
type Receipt struct {
	Generation    persistence.GenerationRecord
	Attendee      persistence.AttendeeRecord
	CertificateID string
	Filename      string
}

// CertificateID derives the human readable id: CERT-<SLUG>-<studentId>.
func CertificateID(clubSlug, studentID string) string {
	return "CERT-" + strings.ToUpper(strings.TrimSpace(clubSlug)) + "-" + strings.TrimSpace(studentID)
}

// Filename is the download name for a certificate.
func Filename(studentID, certificateID string) string {
	return fmt.Sprintf("certificate_%s_%s.pdf", strings.TrimSpace(studentID), certificateID)
}

type Ledger struct {
	store    Store
	activity Recorder
	metrics  *metrics.Metrics
}

// New builds a ledger. activity and m may be nil.
func New(store Store, activity Recorder, m *metrics.Metrics) *Ledger {
	if store == nil {
		panic("ledger store is required")
	}
	return &Ledger{store: store, activity: activity, metrics: m}
}

// Record writes the generation row and the counter update. Cancellation of
// ctx is ignored once the write starts.
func (l *Ledger) Record(ctx context.Context, e Entry) (Receipt, error) {
	certID := CertificateID(e.Club.Slug, e.Attendee.StudentID)

	params := persistence.RecordGenerationParams{
		ClubID:        e.Club.ClubID,
		AttendeeID:    e.Attendee.AttendeeID,
		TemplateID:    e.Template.TemplateID,
		CertificateID: certID,
		GeneratedBy:   e.GeneratedBy,
	}
	if params.GeneratedBy == "" {
		params.GeneratedBy = "public"
	}
	if e.Event != nil {
		id := e.Event.EventID
		params.EventID = &id
	}
	if ip := strings.TrimSpace(e.RequesterIP); ip != "" {
		params.IPAddress = &ip
	}

	writeCtx := context.WithoutCancel(ctx)
	gen, att, err := l.store.RecordGeneration(writeCtx, params)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}

	l.metrics.CertificateGenerated(e.Club.Slug)
	if l.activity != nil {
		clubID := e.Club.ClubID
		details := map[string]any{
			"certificate_id": certID,
			"student_id":     e.Attendee.StudentID,
			"template_id":    e.Template.TemplateID.String(),
		}
		if params.EventID != nil {
			details["event_id"] = params.EventID.String()
		}
		l.activity.Record(writeCtx, activityservice.Entry{
			ClubID:       &clubID,
			Action:       activityservice.ActionCertificateGenerated,
			ResourceType: "certificate",
			ResourceID:   gen.GenerationID.String(),
			Details:      details,
		})
	}

	return Receipt{
		Generation:    gen,
		Attendee:      att,
		CertificateID: certID,
		Filename:      Filename(e.Attendee.StudentID, certID),
	}, nil
}
