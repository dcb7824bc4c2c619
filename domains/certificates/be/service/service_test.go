package service_test

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	activityrepo "github.com/Ixotic27/certifyhub/domains/activity/be/repo"
	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/ledger"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/render"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/repo"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/resolve"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/requesttrace"
	"github.com/Ixotic27/certifyhub/platform/go/storage"
)

type harness struct {
	repo     *repo.MemoryRepository
	activity *activityrepo.MemoryRepository
	svc      *service.Service
	club     persistence.ClubRecord
	tpl      persistence.TemplateRecord
	jane     persistence.AttendeeRecord
}

type failingComposer struct{}

func (failingComposer) Compose(context.Context, []byte, []persistence.FieldDescriptor, persistence.AttendeeRecord, persistence.TemplateRecord) ([]byte, error) {
	return nil, render.ErrComposition
}

func newHarness(t *testing.T, composer service.Composer, cfg service.Config) harness {
	t.Helper()
	ctx := context.Background()

	store := storage.NewLocalStore(t.TempDir(), "/files")
	var png bytes.Buffer
	require.NoError(t, imaging.Encode(&png, imaging.New(800, 600, color.White), imaging.PNG))
	imageURL, err := store.Put(ctx, "clubs/acme/templates/template_1.png", png.Bytes(), "image/png")
	require.NoError(t, err)

	r := repo.NewMemoryRepository()
	club := r.PutClub(persistence.ClubRecord{Slug: "acme", Name: "Acme Club", IsActive: true})
	tpl := r.PutTemplate(persistence.TemplateRecord{
		ClubID:   club.ClubID,
		Name:     "Participation",
		ImageURL: imageURL,
		Audience: persistence.RoleStudent,
		IsActive: true,
		Version:  1,
		Fields: []persistence.FieldDescriptor{
			{Type: persistence.FieldTypeName, X: 100, Y: 200, FontSize: 40, Align: persistence.AlignLeft},
			{Type: persistence.FieldTypeDate, X: 100, Y: 300, FontSize: 24, Align: persistence.AlignLeft},
		},
	})
	jane := r.PutAttendee(persistence.AttendeeRecord{ClubID: club.ClubID, Name: "Jane Doe", StudentID: "S100", Role: persistence.RoleStudent})

	activity := activityrepo.NewMemoryRepository()
	l := ledger.New(r, activityservice.New(activity, nil, nil), nil)
	if composer == nil {
		composer = render.NewComposer(render.Options{})
	}
	svc := service.New(r, l, storage.NewFetcher(store, 0), composer, cfg, nil, nil)

	return harness{repo: r, activity: activity, svc: svc, club: club, tpl: tpl, jane: jane}
}

func TestVerifyThenDownloadRecordsOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, service.Config{})
	ctx := requesttrace.IntoContext(context.Background(), requesttrace.Anonymous("req-1", "203.0.113.9"))
	q := resolve.Query{ClubSlug: "acme", Name: "jane doe", StudentID: "S100"}

	v, err := h.svc.Verify(ctx, q)
	require.NoError(t, err)
	require.Equal(t, "CERT-ACME-S100", v.CertificateID)
	require.Equal(t, h.tpl.TemplateID, v.Template.TemplateID)
	require.Zero(t, v.GenerationCount)

	stored, _ := h.repo.Attendee(h.jane.AttendeeID)
	require.Zero(t, stored.GenerationCount, "verify never writes")

	cert, err := h.svc.Download(ctx, q)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(cert.PDF, []byte("%PDF-")))
	require.Equal(t, "certificate_S100_CERT-ACME-S100.pdf", cert.Filename)

	stored, _ = h.repo.Attendee(h.jane.AttendeeID)
	require.Equal(t, 1, stored.GenerationCount)
	require.NotNil(t, stored.FirstGeneratedAt)
	require.True(t, stored.FirstGeneratedAt.Equal(*stored.LastGeneratedAt))
	require.Equal(t, h.tpl.TemplateID, *stored.TemplateID)

	history, err := h.svc.History(ctx, h.club.ClubID, h.jane.AttendeeID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "public", history[0].GeneratedBy)
	require.Equal(t, "203.0.113.9", *history[0].IPAddress)

	entries := h.activity.All()
	require.Len(t, entries, 1)
	require.Equal(t, "anonymous", entries[0].ActorKind)
}

func TestDownloadCompositionFailureRecordsNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, failingComposer{}, service.Config{})
	_, err := h.svc.Download(context.Background(), resolve.Query{ClubSlug: "acme", Name: "Jane Doe", StudentID: "S100"})
	require.ErrorIs(t, err, render.ErrComposition)

	stored, _ := h.repo.Attendee(h.jane.AttendeeID)
	require.Zero(t, stored.GenerationCount)
	require.Empty(t, h.activity.All())
}

func TestDownloadMissingImageFailsWithoutFallback(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, service.Config{})
	h.tpl.ImageURL = "/files/clubs/acme/templates/missing.png"
	h.repo.PutTemplate(h.tpl)

	_, err := h.svc.Download(context.Background(), resolve.Query{ClubSlug: "acme", Name: "Jane Doe", StudentID: "S100"})
	require.ErrorIs(t, err, render.ErrComposition)

	fallback := newHarness(t, render.NewComposer(render.Options{BlankCanvasFallback: true}), service.Config{})
	fallback.tpl.ImageURL = "/files/clubs/acme/templates/missing.png"
	fallback.repo.PutTemplate(fallback.tpl)

	cert, err := fallback.svc.Download(context.Background(), resolve.Query{ClubSlug: "acme", Name: "Jane Doe", StudentID: "S100"})
	require.NoError(t, err)
	require.NotEmpty(t, cert.PDF)
}

func TestVerifyValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, service.Config{})
	role := "teacher"
	_, err := h.svc.Verify(context.Background(), resolve.Query{ClubSlug: "acme", Role: &role})

	var vErr *service.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Contains(t, vErr.Fields, "name")
	require.Contains(t, vErr.Fields, "studentId")
	require.Contains(t, vErr.Fields, "role")
}

func TestVerifyScopeRules(t *testing.T) {
	t.Parallel()

	scoped := newHarness(t, nil, service.Config{GlobalLookup: false})
	_, err := scoped.svc.Verify(context.Background(), resolve.Query{Name: "Jane Doe", StudentID: "S100"})
	require.ErrorIs(t, err, resolve.ErrScopeRequired)

	// A template id alone scopes the lookup to the template's club.
	v, err := scoped.svc.Verify(context.Background(), resolve.Query{Name: "Jane Doe", StudentID: "S100", TemplateID: &scoped.tpl.TemplateID})
	require.NoError(t, err)
	require.Equal(t, "acme", v.Club.Slug)

	global := newHarness(t, nil, service.Config{GlobalLookup: true})
	v, err = global.svc.Verify(context.Background(), resolve.Query{Name: "Jane Doe", StudentID: "S100"})
	require.NoError(t, err)
	require.Equal(t, global.jane.AttendeeID, v.Attendee.AttendeeID)

	unknown := uuid.New()
	_, err = scoped.svc.Verify(context.Background(), resolve.Query{Name: "Jane Doe", StudentID: "S100", TemplateID: &unknown})
	require.ErrorIs(t, err, resolve.ErrScopeRequired)
}

func TestDownloadEventOverlaysDate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, service.Config{})
	importID := uuid.New()
	h.jane.ImportID = &importID
	h.repo.PutAttendee(h.jane)
	event := h.repo.PutEvent(persistence.EventRecord{
		ClubID: h.club.ClubID, TemplateID: h.tpl.TemplateID, ImportID: importID,
		Name: "Hack Night", EventDate: time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		Role: persistence.RoleStudent, IsActive: true,
	})

	v, err := h.svc.Verify(context.Background(), resolve.Query{Name: "Jane Doe", StudentID: "S100", EventID: &event.EventID})
	require.NoError(t, err)
	require.Equal(t, "Hack Night", *v.Attendee.EventName)
	require.NotNil(t, v.Event)

	cert, err := h.svc.Download(context.Background(), resolve.Query{Name: "Jane Doe", StudentID: "S100", EventID: &event.EventID})
	require.NoError(t, err)
	require.Equal(t, event.EventID, *cert.Receipt.Generation.EventID)
}
