package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	activityrepo "github.com/Ixotic27/certifyhub/domains/activity/be/repo"
	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/ledger"
	"github.com/Ixotic27/certifyhub/domains/certificates/be/repo"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

type failingStore struct{}

func (failingStore) RecordGeneration(context.Context, persistence.RecordGenerationParams) (persistence.GenerationRecord, persistence.AttendeeRecord, error) {
	return persistence.GenerationRecord{}, persistence.AttendeeRecord{}, errors.New("connection reset")
}

func TestCertificateIDAndFilename(t *testing.T) {
	t.Parallel()

	id := ledger.CertificateID(" acme ", "S100")
	require.Equal(t, "CERT-ACME-S100", id)
	require.Equal(t, "certificate_S100_CERT-ACME-S100.pdf", ledger.Filename("S100", id))
}

func TestRecordAdvancesCounters(t *testing.T) {
	t.Parallel()

	store := repo.NewMemoryRepository()
	club := store.PutClub(persistence.ClubRecord{Slug: "acme", IsActive: true})
	tpl := store.PutTemplate(persistence.TemplateRecord{ClubID: club.ClubID, IsActive: true, Audience: persistence.RoleStudent})
	att := store.PutAttendee(persistence.AttendeeRecord{ClubID: club.ClubID, Name: "Jane Doe", StudentID: "S100", Role: persistence.RoleStudent})

	activity := activityrepo.NewMemoryRepository()
	l := ledger.New(store, activityservice.New(activity, nil, nil), nil)

	first, err := l.Record(context.Background(), ledger.Entry{Club: club, Attendee: att, Template: tpl, RequesterIP: "198.51.100.7"})
	require.NoError(t, err)
	require.Equal(t, "CERT-ACME-S100", first.CertificateID)
	require.Equal(t, 1, first.Attendee.GenerationCount)
	require.Equal(t, "public", first.Generation.GeneratedBy)
	require.Equal(t, "198.51.100.7", *first.Generation.IPAddress)
	require.True(t, first.Attendee.FirstGeneratedAt.Equal(*first.Attendee.LastGeneratedAt))
	require.Equal(t, tpl.TemplateID, *first.Attendee.TemplateID)

	second, err := l.Record(context.Background(), ledger.Entry{Club: club, Attendee: first.Attendee, Template: tpl, GeneratedBy: "admin-1"})
	require.NoError(t, err)
	require.Equal(t, 2, second.Attendee.GenerationCount)
	require.True(t, first.Attendee.FirstGeneratedAt.Equal(*second.Attendee.FirstGeneratedAt))
	require.False(t, second.Attendee.LastGeneratedAt.Before(*first.Attendee.LastGeneratedAt))
	require.Nil(t, second.Generation.IPAddress)

	history, err := store.Generations(context.Background(), club.ClubID, att.AttendeeID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.Generation.GenerationID, history[0].GenerationID)

	entries := activity.All()
	require.Len(t, entries, 2)
	require.Equal(t, activityservice.ActionCertificateGenerated, entries[0].Action)
	require.Equal(t, "CERT-ACME-S100", entries[0].Details["certificate_id"])
}

func TestRecordIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	store := repo.NewMemoryRepository()
	club := store.PutClub(persistence.ClubRecord{Slug: "acme", IsActive: true})
	att := store.PutAttendee(persistence.AttendeeRecord{ClubID: club.ClubID, Name: "Jane", StudentID: "S1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	receipt, err := ledger.New(store, nil, nil).Record(ctx, ledger.Entry{Club: club, Attendee: att, Template: persistence.TemplateRecord{TemplateID: uuid.New()}})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.Attendee.GenerationCount)
}

func TestRecordWrapsStoreFailure(t *testing.T) {
	t.Parallel()

	activity := activityrepo.NewMemoryRepository()
	l := ledger.New(failingStore{}, activityservice.New(activity, nil, nil), nil)

	_, err := l.Record(context.Background(), ledger.Entry{Club: persistence.ClubRecord{Slug: "acme"}, Attendee: persistence.AttendeeRecord{StudentID: "S1"}})
	require.ErrorIs(t, err, ledger.ErrLedgerWrite)
	require.Empty(t, activity.All(), "no activity for an unrecorded certificate")
}

const concurrentIssuances = 16

// issueConcurrently fires n Record calls for one attendee at once and checks
// what callers may rely on: exactly one ledger row per call. The attendee
// counter and last template are allowed to lose updates under concurrency, so
// the count is only bounded by 1 and n.
func issueConcurrently(t *testing.T, l *ledger.Ledger, e ledger.Entry, n int,
	history func() ([]persistence.GenerationRecord, error), counter func() (int, error)) {
	t.Helper()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := e
			entry.RequesterIP = fmt.Sprintf("198.51.100.%d", i+1)
			if _, err := l.Record(context.Background(), entry); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := history()
	require.NoError(t, err)
	require.Len(t, rows, n)
	seen := map[uuid.UUID]bool{}
	for _, row := range rows {
		require.Equal(t, e.Attendee.AttendeeID, row.AttendeeID)
		seen[row.GenerationID] = true
	}
	require.Len(t, seen, n)

	count, err := counter()
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 1)
	require.LessOrEqual(t, count, n)
}

func TestRecordConcurrentIssuancesKeepEveryLedgerRow(t *testing.T) {
	t.Parallel()

	store := repo.NewMemoryRepository()
	club := store.PutClub(persistence.ClubRecord{Slug: "acme", IsActive: true})
	tpl := store.PutTemplate(persistence.TemplateRecord{ClubID: club.ClubID, IsActive: true, Audience: persistence.RoleStudent})
	att := store.PutAttendee(persistence.AttendeeRecord{ClubID: club.ClubID, Name: "Jane Doe", StudentID: "S100", Role: persistence.RoleStudent})

	activity := activityrepo.NewMemoryRepository()
	l := ledger.New(store, activityservice.New(activity, nil, nil), nil)

	issueConcurrently(t, l, ledger.Entry{Club: club, Attendee: att, Template: tpl}, concurrentIssuances,
		func() ([]persistence.GenerationRecord, error) {
			return store.Generations(context.Background(), club.ClubID, att.AttendeeID)
		},
		func() (int, error) {
			current, ok := store.Attendee(att.AttendeeID)
			if !ok {
				return 0, errors.New("attendee vanished")
			}
			return current.GenerationCount, nil
		},
	)
	require.Len(t, activity.All(), concurrentIssuances)
}

func TestRecordConcurrentIssuancesAgainstPostgres(t *testing.T) {
	connString := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if testing.Short() || connString == "" {
		t.Skip("set TEST_DATABASE_URL to run against postgres")
	}
	ctx := context.Background()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: connString, ApplicationName: "certifyhub-ledger-tests"})
	require.NoError(t, err)
	t.Cleanup(func() { persistence.ClosePool(pool) })
	require.NoError(t, persistence.ApplySchema(ctx, pool))

	clubs, err := persistence.NewClubStore(ctx, pool)
	require.NoError(t, err)
	templates, err := persistence.NewTemplateStore(ctx, pool)
	require.NoError(t, err)
	attendees, err := persistence.NewAttendeeStore(ctx, pool)
	require.NoError(t, err)
	imports, err := persistence.NewImportStore(ctx, pool)
	require.NoError(t, err)
	events, err := persistence.NewEventStore(ctx, pool)
	require.NoError(t, err)
	generations, err := persistence.NewGenerationStore(ctx, pool)
	require.NoError(t, err)

	slug := "ledger-" + uuid.NewString()[:8]
	club, err := clubs.Create(ctx, persistence.CreateClubParams{Slug: slug, Name: "Ledger Club", ContactEmail: slug + "@example.com"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = clubs.Delete(context.Background(), club.ClubID) })

	tpl, err := templates.Create(ctx, persistence.CreateTemplateParams{ClubID: club.ClubID, Name: "Participation", ImageURL: "p.png", Audience: persistence.RoleStudent})
	require.NoError(t, err)
	commit, err := imports.Commit(ctx, persistence.CommitImportParams{
		ClubID:    club.ClubID,
		Filename:  "roster.csv",
		Role:      persistence.RoleStudent,
		Attendees: []persistence.NewAttendee{{Name: "Jane Doe", StudentID: "S100", Role: persistence.RoleStudent}},
	})
	require.NoError(t, err)
	require.Len(t, commit.Inserted, 1)
	att := commit.Inserted[0]

	certRepo := repo.NewPostgresRepository(clubs, templates, attendees, events, generations)
	issueConcurrently(t, ledger.New(certRepo, nil, nil), ledger.Entry{Club: club, Attendee: att, Template: tpl}, concurrentIssuances,
		func() ([]persistence.GenerationRecord, error) {
			return certRepo.Generations(ctx, club.ClubID, att.AttendeeID)
		},
		func() (int, error) {
			current, err := attendees.Get(ctx, club.ClubID, att.AttendeeID)
			return current.GenerationCount, err
		},
	)
}
