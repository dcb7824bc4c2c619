package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Ixotic27/certifyhub/domains/activity/be/repo"
	"github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/requesttrace"
)

func TestRecordStampsActorFromTrace(t *testing.T) {
	t.Parallel()

	store := repo.NewMemoryRepository()
	svc := service.New(store, zap.NewNop(), nil)

	clubID := uuid.New()
	adminID := "admin-1"
	ctx := requesttrace.IntoContext(context.Background(), requesttrace.AuditInfo{
		ActorKind: requesttrace.ActorKindAdmin,
		UserID:    &adminID,
		ClientIP:  "192.0.2.1",
	})

	svc.Record(ctx, service.Entry{
		ClubID:       &clubID,
		Action:       service.ActionTemplateCreated,
		ResourceType: "template",
		ResourceID:   "tpl-1",
		Details:      map[string]any{"name": "Participation"},
	})

	all := store.All()
	require.Len(t, all, 1)
	require.Equal(t, "admin", all[0].ActorKind)
	require.Equal(t, "admin-1", *all[0].ActorID)
	require.Equal(t, "192.0.2.1", *all[0].IPAddress)
	require.Equal(t, "tpl-1", *all[0].ResourceID)
}

func TestRecordSwallowsFailures(t *testing.T) {
	t.Parallel()

	store := repo.NewMemoryRepository()
	store.FailWith = errors.New("db down")

	core, logs := observer.New(zapcore.WarnLevel)
	svc := service.New(store, zap.New(core), nil)

	require.NotPanics(t, func() {
		svc.Record(context.Background(), service.Entry{Action: service.ActionCertificateGenerated, ResourceType: "certificate"})
	})
	require.Equal(t, 1, logs.FilterMessage("activity log write failed").Len())
}

func TestListAndStats(t *testing.T) {
	t.Parallel()

	store := repo.NewMemoryRepository()
	svc := service.New(store, nil, nil)
	ctx := context.Background()

	club := uuid.New()
	other := uuid.New()
	for i := 0; i < 3; i++ {
		svc.Record(ctx, service.Entry{ClubID: &club, Action: service.ActionCertificateGenerated, ResourceType: "certificate"})
	}
	svc.Record(ctx, service.Entry{ClubID: &club, Action: service.ActionRosterImported, ResourceType: "import"})
	svc.Record(ctx, service.Entry{ClubID: &other, Action: service.ActionRosterImported, ResourceType: "import"})

	res, err := svc.List(ctx, club, service.ListOptions{Days: 7, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 4, res.TotalItems)
	require.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Entries, 2)

	action := service.ActionRosterImported
	res, err = svc.List(ctx, club, service.ListOptions{Action: &action})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalItems)

	stats, err := svc.Stats(ctx, club, 30)
	require.NoError(t, err)
	require.Equal(t, map[string]int{service.ActionCertificateGenerated: 3, service.ActionRosterImported: 1}, stats)
}
