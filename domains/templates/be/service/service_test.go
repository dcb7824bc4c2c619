package service

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/quota"
	"github.com/Ixotic27/certifyhub/platform/go/storage"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
)

type mockRepo struct {
	createFn       func(ctx context.Context, params persistence.CreateTemplateParams) (persistence.TemplateRecord, error)
	getFn          func(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
	listFn         func(ctx context.Context, clubID uuid.UUID, activeOnly bool) ([]persistence.TemplateRecord, error)
	updateFieldsFn func(ctx context.Context, clubID, id uuid.UUID, fields []persistence.FieldDescriptor) (persistence.TemplateRecord, error)
	deactivateFn   func(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error)
	statsFn        func(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateStats, error)
}

func (m *mockRepo) Create(ctx context.Context, params persistence.CreateTemplateParams) (persistence.TemplateRecord, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepo) Get(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, clubID, id)
}

func (m *mockRepo) List(ctx context.Context, clubID uuid.UUID, activeOnly bool) ([]persistence.TemplateRecord, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, clubID, activeOnly)
}

func (m *mockRepo) UpdateFields(ctx context.Context, clubID, id uuid.UUID, fields []persistence.FieldDescriptor) (persistence.TemplateRecord, error) {
	if m.updateFieldsFn == nil {
		panic("updateFieldsFn not configured")
	}
	return m.updateFieldsFn(ctx, clubID, id, fields)
}

func (m *mockRepo) Deactivate(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateRecord, error) {
	if m.deactivateFn == nil {
		panic("deactivateFn not configured")
	}
	return m.deactivateFn(ctx, clubID, id)
}

func (m *mockRepo) Stats(ctx context.Context, clubID, id uuid.UUID) (persistence.TemplateStats, error) {
	if m.statsFn == nil {
		panic("statsFn not configured")
	}
	return m.statsFn(ctx, clubID, id)
}

type recorder struct {
	mu      sync.Mutex
	entries []activityservice.Entry
}

func (r *recorder) Record(_ context.Context, e activityservice.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

type fixedUsage struct {
	club, platform int64
}

func (u fixedUsage) ClubBytes(context.Context, uuid.UUID) (int64, error) { return u.club, nil }
func (u fixedUsage) PlatformBytes(context.Context) (int64, error)        { return u.platform, nil }

const validFields = `[{"field":"name","x":100,"y":200},{"field":"date","x":100,"y":300}]`

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG))
	return buf.Bytes()
}

func testSpace() tenant.Space {
	id := uuid.New()
	return tenant.Space{ClubID: id, Slug: "acme", StoragePrefix: tenant.BuildStoragePrefix(id)}
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	require.NoError(t, filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			rel, _ := filepath.Rel(dir, p)
			files = append(files, filepath.ToSlash(rel))
		}
		return err
	}))
	return files
}

func TestCreateStoresOptimizedImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	space := testSpace()
	rec := &recorder{}
	var got persistence.CreateTemplateParams
	repo := &mockRepo{createFn: func(_ context.Context, params persistence.CreateTemplateParams) (persistence.TemplateRecord, error) {
		got = params
		return persistence.TemplateRecord{
			TemplateID: uuid.New(), ClubID: params.ClubID, Name: params.Name, Audience: params.Audience,
			ImageURL: params.ImageURL, ImageSizeBytes: params.ImageSizeBytes, Fields: params.Fields, Version: 1, IsActive: true,
		}, nil
	}}
	svc := New(repo, Config{MaxImageDimension: 256}, Deps{
		Objects:  storage.NewLocalStore(dir, "/files"),
		Quota:    quota.Checker{Usage: fixedUsage{}, ClubLimit: quota.DefaultClubLimit, PlatformLimit: quota.DefaultPlatformLimit},
		Activity: rec,
	})

	record, err := svc.Create(context.Background(), space, CreateInput{
		Name:   "  Participation ",
		Fields: []byte(validFields),
		Image:  Image{Filename: "bg.jpeg", ContentType: "image/png", Data: pngBytes(t, 1024, 512)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, record.Version)
	require.Equal(t, "Participation", got.Name)
	require.Equal(t, persistence.RoleStudent, got.Audience)
	require.Len(t, got.Fields, 2)
	require.True(t, strings.HasPrefix(got.ImageURL, "/files/clubs/"+space.ClubID.String()+"/templates/template_"))
	require.True(t, strings.HasSuffix(got.ImageURL, ".png"))

	files := storedFiles(t, dir)
	require.Len(t, files, 1)
	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(files[0])))
	require.NoError(t, err)
	require.EqualValues(t, len(stored), got.ImageSizeBytes)
	img, err := imaging.Decode(bytes.NewReader(stored))
	require.NoError(t, err)
	require.Equal(t, 256, img.Bounds().Dx())
	require.Equal(t, 128, img.Bounds().Dy())

	require.Len(t, rec.entries, 1)
	require.Equal(t, activityservice.ActionTemplateCreated, rec.entries[0].Action)
	require.Equal(t, space.ClubID, *rec.entries[0].ClubID)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepo{}, Config{MaxUploadSize: 64}, Deps{Objects: storage.NewLocalStore(t.TempDir(), "")})

	_, err := svc.Create(context.Background(), testSpace(), CreateInput{
		Audience: "alumni",
		Fields:   []byte(`[{"field":"name","x":-1,"y":0}]`),
		Image:    Image{Filename: "bg.gif", ContentType: "image/gif", Data: []byte("GIF89a")},
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "name")
	require.Contains(t, verr.Fields, "audience")
	require.Contains(t, verr.Fields, "image")
	require.Contains(t, verr.Fields, "fields[0].x")

	_, err = svc.Create(context.Background(), testSpace(), CreateInput{
		Name:   "Big",
		Fields: []byte(validFields),
		Image:  Image{ContentType: "image/png", Data: make([]byte, 65)},
	})
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{"must be at most 64 bytes"}, verr.Fields["image"])
}

func TestCreateRejectsOverQuotaBeforeWriting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	svc := New(&mockRepo{}, Config{}, Deps{
		Objects: storage.NewLocalStore(dir, ""),
		Quota:   quota.Checker{Usage: fixedUsage{club: quota.DefaultClubLimit}, ClubLimit: quota.DefaultClubLimit},
	})

	_, err := svc.Create(context.Background(), testSpace(), CreateInput{
		Name:   "Participation",
		Fields: []byte(validFields),
		Image:  Image{ContentType: "image/png", Data: pngBytes(t, 10, 10)},
	})
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)
	require.Empty(t, storedFiles(t, dir))
}

func TestCreateConflictRemovesStoredImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := &mockRepo{createFn: func(context.Context, persistence.CreateTemplateParams) (persistence.TemplateRecord, error) {
		return persistence.TemplateRecord{}, persistence.ErrTemplateConflict
	}}
	svc := New(repo, Config{}, Deps{Objects: storage.NewLocalStore(dir, "")})

	_, err := svc.Create(context.Background(), testSpace(), CreateInput{
		Name:   "Participation",
		Fields: []byte(validFields),
		Image:  Image{ContentType: "image/png", Data: pngBytes(t, 10, 10)},
	})
	require.ErrorIs(t, err, ErrConflict)
	require.Empty(t, storedFiles(t, dir))
}

func TestUpdateFields(t *testing.T) {
	t.Parallel()

	clubID, id := uuid.New(), uuid.New()
	rec := &recorder{}
	repo := &mockRepo{
		getFn: func(_ context.Context, c, i uuid.UUID) (persistence.TemplateRecord, error) {
			if c != clubID || i != id {
				return persistence.TemplateRecord{}, persistence.ErrTemplateNotFound
			}
			return persistence.TemplateRecord{TemplateID: id, ClubID: clubID, Version: 1}, nil
		},
		updateFieldsFn: func(_ context.Context, _, _ uuid.UUID, fields []persistence.FieldDescriptor) (persistence.TemplateRecord, error) {
			return persistence.TemplateRecord{TemplateID: id, ClubID: clubID, Version: 2, Fields: fields}, nil
		},
	}
	svc := New(repo, Config{}, Deps{Objects: storage.NewLocalStore(t.TempDir(), ""), Activity: rec})

	updated, err := svc.UpdateFields(context.Background(), clubID, id, []byte(`[{"field_type":"custom","field_name":"Event","x":5,"y":6,"align":"right"}]`))
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)
	require.Equal(t, persistence.AlignRight, updated.Fields[0].Align)
	require.Equal(t, activityservice.ActionTemplateUpdated, rec.entries[0].Action)

	_, err = svc.UpdateFields(context.Background(), uuid.New(), id, []byte(validFields))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateFields(context.Background(), clubID, id, []byte(`[]`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestStatsAndDeactivate(t *testing.T) {
	t.Parallel()

	clubID, id := uuid.New(), uuid.New()
	repo := &mockRepo{
		getFn: func(context.Context, uuid.UUID, uuid.UUID) (persistence.TemplateRecord, error) {
			return persistence.TemplateRecord{TemplateID: id, ClubID: clubID, Name: "Participation"}, nil
		},
		statsFn: func(context.Context, uuid.UUID, uuid.UUID) (persistence.TemplateStats, error) {
			return persistence.TemplateStats{Generations: 3}, nil
		},
		deactivateFn: func(context.Context, uuid.UUID, uuid.UUID) (persistence.TemplateRecord, error) {
			return persistence.TemplateRecord{}, persistence.ErrTemplateNotFound
		},
	}
	svc := New(repo, Config{}, Deps{Objects: storage.NewLocalStore(t.TempDir(), "")})

	stats, err := svc.Stats(context.Background(), clubID, id)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Generations)
	require.Equal(t, "Participation", stats.Template.Name)

	_, err = svc.Deactivate(context.Background(), clubID, id)
	require.ErrorIs(t, err, ErrNotFound)
}
