package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/require"
)

type fakeFirebaseUsers struct {
	createFn    func(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	setClaimsFn func(ctx context.Context, uid string, claims map[string]interface{}) error
	updateFn    func(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	deleteFn    func(ctx context.Context, uid string) error
}

func (f *fakeFirebaseUsers) CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
	if f.createFn == nil {
		panic("createFn not set")
	}
	return f.createFn(ctx, user)
}

func (f *fakeFirebaseUsers) SetCustomUserClaims(ctx context.Context, uid string, claims map[string]interface{}) error {
	if f.setClaimsFn == nil {
		panic("setClaimsFn not set")
	}
	return f.setClaimsFn(ctx, uid, claims)
}

func (f *fakeFirebaseUsers) UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error) {
	if f.updateFn == nil {
		panic("updateFn not set")
	}
	return f.updateFn(ctx, uid, user)
}

func (f *fakeFirebaseUsers) DeleteUser(ctx context.Context, uid string) error {
	if f.deleteFn == nil {
		panic("deleteFn not set")
	}
	return f.deleteFn(ctx, uid)
}

func userRecord(uid string) *auth.UserRecord {
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid}}
}

func TestFirebaseDirectoryCreateBindsClubClaim(t *testing.T) {
	t.Parallel()

	var claimed map[string]interface{}
	users := &fakeFirebaseUsers{
		createFn: func(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
			return userRecord("fb-1"), nil
		},
		setClaimsFn: func(ctx context.Context, uid string, claims map[string]interface{}) error {
			require.Equal(t, "fb-1", uid)
			claimed = claims
			return nil
		},
	}

	uid, err := (&FirebaseDirectory{users: users}).CreateIdentity(context.Background(), NewIdentity{
		Email: " Lead@Robotics.example.com ", DisplayName: "Ada Lead", ClubID: "club-1",
	})
	require.NoError(t, err)
	require.Equal(t, "fb-1", uid)
	require.Equal(t, map[string]interface{}{"clubId": "club-1"}, claimed)

	creds, err := DefaultCredentialExtractor(map[string]interface{}{"uid": uid, "clubId": claimed["clubId"]})
	require.NoError(t, err)
	require.Equal(t, "club-1", *creds.ClubID)
	require.False(t, creds.IsPlatformAdmin)
}

func TestFirebaseDirectoryRemovesUserWhenClaimFails(t *testing.T) {
	t.Parallel()

	var deleted string
	users := &fakeFirebaseUsers{
		createFn: func(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
			return userRecord("fb-2"), nil
		},
		setClaimsFn: func(ctx context.Context, uid string, claims map[string]interface{}) error {
			return errors.New("quota exceeded")
		},
		deleteFn: func(ctx context.Context, uid string) error {
			deleted = uid
			return nil
		},
	}

	_, err := (&FirebaseDirectory{users: users}).CreateIdentity(context.Background(), NewIdentity{Email: "a@b.co", DisplayName: "A", ClubID: "c"})
	require.ErrorContains(t, err, "set club claim")
	require.Equal(t, "fb-2", deleted)
}

func TestFirebaseDirectorySetDisabled(t *testing.T) {
	t.Parallel()

	var updated []string
	users := &fakeFirebaseUsers{
		updateFn: func(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error) {
			updated = append(updated, uid)
			return userRecord(uid), nil
		},
	}
	dir := &FirebaseDirectory{users: users}

	require.NoError(t, dir.SetDisabled(context.Background(), "fb-3", true))
	require.NoError(t, dir.SetDisabled(context.Background(), "fb-3", false))
	require.Equal(t, []string{"fb-3", "fb-3"}, updated)

	users.updateFn = func(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error) {
		return nil, errors.New("backend unavailable")
	}
	require.ErrorContains(t, dir.SetDisabled(context.Background(), "fb-3", true), "update firebase user")
}

func TestDevDirectoryIssuesLocalUIDs(t *testing.T) {
	t.Parallel()

	var dir DevDirectory
	first, err := dir.CreateIdentity(context.Background(), NewIdentity{Email: "a@b.co"})
	require.NoError(t, err)
	second, err := dir.CreateIdentity(context.Background(), NewIdentity{Email: "a@b.co"})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(first, "dev-"))
	require.NotEqual(t, first, second)
	require.NoError(t, dir.SetDisabled(context.Background(), first, true))
	require.NoError(t, dir.DeleteIdentity(context.Background(), first))
}
