package persistence

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAdminStoreLifecycle(t *testing.T) {
	pool := mustTestPool(t)
	ctx := context.Background()

	clubs, err := NewClubStore(ctx, pool)
	require.NoError(t, err)
	admins, err := NewAdminStore(ctx, pool)
	require.NoError(t, err)

	slug := uniqueSlug("admins")
	club, err := clubs.Create(ctx, CreateClubParams{Slug: slug, Name: "Admins Club", ContactEmail: slug + "@example.com"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = clubs.Delete(context.Background(), club.ClubID) })

	email := "Lead@" + slug + ".example.com"
	created, err := admins.Create(ctx, CreateAdminParams{ClubID: club.ClubID, Email: email, FullName: " Ada Lead ", AuthUID: "uid-" + slug})
	require.NoError(t, err)
	require.Equal(t, strings.ToLower(email), created.Email)
	require.Equal(t, "Ada Lead", created.FullName)
	require.True(t, created.IsActive)

	_, err = admins.Create(ctx, CreateAdminParams{ClubID: club.ClubID, Email: strings.ToUpper(email), FullName: "Dup", AuthUID: "uid-other-" + slug})
	require.ErrorIs(t, err, ErrAdminConflict)

	_, err = admins.Create(ctx, CreateAdminParams{ClubID: uuid.New(), Email: "ghost@" + slug + ".example.com", FullName: "Ghost", AuthUID: "uid-ghost-" + slug})
	require.ErrorIs(t, err, ErrClubNotFound)

	byEmail, err := admins.GetByEmail(ctx, strings.ToUpper(email))
	require.NoError(t, err)
	require.Equal(t, created.AdminID, byEmail.AdminID)

	list, err := admins.List(ctx, ListAdminsParams{ClubID: club.ClubID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalItems)
	require.Len(t, list.Admins, 1)

	off, err := admins.SetActive(ctx, created.AdminID, false)
	require.NoError(t, err)
	require.False(t, off.IsActive)

	require.NoError(t, clubs.Delete(ctx, club.ClubID))
	_, err = admins.Get(ctx, created.AdminID)
	require.ErrorIs(t, err, ErrAdminNotFound)
}
