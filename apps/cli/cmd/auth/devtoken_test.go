package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
)

func TestDevTokenForClubAdmin(t *testing.T) {
	t.Parallel()

	cmd := Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"devtoken", "--user-id", "admin-1", "--email", "admin@example.com", "--club-id", "2f6b7c55-1111-4e4e-9999-0123456789ab"})
	require.NoError(t, cmd.Execute())

	claims, err := platformauth.UnsignedTokenVerifier()(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	creds, err := platformauth.DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "admin-1", creds.Id)
	require.Equal(t, "2f6b7c55-1111-4e4e-9999-0123456789ab", *creds.ClubID)
	require.False(t, creds.IsPlatformAdmin)
}

func TestDevTokenRequiresScope(t *testing.T) {
	t.Parallel()

	cmd := Command()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"devtoken", "--user-id", "admin-1", "--email", "admin@example.com"})
	require.Error(t, cmd.Execute())
}
