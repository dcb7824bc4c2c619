package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
)

var (
	// ErrIdentityExists indicates the provider already has an account for the email.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityNotFound indicates the provider has no account for the uid.
	ErrIdentityNotFound = errors.New("identity not found")
)

// NewIdentity describes a club administrator account to provision.
type NewIdentity struct {
	Email       string
	DisplayName string
	ClubID      string
}

// firebaseUsers is the slice of *auth.Client the directory needs.
type firebaseUsers interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

// FirebaseDirectory provisions club administrators as Firebase users. The
// clubId custom claim it sets is what DefaultCredentialExtractor reads back
// from their ID tokens.
type FirebaseDirectory struct {
	users firebaseUsers
}

// NewFirebaseDirectory wraps an initialized Firebase Auth client.
func NewFirebaseDirectory(client *auth.Client) *FirebaseDirectory {
	if client == nil {
		panic("firebase auth client is required")
	}
	return &FirebaseDirectory{users: client}
}

// CreateIdentity creates the user and binds it to its club. If the claim
// cannot be set the user is removed again.
func (d *FirebaseDirectory) CreateIdentity(ctx context.Context, identity NewIdentity) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(strings.ToLower(strings.TrimSpace(identity.Email))).
		DisplayName(strings.TrimSpace(identity.DisplayName)).
		Disabled(false)

	user, err := d.users.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", ErrIdentityExists
		}
		return "", fmt.Errorf("create firebase user: %w", err)
	}

	if err := d.users.SetCustomUserClaims(ctx, user.UID, map[string]interface{}{"clubId": identity.ClubID}); err != nil {
		if delErr := d.users.DeleteUser(context.WithoutCancel(ctx), user.UID); delErr != nil {
			return "", errors.Join(fmt.Errorf("set club claim: %w", err), fmt.Errorf("remove firebase user %s: %w", user.UID, delErr))
		}
		return "", fmt.Errorf("set club claim: %w", err)
	}
	return user.UID, nil
}

// SetDisabled blocks or restores sign-in for uid.
func (d *FirebaseDirectory) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	if _, err := d.users.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Disabled(disabled)); err != nil {
		if auth.IsUserNotFound(err) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("update firebase user: %w", err)
	}
	return nil
}

// DeleteIdentity removes uid. A user that is already gone is not an error.
func (d *FirebaseDirectory) DeleteIdentity(ctx context.Context, uid string) error {
	if err := d.users.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("delete firebase user: %w", err)
	}
	return nil
}

// DevDirectory hands out local uids for AUTH_PROVIDER=dev. Unsigned dev
// tokens are minted for those uids with `certifyhub auth devtoken`; the
// disabled flag is only kept in the database.
type DevDirectory struct{}

func (DevDirectory) CreateIdentity(ctx context.Context, identity NewIdentity) (string, error) {
	return "dev-" + uuid.NewString(), nil
}

func (DevDirectory) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	return nil
}

func (DevDirectory) DeleteIdentity(ctx context.Context, uid string) error {
	return nil
}
