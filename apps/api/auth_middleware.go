package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	adminsservice "github.com/Ixotic27/certifyhub/domains/admins/be/service"
	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
	"github.com/Ixotic27/certifyhub/platform/go/gcp"
)

// buildAuth constructs the bearer token middleware for the configured provider
// together with the directory that provisions club administrator accounts.
func buildAuth(ctx context.Context, cfg config, logger *zap.Logger) (func(http.Handler) http.Handler, adminsservice.Identities, error) {
	var verify platformauth.VerifyFunc
	var identities adminsservice.Identities
	switch cfg.AuthProvider {
	case "firebase":
		fbAuth, err := gcp.InitFirebaseAuth(ctx, cfg.FirebaseProjectID, cfg.GCPCredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("init firebase auth: %w", err)
		}
		verify = platformauth.FirebaseTokenVerifier(fbAuth)
		identities = platformauth.NewFirebaseDirectory(fbAuth)
	case "dev":
		if !cfg.development() {
			logger.Warn("using dev auth outside development; tokens are not verified")
		} else {
			logger.Warn("using dev auth middleware; do not use in production")
		}
		verify = platformauth.UnsignedTokenVerifier()
		identities = platformauth.DevDirectory{}
	default:
		return nil, nil, fmt.Errorf("unsupported AUTH_PROVIDER %q (use firebase or dev)", cfg.AuthProvider)
	}
	return platformauth.JWT(verify, platformauth.DefaultCredentialExtractor), identities, nil
}
