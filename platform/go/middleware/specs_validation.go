package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
)

// ValidateAuthenticationViaSwagger satisfies contract operations that declare bearerAuth.
// Public operations declare no security, so the validator never calls it for them.
// Token verification itself happens in the auth middleware; this only checks presence.
func ValidateAuthenticationViaSwagger(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != "bearerAuth" {
		return nil
	}
	r := input.RequestValidationInput.Request
	if r == nil {
		return errors.New("no request in validation input")
	}
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return errors.New("missing or invalid Authorization header")
	}
	return nil
}
