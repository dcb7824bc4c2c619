package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "CERTIFYHUB_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindAdmin     ActorKind = "admin"
	ActorKindPlatform  ActorKind = "platform"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for activity logs and the
// generation ledger. UserID is set only for admin and platform actors.
// ClubID is the club claimed by the admin token, if any. ClientIP is the
// requester address as seen after proxy headers were applied.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    *string
	ClubID    *string
	ClientIP  string
	RequestID string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("", "")
}

// FromCredentials builds an AuditInfo from verified admin credentials.
// Returns an error when creds are nil or missing an id.
func FromCredentials(creds *platformauth.AdminCredentials, requestID, clientIP string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.Id == "" {
		return AuditInfo{}, errors.New("admin id is required to build audit info")
	}

	kind := ActorKindAdmin
	if creds.IsPlatformAdmin {
		kind = ActorKindPlatform
	}

	return AuditInfo{
		ActorKind: kind,
		UserID:    &creds.Id,
		ClubID:    creds.ClubID,
		ClientIP:  clientIP,
		RequestID: requestID,
	}, nil
}

// Anonymous builds an AuditInfo for public requests such as certificate downloads.
func Anonymous(requestID, clientIP string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID, ClientIP: clientIP}
}

// System builds an AuditInfo for CLI and background operations.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}

// Actor returns the identifier recorded as "generated by" or "actor" in audit rows.
func (a AuditInfo) Actor() string {
	if a.UserID != nil && *a.UserID != "" {
		return *a.UserID
	}
	return string(a.ActorKind)
}
