package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity describes the authenticated caller as decoded from an
// access token. Permissions are the claim snapshot taken at issue
// time, not a live view of the permission graph.
type Identity struct {
	UserID      uuid.UUID
	Permissions []string
	IsSuperuser bool
	TokenID     string
	ExpiresAt   time.Time
}

// HasPermission reports whether the snapshot contains the given code.
func (id Identity) HasPermission(code string) bool {
	for _, p := range id.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
