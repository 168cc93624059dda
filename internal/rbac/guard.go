package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
	"github.com/gatekeeper-auth/gatekeeper/internal/shared"
	"github.com/gatekeeper-auth/gatekeeper/internal/tokens"
)

// Guard is the access check applied in front of every protected
// handler. Authorization is decided purely from the token's claim
// snapshot; the permission graph is never queried on the request
// path.
type Guard struct {
	Tokens *tokens.Service
	Logger *slog.Logger
}

// Require verifies the bearer access token and authorizes the call.
// The caller passes when any one of these holds: superuser flag set,
// caller owns the addressed resource (the `user_id` URL parameter
// equals the token subject), or the required permission is in the
// claim snapshot. An empty permission admits any authenticated
// caller.
//
// Missing or invalid tokens yield 401; an authenticated caller
// lacking rights yields a uniform 403 that does not reveal which
// check failed.
func (g Guard) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := tokens.BearerFromRequest(r)
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "authorization token is missing")
				return
			}
			claims, err := g.Tokens.Verify(r.Context(), raw, tokens.TypeAccess)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "authorization token is invalid or expired")
				return
			}
			subject, err := uuid.Parse(claims.Subject)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "authorization token is invalid or expired")
				return
			}

			identity := shared.Identity{
				UserID:      subject,
				Permissions: claims.Permissions,
				IsSuperuser: claims.IsSuperuser,
				TokenID:     claims.ID,
			}
			if claims.ExpiresAt != nil {
				identity.ExpiresAt = claims.ExpiresAt.Time
			}

			if !g.authorize(r, identity, permission) {
				if g.Logger != nil {
					g.Logger.Warn("access denied",
						slog.String("user_id", subject.String()),
						slog.String("path", r.URL.Path))
				}
				httpx.Error(w, http.StatusForbidden, "Permission denied")
				return
			}

			ctx := shared.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g Guard) authorize(r *http.Request, identity shared.Identity, permission string) bool {
	if permission == "" || identity.IsSuperuser {
		return true
	}
	if ownerID, ok := resourceOwner(r); ok && ownerID == identity.UserID {
		return true
	}
	return identity.HasPermission(permission)
}

// resourceOwner reads the path-addressed user ID when the route
// carries one.
func resourceOwner(r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "user_id")
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
