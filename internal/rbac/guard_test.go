package rbac_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-auth/gatekeeper/internal/rbac"
	"github.com/gatekeeper-auth/gatekeeper/internal/shared"
	"github.com/gatekeeper-auth/gatekeeper/internal/tokens"
	_ "github.com/gatekeeper-auth/gatekeeper/testing"
)

type guardSource struct {
	snapshots map[uuid.UUID]tokens.Snapshot
}

func (s *guardSource) ClaimsSnapshot(ctx context.Context, userID uuid.UUID) (tokens.Snapshot, error) {
	return s.snapshots[userID], nil
}

type guardFixture struct {
	router *chi.Mux
	tokens *tokens.Service
	source *guardSource
}

// The protected route echoes 204 so any non-204 outcome came from the
// guard itself.
func newGuardFixture(t *testing.T, permission string) *guardFixture {
	t.Helper()
	source := &guardSource{snapshots: make(map[uuid.UUID]tokens.Snapshot)}
	tokenService := tokens.NewService("test-secret", time.Minute, time.Hour, source, nil)
	guard := rbac.Guard{Tokens: tokenService, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(guard.Require(permission))
		r.Get("/resource/{user_id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/resource", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return &guardFixture{router: router, tokens: tokenService, source: source}
}

func (f *guardFixture) tokenFor(t *testing.T, snap tokens.Snapshot) (uuid.UUID, string) {
	t.Helper()
	userID := uuid.New()
	f.source.snapshots[userID] = snap
	pair, err := f.tokens.Issue(context.Background(), userID)
	require.NoError(t, err)
	return userID, pair.AccessToken
}

func (f *guardFixture) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestGuardRejectsMissingToken(t *testing.T) {
	f := newGuardFixture(t, shared.PermUsers)

	res := f.get("/resource", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = f.get("/resource", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestGuardRejectsExpiredToken(t *testing.T) {
	source := &guardSource{snapshots: make(map[uuid.UUID]tokens.Snapshot)}
	expired := tokens.NewService("test-secret", -time.Minute, time.Hour, source, nil)
	f := newGuardFixture(t, shared.PermUsers)

	userID := uuid.New()
	source.snapshots[userID] = tokens.Snapshot{IsSuperuser: true}
	pair, err := expired.Issue(context.Background(), userID)
	require.NoError(t, err)

	res := f.get("/resource", pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestGuardPermissionCheck(t *testing.T) {
	for _, permission := range shared.CoreVocabulary() {
		t.Run(permission, func(t *testing.T) {
			f := newGuardFixture(t, permission)

			_, granted := f.tokenFor(t, tokens.Snapshot{Permissions: []string{permission}})
			assert.Equal(t, http.StatusNoContent, f.get("/resource", granted).Code)

			_, denied := f.tokenFor(t, tokens.Snapshot{Permissions: []string{}})
			res := f.get("/resource", denied)
			assert.Equal(t, http.StatusForbidden, res.Code)
		})
	}
}

func TestGuardOwnerAccess(t *testing.T) {
	f := newGuardFixture(t, shared.PermUsers)

	ownerID, token := f.tokenFor(t, tokens.Snapshot{Permissions: []string{}})
	assert.Equal(t, http.StatusNoContent, f.get("/resource/"+ownerID.String(), token).Code)

	// Same token addressing a different user's resource is denied.
	otherID := uuid.New()
	res := f.get("/resource/"+otherID.String(), token)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestGuardSuperuserBypass(t *testing.T) {
	f := newGuardFixture(t, shared.PermRoles)

	_, token := f.tokenFor(t, tokens.Snapshot{IsSuperuser: true})
	assert.Equal(t, http.StatusNoContent, f.get("/resource", token).Code)
	assert.Equal(t, http.StatusNoContent, f.get("/resource/"+uuid.NewString(), token).Code)
}

func TestGuardEmptyPermissionAdmitsAuthenticated(t *testing.T) {
	f := newGuardFixture(t, "")

	_, token := f.tokenFor(t, tokens.Snapshot{Permissions: []string{}})
	assert.Equal(t, http.StatusNoContent, f.get("/resource", token).Code)

	assert.Equal(t, http.StatusUnauthorized, f.get("/resource", "").Code)
}

func TestGuardDenialBodyIsUniform(t *testing.T) {
	f := newGuardFixture(t, shared.PermRoles)

	_, noPerm := f.tokenFor(t, tokens.Snapshot{Permissions: []string{}})
	_, wrongPerm := f.tokenFor(t, tokens.Snapshot{Permissions: []string{shared.PermUsers}})

	resA := f.get("/resource", noPerm)
	resB := f.get("/resource", wrongPerm)
	require.Equal(t, http.StatusForbidden, resA.Code)
	require.Equal(t, http.StatusForbidden, resB.Code)
	assert.Equal(t, resA.Body.String(), resB.Body.String(), "denial must not reveal which check failed")
}
