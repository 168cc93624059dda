package tokens_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-auth/gatekeeper/internal/tokens"
	_ "github.com/gatekeeper-auth/gatekeeper/testing"
)

type stubSource struct {
	snapshots map[uuid.UUID]tokens.Snapshot
	calls     int
}

func (s *stubSource) ClaimsSnapshot(ctx context.Context, userID uuid.UUID) (tokens.Snapshot, error) {
	s.calls++
	return s.snapshots[userID], nil
}

func newTokenService(t *testing.T, source tokens.SnapshotSource, accessTTL, refreshTTL time.Duration) (*tokens.Service, *tokens.Denylist) {
	t.Helper()
	mr := miniredis.RunT(t)
	denylist := tokens.NewDenylist(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return tokens.NewService("test-secret", accessTTL, refreshTTL, source, denylist), denylist
}

func TestIssueEmbedsSnapshot(t *testing.T) {
	userID := uuid.New()
	source := &stubSource{snapshots: map[uuid.UUID]tokens.Snapshot{
		userID: {Permissions: []string{"roles", "users"}, IsSuperuser: false},
	}}
	svc, _ := newTokenService(t, source, time.Minute, time.Hour)

	pair, err := svc.Issue(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.Verify(context.Background(), pair.AccessToken, tokens.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, []string{"roles", "users"}, claims.Permissions)
	assert.False(t, claims.IsSuperuser)

	refreshClaims, err := svc.Verify(context.Background(), pair.RefreshToken, tokens.TypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, claims.Permissions, refreshClaims.Permissions)
}

func TestIssueEmptyPermissions(t *testing.T) {
	userID := uuid.New()
	source := &stubSource{snapshots: map[uuid.UUID]tokens.Snapshot{}}
	svc, _ := newTokenService(t, source, time.Minute, time.Hour)

	pair, err := svc.Issue(context.Background(), userID)
	require.NoError(t, err)

	claims, err := svc.Verify(context.Background(), pair.AccessToken, tokens.TypeAccess)
	require.NoError(t, err)
	assert.NotNil(t, claims.Permissions)
	assert.Empty(t, claims.Permissions)
}

func TestRefreshCarriesClaimsForward(t *testing.T) {
	userID := uuid.New()
	source := &stubSource{snapshots: map[uuid.UUID]tokens.Snapshot{
		userID: {Permissions: []string{"personal_data"}},
	}}
	svc, _ := newTokenService(t, source, time.Minute, time.Hour)

	pair, err := svc.Issue(context.Background(), userID)
	require.NoError(t, err)
	issueCalls := source.calls

	// Mutating the graph after issue must not affect refreshed tokens.
	source.snapshots[userID] = tokens.Snapshot{Permissions: []string{}}

	refreshed, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, issueCalls, source.calls, "refresh must not consult the permission graph")

	claims, err := svc.Verify(context.Background(), refreshed.AccessToken, tokens.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, []string{"personal_data"}, claims.Permissions)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	userID := uuid.New()
	svc, _ := newTokenService(t, &stubSource{}, time.Minute, time.Hour)

	pair, err := svc.Issue(context.Background(), userID)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), pair.RefreshToken, tokens.TypeAccess)
	assert.Error(t, err)
	_, err = svc.Refresh(context.Background(), pair.AccessToken)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	userID := uuid.New()
	svc, _ := newTokenService(t, &stubSource{}, -time.Minute, -time.Minute)

	pair, err := svc.Issue(context.Background(), userID)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), pair.AccessToken, tokens.TypeAccess)
	assert.Error(t, err)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	userID := uuid.New()
	svc, _ := newTokenService(t, &stubSource{}, time.Minute, time.Hour)
	other := tokens.NewService("other-secret", time.Minute, time.Hour, &stubSource{}, nil)

	pair, err := other.Issue(context.Background(), userID)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), pair.AccessToken, tokens.TypeAccess)
	assert.Error(t, err)
}

func TestRevokedTokenFailsVerification(t *testing.T) {
	userID := uuid.New()
	svc, _ := newTokenService(t, &stubSource{}, time.Minute, time.Hour)

	pair, err := svc.Issue(context.Background(), userID)
	require.NoError(t, err)

	claims, err := svc.Verify(context.Background(), pair.AccessToken, tokens.TypeAccess)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(context.Background(), claims.ID, claims.ExpiresAt.Time))

	_, err = svc.Verify(context.Background(), pair.AccessToken, tokens.TypeAccess)
	assert.Error(t, err)

	// The refresh token has a distinct ID and stays valid.
	_, err = svc.Verify(context.Background(), pair.RefreshToken, tokens.TypeRefresh)
	assert.NoError(t, err)
}

func TestDenylistExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	denylist := tokens.NewDenylist(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	require.NoError(t, denylist.Revoke(context.Background(), "jti-1", time.Minute))
	revoked, err := denylist.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = denylist.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Revoking with non-positive TTL records nothing.
	require.NoError(t, denylist.Revoke(context.Background(), "jti-2", -time.Second))
	revoked, err = denylist.IsRevoked(context.Background(), "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
