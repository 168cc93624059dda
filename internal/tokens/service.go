package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
)

// SnapshotSource resolves the authorization snapshot for a user at
// token-issue time.
type SnapshotSource interface {
	ClaimsSnapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error)
}

// Service issues, refreshes and verifies signed tokens.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	source     SnapshotSource
	denylist   *Denylist
	group      singleflight.Group
}

// NewService constructs a token Service. denylist may be nil, in
// which case revocation checks are skipped and Revoke is a no-op.
func NewService(secret string, accessTTL, refreshTTL time.Duration, source SnapshotSource, denylist *Denylist) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		source:     source,
		denylist:   denylist,
	}
}

// Issue resolves the user's current effective permissions and
// superuser flag, then stamps the same snapshot into a fresh
// access/refresh pair. Concurrent issues for one user share a single
// graph query.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID) (Pair, error) {
	v, err, _ := s.group.Do(userID.String(), func() (any, error) {
		return s.source.ClaimsSnapshot(ctx, userID)
	})
	if err != nil {
		return Pair{}, fmt.Errorf("tokens: snapshot for %s: %w", userID, err)
	}
	return s.mintPair(userID, v.(Snapshot))
}

// Refresh verifies a refresh token and re-signs a new pair reusing
// the claims embedded in it. The permission graph is deliberately not
// consulted: refresh is cheap, at the cost of serving the issue-time
// snapshot until the refresh token expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	claims, err := s.Verify(ctx, refreshToken, TypeRefresh)
	if err != nil {
		return Pair{}, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: bad subject", httpx.ErrUnauthorized)
	}
	return s.mintPair(userID, Snapshot{
		Permissions: claims.Permissions,
		IsSuperuser: claims.IsSuperuser,
	})
}

// Verify checks signature, expiry, token type and revocation. All
// failures surface as ErrUnauthorized.
func (s *Service) Verify(ctx context.Context, tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: not an %s token", httpx.ErrUnauthorized, wantType)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", httpx.ErrUnauthorized)
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", httpx.ErrUnauthorized)
		}
	}
	return claims, nil
}

// RevokeToken denylists a token ID until its natural expiry.
func (s *Service) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.denylist == nil || tokenID == "" {
		return nil
	}
	return s.denylist.Revoke(ctx, tokenID, time.Until(expiresAt))
}

func (s *Service) mintPair(userID uuid.UUID, snap Snapshot) (Pair, error) {
	access, err := s.mint(userID, snap, TypeAccess, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.mint(userID, snap, TypeRefresh, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) mint(userID uuid.UUID, snap Snapshot, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	perms := snap.Permissions
	if perms == nil {
		perms = []string{}
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		TokenType:   tokenType,
		Permissions: perms,
		IsSuperuser: snap.IsSuperuser,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("tokens: sign %s token: %w", tokenType, err)
	}
	return signed, nil
}
