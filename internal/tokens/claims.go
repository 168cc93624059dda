// Package tokens mints and verifies the signed session tokens that
// carry a user's permission snapshot between requests.
package tokens

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims extends JWT registered claims with the authorization
// snapshot. The snapshot is trusted for the token's lifetime and is
// never re-derived from the permission graph on verification.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   string   `json:"type"`
	Permissions []string `json:"permissions"`
	IsSuperuser bool     `json:"is_superuser"`
}

// Pair bundles the access/refresh tokens returned on login and
// refresh. Both carry an identical claims snapshot.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Snapshot is the authorization state embedded into a token at issue
// time.
type Snapshot struct {
	Permissions []string
	IsSuperuser bool
}
