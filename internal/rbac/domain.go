// Package rbac owns the role/permission graph and the access guard
// that authorizes every protected request.
package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a named permission grouping.
type Role struct {
	ID          uuid.UUID
	Code        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability. The vocabulary is fixed
// and seeded at startup.
type Permission struct {
	ID   uuid.UUID
	Code string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID uuid.UUID
	RoleID uuid.UUID
}

// RolePatch is an explicit partial update for a role. Nil fields are
// left untouched.
type RolePatch struct {
	Code        *string
	Description *string
}
