package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account. The password is stored only as a bcrypt
// hash; accounts are never hard-deleted, termination is recorded via
// TerminateDate.
type User struct {
	ID            uuid.UUID
	Username      string
	PasswordHash  string
	IsSuperuser   bool
	DateJoined    time.Time
	TerminateDate *time.Time
}

// LoginEvent records a successful login for the history endpoint.
type LoginEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IP        string
	UserAgent string
	CreatedAt time.Time
}
