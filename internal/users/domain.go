package users

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the optional one-to-one personal-data extension of a
// user. An absent profile reads as the zero Profile, not an error.
type Profile struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	FirstName string
	LastName  string
	Email     string
	BirthDate *time.Time
	Phone     string
	City      string
}

// ProfilePatch is an explicit partial update. Nil fields are left
// untouched; only the listed fields can ever be written, so a request
// body cannot reach internal columns.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	BirthDate *time.Time
	Phone     *string
	City      *string
}

// Apply merges the patch into the profile field by field.
func (p ProfilePatch) Apply(profile *Profile) {
	if p.FirstName != nil {
		profile.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		profile.LastName = *p.LastName
	}
	if p.Email != nil {
		profile.Email = *p.Email
	}
	if p.BirthDate != nil {
		profile.BirthDate = p.BirthDate
	}
	if p.Phone != nil {
		profile.Phone = *p.Phone
	}
	if p.City != nil {
		profile.City = *p.City
	}
}
