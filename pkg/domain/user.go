package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the back office. Entity CRUD lives outside this
// service; only the fields the auth flows need are modeled here.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string

	// TOTPSecret is set when the user has enrolled a second factor.
	TOTPSecret *string

	FailedLoginAttempts int
	LockedUntil         *time.Time

	CreatedAt time.Time
}

// IsLocked reports whether the account is under a login lockout.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}
