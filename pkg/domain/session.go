package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeviceInfo is a coarse classification of the client derived from the
// User-Agent string at session creation. Informational only; never used
// for authorization decisions.
type DeviceInfo struct {
	Type    string `json:"type"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

// Session is the durable anchor of a login. It is the single authority for
// revocation: a cryptographically valid token whose session is unusable
// must be rejected.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	Token     string     `json:"-"`
	Device    DeviceInfo `json:"deviceInfo"`
	IPAddress string     `json:"ipAddress"`
	UserAgent string     `json:"userAgent"`
	Active    bool       `json:"isActive"`

	LastActivityAt time.Time `json:"lastActivity"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// IsUsable reports whether the session may still authenticate requests.
// Termination and expiry are both terminal; validation does not tell them
// apart.
func (s *Session) IsUsable(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}
