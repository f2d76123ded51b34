// Package token implements stateless signing and verification of the
// compact bearer tokens used by the back office. The codec never touches
// storage; session liveness is checked separately by the caller.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agrocrm/identity/pkg/domain"
)

// Kind discriminates the two token flavors carried in the "type" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Default token lifetimes
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// HS512 needs at least 512 bits of key material.
const minKeyLen = 64

// Config holds codec configuration. The secret is injected once at process
// start; there is no ambient key state.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec signs and verifies access/refresh tokens with HMAC-SHA512.
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec creates a codec from the configured secret. A secret shorter
// than the HS512 minimum is zero-padded to 64 bytes, deterministically, so
// a short configured secret still produces a full-strength signing key.
func NewCodec(cfg Config) *Codec {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Codec{
		key:        normalizeKey([]byte(cfg.Secret)),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

func normalizeKey(secret []byte) []byte {
	if len(secret) >= minKeyLen {
		return secret
	}
	key := make([]byte, minKeyLen)
	copy(key, secret)
	return key
}

// AccessTTL returns the access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Claims is the decoded token payload. Previously issued tokens carry a
// single "role" claim instead of the "roles" array; both shapes decode
// through this one type and are normalized by Roles().
type Claims struct {
	jwt.RegisteredClaims
	RoleNames  []string `json:"roles,omitempty"`
	LegacyRole string   `json:"role,omitempty"`
	SessionID  string   `json:"sessionId,omitempty"`
	TokenType  Kind     `json:"type,omitempty"`
}

// Roles returns the role set regardless of which claim shape the token was
// issued with.
func (c *Claims) Roles() []string {
	if len(c.RoleNames) > 0 {
		return c.RoleNames
	}
	if c.LegacyRole != "" {
		return []string{c.LegacyRole}
	}
	return nil
}

// IssueAccessToken mints a short-lived token authorizing individual
// requests on behalf of subject.
func (c *Codec) IssueAccessToken(subject string, roles []string, sessionID string) (string, error) {
	now := c.now().UTC().Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		RoleNames: roles,
		SessionID: sessionID,
		TokenType: KindAccess,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(c.key)
}

// IssueRefreshToken mints a long-lived token that can only be exchanged
// for a new token pair. Roles are deliberately absent; they are re-resolved
// at refresh time so role changes are not frozen into old tokens.
func (c *Codec) IssueRefreshToken(subject, sessionID string) (string, error) {
	now := c.now().UTC().Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
		SessionID: sessionID,
		TokenType: KindRefresh,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(c.key)
}

// Parse verifies the signature and expiry and returns the claims. Failures
// map to domain.ErrTokenExpired, domain.ErrTokenSignatureInvalid, or
// domain.ErrTokenMalformed so callers can distinguish them.
func (c *Codec) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, domain.ErrTokenSignatureInvalid
		default:
			return nil, domain.ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrTokenMalformed
	}
	return claims, nil
}

// IsKind reports whether the token parses cleanly and carries the given
// kind. Best-effort: any parse failure yields false, never an error. Used
// for routing decisions before deciding how to report a failure.
func (c *Codec) IsKind(tokenString string, kind Kind) bool {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return false
	}
	return claims.TokenType == kind
}
