package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to too many failed login attempts")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrInvalidTOTPCode    = errors.New("invalid totp code")
)

// Token errors. The three parse failures are distinct so callers can tell
// a token that never verified from one that verified but is the wrong kind.
var (
	ErrTokenMalformed        = errors.New("malformed token")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrWrongTokenKind        = errors.New("wrong token kind")
)

// Session errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionInvalid   = errors.New("session invalid")
	ErrSessionForbidden = errors.New("session belongs to another user")
)
