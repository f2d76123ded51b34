package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/argon2"

	"github.com/agrocrm/identity/pkg/domain"
)

// Argon2 parameters (OWASP recommended)
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// Lockout policy
const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

// UserStore is the account surface the credential verifier needs.
// Implemented by repository.UsersRepository.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	IncrementFailedLogins(ctx context.Context, userID uuid.UUID, lockout time.Duration, maxAttempts int) error
	ResetFailedLogins(ctx context.Context, userID uuid.UUID) error
}

// PasswordService verifies credentials against stored argon2id hashes,
// enforcing account lockout and the optional TOTP second factor.
type PasswordService struct {
	users UserStore
}

// NewPasswordService creates a new password service.
func NewPasswordService(users UserStore) *PasswordService {
	return &PasswordService{users: users}
}

// Verify checks username/password (and TOTP code when the account has one
// enrolled) and returns the account on success.
func (s *PasswordService) Verify(ctx context.Context, username, password, totpCode string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.IsLocked() {
		return nil, domain.ErrAccountLocked
	}

	if !VerifyPassword(password, user.PasswordHash) {
		_ = s.users.IncrementFailedLogins(ctx, user.ID, lockoutDuration, maxFailedAttempts)
		return nil, domain.ErrInvalidCredentials
	}

	if user.TOTPSecret != nil && *user.TOTPSecret != "" {
		if totpCode == "" {
			return nil, domain.ErrTOTPRequired
		}
		if !totp.Validate(totpCode, *user.TOTPSecret) {
			_ = s.users.IncrementFailedLogins(ctx, user.ID, lockoutDuration, maxFailedAttempts)
			return nil, domain.ErrInvalidTOTPCode
		}
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		_ = s.users.ResetFailedLogins(ctx, user.ID)
	}

	return user, nil
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return encodeArgon2Hash(hash, salt, argon2Time, argon2Memory, argon2Threads), nil
}

// VerifyPassword verifies a password against an Argon2id hash. Malformed
// stored hashes verify as false.
func VerifyPassword(password, encodedHash string) bool {
	hash, salt, timeCost, memory, threads, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

// Encoded as: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func encodeArgon2Hash(hash, salt []byte, timeCost, memory uint32, threads uint8) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, timeCost, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func decodeArgon2Hash(encoded string) (hash, salt []byte, timeCost, memory uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, errors.New("invalid argon2 hash format")
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, err
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, errors.New("unsupported argon2 version")
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return nil, nil, 0, 0, 0, err
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, err
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, err
	}
	return hash, salt, timeCost, memory, threads, nil
}
