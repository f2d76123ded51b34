// Package auth implements the session manager, credential verification,
// and the login/refresh/logout flows of the back office.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agrocrm/identity/pkg/audit"
	"github.com/agrocrm/identity/pkg/domain"
	"github.com/agrocrm/identity/pkg/token"
)

// CredentialVerifier checks a username/password pair (plus optional TOTP
// code) and returns the account. Implemented by PasswordService.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password, totpCode string) (*domain.User, error)
}

// RoleResolver resolves the current role names of a user. Implemented by
// repository.UsersRepository.
type RoleResolver interface {
	RolesOf(ctx context.Context, username string) ([]string, error)
}

// AuthService composes the codec, session manager, and external
// collaborators into the login, refresh, and logout flows. Unlike the
// request authenticator it surfaces specific errors so the HTTP layer can
// answer login/refresh precisely.
type AuthService struct {
	codec    *token.Codec
	sessions *SessionService
	verifier CredentialVerifier
	roles    RoleResolver
	auditor  audit.Recorder
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(codec *token.Codec, sessions *SessionService, verifier CredentialVerifier, roles RoleResolver, auditor audit.Recorder, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		codec:    codec,
		sessions: sessions,
		verifier: verifier,
		roles:    roles,
		auditor:  auditor,
		logger:   logger,
	}
}

// LoginInput carries the credentials and request context of a login.
type LoginInput struct {
	Username  string
	Password  string
	TOTPCode  string
	UserAgent string
	IPAddress string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Username     string
	Roles        []string
	// PrimaryRole is the first resolved role, kept for clients that predate
	// multi-role accounts.
	PrimaryRole string
}

// TokenPair is a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Login verifies credentials, opens a session, and mints a token pair
// bound to it. The session is created first with a placeholder token since
// the tokens embed the session id; the real refresh token is rotated in
// once minted.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.verifier.Verify(ctx, in.Username, in.Password, in.TOTPCode)
	if err != nil {
		s.logger.Warn("login failed", "username", in.Username, "error", err)
		return nil, err
	}

	roles, err := s.roles.RolesOf(ctx, in.Username)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, user.ID, uuid.NewString(), in.UserAgent, in.IPAddress)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.codec.IssueAccessToken(in.Username, roles, session.ID.String())
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.IssueRefreshToken(in.Username, session.ID.String())
	if err != nil {
		return nil, err
	}

	if err := s.sessions.RotateToken(ctx, session.ID, refreshToken); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Entry{
		Actor:     user.ID,
		Action:    audit.ActionLogin,
		Entity:    "USER",
		EntityID:  user.ID.String(),
		Metadata:  audit.Meta(in.IPAddress, in.UserAgent),
		Timestamp: session.CreatedAt,
	})

	primaryRole := "USER"
	if len(roles) > 0 {
		primaryRole = roles[0]
	}

	s.logger.Info("user logged in",
		"username", in.Username, "session_id", session.ID, "roles", roles)

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     in.Username,
		Roles:        roles,
		PrimaryRole:  primaryRole,
	}, nil
}

// Refresh exchanges a refresh token for a fresh pair and rotates the
// session's bound token. A superseded refresh token no longer matches the
// session's current token and is rejected at lookup time. Roles are
// re-resolved here so role changes take effect on the next refresh.
//
// Rotation is not guarded by compare-and-swap: two concurrent refreshes on
// one session may both succeed and the last writer's token stays valid.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != token.KindRefresh {
		return nil, domain.ErrWrongTokenKind
	}

	// Only a missing binding means the token was rotated away or the
	// session died; a failing store is a backend error, not a dead session.
	session, err := s.sessions.FindByToken(ctx, refreshToken)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if session.ID.String() != claims.SessionID {
		return nil, domain.ErrSessionInvalid
	}

	// Session state is the authority, and validation touches activity.
	if _, err := s.sessions.Validate(ctx, session.ID); err != nil {
		return nil, err
	}

	roles, err := s.roles.RolesOf(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	newAccess, err := s.codec.IssueAccessToken(claims.Subject, roles, session.ID.String())
	if err != nil {
		return nil, err
	}
	newRefresh, err := s.codec.IssueRefreshToken(claims.Subject, session.ID.String())
	if err != nil {
		return nil, err
	}

	if err := s.sessions.RotateToken(ctx, session.ID, newRefresh); err != nil {
		return nil, err
	}

	s.logger.Info("token refreshed", "username", claims.Subject, "session_id", session.ID)
	return &TokenPair{AccessToken: newAccess, RefreshToken: newRefresh}, nil
}

// Logout terminates the session named by the presented access token.
func (s *AuthService) Logout(ctx context.Context, accessToken, ipAddress, userAgent string) error {
	sessionID, session, err := s.resolveAccessSession(ctx, accessToken)
	if err != nil {
		return err
	}
	if session == nil {
		// Already purged; nothing left to log out of.
		return nil
	}
	return s.sessions.Logout(ctx, sessionID, session.UserID, ipAddress, userAgent)
}

// LogoutAll terminates every other session of the calling user, leaving
// the current one active.
func (s *AuthService) LogoutAll(ctx context.Context, accessToken, ipAddress, userAgent string) error {
	sessionID, session, err := s.resolveAccessSession(ctx, accessToken)
	if err != nil {
		return err
	}
	if session == nil {
		return domain.ErrSessionInvalid
	}

	if err := s.sessions.TerminateAllOthers(ctx, sessionID, session.UserID, ipAddress, userAgent); err != nil {
		return err
	}

	s.record(ctx, audit.Entry{
		Actor:     session.UserID,
		Action:    audit.ActionLogoutAll,
		Entity:    "USER",
		EntityID:  session.UserID.String(),
		Metadata:  audit.Meta(ipAddress, userAgent),
		Timestamp: session.LastActivityAt,
	})
	return nil
}

// resolveAccessSession parses an access token and loads its session. A
// missing session comes back as (id, nil, nil) so callers choose how to
// treat it.
func (s *AuthService) resolveAccessSession(ctx context.Context, accessToken string) (uuid.UUID, *domain.Session, error) {
	claims, err := s.codec.Parse(accessToken)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if claims.TokenType != token.KindAccess {
		return uuid.Nil, nil, domain.ErrWrongTokenKind
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, nil, domain.ErrSessionInvalid
	}

	session, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			return sessionID, nil, nil
		}
		return uuid.Nil, nil, err
	}
	return sessionID, session, nil
}

func (s *AuthService) record(ctx context.Context, e audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, e); err != nil {
		s.logger.Warn("failed to record audit entry", "action", e.Action, "error", err)
	}
}
