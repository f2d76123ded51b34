package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agrocrm/identity/pkg/audit"
	"github.com/agrocrm/identity/pkg/domain"
)

// DefaultSessionTTL is the absolute session lifetime. Deliberately shorter
// than the refresh-token TTL: the session is the hard ceiling on a login,
// and refresh never extends it.
const DefaultSessionTTL = 12 * time.Hour

// SessionStore is the persistence surface the session manager drives.
// Implemented by repository.SessionsRepository.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error)
	Touch(ctx context.Context, id uuid.UUID) error
	RotateToken(ctx context.Context, id uuid.UUID, token string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionConfig holds session manager configuration.
type SessionConfig struct {
	SessionTTL time.Duration
}

// SessionService layers the session business rules on the store and emits
// the audit trail for lifecycle transitions.
type SessionService struct {
	config  SessionConfig
	store   SessionStore
	auditor audit.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, store SessionStore, auditor audit.Recorder, logger *slog.Logger) *SessionService {
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		config:  config,
		store:   store,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}
}

// Create opens a new session for the user. The token is a placeholder at
// this point: the session id must exist before real tokens can embed it,
// so the caller rotates the genuine refresh token in afterwards.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, placeholderToken, userAgent, ipAddress string) (*domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		ID:             uuid.New(),
		UserID:         userID,
		Token:          placeholderToken,
		Device:         ClassifyDevice(userAgent),
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		Active:         true,
		LastActivityAt: now,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.config.SessionTTL),
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Entry{
		Actor:     userID,
		Action:    audit.ActionSessionCreated,
		Entity:    "SESSION",
		EntityID:  session.ID.String(),
		Metadata:  sessionMeta(session, ipAddress, userAgent),
		Timestamp: now,
	})

	s.logger.Info("session created",
		"session_id", session.ID, "user_id", userID, "device_type", session.Device.Type)
	return session, nil
}

// Validate fetches the session and checks liveness. Terminated and expired
// sessions are indistinguishable here; both yield domain.ErrSessionInvalid.
// On success the last-activity timestamp advances, best-effort.
func (s *SessionService) Validate(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	session, err := s.store.GetByID(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if !session.IsUsable(s.now()) {
		return nil, domain.ErrSessionInvalid
	}

	if err := s.store.Touch(ctx, id); err != nil {
		// Activity tracking must not fail the request.
		s.logger.Debug("failed to touch session", "session_id", id, "error", err)
	}
	return session, nil
}

// FindByToken returns the usable session currently bound to the refresh
// token, or domain.ErrSessionNotFound after rotation or termination.
func (s *SessionService) FindByToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return s.store.GetByToken(ctx, refreshToken)
}

// RotateToken binds the session to a newly issued refresh token.
func (s *SessionService) RotateToken(ctx context.Context, id uuid.UUID, refreshToken string) error {
	return s.store.RotateToken(ctx, id, refreshToken)
}

// ListForUser returns the user's sessions, newest first.
func (s *SessionService) ListForUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error) {
	return s.store.ListByUser(ctx, userID, activeOnly)
}

// Terminate deactivates a session owned by actorUserID. Termination is
// one-way; the id is never reactivated.
func (s *SessionService) Terminate(ctx context.Context, id, actorUserID uuid.UUID, ipAddress, userAgent string) error {
	session, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.UserID != actorUserID {
		return domain.ErrSessionForbidden
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return err
	}

	s.record(ctx, audit.Entry{
		Actor:     actorUserID,
		Action:    audit.ActionSessionTerminated,
		Entity:    "SESSION",
		EntityID:  id.String(),
		Metadata:  sessionMeta(session, ipAddress, userAgent),
		Timestamp: s.now().UTC(),
	})

	s.logger.Info("session terminated", "session_id", id, "user_id", actorUserID)
	return nil
}

// TerminateAllOthers deactivates every active session of the user except
// the current one, with one audit entry per terminated session.
func (s *SessionService) TerminateAllOthers(ctx context.Context, currentID, userID uuid.UUID, ipAddress, userAgent string) error {
	sessions, err := s.store.ListByUser(ctx, userID, true)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if session.ID == currentID {
			continue
		}
		if err := s.store.Deactivate(ctx, session.ID); err != nil {
			return err
		}
		s.record(ctx, audit.Entry{
			Actor:     userID,
			Action:    audit.ActionSessionTerminated,
			Entity:    "SESSION",
			EntityID:  session.ID.String(),
			Metadata:  sessionMeta(session, ipAddress, userAgent),
			Timestamp: s.now().UTC(),
		})
	}

	s.logger.Info("terminated all other sessions", "user_id", userID, "current_session_id", currentID)
	return nil
}

// Logout deactivates the named session. A session already purged by the
// sweeper counts as logged out.
func (s *SessionService) Logout(ctx context.Context, id, userID uuid.UUID, ipAddress, userAgent string) error {
	session, err := s.store.GetByID(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return domain.ErrSessionForbidden
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return err
	}

	s.record(ctx, audit.Entry{
		Actor:     userID,
		Action:    audit.ActionLogout,
		Entity:    "SESSION",
		EntityID:  id.String(),
		Metadata:  sessionMeta(session, ipAddress, userAgent),
		Timestamp: s.now().UTC(),
	})

	s.logger.Info("user logged out", "session_id", id, "user_id", userID)
	return nil
}

// PurgeExpired hard-deletes sessions past their absolute expiry. Run by
// the background sweeper, decoupled from request handling.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpired(ctx)
}

// record writes an audit entry. Audit failures are logged and swallowed:
// session transitions must succeed even when the sink is unavailable.
func (s *SessionService) record(ctx context.Context, e audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, e); err != nil {
		s.logger.Warn("failed to record audit entry",
			"action", e.Action, "entity_id", e.EntityID, "error", err)
	}
}

func sessionMeta(session *domain.Session, ipAddress, userAgent string) map[string]any {
	meta := audit.Meta(ipAddress, userAgent)
	meta["deviceInfo"] = session.Device
	return meta
}
