package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/agrocrm/identity/pkg/domain"
)

// SessionsRepository is the only component that mutates persisted session
// state. Lookups for missing rows return domain.ErrSessionNotFound; any
// other failure means the store itself is unhealthy and propagates.
type SessionsRepository struct {
	db *sql.DB
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db *sql.DB) *SessionsRepository {
	return &SessionsRepository{db: db}
}

const sessionColumns = `id, user_id, session_token, device_info, ip_address, user_agent, is_active, last_activity, created_at, expires_at`

// Create inserts a fully assembled session record.
func (r *SessionsRepository) Create(ctx context.Context, session *domain.Session) error {
	deviceJSON, err := json.Marshal(session.Device)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO user_session (id, user_id, session_token, device_info, ip_address, user_agent, is_active, last_activity, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Token, deviceJSON,
		session.IPAddress, session.UserAgent, session.Active,
		session.LastActivityAt, session.CreatedAt, session.ExpiresAt,
	)
	return err
}

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	session := &domain.Session{}
	var deviceJSON []byte
	err := row.Scan(
		&session.ID, &session.UserID, &session.Token, &deviceJSON,
		&session.IPAddress, &session.UserAgent, &session.Active,
		&session.LastActivityAt, &session.CreatedAt, &session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if len(deviceJSON) > 0 {
		// Invalid stored JSON leaves the device fields empty rather than
		// failing the lookup.
		_ = json.Unmarshal(deviceJSON, &session.Device)
	}
	return session, nil
}

// GetByID retrieves a session by ID regardless of state.
func (r *SessionsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_session WHERE id = $1`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	return session, err
}

// GetByToken retrieves the session currently bound to the given refresh
// token, filtered to usable sessions only. After rotation the superseded
// token no longer matches any row, which is what invalidates it.
func (r *SessionsRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_session
		WHERE session_token = $1 AND is_active = true AND expires_at > NOW()
	`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	return session, err
}

// ListByUser retrieves a user's sessions, newest first. With activeOnly
// set, terminated and expired sessions are filtered out.
func (r *SessionsRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_session WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active = true AND expires_at > NOW()`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Touch advances the session's last-activity timestamp.
func (r *SessionsRepository) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_session SET last_activity = NOW() WHERE id = $1`, id)
	return err
}

// RotateToken binds the session to a newly issued refresh token,
// implicitly invalidating whichever token was bound before.
func (r *SessionsRepository) RotateToken(ctx context.Context, id uuid.UUID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_session SET session_token = $2 WHERE id = $1`, id, token)
	return err
}

// Deactivate terminates the session. Idempotent; a second call on an
// already inactive session is a no-op. Termination is one-way.
func (r *SessionsRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_session SET is_active = false WHERE id = $1`, id)
	return err
}

// DeactivateAllForUser terminates every session owned by the user.
func (r *SessionsRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_session SET is_active = false WHERE user_id = $1`, userID)
	return err
}

// PurgeExpired hard-deletes rows past their absolute expiry. Safe to run
// concurrently with validations: it only removes rows that are already
// unusable, and a row deleted mid-validation simply yields not-found.
func (r *SessionsRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_session WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
