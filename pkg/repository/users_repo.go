package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/agrocrm/identity/pkg/domain"
)

// UsersRepository reads the accounts and role assignments the auth flows
// need. Account CRUD itself belongs to the back-office admin service.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// GetByUsername retrieves a user by username.
func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, totp_secret, failed_login_attempts, locked_until, created_at
		FROM app_user
		WHERE username = $1
	`
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.TOTPSecret,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RolesOf resolves the current role names assigned to the user. Resolved at
// login and again at every refresh so role changes take effect on the next
// refresh rather than instantly.
func (r *UsersRepository) RolesOf(ctx context.Context, username string) ([]string, error) {
	query := `
		SELECT r.name
		FROM role r
		JOIN user_role ur ON ur.role_id = r.id
		JOIN app_user u ON u.id = ur.user_id
		WHERE u.username = $1
		ORDER BY r.name
	`
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// IncrementFailedLogins bumps the failed-attempt counter and locks the
// account once maxAttempts is reached.
func (r *UsersRepository) IncrementFailedLogins(ctx context.Context, userID uuid.UUID, lockout time.Duration, maxAttempts int) error {
	query := `
		UPDATE app_user
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN NOW() + $3 * INTERVAL '1 second'
		        ELSE locked_until
		    END
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, maxAttempts, int(lockout.Seconds()))
	return err
}

// ResetFailedLogins clears the failed-attempt counter and any lockout.
func (r *UsersRepository) ResetFailedLogins(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE app_user
		SET failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
