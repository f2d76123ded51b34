package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrocrm/identity/pkg/audit"
	"github.com/agrocrm/identity/pkg/domain"
)

// memSessionStore is an in-memory SessionStore with the same filtering
// semantics as the SQL repository.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (m *memSessionStore) Create(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memSessionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.Token == token && session.Active && time.Now().Before(session.ExpiresAt) {
			copied := *session
			return &copied, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (m *memSessionStore) ListByUser(_ context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, session := range m.sessions {
		if session.UserID != userID {
			continue
		}
		if activeOnly && (!session.Active || !time.Now().Before(session.ExpiresAt)) {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memSessionStore) Touch(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		session.LastActivityAt = time.Now()
	}
	return nil
}

func (m *memSessionStore) RotateToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		session.Token = token
	}
	return nil
}

func (m *memSessionStore) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		session.Active = false
	}
	return nil
}

func (m *memSessionStore) DeactivateAllForUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.UserID == userID {
			session.Active = false
		}
	}
	return nil
}

func (m *memSessionStore) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, session := range m.sessions {
		if !time.Now().Before(session.ExpiresAt) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

// expire rewinds a session's absolute deadline into the past.
func (m *memSessionStore) expire(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		session.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// memRecorder captures audit entries.
type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Record(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) byAction(action string) []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Entry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// memUserStore is an in-memory UserStore and RoleResolver.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	roles map[string][]string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users: make(map[string]*domain.User),
		roles: make(map[string][]string),
	}
}

func (m *memUserStore) add(username, password string, roles ...string) *domain.User {
	hash, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = user
	m.roles[username] = roles
	return user
}

func (m *memUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memUserStore) RolesOf(_ context.Context, username string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[username], nil
}

func (m *memUserStore) IncrementFailedLogins(_ context.Context, userID uuid.UUID, lockout time.Duration, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == userID {
			user.FailedLoginAttempts++
			if user.FailedLoginAttempts >= maxAttempts {
				until := time.Now().Add(lockout)
				user.LockedUntil = &until
			}
		}
	}
	return nil
}

func (m *memUserStore) ResetFailedLogins(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == userID {
			user.FailedLoginAttempts = 0
			user.LockedUntil = nil
		}
	}
	return nil
}
