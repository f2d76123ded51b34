package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agrocrm/identity/pkg/audit"
	"github.com/agrocrm/identity/pkg/domain"
)

const testUA = "Mozilla/5.0 (Linux; Android 11; Pixel 4) AppleWebKit/537.36 Chrome/90.0.4430.91 Mobile Safari/537.36"

func newTestSessionService(store *memSessionStore, recorder *memRecorder) *SessionService {
	return NewSessionService(SessionConfig{}, store, recorder, nil)
}

func TestCreate_RecordsAndClassifies(t *testing.T) {
	store := newMemSessionStore()
	recorder := &memRecorder{}
	svc := newTestSessionService(store, recorder)
	userID := uuid.New()

	session, err := svc.Create(context.Background(), userID, "placeholder", testUA, "10.0.0.1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if session.ID == uuid.Nil {
		t.Error("session id not assigned")
	}
	if !session.Active {
		t.Error("new session should be active")
	}
	want := domain.DeviceInfo{Type: "Mobile", Browser: "Chrome", OS: "Android"}
	if session.Device != want {
		t.Errorf("Device = %+v, want %+v", session.Device, want)
	}
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl != DefaultSessionTTL {
		t.Errorf("session TTL = %v, want %v", ttl, DefaultSessionTTL)
	}

	created := recorder.byAction(audit.ActionSessionCreated)
	if len(created) != 1 {
		t.Fatalf("SESSION_CREATED entries = %d, want 1", len(created))
	}
	if created[0].Actor != userID {
		t.Errorf("audit actor = %v, want %v", created[0].Actor, userID)
	}
	if created[0].Metadata["ipAddress"] != "10.0.0.1" {
		t.Errorf("audit ipAddress = %v, want 10.0.0.1", created[0].Metadata["ipAddress"])
	}
}

func TestValidate_TouchesActivity(t *testing.T) {
	store := newMemSessionStore()
	svc := newTestSessionService(store, &memRecorder{})

	session, _ := svc.Create(context.Background(), uuid.New(), "tok", testUA, "10.0.0.1")
	before, _ := store.GetByID(context.Background(), session.ID)

	time.Sleep(5 * time.Millisecond)
	if _, err := svc.Validate(context.Background(), session.ID); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	after, _ := store.GetByID(context.Background(), session.ID)
	if !after.LastActivityAt.After(before.LastActivityAt) {
		t.Error("Validate did not advance last activity")
	}
}

func TestValidate_UnknownSession(t *testing.T) {
	svc := newTestSessionService(newMemSessionStore(), &memRecorder{})

	if _, err := svc.Validate(context.Background(), uuid.New()); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Validate error = %v, want ErrSessionInvalid", err)
	}
}

func TestValidate_AfterTerminate(t *testing.T) {
	store := newMemSessionStore()
	svc := newTestSessionService(store, &memRecorder{})
	userID := uuid.New()

	session, _ := svc.Create(context.Background(), userID, "tok", testUA, "10.0.0.1")
	if err := svc.Terminate(context.Background(), session.ID, userID, "10.0.0.1", testUA); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}

	// Termination is immediate and one-way, TTL notwithstanding.
	if _, err := svc.Validate(context.Background(), session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Validate error = %v, want ErrSessionInvalid", err)
	}
}

func TestValidate_AfterExpiry(t *testing.T) {
	store := newMemSessionStore()
	svc := newTestSessionService(store, &memRecorder{})

	session, _ := svc.Create(context.Background(), uuid.New(), "tok", testUA, "10.0.0.1")
	store.expire(session.ID)

	if _, err := svc.Validate(context.Background(), session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Validate error = %v, want ErrSessionInvalid", err)
	}
}

func TestTerminate_ForeignSession(t *testing.T) {
	store := newMemSessionStore()
	svc := newTestSessionService(store, &memRecorder{})

	session, _ := svc.Create(context.Background(), uuid.New(), "tok", testUA, "10.0.0.1")

	err := svc.Terminate(context.Background(), session.ID, uuid.New(), "10.0.0.2", testUA)
	if !errors.Is(err, domain.ErrSessionForbidden) {
		t.Errorf("Terminate error = %v, want ErrSessionForbidden", err)
	}

	// The session must remain usable.
	if _, err := svc.Validate(context.Background(), session.ID); err != nil {
		t.Errorf("session should still be valid, got %v", err)
	}
}

func TestTerminate_Idempotent(t *testing.T) {
	store := newMemSessionStore()
	svc := newTestSessionService(store, &memRecorder{})
	userID := uuid.New()

	session, _ := svc.Create(context.Background(), userID, "tok", testUA, "10.0.0.1")

	if err := svc.Terminate(context.Background(), session.ID, userID, "10.0.0.1", testUA); err != nil {
		t.Fatalf("first Terminate failed: %v", err)
	}
	if err := svc.Terminate(context.Background(), session.ID, userID, "10.0.0.1", testUA); err != nil {
		t.Fatalf("second Terminate failed: %v", err)
	}

	got, _ := store.GetByID(context.Background(), session.ID)
	if got.Active {
		t.Error("session still active after terminate")
	}
}

func TestTerminateAllOthers(t *testing.T) {
	store := newMemSessionStore()
	recorder := &memRecorder{}
	svc := newTestSessionService(store, recorder)
	userID := uuid.New()

	var sessions []*domain.Session
	for i := 0; i < 3; i++ {
		s, _ := svc.Create(context.Background(), userID, "tok", testUA, "10.0.0.1")
		sessions = append(sessions, s)
	}
	current := sessions[1]

	if err := svc.TerminateAllOthers(context.Background(), current.ID, userID, "10.0.0.1", testUA); err != nil {
		t.Fatalf("TerminateAllOthers failed: %v", err)
	}

	active, _ := store.ListByUser(context.Background(), userID, true)
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if active[0].ID != current.ID {
		t.Errorf("surviving session = %v, want %v", active[0].ID, current.ID)
	}

	terminated := recorder.byAction(audit.ActionSessionTerminated)
	if len(terminated) != 2 {
		t.Errorf("SESSION_TERMINATED entries = %d, want 2 (one per session)", len(terminated))
	}
}

func TestLogout(t *testing.T) {
	store := newMemSessionStore()
	recorder := &memRecorder{}
	svc := newTestSessionService(store, recorder)
	userID := uuid.New()

	session, _ := svc.Create(context.Background(), userID, "tok", testUA, "10.0.0.1")
	if err := svc.Logout(context.Background(), session.ID, userID, "10.0.0.1", testUA); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := svc.Validate(context.Background(), session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Validate after logout = %v, want ErrSessionInvalid", err)
	}
	if len(recorder.byAction(audit.ActionLogout)) != 1 {
		t.Error("expected one LOGOUT audit entry")
	}

	// Logging out of a purged session is not an error.
	if err := svc.Logout(context.Background(), uuid.New(), userID, "10.0.0.1", testUA); err != nil {
		t.Errorf("Logout of unknown session = %v, want nil", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	store := newMemSessionStore()
	svc := newTestSessionService(store, &memRecorder{})
	userID := uuid.New()

	keep, _ := svc.Create(context.Background(), userID, "tok1", testUA, "10.0.0.1")
	gone, _ := svc.Create(context.Background(), userID, "tok2", testUA, "10.0.0.1")
	store.expire(gone.ID)

	purged, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if _, err := store.GetByID(context.Background(), keep.ID); err != nil {
		t.Errorf("live session was purged: %v", err)
	}
	if _, err := store.GetByID(context.Background(), gone.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expired session still present, err = %v", err)
	}
}

func TestCreate_AuditFailureDoesNotAbort(t *testing.T) {
	store := newMemSessionStore()
	svc := NewSessionService(SessionConfig{}, store, failingRecorder{}, nil)

	if _, err := svc.Create(context.Background(), uuid.New(), "tok", testUA, "10.0.0.1"); err != nil {
		t.Errorf("Create failed because of audit sink: %v", err)
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, audit.Entry) error {
	return errors.New("audit sink unavailable")
}
