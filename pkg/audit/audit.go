// Package audit defines the append-only security trail produced by the
// session lifecycle. This service only writes entries; reading them back is
// owned by the reporting side of the back office.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions emitted by the auth core.
const (
	ActionLogin             = "LOGIN"
	ActionLogout            = "LOGOUT"
	ActionLogoutAll         = "LOGOUT_ALL"
	ActionSessionCreated    = "SESSION_CREATED"
	ActionSessionTerminated = "SESSION_TERMINATED"
)

// Entry is one immutable audit record.
type Entry struct {
	Actor     uuid.UUID
	Action    string
	Entity    string
	EntityID  string
	Metadata  map[string]any
	Timestamp time.Time
}

// Recorder is the audit sink. Implementations must be safe for concurrent
// use; callers treat failures as non-fatal.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Meta builds the metadata map every entry carries.
func Meta(ipAddress, userAgent string) map[string]any {
	return map[string]any{
		"ipAddress": ipAddress,
		"userAgent": userAgent,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}
