package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/agrocrm/identity/pkg/audit"
)

// AuditRepository appends audit entries to the shared audit_log table.
// The auth core only ever writes; reporting reads live elsewhere.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record implements audit.Recorder.
func (r *AuditRepository) Record(ctx context.Context, e audit.Entry) error {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO audit_log (actor_id, action, entity, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		e.Actor, e.Action, e.Entity, e.EntityID, metadataJSON, e.Timestamp)
	return err
}
