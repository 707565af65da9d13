package repository

import (
	"context"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository is the append-only audit sink. The engine only ever
// writes entries; it never reads audit history back.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one audit entry
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (case_id, action, detail)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		entry.CaseID,
		entry.Action,
		entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)

	return err
}

// DeleteByCaseID removes a case's audit history. Only the case
// deletion flow calls this, right before the case row goes away.
func (r *AuditRepository) DeleteByCaseID(ctx context.Context, caseID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM audit_entries WHERE case_id = $1`, caseID)
	return err
}
