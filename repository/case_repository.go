package repository

import (
	"context"
	"fmt"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseRepository handles database operations for cases
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create creates a new case
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (agent_id, subject_name, attestation_accepted)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		c.AgentID,
		c.SubjectName,
		c.AttestationAccepted,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	return err
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c := &models.Case{}
	query := `
		SELECT id, agent_id, subject_name, attestation_accepted, created_at, updated_at, closed_at
		FROM cases
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.AgentID,
		&c.SubjectName,
		&c.AttestationAccepted,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ClosedAt,
	)

	if err != nil {
		return nil, err
	}

	return c, nil
}

// Update updates a case
func (r *CaseRepository) Update(ctx context.Context, c *models.Case) error {
	query := `
		UPDATE cases SET
			subject_name = $2,
			attestation_accepted = $3,
			closed_at = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(
		ctx, query,
		c.ID,
		c.SubjectName,
		c.AttestationAccepted,
		c.ClosedAt,
	).Scan(&c.UpdatedAt)

	return err
}

// ListByAgentID retrieves all cases for an agent
func (r *CaseRepository) ListByAgentID(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*models.Case, error) {
	query := `
		SELECT id, agent_id, subject_name, attestation_accepted, created_at, updated_at, closed_at
		FROM cases
		WHERE agent_id = $1
		ORDER BY created_at DESC`

	args := []interface{}{agentID}
	argIndex := 2

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argIndex)
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c := &models.Case{}
		err := rows.Scan(
			&c.ID,
			&c.AgentID,
			&c.SubjectName,
			&c.AttestationAccepted,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// Delete deletes a case and cascades to its documents, fact sets,
// analyses, and audit entries.
func (r *CaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM cases WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
