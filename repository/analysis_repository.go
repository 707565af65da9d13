package repository

import (
	"context"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalysisRepository handles database operations for persisted
// cross-reference runs. A new run supersedes the previous one; callers
// read only the latest.
type AnalysisRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create persists a cross-reference run
func (r *AnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	query := `
		INSERT INTO analyses (case_id, result, fact_set_count)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		a.CaseID,
		a.Result,
		a.FactSetCount,
	).Scan(&a.ID, &a.CreatedAt)

	return err
}

// GetLatestByCaseID retrieves the most recent analysis for a case
func (r *AnalysisRepository) GetLatestByCaseID(ctx context.Context, caseID uuid.UUID) (*models.Analysis, error) {
	a := &models.Analysis{}
	query := `
		SELECT id, case_id, result, fact_set_count, created_at
		FROM analyses
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.QueryRow(ctx, query, caseID).Scan(
		&a.ID,
		&a.CaseID,
		&a.Result,
		&a.FactSetCount,
		&a.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return a, nil
}
