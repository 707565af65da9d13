package repository

import (
	"context"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FactSetRepository is the append-only evidence store. Fact sets are
// created once per document and never updated; concurrent ingestions
// write independent rows, so appends are safe without coordination.
type FactSetRepository struct {
	db *pgxpool.Pool
}

// NewFactSetRepository creates a new fact set repository
func NewFactSetRepository(db *pgxpool.Pool) *FactSetRepository {
	return &FactSetRepository{db: db}
}

// Create appends a fact set for one document
func (r *FactSetRepository) Create(ctx context.Context, fs *models.FactSet) error {
	facts := models.Facts{
		Addresses:   fs.Addresses,
		Phones:      fs.Phones,
		People:      fs.People,
		Vehicles:    fs.Vehicles,
		Employments: fs.Employments,
	}

	query := `
		INSERT INTO fact_sets (case_id, document_id, source_filename, facts)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		fs.CaseID,
		fs.DocumentID,
		fs.Source.Filename,
		facts,
	).Scan(&fs.ID, &fs.CreatedAt)

	return err
}

// ListByCaseID retrieves every fact set for a case, ordered by creation
// time so that cross-reference always sees a stable ordering. Only fact
// sets whose document has finished ingestion exist by construction, so
// the returned slice is a consistent snapshot as of invocation time.
func (r *FactSetRepository) ListByCaseID(ctx context.Context, caseID uuid.UUID) ([]*models.FactSet, error) {
	query := `
		SELECT id, case_id, document_id, source_filename, facts, created_at
		FROM fact_sets
		WHERE case_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []*models.FactSet
	for rows.Next() {
		fs := &models.FactSet{}
		var facts models.Facts
		err := rows.Scan(
			&fs.ID,
			&fs.CaseID,
			&fs.DocumentID,
			&fs.Source.Filename,
			&facts,
			&fs.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		fs.Source.DocumentID = fs.DocumentID
		fs.Addresses = facts.Addresses
		fs.Phones = facts.Phones
		fs.People = facts.People
		fs.Vehicles = facts.Vehicles
		fs.Employments = facts.Employments
		sets = append(sets, fs)
	}

	return sets, rows.Err()
}

// DeleteByDocumentID deletes the fact set belonging to a document
func (r *FactSetRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	query := `DELETE FROM fact_sets WHERE document_id = $1`
	_, err := r.db.Exec(ctx, query, documentID)
	return err
}
