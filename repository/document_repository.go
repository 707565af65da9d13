package repository

import (
	"context"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create creates a new document record in pending status
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			id, case_id, filename, mime_type, size, storage_path, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.CaseID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
		doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)

	return err
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc := &models.Document{}
	query := `
		SELECT id, case_id, filename, mime_type, size, storage_path, status,
			text, page_count, used_ocr, page_errors, error_message,
			created_at, updated_at
		FROM documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.CaseID,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.StoragePath,
		&doc.Status,
		&doc.Text,
		&doc.PageCount,
		&doc.UsedOCR,
		&doc.PageErrors,
		&doc.ErrorMessage,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// ListByCaseID retrieves all documents for a case
func (r *DocumentRepository) ListByCaseID(ctx context.Context, caseID uuid.UUID) ([]*models.Document, error) {
	query := `
		SELECT id, case_id, filename, mime_type, size, storage_path, status,
			text, page_count, used_ocr, page_errors, error_message,
			created_at, updated_at
		FROM documents
		WHERE case_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		err := rows.Scan(
			&doc.ID,
			&doc.CaseID,
			&doc.Filename,
			&doc.MimeType,
			&doc.Size,
			&doc.StoragePath,
			&doc.Status,
			&doc.Text,
			&doc.PageCount,
			&doc.UsedOCR,
			&doc.PageErrors,
			&doc.ErrorMessage,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// MarkProcessing transitions a document to processing status
func (r *DocumentRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE documents SET status = $2, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, models.DocumentStatusProcessing)
	return err
}

// MarkDone stores the normalized text and transitions the document to done
func (r *DocumentRepository) MarkDone(ctx context.Context, id uuid.UUID, text string, pageCount int, usedOCR bool, pageErrors models.PageErrors) error {
	query := `
		UPDATE documents SET
			status = $2,
			text = $3,
			page_count = $4,
			used_ocr = $5,
			page_errors = $6,
			updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, models.DocumentStatusDone, text, pageCount, usedOCR, pageErrors)
	return err
}

// MarkError transitions a document to error status with a message
func (r *DocumentRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE documents SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, models.DocumentStatusError, message)
	return err
}

// Delete deletes a document record
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
