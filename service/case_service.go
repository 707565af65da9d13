package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/douggil74/elite-recovery-app-sub004/models"
	"github.com/douggil74/elite-recovery-app-sub004/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxUploadBytes caps a single evidence upload.
const maxUploadBytes = 50 << 20

// CaseStore is the case persistence surface the lifecycle needs. The
// pgx-backed repository satisfies it; tests substitute in-memory
// fakes.
type CaseStore interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error)
	Update(ctx context.Context, c *models.Case) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAgentID(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*models.Case, error)
}

// DocumentStore is the document persistence surface, including the
// pending/processing/done/error status transitions.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByCaseID(ctx context.Context, caseID uuid.UUID) ([]*models.Document, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkDone(ctx context.Context, id uuid.UUID, text string, pageCount int, usedOCR bool, pageErrors models.PageErrors) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// FactSetStore is the evidence persistence surface.
type FactSetStore interface {
	Create(ctx context.Context, fs *models.FactSet) error
	ListByCaseID(ctx context.Context, caseID uuid.UUID) ([]*models.FactSet, error)
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
}

// AuditStore is the audit trail surface used by the case lifecycle.
type AuditStore interface {
	AuditSink
	DeleteByCaseID(ctx context.Context, caseID uuid.UUID) error
}

// CaseService orchestrates the case lifecycle: creation with the
// mandatory attestation, evidence uploads, document processing, and
// deletion with full cascade.
type CaseService struct {
	caseRepo     CaseStore
	documentRepo DocumentStore
	factSetRepo  FactSetStore
	auditRepo    AuditStore
	store        storage.Storage
	normalizer   *Normalizer
	extractor    Extractor
}

// CaseServiceOption is a functional option for CaseService
type CaseServiceOption func(*CaseService)

// WithCaseRepository sets the case repository
func WithCaseRepository(repo CaseStore) CaseServiceOption {
	return func(s *CaseService) {
		s.caseRepo = repo
	}
}

// WithDocumentRepository sets the document repository
func WithDocumentRepository(repo DocumentStore) CaseServiceOption {
	return func(s *CaseService) {
		s.documentRepo = repo
	}
}

// WithFactSetRepository sets the fact set repository
func WithFactSetRepository(repo FactSetStore) CaseServiceOption {
	return func(s *CaseService) {
		s.factSetRepo = repo
	}
}

// WithAuditRepository sets the audit repository
func WithAuditRepository(repo AuditStore) CaseServiceOption {
	return func(s *CaseService) {
		s.auditRepo = repo
	}
}

// WithStorage sets the evidence storage backend
func WithStorage(store storage.Storage) CaseServiceOption {
	return func(s *CaseService) {
		s.store = store
	}
}

// WithNormalizer sets the document normalizer
func WithNormalizer(n *Normalizer) CaseServiceOption {
	return func(s *CaseService) {
		s.normalizer = n
	}
}

// WithExtractor sets the fact extractor
func WithExtractor(e Extractor) CaseServiceOption {
	return func(s *CaseService) {
		s.extractor = e
	}
}

// NewCaseService creates a new case service
func NewCaseService(opts ...CaseServiceOption) *CaseService {
	s := &CaseService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCase opens a new case. The permissible-purpose attestation is
// mandatory: no attestation, no case.
func (s *CaseService) CreateCase(ctx context.Context, agentID uuid.UUID, subjectName string, attestationAccepted bool) (*models.Case, error) {
	if !attestationAccepted {
		return nil, ErrAttestationRequired
	}
	subjectName = strings.TrimSpace(subjectName)
	if subjectName == "" {
		return nil, errors.New("subject name is required")
	}

	c := &models.Case{
		AgentID:             agentID,
		SubjectName:         subjectName,
		AttestationAccepted: true,
	}
	if err := s.caseRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	s.recordAudit(ctx, c.ID, models.ActionCaseCreated, fmt.Sprintf("subject=%s", subjectName))
	return c, nil
}

// GetCase loads a case by ID. Only a missing row maps to
// ErrCaseNotFound; anything else is a real failure.
func (s *CaseService) GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	return c, nil
}

// ListCases lists an agent's cases, newest first.
func (s *CaseService) ListCases(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*models.Case, error) {
	return s.caseRepo.ListByAgentID(ctx, agentID, limit, offset)
}

// UpdateCase updates mutable case fields.
func (s *CaseService) UpdateCase(ctx context.Context, c *models.Case) error {
	if err := s.caseRepo.Update(ctx, c); err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	s.recordAudit(ctx, c.ID, models.ActionCaseUpdated, "")
	return nil
}

// DeleteCase removes a case and everything derived from it: stored
// evidence files, documents, fact sets, analyses, and the audit
// history. One final entry recording the deletion itself is written
// after the cascade.
func (s *CaseService) DeleteCase(ctx context.Context, id uuid.UUID) error {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCaseNotFound
		}
		return fmt.Errorf("failed to load case: %w", err)
	}

	docs, err := s.documentRepo.ListByCaseID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for _, doc := range docs {
		if doc.StoragePath == "" {
			continue
		}
		if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
			log.Printf("Warning: failed to delete evidence file %s: %v", doc.StoragePath, err)
		}
	}

	// The audit table has no foreign key to cases, so history is
	// removed explicitly before the case row cascades the rest.
	if err := s.auditRepo.DeleteByCaseID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete audit history: %w", err)
	}
	if err := s.caseRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}

	s.recordAudit(ctx, id, models.ActionCaseDeleted, fmt.Sprintf("subject=%s", c.SubjectName))
	return nil
}

// UploadDocument stores the raw evidence file and registers a pending
// document. Processing happens asynchronously; callers poll the
// document status.
func (s *CaseService) UploadDocument(ctx context.Context, caseID uuid.UUID, filename, mimeType string, size int64, data io.Reader) (*models.Document, error) {
	if _, err := s.caseRepo.GetByID(ctx, caseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	if size > maxUploadBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", size, maxUploadBytes)
	}

	docID := uuid.New()
	path, err := s.store.Upload(ctx, docID, filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store evidence file: %w", err)
	}

	doc := &models.Document{
		ID:          docID,
		CaseID:      caseID,
		Filename:    filename,
		MimeType:    mimeType,
		Size:        size,
		StoragePath: path,
		Status:      models.DocumentStatusPending,
	}
	if err := s.documentRepo.Create(ctx, doc); err != nil {
		// Try to clean up the stored file
		if delErr := s.store.Delete(ctx, path); delErr != nil {
			log.Printf("Warning: failed to clean up evidence file %s: %v", path, delErr)
		}
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.recordAudit(ctx, caseID, models.ActionPDFUploaded, fmt.Sprintf("filename=%s size=%d", filename, size))
	return doc, nil
}

// ProcessDocument runs the ingest-extract-store pipeline for one
// uploaded document. Failures land on the document record as an
// actionable message rather than surfacing a raw error.
func (s *CaseService) ProcessDocument(ctx context.Context, documentID uuid.UUID) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		log.Printf("Error: document %s not found for processing: %v", documentID, err)
		return
	}

	if err := s.documentRepo.MarkProcessing(ctx, documentID); err != nil {
		log.Printf("Error: failed to mark document %s processing: %v", documentID, err)
		return
	}

	if err := s.processDocument(ctx, doc); err != nil {
		log.Printf("Error: processing document %s failed: %v", documentID, err)
		if markErr := s.documentRepo.MarkError(ctx, documentID, UserMessage(err)); markErr != nil {
			log.Printf("Error: failed to record processing error on %s: %v", documentID, markErr)
		}
	}
}

func (s *CaseService) processDocument(ctx context.Context, doc *models.Document) error {
	rc, err := s.store.Download(ctx, doc.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to read evidence file: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxUploadBytes+1))
	rc.Close()
	if err != nil {
		return fmt.Errorf("failed to read evidence file: %w", err)
	}

	result, err := s.normalizer.Normalize(ctx, doc.Filename, doc.MimeType, data)
	if err != nil {
		return err
	}

	// Prior facts from earlier documents give the extractor context
	// for partial mentions, but never leak into this document's set.
	prior := s.priorFacts(ctx, doc.CaseID)

	facts, err := s.extractor.Extract(ctx, result.Text, prior)
	if err != nil {
		return err
	}

	fs := &models.FactSet{
		CaseID:     doc.CaseID,
		DocumentID: doc.ID,
		Source: models.Provenance{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
		},
		Addresses:   facts.Addresses,
		Phones:      facts.Phones,
		People:      facts.People,
		Vehicles:    facts.Vehicles,
		Employments: facts.Employments,
	}
	if err := s.factSetRepo.Create(ctx, fs); err != nil {
		return fmt.Errorf("failed to store fact set: %w", err)
	}

	// The document flips to done only once its fact set is stored.
	// Until then any failure lands it in error, never done, so a done
	// status always means the evidence is queryable.
	if err := s.documentRepo.MarkDone(ctx, doc.ID, result.Text, result.PageCount, result.UsedOCR, result.PageErrors); err != nil {
		return fmt.Errorf("failed to store normalized text: %w", err)
	}

	s.recordAudit(ctx, doc.CaseID, models.ActionReportParsed,
		fmt.Sprintf("filename=%s pages=%d ocr=%t", doc.Filename, result.PageCount, result.UsedOCR))
	return nil
}

// priorFacts flattens all existing fact sets of the case into one
// context payload for the extractor.
func (s *CaseService) priorFacts(ctx context.Context, caseID uuid.UUID) *models.Facts {
	sets, err := s.factSetRepo.ListByCaseID(ctx, caseID)
	if err != nil {
		log.Printf("Warning: failed to load prior facts for case %s: %v", caseID, err)
		return nil
	}
	if len(sets) == 0 {
		return nil
	}

	prior := &models.Facts{}
	for _, fs := range sets {
		prior.Addresses = append(prior.Addresses, fs.Addresses...)
		prior.Phones = append(prior.Phones, fs.Phones...)
		prior.People = append(prior.People, fs.People...)
		prior.Vehicles = append(prior.Vehicles, fs.Vehicles...)
		prior.Employments = append(prior.Employments, fs.Employments...)
	}
	return prior
}

// GetDocument loads a document by ID. Only a missing row maps to
// ErrDocumentNotFound; anything else is a real failure.
func (s *CaseService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

// ListDocuments lists a case's documents.
func (s *CaseService) ListDocuments(ctx context.Context, caseID uuid.UUID) ([]*models.Document, error) {
	return s.documentRepo.ListByCaseID(ctx, caseID)
}

// DeleteDocument removes one document, its stored file, and its fact
// set. Earlier analyses that cited the document stay untouched; the
// next analysis run simply no longer sees its facts.
func (s *CaseService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to load document: %w", err)
	}

	if doc.StoragePath != "" {
		if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
			log.Printf("Warning: failed to delete evidence file %s: %v", doc.StoragePath, err)
		}
	}
	if err := s.factSetRepo.DeleteByDocumentID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete fact set: %w", err)
	}
	if err := s.documentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// RecordView writes the report_viewed audit entry for a case.
func (s *CaseService) RecordView(ctx context.Context, caseID uuid.UUID) {
	s.recordAudit(ctx, caseID, models.ActionReportViewed, "")
}

// recordAudit writes a lifecycle audit entry. Lifecycle entries are
// best-effort; only the reveal gate treats an audit failure as fatal.
func (s *CaseService) recordAudit(ctx context.Context, caseID uuid.UUID, action models.AuditAction, detail string) {
	if s.auditRepo == nil {
		return
	}
	entry := &models.AuditEntry{CaseID: caseID, Action: action}
	if detail != "" {
		entry.Detail = &detail
	}
	if err := s.auditRepo.Record(ctx, entry); err != nil {
		log.Printf("Warning: failed to record audit entry %s for case %s: %v", action, caseID, err)
	}
}
