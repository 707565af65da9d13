package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction enumerates every action the audit log records.
type AuditAction string

const (
	ActionCaseCreated    AuditAction = "case_created"
	ActionCaseUpdated    AuditAction = "case_updated"
	ActionCaseDeleted    AuditAction = "case_deleted"
	ActionPDFUploaded    AuditAction = "pdf_uploaded"
	ActionReportParsed   AuditAction = "report_parsed"
	ActionReportViewed   AuditAction = "report_viewed"
	ActionFieldRevealed  AuditAction = "field_revealed"
	ActionBriefGenerated AuditAction = "brief_generated"
	ActionBriefExported  AuditAction = "brief_exported"
	ActionJourneyCreated AuditAction = "journey_created"
	ActionCaseShared     AuditAction = "case_shared"
)

// AuditEntry is one append-only audit record. Entries are never
// updated or deleted except by a case-deletion cascade.
type AuditEntry struct {
	ID        uuid.UUID   `json:"id"`
	CaseID    uuid.UUID   `json:"case_id"`
	Action    AuditAction `json:"action"`
	Detail    *string     `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
