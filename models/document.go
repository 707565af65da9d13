package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the ingestion status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusDone       DocumentStatus = "done"
	DocumentStatusError      DocumentStatus = "error"
)

// PageError records an OCR failure for a single page. Failed pages
// contribute empty text instead of aborting the document.
type PageError struct {
	Page    int    `json:"page"`
	Message string `json:"message"`
}

// PageErrors represents a list of per-page OCR errors
type PageErrors []PageError

// Value implements driver.Valuer for JSONB
func (p PageErrors) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB
func (p *PageErrors) Scan(value interface{}) error {
	if value == nil {
		*p = make(PageErrors, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*p = make(PageErrors, 0)
		return nil
	}

	if len(bytes) == 0 {
		*p = make(PageErrors, 0)
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// Document represents one uploaded source document for a case.
// A document transitions pending -> processing -> done/error and is
// never mutated afterwards, except for deletion by the owning case.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	CaseID       uuid.UUID      `json:"case_id"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	Size         int64          `json:"size"`
	StoragePath  string         `json:"storage_path"`
	Status       DocumentStatus `json:"status"`
	Text         *string        `json:"text,omitempty"`
	PageCount    int            `json:"page_count"`
	UsedOCR      bool           `json:"used_ocr"`
	PageErrors   PageErrors     `json:"page_errors,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
