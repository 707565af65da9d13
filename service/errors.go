package service

import "errors"

// Ingestion and analysis failures. Per-document failures are isolated:
// they mark the failing document and never abort siblings in the case.
var (
	ErrUnsupportedFormat   = errors.New("unsupported document format")
	ErrEmptyDocument       = errors.New("document contains no extractable text")
	ErrUnreadableEncoding  = errors.New("document bytes are not valid text")
	ErrExtractorFailure    = errors.New("fact extraction failed")
	ErrOCRUnavailable      = errors.New("no OCR capability configured")
	ErrCaseNotFound        = errors.New("case not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrNoAnalysis          = errors.New("no analysis has been run for this case")
	ErrAttestationRequired = errors.New("attestation must be accepted before analysis")
)

// UserMessage maps an ingestion error to an actionable message for the
// caller. Every failure surfaces something the user can act on rather
// than a raw technical error.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "This file type is not supported. Paste the text directly into a .txt file and upload that instead."
	case errors.Is(err, ErrEmptyDocument):
		return "No readable text was found in this document. If it is a photo or scan, try a clearer image, or paste the text directly."
	case errors.Is(err, ErrUnreadableEncoding):
		return "The file could not be decoded as text. Re-save it as plain UTF-8 text and upload again."
	case errors.Is(err, ErrExtractorFailure):
		return "The document was read but fact extraction failed. Try analyzing again in a moment."
	case errors.Is(err, ErrOCRUnavailable):
		return "This looks like a scanned document, but text recognition is not configured. Paste the text directly into a .txt file and upload that instead."
	default:
		if err != nil {
			return err.Error()
		}
		return ""
	}
}
