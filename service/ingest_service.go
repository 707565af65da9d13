package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

const (
	// minTextLayerChars is the threshold below which a PDF's text
	// layer is treated as absent and the scanned-page fallback runs.
	minTextLayerChars = 50

	// ocrConcurrency bounds parallel page recognition calls.
	ocrConcurrency = 3

	// ocrPageTimeout bounds a single page recognition call.
	ocrPageTimeout = 90 * time.Second
)

// NormalizeResult is the outcome of ingesting one raw document.
type NormalizeResult struct {
	Text       string
	PageCount  int
	UsedOCR    bool
	PageErrors models.PageErrors
}

// Normalizer turns an uploaded document of any supported format into
// plain text. OCR is optional; without it, scanned PDFs and images
// fail with ErrOCRUnavailable instead of silently producing nothing.
type Normalizer struct {
	ocr OCR
}

// NormalizerOption is a functional option for Normalizer
type NormalizerOption func(*Normalizer)

// NormalizerWithOCR sets the OCR engine for scanned documents
func NormalizerWithOCR(ocr OCR) NormalizerOption {
	return func(n *Normalizer) {
		n.ocr = ocr
	}
}

// NewNormalizer creates a new document normalizer
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize dispatches on document type and returns normalized text.
// The format is judged from the MIME type first, the file extension
// second.
func (n *Normalizer) Normalize(ctx context.Context, filename, mimeType string, data []byte) (*NormalizeResult, error) {
	switch detectFormat(filename, mimeType) {
	case "text":
		return normalizeText(data)
	case "pdf":
		return n.normalizePDF(ctx, data)
	case "docx":
		return normalizeDOCX(data)
	case "image":
		return n.normalizeImage(ctx, filename, mimeType, data)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func detectFormat(filename, mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "text/plain":
		return "text"
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "image/png", "image/jpeg":
		return "image"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return "text"
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".png", ".jpg", ".jpeg":
		return "image"
	}
	return ""
}

func normalizeText(data []byte) (*NormalizeResult, error) {
	if !utf8.Valid(data) {
		return nil, ErrUnreadableEncoding
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, ErrEmptyDocument
	}
	return &NormalizeResult{Text: text, PageCount: 1}, nil
}

// normalizePDF tries the embedded text layer first and falls back to
// per-page OCR when the layer is missing or trivially short.
func (n *Normalizer) normalizePDF(ctx context.Context, data []byte) (*NormalizeResult, error) {
	text, pageCount, err := readPDFTextLayer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableEncoding, err)
	}

	if len(strings.TrimSpace(text)) >= minTextLayerChars {
		return &NormalizeResult{Text: strings.TrimSpace(text), PageCount: pageCount}, nil
	}

	if n.ocr == nil {
		return nil, ErrOCRUnavailable
	}
	return n.ocrScannedPDF(ctx, data, pageCount)
}

// readPDFTextLayer extracts the embedded text of every page, with
// page-break markers between pages. The parser panics on some
// malformed files, so the whole read is guarded.
func readPDFTextLayer(data []byte) (text string, pageCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	pageCount = r.NumPage()
	var b strings.Builder
	for i := 1; i <= pageCount; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not sink the text layer.
			log.Printf("Warning: failed to read text of page %d: %v", i, err)
			continue
		}
		if i > 1 {
			b.WriteString(pageBreak(i))
		}
		b.WriteString(content)
	}
	return b.String(), pageCount, nil
}

func pageBreak(page int) string {
	return fmt.Sprintf("\n\n--- Page %d ---\n\n", page)
}

// ocrScannedPDF pulls each page's dominant image off the file and
// hands the pages to the recognition pool.
func (n *Normalizer) ocrScannedPDF(ctx context.Context, data []byte, pageCount int) (*NormalizeResult, error) {
	pages, err := extractPageImages(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableEncoding, err)
	}
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	return n.ocrPages(ctx, pages, pageCount)
}

// ocrPages recognizes page images concurrently with a bounded worker
// group and reassembles the text in page order. Pages that fail
// recognition yield empty text plus a page error; the document only
// fails outright when every page comes back empty.
func (n *Normalizer) ocrPages(ctx context.Context, pages []pageImage, pageCount int) (*NormalizeResult, error) {
	texts := make([]string, len(pages))
	var pageErrMu sync.Mutex
	var pageErrors models.PageErrors

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ocrConcurrency)
	for i, pg := range pages {
		i, pg := i, pg
		g.Go(func() error {
			pageCtx, cancel := context.WithTimeout(gctx, ocrPageTimeout)
			defer cancel()

			text, err := n.ocr.RecognizePage(pageCtx, pg.data, pg.format, pg.pageNr)
			if err != nil {
				pageErrMu.Lock()
				pageErrors = append(pageErrors, models.PageError{
					Page:    pg.pageNr,
					Message: err.Error(),
				})
				pageErrMu.Unlock()
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(pageErrors, func(a, b int) bool {
		return pageErrors[a].Page < pageErrors[b].Page
	})

	var b strings.Builder
	nonEmpty := 0
	for i, pg := range pages {
		if texts[i] == "" {
			continue
		}
		if nonEmpty > 0 {
			b.WriteString(pageBreak(pg.pageNr))
		}
		b.WriteString(texts[i])
		nonEmpty++
	}
	if nonEmpty == 0 {
		return nil, ErrEmptyDocument
	}

	if pageCount == 0 {
		pageCount = len(pages)
	}
	return &NormalizeResult{
		Text:       b.String(),
		PageCount:  pageCount,
		UsedOCR:    true,
		PageErrors: pageErrors,
	}, nil
}

type pageImage struct {
	pageNr int
	objNr  int
	format string
	data   []byte
}

// extractPageImages pulls the dominant raster image off each page of
// a scanned PDF. Scanners embed one full-page image per page; when a
// page carries several, the largest wins, with the lowest object
// number breaking ties so the choice is stable.
func extractPageImages(data []byte) ([]pageImage, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	raw, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, err
	}

	best := make(map[int]pageImage)
	for _, pageMap := range raw {
		for objNr, img := range pageMap {
			payload, err := io.ReadAll(img)
			if err != nil {
				log.Printf("Warning: failed to read image object %d on page %d: %v", objNr, img.PageNr, err)
				continue
			}
			candidate := pageImage{
				pageNr: img.PageNr,
				objNr:  objNr,
				format: imageFormat(img.FileType),
				data:   payload,
			}
			cur, ok := best[img.PageNr]
			if !ok || len(candidate.data) > len(cur.data) ||
				(len(candidate.data) == len(cur.data) && candidate.objNr < cur.objNr) {
				best[img.PageNr] = candidate
			}
		}
	}

	pages := make([]pageImage, 0, len(best))
	for _, pg := range best {
		pages = append(pages, pg)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].pageNr < pages[j].pageNr })
	return pages, nil
}

func imageFormat(fileType string) string {
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	default:
		return strings.ToLower(fileType)
	}
}

// normalizeImage treats a standalone photo or scan as a one-page
// document.
func (n *Normalizer) normalizeImage(ctx context.Context, filename, mimeType string, data []byte) (*NormalizeResult, error) {
	if n.ocr == nil {
		return nil, ErrOCRUnavailable
	}

	format := "png"
	if strings.Contains(mimeType, "jpeg") || strings.HasSuffix(strings.ToLower(filename), ".jpg") || strings.HasSuffix(strings.ToLower(filename), ".jpeg") {
		format = "jpeg"
	}

	pageCtx, cancel := context.WithTimeout(ctx, ocrPageTimeout)
	defer cancel()

	text, err := n.ocr.RecognizePage(pageCtx, data, format, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractorFailure, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}
	return &NormalizeResult{Text: text, PageCount: 1, UsedOCR: true}, nil
}
