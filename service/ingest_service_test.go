package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOCR returns canned text per page and can fail selected pages.
type stubOCR struct {
	pages    map[int]string
	failPage int
}

func (o *stubOCR) RecognizePage(_ context.Context, _ []byte, _ string, pageNum int) (string, error) {
	if pageNum == o.failPage {
		return "", fmt.Errorf("page %d: unreadable", pageNum)
	}
	return o.pages[pageNum], nil
}

func TestNormalize_PlainText(t *testing.T) {
	n := NewNormalizer()

	result, err := n.Normalize(context.Background(), "report.txt", "text/plain", []byte("  Subject last seen at 88 Oak St.\n"))

	require.NoError(t, err)
	assert.Equal(t, "Subject last seen at 88 Oak St.", result.Text)
	assert.Equal(t, 1, result.PageCount)
	assert.False(t, result.UsedOCR)
}

func TestNormalize_EmptyText(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(context.Background(), "report.txt", "text/plain", []byte("   \n\t  "))

	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestNormalize_InvalidEncoding(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(context.Background(), "report.txt", "text/plain", []byte{0xff, 0xfe, 0xfd})

	assert.ErrorIs(t, err, ErrUnreadableEncoding)
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(context.Background(), "report.xlsx", "application/vnd.ms-excel", []byte("whatever"))

	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNormalize_DOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Skip trace report for subject.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Last address:</w:t></w:r><w:r><w:t xml:space="preserve"> 88 Oak St</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(docXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	n := NewNormalizer()
	result, err := n.Normalize(context.Background(), "report.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", buf.Bytes())

	require.NoError(t, err)
	assert.Contains(t, result.Text, "Skip trace report for subject.")
	assert.Contains(t, result.Text, "Last address: 88 Oak St")
	assert.False(t, result.UsedOCR)
}

func TestNormalize_DOCXNotAZip(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(context.Background(), "report.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("not a zip"))

	assert.ErrorIs(t, err, ErrUnreadableEncoding)
}

func TestNormalize_ImageWithoutOCR(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(context.Background(), "scan.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})

	assert.ErrorIs(t, err, ErrOCRUnavailable)
}

func TestNormalize_ImageWithOCR(t *testing.T) {
	n := NewNormalizer(NormalizerWithOCR(&stubOCR{
		pages: map[int]string{1: "Handwritten note: check 300 Maple Dr."},
	}))

	result, err := n.Normalize(context.Background(), "scan.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff})

	require.NoError(t, err)
	assert.Equal(t, "Handwritten note: check 300 Maple Dr.", result.Text)
	assert.Equal(t, 1, result.PageCount)
	assert.True(t, result.UsedOCR)
}

func TestNormalize_ImageWithEmptyOCRResult(t *testing.T) {
	n := NewNormalizer(NormalizerWithOCR(&stubOCR{pages: map[int]string{}}))

	_, err := n.Normalize(context.Background(), "scan.png", "image/png", []byte{0x89, 0x50})

	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestOCRPages_PartialPageFailure(t *testing.T) {
	n := NewNormalizer(NormalizerWithOCR(&stubOCR{
		pages:    map[int]string{1: "Page one: subject seen near depot.", 3: "Page three: vehicle on file."},
		failPage: 2,
	}))
	pages := []pageImage{
		{pageNr: 1, objNr: 4, format: "jpeg", data: []byte{0x01}},
		{pageNr: 2, objNr: 7, format: "jpeg", data: []byte{0x02}},
		{pageNr: 3, objNr: 9, format: "jpeg", data: []byte{0x03}},
	}

	result, err := n.ocrPages(context.Background(), pages, 3)

	require.NoError(t, err)
	assert.True(t, result.UsedOCR)
	assert.Equal(t, 3, result.PageCount)

	// Pages reassemble in page order regardless of recognition order,
	// and the failed page is skipped rather than sinking the document.
	assert.Equal(t, "Page one: subject seen near depot."+pageBreak(3)+"Page three: vehicle on file.", result.Text)

	require.Len(t, result.PageErrors, 1)
	assert.Equal(t, 2, result.PageErrors[0].Page)
	assert.Contains(t, result.PageErrors[0].Message, "unreadable")
}

func TestOCRPages_AllPagesEmpty(t *testing.T) {
	n := NewNormalizer(NormalizerWithOCR(&stubOCR{pages: map[int]string{}}))
	pages := []pageImage{
		{pageNr: 1, format: "png", data: []byte{0x01}},
		{pageNr: 2, format: "png", data: []byte{0x02}},
	}

	_, err := n.ocrPages(context.Background(), pages, 2)

	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "pdf", detectFormat("x.bin", "application/pdf"))
	assert.Equal(t, "pdf", detectFormat("report.PDF", ""))
	assert.Equal(t, "text", detectFormat("notes.txt", ""))
	assert.Equal(t, "text", detectFormat("x", "text/plain; charset=utf-8"))
	assert.Equal(t, "docx", detectFormat("report.docx", ""))
	assert.Equal(t, "image", detectFormat("scan.jpeg", ""))
	assert.Equal(t, "", detectFormat("report.xls", "application/vnd.ms-excel"))
}
