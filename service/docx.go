package service

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// normalizeDOCX extracts the paragraph text of a .docx file. The
// format is a zip archive whose word/document.xml carries the body;
// only w:t (text run), w:tab, and w:p (paragraph) elements matter for
// plain-text output.
func normalizeDOCX(data []byte) (*NormalizeResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive", ErrUnreadableEncoding)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: missing word/document.xml", ErrUnreadableEncoding)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableEncoding, err)
	}
	defer rc.Close()

	text, err := docxBodyText(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableEncoding, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}
	return &NormalizeResult{Text: text, PageCount: 1}, nil
}

func docxBodyText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
