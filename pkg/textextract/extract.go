package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Kind is a transcript document format.
type Kind string

const (
	KindText Kind = "txt"
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrNotUTF8     = errors.New("text is not valid UTF-8")
)

// DetectKind resolves the document kind from the declared content type,
// falling back to the file extension when the type is generic or absent.
func DetectKind(contentType, filename string) (Kind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch mediaType {
	case "text/plain":
		return KindText, true
	case "application/pdf":
		return KindPDF, true
	case docxMIME:
		return KindDOCX, true
	case "", "application/octet-stream":
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".txt":
			return KindText, true
		case ".pdf":
			return KindPDF, true
		case ".docx":
			return KindDOCX, true
		}
	}
	return "", false
}

// Extract returns the plain text of a document.
func Extract(data io.ReaderAt, size int64, kind Kind) (string, error) {
	switch kind {
	case KindPDF:
		return extractPDF(data, size)
	case KindDOCX:
		return extractDOCX(data, size)
	case KindText:
		return extractTXT(data, size)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
}

func extractPDF(data io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractDOCX(data io.ReaderAt, size int64) (string, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return docxText(string(content)), nil
	}
	return "", errors.New("DOCX has no word/document.xml")
}

func extractTXT(data io.ReaderAt, size int64) (string, error) {
	buf := make([]byte, size)
	n, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read TXT: %w", err)
	}
	buf = bytes.TrimPrefix(buf[:n], []byte("\xef\xbb\xbf"))
	if !utf8.Valid(buf) {
		return "", ErrNotUTF8
	}
	return string(buf), nil
}

// docxText keeps one line per paragraph so the transcript layout survives.
func docxText(s string) string {
	var lines []string
	for _, para := range strings.Split(s, "</w:p>") {
		if line := strings.Join(strings.Fields(stripXMLTags(para)), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}
	return result.String()
}
