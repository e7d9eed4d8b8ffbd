package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"ai-quiz-service/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const pdfMIME = "application/pdf"

// Extractor pulls plain text out of uploaded PDF files.
type Extractor struct {
	maxBytes int64
}

// NewExtractor bounds uploads to maxBytes; zero means unbounded.
func NewExtractor(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

// ExtractText checks the declared type first, then sniffs the bytes, and
// returns the text of every page separated by a blank line.
func (e *Extractor) ExtractText(ctx context.Context, upload domain.Upload) (string, error) {
	if !isPDFType(upload.ContentType) {
		return "", &domain.UnsupportedFileTypeError{ContentType: upload.ContentType}
	}
	if e.maxBytes > 0 && int64(len(upload.Data)) > e.maxBytes {
		return "", &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("file exceeds %d bytes", e.maxBytes)}
	}
	if detected := mimetype.Detect(upload.Data); !detected.Is(pdfMIME) {
		return "", &domain.DocumentServiceError{Op: "extract", Err: fmt.Errorf("content is %s, not a PDF", detected.String())}
	}

	text, err := readPages(ctx, upload.Data)
	if err != nil {
		return "", &domain.DocumentServiceError{Op: "extract", Err: err}
	}
	return text, nil
}

func isPDFType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, pdfMIME)
}

func readPages(ctx context.Context, data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}

	var sb strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		sb.WriteString(strings.TrimSpace(pageText))
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
