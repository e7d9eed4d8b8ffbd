package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/logger"
	"github.com/google/uuid"
)

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, upload domain.Upload) (string, error)
}

// DocumentAssistant summarizes and answers questions about document text.
// An empty apiKey falls back to the assistant's configured key.
type DocumentAssistant interface {
	Summarize(ctx context.Context, apiKey, text string) (string, error)
	Ask(ctx context.Context, apiKey, text, question string) (string, error)
}

// DocumentStore keeps extracted documents for follow-up calls.
type DocumentStore interface {
	Save(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
}

// DocumentService contains the PDF upload, summary and Q&A use cases.
type DocumentService struct {
	extractor TextExtractor
	assistant DocumentAssistant
	store     DocumentStore
	log       *logger.Logger
	now       func() time.Time
}

func NewDocumentService(extractor TextExtractor, assistant DocumentAssistant, store DocumentStore, log *logger.Logger) *DocumentService {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentService{
		extractor: extractor,
		assistant: assistant,
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// Upload extracts and stores the document text, optionally summarizing it.
// When only the summary fails, the stored document is returned together with
// the DocumentServiceError so the caller can retry the summary by id.
func (s *DocumentService) Upload(ctx context.Context, upload domain.Upload, apiKey string, summarize bool) (domain.Document, error) {
	text, err := s.extractor.ExtractText(ctx, upload)
	if err != nil {
		return domain.Document{}, err
	}

	doc := domain.Document{
		ID:        uuid.NewString(),
		Filename:  upload.Filename,
		Title:     documentTitle(upload.Filename),
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	s.log.Info("document stored", "document_id", doc.ID, "filename", doc.Filename, "chars", len(text))

	if !summarize {
		return doc, nil
	}
	summary, err := s.Summarize(ctx, doc.ID, apiKey)
	if err != nil {
		return doc, err
	}
	doc.Summary = summary
	return doc, nil
}

// Get returns a stored document.
func (s *DocumentService) Get(ctx context.Context, id string) (domain.Document, error) {
	return s.store.Get(ctx, id)
}

// Summarize produces (and stores) a summary of a stored document.
func (s *DocumentService) Summarize(ctx context.Context, id, apiKey string) (string, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	summary, err := s.assistant.Summarize(ctx, apiKey, doc.Text)
	if err != nil {
		return "", s.wrap("summarize", id, err)
	}
	doc.Summary = summary
	if err := s.store.Save(ctx, doc); err != nil {
		s.log.Warn("failed to store summary", "document_id", id, "error", err.Error())
	}
	return summary, nil
}

// Ask answers a free-form question about a stored document.
func (s *DocumentService) Ask(ctx context.Context, id, apiKey, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", &domain.ValidationError{Field: "question", Reason: "please enter a question"}
	}
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	answer, err := s.assistant.Ask(ctx, apiKey, doc.Text, question)
	if err != nil {
		return "", s.wrap("ask", id, err)
	}
	return answer, nil
}

// wrap tags assistant failures; a missing credential is reported as is.
func (s *DocumentService) wrap(op, id string, err error) error {
	var missing *domain.MissingCredentialError
	if errors.As(err, &missing) {
		return err
	}
	s.log.Warn("document assistant failed", "op", op, "document_id", id, "error", err.Error())
	return &domain.DocumentServiceError{Op: op, Err: err}
}

func documentTitle(filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	return base
}
