package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"ai-quiz-service/internal/app"
	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/logger"
	"github.com/go-chi/chi/v5"
)

// APIKeyHeader carries the caller's own completion API key.
const APIKeyHeader = "X-Api-Key"

const multipartMemory = 32 << 20

// DocumentHandler exposes PDF upload, summary and Q&A over JSON.
type DocumentHandler struct {
	service   *app.DocumentService
	maxUpload int64
	log       *logger.Logger
}

func NewDocumentHandler(service *app.DocumentService, maxUpload int64, log *logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentHandler{service: service, maxUpload: maxUpload, log: log}
}

// Routes registers the document endpoints on r.
func (h *DocumentHandler) Routes(r chi.Router) {
	r.Post("/documents", h.handleUpload)
	r.Get("/documents/{id}", h.handleGet)
	r.Post("/documents/{id}/summary", h.handleSummarize)
	r.Post("/documents/{id}/ask", h.handleAsk)
}

type documentView struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	TextLength int       `json:"textLength"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newDocumentView(doc domain.Document) documentView {
	return documentView{
		ID:         doc.ID,
		Filename:   doc.Filename,
		Title:      doc.Title,
		TextLength: len([]rune(doc.Text)),
		Summary:    doc.Summary,
		CreatedAt:  doc.CreatedAt,
	}
}

func (h *DocumentHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		// Leave room for the multipart envelope around the file.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.log, err, "")
			return
		}
		writeError(w, h.log, &domain.ValidationError{Field: "file", Reason: "expected a multipart form"}, "")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, &domain.ValidationError{Field: "file", Reason: "no file uploaded"}, "")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.log, err, "")
		return
	}
	summarize, _ := strconv.ParseBool(r.FormValue("summarize"))

	upload := domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	doc, err := h.service.Upload(r.Context(), upload, r.Header.Get(APIKeyHeader), summarize)
	if err != nil {
		writeError(w, h.log, err, doc.ID)
		return
	}
	writeJSON(w, http.StatusCreated, newDocumentView(doc))
}

func (h *DocumentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, newDocumentView(doc))
}

func (h *DocumentHandler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := h.service.Summarize(r.Context(), id, r.Header.Get(APIKeyHeader))
	if err != nil {
		writeError(w, h.log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *DocumentHandler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, &domain.ValidationError{Field: "question", Reason: "invalid request body"}, "")
		return
	}
	answer, err := h.service.Ask(r.Context(), chi.URLParam(r, "id"), r.Header.Get(APIKeyHeader), req.Question)
	if err != nil {
		writeError(w, h.log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
