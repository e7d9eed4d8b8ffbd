package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/logger"
)

// Error codes shared by the HTTP API and the websocket protocol.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidPhase    = "INVALID_PHASE"
	CodeRequestInFlight = "REQUEST_IN_FLIGHT"
	CodeUnsupportedType = "UNSUPPORTED_FILE_TYPE"
	CodeMissingKey      = "MISSING_API_KEY"
	CodeDocumentService = "DOCUMENT_SERVICE_ERROR"
	CodeGeneration      = "GENERATION_FAILED"
	CodeBadRequest      = "BAD_REQUEST"
	CodeInternal        = "INTERNAL_ERROR"
)

// apiError is the user-facing form of a domain error.
type apiError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	DocumentID string `json:"documentId,omitempty"`
	status     int
}

func toAPIError(err error) apiError {
	var (
		verr        *domain.ValidationError
		unsupported *domain.UnsupportedFileTypeError
		missing     *domain.MissingCredentialError
		docErr      *domain.DocumentServiceError
		genErr      *domain.QuizGenerationError
		tooLarge    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		return apiError{Code: CodeValidation, Message: verr.Error(), status: http.StatusBadRequest}
	case errors.As(err, &tooLarge):
		return apiError{Code: CodeValidation, Message: "file is too large", status: http.StatusBadRequest}
	case errors.Is(err, domain.ErrSessionNotFound):
		return apiError{Code: CodeNotFound, Message: "quiz session not found", status: http.StatusNotFound}
	case errors.Is(err, domain.ErrDocumentNotFound):
		return apiError{Code: CodeNotFound, Message: "document not found", status: http.StatusNotFound}
	case errors.Is(err, domain.ErrRequestInFlight):
		return apiError{Code: CodeRequestInFlight, Message: "a quiz is already being generated", status: http.StatusConflict}
	case errors.Is(err, domain.ErrInvalidPhase):
		return apiError{Code: CodeInvalidPhase, Message: "action not allowed right now", status: http.StatusConflict}
	case errors.As(err, &unsupported):
		return apiError{Code: CodeUnsupportedType, Message: "Please upload a PDF file", status: http.StatusUnsupportedMediaType}
	case errors.As(err, &missing):
		return apiError{Code: CodeMissingKey, Message: missing.Error(), status: http.StatusUnauthorized}
	case errors.As(err, &docErr):
		return apiError{Code: CodeDocumentService, Message: documentFailureMessage(docErr.Op), status: http.StatusBadGateway}
	case errors.As(err, &genErr):
		return apiError{Code: CodeGeneration, Message: domain.GenerationFailedMessage, status: http.StatusBadGateway}
	default:
		return apiError{Code: CodeInternal, Message: "internal server error", status: http.StatusInternalServerError}
	}
}

func documentFailureMessage(op string) string {
	switch op {
	case "extract":
		return "Failed to extract text from PDF"
	case "summarize":
		return "Failed to generate summary"
	case "ask":
		return "Failed to get answer"
	default:
		return "Document service failed"
	}
}

// writeError logs err by severity and writes the JSON error envelope.
func writeError(w http.ResponseWriter, log *logger.Logger, err error, documentID string) {
	apiErr := toAPIError(err)
	apiErr.DocumentID = documentID
	if apiErr.status >= 500 {
		log.Error("server error", "code", apiErr.Code, "error", err.Error())
	} else {
		log.Warn("client error", "code", apiErr.Code, "error", err.Error())
	}
	writeJSON(w, apiErr.status, map[string]apiError{"error": apiErr})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
