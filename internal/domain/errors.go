package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidPhase is returned when an operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
	// ErrRequestInFlight is returned when a quiz is already being generated.
	ErrRequestInFlight = errors.New("quiz generation already in progress")
	// ErrDocumentNotFound indicates the document id is unknown or expired.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrQuestionSetNotFound indicates the question bank has no set for the request.
	ErrQuestionSetNotFound = errors.New("question set not found")
)

// GenerationFailedMessage is the user-facing message for any generation failure.
const GenerationFailedMessage = "Failed to generate quiz. Please try again."

// ValidationError reports an invalid user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// QuizGenerationError collapses every question source failure.
type QuizGenerationError struct {
	Err error
}

func (e *QuizGenerationError) Error() string {
	if e.Err == nil {
		return "quiz generation failed"
	}
	return "quiz generation failed: " + e.Err.Error()
}

func (e *QuizGenerationError) Unwrap() error { return e.Err }

// MalformedQuestionsError reports a question payload that does not have the expected shape.
type MalformedQuestionsError struct {
	Reason string
}

func (e *MalformedQuestionsError) Error() string {
	return "malformed questions: " + e.Reason
}

// UnsupportedFileTypeError is returned for uploads that are not PDFs.
type UnsupportedFileTypeError struct {
	ContentType string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q: please upload a PDF file", e.ContentType)
}

// MissingCredentialError is returned when no API key is available for the completion endpoint.
type MissingCredentialError struct{}

func (e *MissingCredentialError) Error() string {
	return "missing API key for completion endpoint"
}

// DocumentServiceError wraps a failed summarize or ask call.
type DocumentServiceError struct {
	Op  string
	Err error
}

func (e *DocumentServiceError) Error() string {
	return fmt.Sprintf("document %s failed: %v", e.Op, e.Err)
}

func (e *DocumentServiceError) Unwrap() error { return e.Err }
