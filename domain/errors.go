package domain

import (
	"errors"
	"strings"
)

// Capture errors
var (
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")
	ErrAlreadyRecording  = errors.New("recording already in progress")
)

// Ingest errors. Storage, transcription and record writes are fatal to an
// ingest run; the emotion errors are only ever logged.
var (
	ErrStorageWriteFailed  = errors.New("audio storage write failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrRecordWriteFailed   = errors.New("analysis record write failed")
	ErrSubmissionFailed    = errors.New("emotion job submission failed")
	ErrJobTimedOut         = errors.New("emotion job timed out")
	ErrJobFailed           = errors.New("emotion job failed")
	ErrAggregationFailed   = errors.New("emotion aggregation failed")
)

// Request and lookup errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRecordNotFound = errors.New("analysis record not found")
	ErrObjectNotFound = errors.New("stored object not found")
)

// IngestError is a fatal ingest failure. Kind is one of the ingest sentinels
// and Message is safe to show to the caller.
type IngestError struct {
	Kind    error
	Message string
	Cause   error
}

// NewIngestError creates an IngestError
func NewIngestError(kind error, message string, cause error) *IngestError {
	return &IngestError{Kind: kind, Message: message, Cause: cause}
}

func (e *IngestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *IngestError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Details returns the underlying cause text, or an empty string
func (e *IngestError) Details() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}
