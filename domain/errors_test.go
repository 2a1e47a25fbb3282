package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIngestError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewIngestError(ErrTranscriptionFailed, "speech provider rejected audio", cause)

	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Error("expected error to match its kind")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if errors.Is(err, ErrStorageWriteFailed) {
		t.Error("did not expect error to match another kind")
	}

	want := "transcription failed: speech provider rejected audio: connection reset"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if err.Details() != "connection reset" {
		t.Errorf("unexpected details %q", err.Details())
	}
}

func TestIngestErrorWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewIngestError(ErrRecordWriteFailed, "", nil))

	var ingestErr *IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatal("expected errors.As to find IngestError")
	}
	if ingestErr.Details() != "" {
		t.Errorf("expected empty details, got %q", ingestErr.Details())
	}
	if !errors.Is(err, ErrRecordWriteFailed) {
		t.Error("expected wrapped error to match its kind")
	}
}
