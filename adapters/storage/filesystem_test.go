package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tawa/domain"
)

func TestFilesystemStorage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFilesystemStorage(root, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	path := "audio/user-1/recording-1.wav"
	stored, err := s.Write(ctx, path, []byte("RIFF"), "audio/wav")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if stored != path {
		t.Errorf("Expected path %s, got %s", path, stored)
	}

	entries, err := os.ReadDir(filepath.Join(root, "audio", "user-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the final file, got %d entries", len(entries))
	}

	data, contentType, err := s.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "RIFF" || contentType != "audio/wav" {
		t.Errorf("Unexpected object %q %s", data, contentType)
	}

	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := s.Read(ctx, path); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %v", err)
	}
	if err := s.Delete(ctx, path); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound on second delete, got %v", err)
	}
}

func TestFilesystemStorageRejectsEscape(t *testing.T) {
	s, err := NewFilesystemStorage(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(context.Background(), "../../etc/passwd", []byte("x"), "audio/wav"); err == nil {
		t.Error("Expected path escape to be rejected")
	}
}
