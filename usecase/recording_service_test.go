package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
)

func seedRecord(t *testing.T, repo *fakeRepository, storage *fakeStorage, owner string) *entities.AnalysisRecord {
	t.Helper()
	path := "audio/" + owner + "/recording-1.wav"
	if _, err := storage.Write(context.Background(), path, []byte("wav"), entities.ContentTypeWAV); err != nil {
		t.Fatal(err)
	}
	record := entities.NewAnalysisRecord(owner, "text", path, entities.ContentTypeWAV, entities.EmptyEmotions(time.Now()))
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	return record
}

func TestRecordingServiceOwnership(t *testing.T) {
	repo, storage := newFakeRepository(), newFakeStorage()
	service := NewRecordingService(repo, storage, zaptest.NewLogger(t))
	record := seedRecord(t, repo, storage, "alice")

	if _, err := service.Get(context.Background(), "alice", record.ID); err != nil {
		t.Errorf("Expected owner to read record, got %v", err)
	}
	if _, err := service.Get(context.Background(), "bob", record.ID); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound for another owner, got %v", err)
	}
	if err := service.Delete(context.Background(), "bob", record.ID); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound on foreign delete, got %v", err)
	}
	if repo.count() != 1 {
		t.Error("Expected record to survive foreign delete")
	}
}

func TestRecordingServiceUpdate(t *testing.T) {
	repo, storage := newFakeRepository(), newFakeStorage()
	service := NewRecordingService(repo, storage, zaptest.NewLogger(t))
	record := seedRecord(t, repo, storage, "alice")

	name := "Dentist bit"
	updated, err := service.Update(context.Background(), "alice", record.ID, entities.RecordPatch{Name: &name})
	if err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}
	if updated.Name != name || updated.Transcription != "text" {
		t.Errorf("Unexpected updated record %+v", updated)
	}

	if _, err := service.Update(context.Background(), "alice", record.ID, entities.RecordPatch{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for empty patch, got %v", err)
	}
}

func TestRecordingServiceDeleteRemovesAudio(t *testing.T) {
	repo, storage := newFakeRepository(), newFakeStorage()
	service := NewRecordingService(repo, storage, zaptest.NewLogger(t))
	record := seedRecord(t, repo, storage, "alice")

	if err := service.Delete(context.Background(), "alice", record.ID); err != nil {
		t.Fatalf("Expected delete to succeed, got %v", err)
	}
	if repo.count() != 0 {
		t.Error("Expected record to be deleted")
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != record.AudioPath {
		t.Errorf("Expected audio %s to be deleted, got %v", record.AudioPath, storage.deleted)
	}
}

func TestRecordingServiceDeleteMissingAudio(t *testing.T) {
	repo, storage := newFakeRepository(), newFakeStorage()
	service := NewRecordingService(repo, storage, zaptest.NewLogger(t))
	record := seedRecord(t, repo, storage, "alice")
	delete(storage.objects, record.AudioPath)

	if err := service.Delete(context.Background(), "alice", record.ID); err != nil {
		t.Fatalf("Expected record delete to succeed without audio, got %v", err)
	}
}

func TestRecordingServiceAudioAndList(t *testing.T) {
	repo, storage := newFakeRepository(), newFakeStorage()
	service := NewRecordingService(repo, storage, zaptest.NewLogger(t))
	record := seedRecord(t, repo, storage, "alice")

	data, contentType, err := service.Audio(context.Background(), "alice", record.ID)
	if err != nil {
		t.Fatalf("Expected audio, got %v", err)
	}
	if string(data) != "wav" || contentType != entities.ContentTypeWAV {
		t.Errorf("Unexpected audio %q %s", data, contentType)
	}

	records, err := service.List(context.Background(), "nobody", 0)
	if err != nil {
		t.Fatal(err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", records)
	}
}
