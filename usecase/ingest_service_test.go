package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
)

type ingestFixture struct {
	storage   *fakeStorage
	stt       *fakeSTT
	jobs      *fakeJobService
	records   *fakeRepository
	publisher *fakePublisher
	service   *IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	f := &ingestFixture{
		storage: newFakeStorage(),
		stt:     &fakeSTT{text: "so I walked into a bar"},
		jobs: &fakeJobService{
			responses:   processingThen(2, fakePoll{status: entities.JobStatusCompleted}),
			predictions: `[{"results":[{"emotions":[{"name":"amusement","score":0.9},{"name":"joy","score":0.5}]}]}]`,
		},
		records:   newFakeRepository(),
		publisher: &fakePublisher{},
	}
	logger := zaptest.NewLogger(t)
	jobClient := NewEmotionJobClient(f.jobs, logger, WithSleep((&recordedSleeps{}).sleep))
	f.service = NewIngestService(f.storage, f.stt, jobClient, f.records, f.publisher, "en-US", logger)
	f.service.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return f
}

func sampleRequest() IngestRequest {
	return IngestRequest{
		OwnerID:         "user-1",
		Audio:           []byte("RIFF....WAVEfmt "),
		ContentType:     entities.ContentTypeWAV,
		DurationSeconds: 3.5,
	}
}

func TestIngestSuccess(t *testing.T) {
	f := newIngestFixture(t)

	record, err := f.service.Ingest(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	if record.ID == "" {
		t.Error("Expected record ID to be set")
	}
	if record.Transcription != "so I walked into a bar" {
		t.Errorf("Unexpected transcription %q", record.Transcription)
	}
	assertScores(t, record.Emotions.TopEmotions, []entities.EmotionScore{
		{Name: "amusement", Score: 0.9},
		{Name: "joy", Score: 0.5},
	})
	if !strings.HasPrefix(record.AudioPath, "audio/user-1/recording-1700000000000-") || !strings.HasSuffix(record.AudioPath, ".wav") {
		t.Errorf("Unexpected audio path %s", record.AudioPath)
	}
	if _, ok := f.storage.objects[record.AudioPath]; !ok {
		t.Error("Expected audio to be stored at the record path")
	}
	if record.DurationSeconds != 3.5 {
		t.Errorf("Expected duration 3.5, got %v", record.DurationSeconds)
	}
	if f.stt.config.Encoding != "LINEAR16" || f.stt.config.Language != "en-US" {
		t.Errorf("Unexpected audio config %+v", f.stt.config)
	}
	if f.records.count() != 1 {
		t.Errorf("Expected 1 record, got %d", f.records.count())
	}

	want := []entities.IngestStage{
		entities.IngestStageStored,
		entities.IngestStageTranscribed,
		entities.IngestStageEmotionsReady,
		entities.IngestStageCompleted,
	}
	got := f.publisher.stages()
	if len(got) != len(want) {
		t.Fatalf("Expected stages %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Stage %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestIngestStorageFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.storage.writeErr = errBoom

	_, err := f.service.Ingest(context.Background(), sampleRequest())
	if !errors.Is(err, domain.ErrStorageWriteFailed) {
		t.Fatalf("Expected ErrStorageWriteFailed, got %v", err)
	}
	if f.stt.called != 0 {
		t.Error("Expected transcription not to run after storage failure")
	}
	if f.records.count() != 0 {
		t.Error("Expected no record")
	}
}

func TestIngestTranscriptionFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.stt.err = errBoom

	_, err := f.service.Ingest(context.Background(), sampleRequest())
	if !errors.Is(err, domain.ErrTranscriptionFailed) {
		t.Fatalf("Expected ErrTranscriptionFailed, got %v", err)
	}
	if !errors.Is(err, errBoom) {
		t.Error("Expected the cause to be preserved")
	}

	var ingestErr *domain.IngestError
	if !errors.As(err, &ingestErr) || ingestErr.Message == "" {
		t.Error("Expected a structured error with a message")
	}
	if len(f.storage.objects) != 1 {
		t.Error("Expected the audio to have been stored before transcription")
	}
	if f.records.count() != 0 {
		t.Error("Expected no record after transcription failure")
	}
	if f.jobs.submitted != nil {
		t.Error("Expected emotion analysis not to run")
	}
}

func TestIngestEmotionSubmissionFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.jobs.submitErr = errBoom

	record, err := f.service.Ingest(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Expected emotion failure to be non-fatal, got %v", err)
	}
	if record.Transcription != "so I walked into a bar" {
		t.Errorf("Unexpected transcription %q", record.Transcription)
	}
	if !record.Emotions.IsEmpty() || record.Emotions.TopEmotions == nil {
		t.Errorf("Expected empty emotions, got %+v", record.Emotions.TopEmotions)
	}
	if f.records.count() != 1 {
		t.Error("Expected record to be persisted")
	}

	stages := f.publisher.stages()
	if stages[2] != entities.IngestStageEmotionsSkipped {
		t.Errorf("Expected emotions_skipped stage, got %v", stages)
	}
}

func TestIngestEmotionTimeout(t *testing.T) {
	f := newIngestFixture(t)
	f.jobs.responses = nil

	record, err := f.service.Ingest(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Expected timeout to be non-fatal, got %v", err)
	}
	if !record.Emotions.IsEmpty() {
		t.Errorf("Expected empty emotions, got %+v", record.Emotions.TopEmotions)
	}
	if f.jobs.polls != DefaultMaxPollAttempts {
		t.Errorf("Expected %d polls, got %d", DefaultMaxPollAttempts, f.jobs.polls)
	}
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) Analyze(ctx context.Context, audioData []byte, filename string) (entities.ProcessedEmotions, error) {
	panic("unexpected payload")
}

func TestIngestEmotionPanicIsContained(t *testing.T) {
	f := newIngestFixture(t)
	f.service.emotions = panickingAnalyzer{}

	record, err := f.service.Ingest(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !record.Emotions.IsEmpty() {
		t.Error("Expected empty emotions")
	}
}

func TestIngestWithoutEmotionAnalyzer(t *testing.T) {
	f := newIngestFixture(t)
	f.service.emotions = nil

	record, err := f.service.Ingest(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !record.Emotions.IsEmpty() {
		t.Error("Expected empty emotions")
	}
	if f.jobs.submitted != nil {
		t.Error("Expected no emotion job")
	}
}

func TestIngestRecordWriteFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.records.createErr = errBoom

	_, err := f.service.Ingest(context.Background(), sampleRequest())
	if !errors.Is(err, domain.ErrRecordWriteFailed) {
		t.Fatalf("Expected ErrRecordWriteFailed, got %v", err)
	}
}

func TestIngestPublisherFailureIgnored(t *testing.T) {
	f := newIngestFixture(t)
	f.publisher.err = errBoom

	if _, err := f.service.Ingest(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("Expected publish errors to be ignored, got %v", err)
	}
}

func TestIngestInvalidRequest(t *testing.T) {
	f := newIngestFixture(t)

	req := sampleRequest()
	req.OwnerID = " "
	if _, err := f.service.Ingest(context.Background(), req); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for missing owner, got %v", err)
	}

	req = sampleRequest()
	req.Audio = nil
	if _, err := f.service.Ingest(context.Background(), req); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for empty audio, got %v", err)
	}
	if len(f.storage.objects) != 0 {
		t.Error("Expected nothing stored for invalid requests")
	}
}

func TestIngestDefaults(t *testing.T) {
	f := newIngestFixture(t)

	req := sampleRequest()
	req.ContentType = ""
	req.OwnerID = "../evil/user"
	req.Name = "  Open mic night "

	record, err := f.service.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if record.ContentType != entities.ContentTypeWebM {
		t.Errorf("Expected webm default, got %s", record.ContentType)
	}
	if !strings.HasPrefix(record.AudioPath, "audio/__evil_user/") {
		t.Errorf("Expected sanitized owner segment, got %s", record.AudioPath)
	}
	if record.Name != "Open mic night" {
		t.Errorf("Expected custom name, got %q", record.Name)
	}
	if f.stt.config.Filename != "recording.webm" {
		t.Errorf("Expected default filename, got %s", f.stt.config.Filename)
	}
}
