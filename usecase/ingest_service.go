package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

// EmotionAnalyzer produces ranked emotions for a recording. Errors are
// treated as non-fatal by the ingest pipeline.
type EmotionAnalyzer interface {
	Analyze(ctx context.Context, audioData []byte, filename string) (entities.ProcessedEmotions, error)
}

var _ EmotionAnalyzer = (*EmotionJobClient)(nil)

// IngestRequest is one uploaded recording
type IngestRequest struct {
	OwnerID         string
	Audio           []byte
	Filename        string
	ContentType     string
	DurationSeconds float64
	Name            string
	Language        string
}

// IngestService runs the store, transcribe, analyze, persist pipeline
type IngestService struct {
	storage   repositories.ObjectStorage
	stt       repositories.SpeechToText
	emotions  EmotionAnalyzer
	records   repositories.AnalysisRepository
	publisher repositories.IngestEventPublisher
	language  string
	now       func() time.Time
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service. emotions and publisher may be
// nil, in which case emotion analysis is skipped and no events are published.
func NewIngestService(
	storage repositories.ObjectStorage,
	stt repositories.SpeechToText,
	emotions EmotionAnalyzer,
	records repositories.AnalysisRepository,
	publisher repositories.IngestEventPublisher,
	language string,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		storage:   storage,
		stt:       stt,
		emotions:  emotions,
		records:   records,
		publisher: publisher,
		language:  language,
		now:       time.Now,
		logger:    logger,
	}
}

// emotionOutcome is the result of the best-effort emotion branch
type emotionOutcome struct {
	emotions entities.ProcessedEmotions
	skipped  bool
	err      error
}

// Ingest stores the audio, transcribes it, runs emotion analysis and persists
// one analysis record. Storage, transcription and record failures are
// returned as *domain.IngestError. Emotion failures only degrade the record.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*entities.AnalysisRecord, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrInvalidRequest)
	}
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("%w: audio is empty", domain.ErrInvalidRequest)
	}
	if req.ContentType == "" {
		req.ContentType = entities.ContentTypeWebM
	}

	logger := s.logger.With(zap.String("owner_id", req.OwnerID))
	path := s.objectPath(req.OwnerID, req.ContentType)

	storedPath, err := s.storage.Write(ctx, path, req.Audio, req.ContentType)
	if err != nil {
		logger.Error("Failed to store audio", zap.String("path", path), zap.Error(err))
		s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, Stage: entities.IngestStageFailed, Detail: domain.ErrStorageWriteFailed.Error()})
		return nil, domain.NewIngestError(domain.ErrStorageWriteFailed, "could not store the recording", err)
	}
	logger.Info("Audio stored", zap.String("path", storedPath), zap.Int("bytes", len(req.Audio)))
	s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, AudioPath: storedPath, Stage: entities.IngestStageStored})

	language := req.Language
	if language == "" {
		language = s.language
	}
	transcription, err := s.stt.TranscribeAudio(ctx, req.Audio, repositories.AudioConfig{
		Filename:    filenameOrDefault(req.Filename, req.ContentType),
		ContentType: req.ContentType,
		Encoding:    encodingFor(req.ContentType),
		Language:    language,
	})
	if err != nil {
		// the stored object is left without a record
		logger.Error("Transcription failed", zap.String("path", storedPath), zap.Error(err))
		s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, AudioPath: storedPath, Stage: entities.IngestStageFailed, Detail: domain.ErrTranscriptionFailed.Error()})
		return nil, domain.NewIngestError(domain.ErrTranscriptionFailed, "could not transcribe the recording", err)
	}
	logger.Info("Audio transcribed", zap.Int("chars", len(transcription)))
	s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, AudioPath: storedPath, Stage: entities.IngestStageTranscribed})

	outcome := s.analyzeEmotions(ctx, req)
	switch {
	case outcome.skipped:
		logger.Info("Emotion analysis not configured, skipping")
		s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, AudioPath: storedPath, Stage: entities.IngestStageEmotionsSkipped})
	case outcome.err != nil:
		logger.Warn("Emotion analysis failed, storing empty emotions", zap.Error(outcome.err))
		s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, AudioPath: storedPath, Stage: entities.IngestStageEmotionsSkipped, Detail: outcome.err.Error()})
	default:
		logger.Info("Emotion analysis completed", zap.Int("top_emotions", len(outcome.emotions.TopEmotions)))
		s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, AudioPath: storedPath, Stage: entities.IngestStageEmotionsReady})
	}

	record := entities.NewAnalysisRecord(req.OwnerID, transcription, storedPath, req.ContentType, outcome.emotions)
	record.DurationSeconds = req.DurationSeconds
	if name := strings.TrimSpace(req.Name); name != "" {
		record.Name = name
	}
	if err := record.Validate(); err != nil {
		return nil, domain.NewIngestError(domain.ErrRecordWriteFailed, "analysis record is invalid", err)
	}

	if err := s.records.Create(ctx, record); err != nil {
		logger.Error("Failed to save analysis record", zap.String("path", storedPath), zap.Error(err))
		s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, AudioPath: storedPath, Stage: entities.IngestStageFailed, Detail: domain.ErrRecordWriteFailed.Error()})
		return nil, domain.NewIngestError(domain.ErrRecordWriteFailed, "could not save the analysis", err)
	}

	logger.Info("Recording ingested", zap.String("record_id", record.ID))
	s.publish(ctx, entities.IngestEvent{OwnerID: req.OwnerID, RecordID: record.ID, AudioPath: storedPath, Stage: entities.IngestStageCompleted})
	return record, nil
}

func (s *IngestService) analyzeEmotions(ctx context.Context, req IngestRequest) (outcome emotionOutcome) {
	if s.emotions == nil {
		return emotionOutcome{emotions: entities.EmptyEmotions(s.now()), skipped: true}
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = emotionOutcome{
				emotions: entities.EmptyEmotions(s.now()),
				err:      fmt.Errorf("emotion analysis panicked: %v", r),
			}
		}
	}()

	emotions, err := s.emotions.Analyze(ctx, req.Audio, filenameOrDefault(req.Filename, req.ContentType))
	if err != nil || emotions.TopEmotions == nil {
		return emotionOutcome{emotions: entities.EmptyEmotions(s.now()), err: err}
	}
	return emotionOutcome{emotions: emotions}
}

func (s *IngestService) publish(ctx context.Context, event entities.IngestEvent) {
	if s.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish ingest event",
			zap.String("stage", string(event.Stage)),
			zap.Error(err))
	}
}

// objectPath builds a unique storage path from the owner and capture time
func (s *IngestService) objectPath(ownerID, contentType string) string {
	return fmt.Sprintf("audio/%s/recording-%d-%s%s",
		sanitizeSegment(ownerID),
		s.now().UnixMilli(),
		uuid.NewString()[:8],
		entities.ExtensionFor(contentType))
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "_")
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, s)
}

func filenameOrDefault(filename, contentType string) string {
	if filename != "" {
		return filename
	}
	return "recording" + entities.ExtensionFor(contentType)
}

// encodingFor maps a container to the encoding names used by speech recognizers
func encodingFor(contentType string) string {
	switch contentType {
	case entities.ContentTypeWAV, "audio/x-wav", "audio/wave":
		return "LINEAR16"
	case entities.ContentTypeWebM, "video/webm":
		return "WEBM_OPUS"
	case "audio/ogg":
		return "OGG_OPUS"
	case "audio/flac":
		return "FLAC"
	case "audio/mpeg":
		return "MP3"
	default:
		return ""
	}
}
