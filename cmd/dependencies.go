package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/adapters"
	"github.com/satriahrh/tawa/adapters/emotion"
	"github.com/satriahrh/tawa/adapters/events"
	"github.com/satriahrh/tawa/adapters/mongo"
	"github.com/satriahrh/tawa/adapters/storage"
	"github.com/satriahrh/tawa/adapters/stt"
	"github.com/satriahrh/tawa/domain/repositories"
	"github.com/satriahrh/tawa/internal/api"
	"github.com/satriahrh/tawa/internal/auth"
	"github.com/satriahrh/tawa/internal/config"
	"github.com/satriahrh/tawa/internal/websocket"
	"github.com/satriahrh/tawa/usecase"
)

// dependencies holds every adapter the server runs with
type dependencies struct {
	Storage  repositories.ObjectStorage
	Records  repositories.AnalysisRepository
	STT      repositories.SpeechToText
	Emotions usecase.EmotionAnalyzer
	Signer   *auth.Signer

	mqtt       *events.MQTTPublisher
	clickhouse *events.ClickHouseLog
	closers    []func()
	logger     *zap.Logger
}

func buildDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	d := &dependencies{logger: logger}

	if err := d.initStorage(ctx, cfg); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.initSTT(ctx, cfg); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.initEmotions(cfg); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.initEvents(ctx, cfg); err != nil {
		d.Close()
		return nil, err
	}

	if cfg.Server.JWTSecret != "" {
		signer, err := auth.NewSigner(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Signer = signer
	} else {
		logger.Warn("JWT_SECRET not set, only userId identity and no progress stream")
	}

	return d, nil
}

func (d *dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Backend == config.StorageMemory {
		d.Storage = adapters.NewMemoryObjectStorage()
		d.Records = adapters.NewMemoryAnalysisRepository()
		d.logger.Warn("Using in-memory storage, recordings are lost on restart")
		return nil
	}

	client, err := mongo.NewClient(ctx, cfg.Mongo.URI, cfg.Mongo.Database, d.logger)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func() { client.Close(context.Background()) })
	d.Records = mongo.NewAnalysisRepository(client.Database, d.logger)

	switch cfg.Storage.Backend {
	case config.StorageFilesystem:
		fs, err := storage.NewFilesystemStorage(cfg.Storage.RootDir, d.logger)
		if err != nil {
			return err
		}
		d.Storage = fs
	default:
		bucket, err := mongo.NewGridFSStorage(client.Database, cfg.Storage.Bucket, d.logger)
		if err != nil {
			return err
		}
		d.Storage = bucket
	}
	return nil
}

func (d *dependencies) initSTT(ctx context.Context, cfg *config.Config) error {
	switch cfg.STT.Provider {
	case config.STTGoogle:
		google, err := stt.NewGoogleSpeechToText(ctx, d.logger)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, func() { google.Close() })
		d.STT = google
	case config.STTGemini:
		gemini, err := stt.NewGeminiSpeechToText(ctx, stt.GeminiConfig{
			APIKey:  cfg.STT.GeminiKey,
			Model:   cfg.STT.GeminiModel,
			Timeout: cfg.STT.Timeout,
		}, d.logger)
		if err != nil {
			return err
		}
		d.STT = gemini
	case config.STTMock:
		d.STT = stt.NewMockSpeechToText(d.logger)
	default:
		whisper, err := stt.NewWhisperSpeechToText(stt.WhisperConfig{
			APIKey:  cfg.STT.OpenAIKey,
			BaseURL: cfg.STT.OpenAIBaseURL,
			Model:   cfg.STT.OpenAIModel,
			Timeout: cfg.STT.Timeout,
		}, d.logger)
		if err != nil {
			return err
		}
		d.STT = whisper
	}
	return nil
}

func (d *dependencies) initEmotions(cfg *config.Config) error {
	var service repositories.EmotionJobService
	switch cfg.Emotion.Provider {
	case config.EmotionNone:
		d.logger.Warn("Emotion analysis disabled")
		return nil
	case config.EmotionMock:
		service = emotion.NewMockJobService(2, d.logger)
	default:
		if cfg.Emotion.HumeKey == "" {
			d.logger.Warn("HUME_AI_API_KEY not set, recordings will be stored with empty emotions")
			return nil
		}
		hume, err := emotion.NewHumeJobService(emotion.HumeConfig{
			APIKey:  cfg.Emotion.HumeKey,
			BaseURL: cfg.Emotion.HumeBaseURL,
			Timeout: cfg.Emotion.Timeout,
		}, d.logger)
		if err != nil {
			return err
		}
		service = hume
	}

	d.Emotions = usecase.NewEmotionJobClient(service, d.logger,
		usecase.WithPollInterval(cfg.Emotion.PollInterval),
		usecase.WithMaxPollAttempts(cfg.Emotion.MaxAttempts),
	)
	return nil
}

func (d *dependencies) initEvents(ctx context.Context, cfg *config.Config) error {
	if cfg.Events.MQTTBroker != "" {
		publisher, err := events.ConnectMQTT(events.MQTTConfig{
			Broker:   cfg.Events.MQTTBroker,
			ClientID: cfg.Events.MQTTClientID,
			Username: cfg.Events.MQTTUsername,
			Password: cfg.Events.MQTTPassword,
			Topic:    cfg.Events.MQTTTopic,
		}, d.logger)
		if err != nil {
			return fmt.Errorf("failed to connect event broker: %w", err)
		}
		d.mqtt = publisher
		d.closers = append(d.closers, publisher.Close)
	}

	if cfg.Events.ClickHouseAddr != "" {
		log, err := events.NewClickHouseLog(ctx, events.ClickHouseConfig{
			Addr:     cfg.Events.ClickHouseAddr,
			Database: cfg.Events.ClickHouseDB,
			Username: cfg.Events.ClickHouseUser,
			Password: cfg.Events.ClickHousePass,
		}, d.logger)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		d.clickhouse = log
		d.closers = append(d.closers, func() { log.Close() })
	}
	return nil
}

// Publisher fans ingest events out to the hub and every configured sink
func (d *dependencies) Publisher(hub *websocket.Hub) repositories.IngestEventPublisher {
	sinks := events.Multi{hub}
	if d.mqtt != nil {
		sinks = append(sinks, d.mqtt)
	}
	if d.clickhouse != nil {
		sinks = append(sinks, d.clickhouse)
	}
	return sinks
}

// Stats returns the event log when ClickHouse is configured
func (d *dependencies) Stats() api.StageCounter {
	if d.clickhouse == nil {
		return nil
	}
	return d.clickhouse
}

// Status reports providers without their secrets
func (d *dependencies) Status(cfg *config.Config) api.StatusResponse {
	sttConfigured := true
	switch cfg.STT.Provider {
	case config.STTWhisper:
		sttConfigured = cfg.STT.OpenAIKey != ""
	case config.STTGemini:
		sttConfigured = cfg.STT.GeminiKey != ""
	}

	return api.StatusResponse{
		Transcription: api.ProviderStatus{Provider: cfg.STT.Provider, Configured: sttConfigured},
		Emotion:       api.ProviderStatus{Provider: cfg.Emotion.Provider, Configured: d.Emotions != nil},
		Storage:       api.ProviderStatus{Provider: cfg.Storage.Backend, Configured: d.Storage != nil},
		Events:        cfg.EventSinks(),
	}
}

// Close releases adapters in reverse order of creation
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
