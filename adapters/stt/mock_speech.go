package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain/repositories"
)

// MockSpeechToText returns canned transcripts sized to the audio, for local runs
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.String("contentType", config.ContentType),
		zap.String("encoding", config.Encoding))

	switch {
	case len(audioData) == 0:
		return "", fmt.Errorf("no audio data received")
	case len(audioData) > 100000:
		return "So my therapist told me to keep a journal. Now I have a journal and a therapist who reads it.", nil
	case len(audioData) > 10000:
		return "I tried to write a joke about time travel, but you didn't like it.", nil
	default:
		return "Testing, testing.", nil
	}
}
