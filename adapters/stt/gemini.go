package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/tawa/domain/repositories"
)

const (
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiTimeout = 60 * time.Second
	transcribePrompt     = "Transcribe this audio recording verbatim. Reply with the transcript only, no commentary. Reply with an empty message if nobody speaks."
)

// GeminiConfig holds configuration for the Gemini transcription adapter
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiSpeechToText transcribes audio by sending it inline to a Gemini model
type GeminiSpeechToText struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ repositories.SpeechToText = (*GeminiSpeechToText)(nil)

// NewGeminiSpeechToText creates a new Gemini transcription client
func NewGeminiSpeechToText(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiSpeechToText, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultGeminiTimeout
	}

	return &GeminiSpeechToText{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// TranscribeAudio implements repositories.SpeechToText
func (g *GeminiSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	mimeType := config.ContentType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	prompt := transcribePrompt
	if config.Language != "" {
		prompt += " The speaker's language is " + config.Language + "."
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(audioData, mimeType),
		}, genai.RoleUser),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate transcript: %w", err)
	}
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("no transcript generated")
	}

	var transcript strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			transcript.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(transcript.String())
	g.logger.Info("Gemini transcription finished",
		zap.Int("audioSize", len(audioData)),
		zap.Int("chars", len(text)))
	return text, nil
}
