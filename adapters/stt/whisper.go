package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/adapters/httpclient"
	"github.com/satriahrh/tawa/domain/repositories"
)

const (
	defaultWhisperBaseURL = "https://api.openai.com/v1"
	defaultWhisperModel   = "whisper-1"
	defaultWhisperTimeout = 2 * time.Minute
)

// WhisperConfig holds configuration for the OpenAI transcription adapter
// Required fields:
// - APIKey: OpenAI API key
// Optional fields with defaults:
// - BaseURL: API base URL, any OpenAI compatible server (default: "https://api.openai.com/v1")
// - Model: transcription model (default: "whisper-1")
// - Timeout: request timeout (default: 2m)
type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// WhisperSpeechToText implements SpeechToText with the OpenAI audio transcription endpoint
type WhisperSpeechToText struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSpeechToText)(nil)

// NewWhisperSpeechToText creates a new Whisper transcription client
func NewWhisperSpeechToText(config WhisperConfig, logger *zap.Logger) (*WhisperSpeechToText, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperBaseURL
		logger.Info("Using default OpenAI base URL", zap.String("baseURL", baseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultWhisperModel
		logger.Info("Using default transcription model", zap.String("model", model))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultWhisperTimeout
	}

	return &WhisperSpeechToText{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  httpclient.New(timeout),
		logger:  logger,
	}, nil
}

// TranscribeAudio uploads the whole recording and returns the plain text transcript
func (w *WhisperSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", errors.New("no audio data received")
	}

	filename := config.Filename
	if filename == "" {
		filename = "recording.webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	fields := map[string]string{
		"model":           w.model,
		"response_format": "text",
	}
	if lang := isoLanguage(config.Language); lang != "" {
		fields["language"] = lang
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", httpclient.StatusError("whisper", resp)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read transcription: %w", err)
	}

	transcript := strings.TrimSpace(string(text))
	w.logger.Info("Whisper transcription finished",
		zap.Int("audioSize", len(audioData)),
		zap.Int("chars", len(transcript)),
		zap.Duration("took", time.Since(start)))
	return transcript, nil
}

// isoLanguage reduces a BCP-47 tag such as "en-US" to its ISO-639-1 part
func isoLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
