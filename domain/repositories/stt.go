package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeAudio converts a whole recording to text
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (string, error)
}

// AudioConfig describes the audio handed to a speech recognizer
type AudioConfig struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SampleRate  int    `json:"sample_rate"`
	Encoding    string `json:"encoding"`
	Language    string `json:"language"`
}
