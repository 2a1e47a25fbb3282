package entities

import (
	"errors"
	"time"
)

const (
	// ContentTypeWAV is the container produced by the recorder
	ContentTypeWAV = "audio/wav"
	// ContentTypeWebM is the container produced by browser MediaRecorder uploads
	ContentTypeWebM = "audio/webm"
)

// AudioRecording is one finished microphone capture. It is immutable once created.
type AudioRecording struct {
	OwnerID         string    `json:"owner_id"`
	CapturedAt      time.Time `json:"captured_at"`
	Data            []byte    `json:"-"`
	ContentType     string    `json:"content_type"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// NewAudioRecording copies data so later writes to the capture buffer cannot
// leak into the recording
func NewAudioRecording(ownerID string, capturedAt time.Time, data []byte, contentType string, duration float64) *AudioRecording {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &AudioRecording{
		OwnerID:         ownerID,
		CapturedAt:      capturedAt,
		Data:            buf,
		ContentType:     contentType,
		DurationSeconds: duration,
	}
}

// Extension returns the file extension matching the container
func (r *AudioRecording) Extension() string {
	return ExtensionFor(r.ContentType)
}

// ExtensionFor maps an audio content type to a file extension
func ExtensionFor(contentType string) string {
	switch contentType {
	case ContentTypeWAV, "audio/x-wav", "audio/wave":
		return ".wav"
	case ContentTypeWebM, "video/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/flac":
		return ".flac"
	default:
		return ".bin"
	}
}

// Validate validates the recording before upload
func (r *AudioRecording) Validate() error {
	if len(r.Data) == 0 {
		return errors.New("recording has no audio data")
	}
	if r.ContentType == "" {
		return errors.New("content type is required")
	}
	return nil
}
