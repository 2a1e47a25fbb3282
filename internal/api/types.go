package api

import (
	"time"

	"github.com/satriahrh/tawa/domain/entities"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// IngestResponse is returned after an upload has been analysed
type IngestResponse struct {
	Success       bool                       `json:"success"`
	RecordID      string                     `json:"recordId"`
	Transcription string                     `json:"transcription"`
	Emotions      entities.ProcessedEmotions `json:"emotions"`
	Record        *entities.AnalysisRecord   `json:"record"`
}

// ListResponse wraps an owner's recordings, newest first
type ListResponse struct {
	Recordings []*entities.AnalysisRecord `json:"recordings"`
	Count      int                        `json:"count"`
}

// ProviderStatus describes one configured backend without exposing secrets
type ProviderStatus struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
}

// StatusResponse reports which providers the server runs with
type StatusResponse struct {
	Success       bool           `json:"success"`
	Transcription ProviderStatus `json:"transcription"`
	Emotion       ProviderStatus `json:"emotion"`
	Storage       ProviderStatus `json:"storage"`
	Events        []string       `json:"events"`
	CheckedAt     time.Time      `json:"checkedAt"`
}

// StatsResponse counts ingest events per stage
type StatsResponse struct {
	Since  time.Time         `json:"since"`
	Stages map[string]uint64 `json:"stages"`
}
