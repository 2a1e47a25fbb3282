package entities

import (
	"encoding/json"
	"time"
)

// MaxTopEmotions is the number of ranked emotions kept per analysis
const MaxTopEmotions = 3

// EmotionScore is one named emotion with its normalized score
type EmotionScore struct {
	Name  string  `json:"name" bson:"name"`
	Score float64 `json:"score" bson:"score"`
}

// ProcessedEmotions is the ranked emotion summary of one recording
type ProcessedEmotions struct {
	TopEmotions []EmotionScore `json:"topEmotions" bson:"top_emotions"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
}

// EmptyEmotions returns the degraded summary used whenever emotion analysis
// could not produce a result
func EmptyEmotions(now time.Time) ProcessedEmotions {
	return ProcessedEmotions{
		TopEmotions: []EmotionScore{},
		Timestamp:   now,
	}
}

// IsEmpty reports whether no emotion made it into the summary
func (p ProcessedEmotions) IsEmpty() bool {
	return len(p.TopEmotions) == 0
}

// JobStatus is the lifecycle state of an emotion analysis job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job will not change state anymore
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// EmotionJob is a snapshot of a job owned by the emotion inference service.
// Predictions is only set when Status is JobStatusCompleted.
type EmotionJob struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Message     string          `json:"message,omitempty"`
	Predictions json.RawMessage `json:"predictions,omitempty"`
}
