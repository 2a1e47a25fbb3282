package entities

import "time"

// IngestStage names a step reached by the ingest pipeline
type IngestStage string

const (
	IngestStageStored          IngestStage = "stored"
	IngestStageTranscribed     IngestStage = "transcribed"
	IngestStageEmotionsReady   IngestStage = "emotions_ready"
	IngestStageEmotionsSkipped IngestStage = "emotions_skipped"
	IngestStageCompleted       IngestStage = "completed"
	IngestStageFailed          IngestStage = "failed"
)

// IngestEvent is a progress notification for one ingest run
type IngestEvent struct {
	OwnerID   string      `json:"owner_id"`
	RecordID  string      `json:"record_id,omitempty"`
	AudioPath string      `json:"audio_path,omitempty"`
	Stage     IngestStage `json:"stage"`
	Detail    string      `json:"detail,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
