package entities

import (
	"errors"
	"strings"
	"time"
)

// AnalysisRecord is the persisted result of one ingested recording
type AnalysisRecord struct {
	ID              string            `json:"id" bson:"-"`
	OwnerID         string            `json:"userId" bson:"owner_id"`
	Transcription   string            `json:"transcription" bson:"transcription"`
	Emotions        ProcessedEmotions `json:"emotions" bson:"emotions"`
	AudioPath       string            `json:"audioPath" bson:"audio_path"`
	ContentType     string            `json:"contentType" bson:"content_type"`
	Name            string            `json:"name" bson:"name"`
	DurationSeconds float64           `json:"duration" bson:"duration_seconds"`
	CreatedAt       time.Time         `json:"createdAt" bson:"created_at"`
}

// RecordPatch holds the fields a caller may overwrite after ingest
type RecordPatch struct {
	Name            *string  `json:"name,omitempty"`
	DurationSeconds *float64 `json:"duration,omitempty"`
}

// NewAnalysisRecord creates a record stamped with the current time
func NewAnalysisRecord(ownerID, transcription, audioPath, contentType string, emotions ProcessedEmotions) *AnalysisRecord {
	now := time.Now()
	return &AnalysisRecord{
		OwnerID:       ownerID,
		Transcription: transcription,
		Emotions:      emotions,
		AudioPath:     audioPath,
		ContentType:   contentType,
		Name:          DefaultRecordName(now),
		CreatedAt:     now,
	}
}

// DefaultRecordName names a recording after its creation time
func DefaultRecordName(t time.Time) string {
	return "Recording " + t.Format("2006-01-02 15:04")
}

// Validate validates the record before it is written
func (r *AnalysisRecord) Validate() error {
	if r.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if r.AudioPath == "" {
		return errors.New("audio_path is required")
	}
	if r.Emotions.TopEmotions == nil {
		return errors.New("emotions must be set, use EmptyEmotions for no result")
	}
	return nil
}

// Validate rejects patches that would change nothing or carry bad values
func (p RecordPatch) Validate() error {
	if p.Name == nil && p.DurationSeconds == nil {
		return errors.New("patch has no fields")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if p.DurationSeconds != nil && *p.DurationSeconds < 0 {
		return errors.New("duration cannot be negative")
	}
	return nil
}

// Apply overwrites the patched fields on the record
func (p RecordPatch) Apply(r *AnalysisRecord) {
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.DurationSeconds != nil {
		r.DurationSeconds = *p.DurationSeconds
	}
}
