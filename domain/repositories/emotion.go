package repositories

import (
	"context"

	"github.com/satriahrh/tawa/domain/entities"
)

// EmotionJobService is a remote batch service that scores emotions in speech.
// Jobs are asynchronous: submit returns an ID that is polled for status.
type EmotionJobService interface {
	SubmitJob(ctx context.Context, audioData []byte, filename string) (string, error)
	// GetJob returns the job state. Predictions are populated once the job completes.
	GetJob(ctx context.Context, jobID string) (*entities.EmotionJob, error)
}
