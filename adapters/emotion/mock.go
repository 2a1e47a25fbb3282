package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

// mockPredictions mirrors the segment shape produced by the Hume adapter
const mockPredictions = `[{"results":[
	{"emotions":[{"name":"Amusement","score":0.62},{"name":"Interest","score":0.41},{"name":"Calmness","score":0.18}]},
	{"emotions":[{"name":"Amusement","score":0.55},{"name":"Excitement","score":0.37},{"name":"Interest","score":0.22}]}
]}]`

// MockJobService is an in-process EmotionJobService that completes every job
// after a fixed number of polls
type MockJobService struct {
	mu            sync.Mutex
	pollsToFinish int
	jobs          map[string]int
	logger        *zap.Logger
}

var _ repositories.EmotionJobService = (*MockJobService)(nil)

// NewMockJobService creates a new mock emotion job service
func NewMockJobService(pollsToFinish int, logger *zap.Logger) *MockJobService {
	if pollsToFinish < 1 {
		pollsToFinish = 1
	}
	return &MockJobService{
		pollsToFinish: pollsToFinish,
		jobs:          make(map[string]int),
		logger:        logger,
	}
}

// SubmitJob implements repositories.EmotionJobService
func (m *MockJobService) SubmitJob(ctx context.Context, audioData []byte, filename string) (string, error) {
	if len(audioData) == 0 {
		return "", errors.New("audio data cannot be empty")
	}
	id := uuid.NewString()

	m.mu.Lock()
	m.jobs[id] = 0
	m.mu.Unlock()

	m.logger.Info("Mock emotion job created", zap.String("job_id", id), zap.String("filename", filename))
	return id, nil
}

// GetJob implements repositories.EmotionJobService
func (m *MockJobService) GetJob(ctx context.Context, jobID string) (*entities.EmotionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	polls, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	polls++
	m.jobs[jobID] = polls

	if polls < m.pollsToFinish {
		return &entities.EmotionJob{ID: jobID, Status: entities.JobStatusProcessing}, nil
	}
	delete(m.jobs, jobID)
	return &entities.EmotionJob{
		ID:          jobID,
		Status:      entities.JobStatusCompleted,
		Predictions: json.RawMessage(mockPredictions),
	}, nil
}
