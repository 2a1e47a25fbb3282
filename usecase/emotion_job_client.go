package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 10
)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the wall-clock SleepFunc
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EmotionJobClient drives one emotion job from submission to predictions
// with a bounded poll loop
type EmotionJobClient struct {
	service     repositories.EmotionJobService
	interval    time.Duration
	maxAttempts int
	sleep       SleepFunc
	logger      *zap.Logger
}

// EmotionJobOption configures an EmotionJobClient
type EmotionJobOption func(*EmotionJobClient)

// WithPollInterval sets the wait before each status poll
func WithPollInterval(d time.Duration) EmotionJobOption {
	return func(c *EmotionJobClient) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithMaxPollAttempts bounds the number of status polls
func WithMaxPollAttempts(n int) EmotionJobOption {
	return func(c *EmotionJobClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithSleep replaces the wall-clock sleep, mainly for tests
func WithSleep(sleep SleepFunc) EmotionJobOption {
	return func(c *EmotionJobClient) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewEmotionJobClient creates a new emotion job client
func NewEmotionJobClient(service repositories.EmotionJobService, logger *zap.Logger, opts ...EmotionJobOption) *EmotionJobClient {
	c := &EmotionJobClient{
		service:     service,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxPollAttempts,
		sleep:       ContextSleep,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit uploads audio and returns the job ID
func (c *EmotionJobClient) Submit(ctx context.Context, audioData []byte, filename string) (string, error) {
	jobID, err := c.service.SubmitJob(ctx, audioData, filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	if jobID == "" {
		return "", fmt.Errorf("%w: service returned an empty job id", domain.ErrSubmissionFailed)
	}

	c.logger.Info("Emotion job submitted", zap.String("job_id", jobID))
	return jobID, nil
}

// AwaitResult polls the job until it completes, fails, or runs out of
// attempts. Each attempt waits one interval before polling. Poll errors are
// logged and count as an attempt.
func (c *EmotionJobClient) AwaitResult(ctx context.Context, jobID string) (json.RawMessage, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.sleep(ctx, c.interval); err != nil {
			return nil, fmt.Errorf("stopped waiting for emotion job %s: %w", jobID, err)
		}

		job, err := c.service.GetJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("stopped waiting for emotion job %s: %w", jobID, ctx.Err())
			}
			c.logger.Warn("Emotion job poll failed",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		switch job.Status {
		case entities.JobStatusCompleted:
			c.logger.Info("Emotion job completed",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt))
			return job.Predictions, nil
		case entities.JobStatusFailed:
			return nil, fmt.Errorf("%w: job %s: %s", domain.ErrJobFailed, jobID, job.Message)
		default:
			c.logger.Debug("Emotion job still running",
				zap.String("job_id", jobID),
				zap.String("status", string(job.Status)),
				zap.Int("attempt", attempt))
		}
	}

	return nil, fmt.Errorf("%w: job %s after %d attempts", domain.ErrJobTimedOut, jobID, c.maxAttempts)
}

// Analyze submits audio, waits for predictions and aggregates them. The
// returned error is always one of the non-fatal emotion errors.
func (c *EmotionJobClient) Analyze(ctx context.Context, audioData []byte, filename string) (entities.ProcessedEmotions, error) {
	jobID, err := c.Submit(ctx, audioData, filename)
	if err != nil {
		return entities.EmptyEmotions(time.Now()), err
	}

	predictions, err := c.AwaitResult(ctx, jobID)
	if err != nil {
		return entities.EmptyEmotions(time.Now()), err
	}

	return aggregateEmotions(predictions, time.Now())
}
