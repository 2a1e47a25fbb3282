package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/adapters/httpclient"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

const (
	defaultHumeBaseURL = "https://api.hume.ai/v0/batch/jobs"
	defaultHumeTimeout = 60 * time.Second
	humeAPIKeyHeader   = "X-Hume-Api-Key"
)

// HumeConfig holds configuration for the Hume batch adapter
// Required fields:
// - APIKey: Hume API key
// Optional fields with defaults:
// - BaseURL: batch jobs endpoint (default: "https://api.hume.ai/v0/batch/jobs")
// - Timeout: per request timeout (default: 60s)
type HumeConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// HumeJobService implements EmotionJobService against the Hume batch API
type HumeJobService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.EmotionJobService = (*HumeJobService)(nil)

type humeJobResponse struct {
	JobID string `json:"job_id"`
}

type humeJobDetails struct {
	Status string `json:"status"`
	State  struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"state"`
}

// ValidateHumeConfig validates the HumeConfig
func ValidateHumeConfig(config HumeConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("hume API key is required")
	}
	if config.BaseURL != "" {
		if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
			return fmt.Errorf("invalid hume base URL: %w", err)
		}
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewHumeJobService creates a new Hume batch client
func NewHumeJobService(config HumeConfig, logger *zap.Logger) (*HumeJobService, error) {
	if err := ValidateHumeConfig(config); err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultHumeBaseURL
		logger.Info("Using default Hume base URL", zap.String("baseURL", baseURL))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultHumeTimeout
	}

	return &HumeJobService{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.New(timeout),
		logger:  logger,
	}, nil
}

// SubmitJob uploads audio with the speech prosody model selected
func (h *HumeJobService) SubmitJob(ctx context.Context, audioData []byte, filename string) (string, error) {
	if len(audioData) == 0 {
		return "", errors.New("audio data cannot be empty")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := w.WriteField("json", `{"models":{"prosody":{}}}`); err != nil {
		return "", fmt.Errorf("write models field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(humeAPIKeyHeader, h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit hume job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", httpclient.StatusError("hume submit", resp)
	}

	var out humeJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("hume submit decode: %w", err)
	}
	if out.JobID == "" {
		return "", errors.New("hume returned no job_id")
	}

	h.logger.Info("Hume job created", zap.String("job_id", out.JobID), zap.Int("audio_bytes", len(audioData)))
	return out.JobID, nil
}

// GetJob reads the job state and, once completed, its predictions
func (h *HumeJobService) GetJob(ctx context.Context, jobID string) (*entities.EmotionJob, error) {
	var details humeJobDetails
	if err := h.getJSON(ctx, h.baseURL+"/"+url.PathEscape(jobID), &details); err != nil {
		return nil, err
	}

	status := details.State.Status
	if status == "" {
		status = details.Status
	}
	job := &entities.EmotionJob{
		ID:      jobID,
		Status:  mapHumeStatus(status),
		Message: details.State.Message,
	}
	if job.Status != entities.JobStatusCompleted {
		return job, nil
	}

	var predictions json.RawMessage
	if err := h.getJSON(ctx, h.baseURL+"/"+url.PathEscape(jobID)+"/predictions", &predictions); err != nil {
		return nil, err
	}
	job.Predictions = normalizePredictions(predictions)
	return job, nil
}

func (h *HumeJobService) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(humeAPIKeyHeader, h.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("hume request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpclient.StatusError("hume", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("hume decode: %w", err)
	}
	return nil
}

func mapHumeStatus(status string) entities.JobStatus {
	switch strings.ToUpper(status) {
	case "QUEUED":
		return entities.JobStatusQueued
	case "COMPLETED":
		return entities.JobStatusCompleted
	case "FAILED":
		return entities.JobStatusFailed
	default:
		return entities.JobStatusProcessing
	}
}

// humeSource is one file's predictions as returned by the predictions endpoint
type humeSource struct {
	Results *struct {
		Predictions []struct {
			Models map[string]struct {
				GroupedPredictions []struct {
					Predictions []struct {
						Emotions json.RawMessage `json:"emotions"`
					} `json:"predictions"`
				} `json:"grouped_predictions"`
			} `json:"models"`
		} `json:"predictions"`
	} `json:"results"`
}

type segmentSet struct {
	Results []segment `json:"results"`
}

type segment struct {
	Emotions json.RawMessage `json:"emotions"`
}

// normalizePredictions flattens Hume's per-model grouped predictions into
// result sets of segments. Payloads that already are result sets of segments,
// or that do not match either shape, are returned unchanged.
func normalizePredictions(raw json.RawMessage) json.RawMessage {
	var sources []humeSource
	if err := json.Unmarshal(raw, &sources); err != nil {
		return raw
	}

	var sets []segmentSet
	for _, source := range sources {
		if source.Results == nil {
			return raw
		}
		set := segmentSet{Results: []segment{}}
		for _, prediction := range source.Results.Predictions {
			for _, model := range prediction.Models {
				for _, group := range model.GroupedPredictions {
					for _, p := range group.Predictions {
						set.Results = append(set.Results, segment{Emotions: p.Emotions})
					}
				}
			}
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return raw
	}

	flattened, err := json.Marshal(sets)
	if err != nil {
		return raw
	}
	return flattened
}
