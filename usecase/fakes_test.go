package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

type fakeJobService struct {
	mu          sync.Mutex
	submitErr   error
	jobID       string
	responses   []fakePoll
	polls       int
	submitted   []byte
	predictions string
}

type fakePoll struct {
	status entities.JobStatus
	err    error
}

func (f *fakeJobService) SubmitJob(ctx context.Context, audioData []byte, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = audioData
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.jobID == "" {
		return "job-1", nil
	}
	return f.jobID, nil
}

func (f *fakeJobService) GetJob(ctx context.Context, jobID string) (*entities.EmotionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.polls
	f.polls++
	if idx >= len(f.responses) {
		return &entities.EmotionJob{ID: jobID, Status: entities.JobStatusProcessing}, nil
	}
	poll := f.responses[idx]
	if poll.err != nil {
		return nil, poll.err
	}
	job := &entities.EmotionJob{ID: jobID, Status: poll.status}
	if poll.status == entities.JobStatusCompleted {
		job.Predictions = []byte(f.predictions)
	}
	if poll.status == entities.JobStatusFailed {
		job.Message = "model crashed"
	}
	return job, nil
}

func processingThen(n int, last fakePoll) []fakePoll {
	polls := make([]fakePoll, 0, n+1)
	for i := 0; i < n; i++ {
		polls = append(polls, fakePoll{status: entities.JobStatusProcessing})
	}
	return append(polls, last)
}

type recordedSleeps struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordedSleeps) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sleeps)
}

type fakeStorage struct {
	mu       sync.Mutex
	writeErr error
	objects  map[string][]byte
	types    map[string]string
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStorage) Write(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}
	s.objects[path] = data
	s.types[path] = contentType
	return path, nil
}

func (s *fakeStorage) Read(ctx context.Context, path string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, "", domain.ErrObjectNotFound
	}
	return data, s.types[path], nil
}

func (s *fakeStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return domain.ErrObjectNotFound
	}
	delete(s.objects, path)
	s.deleted = append(s.deleted, path)
	return nil
}

type fakeRepository struct {
	mu        sync.Mutex
	createErr error
	records   map[string]*entities.AnalysisRecord
	seq       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{records: map[string]*entities.AnalysisRecord{}}
}

func (r *fakeRepository) Create(ctx context.Context, record *entities.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	record.ID = fmt.Sprintf("rec-%d", r.seq)
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *fakeRepository) GetByID(ctx context.Context, id string) (*entities.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*entities.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.AnalysisRecord
	for _, record := range r.records {
		if record.OwnerID == ownerID {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepository) Update(ctx context.Context, id string, patch entities.RecordPatch) (*entities.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	patch.Apply(record)
	copied := *record
	return &copied, nil
}

func (r *fakeRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakeRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeSTT struct {
	text   string
	err    error
	called int
	config repositories.AudioConfig
}

func (f *fakeSTT) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	f.called++
	f.config = config
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []entities.IngestEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event entities.IngestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) stages() []entities.IngestStage {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]entities.IngestStage, 0, len(p.events))
	for _, e := range p.events {
		stages = append(stages, e.Stage)
	}
	return stages
}

var errBoom = errors.New("boom")
