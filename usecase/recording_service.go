package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// RecordingService manages an owner's ingested recordings after the fact
type RecordingService struct {
	records repositories.AnalysisRepository
	storage repositories.ObjectStorage
	logger  *zap.Logger
}

// NewRecordingService creates a new recording service
func NewRecordingService(records repositories.AnalysisRepository, storage repositories.ObjectStorage, logger *zap.Logger) *RecordingService {
	return &RecordingService{
		records: records,
		storage: storage,
		logger:  logger,
	}
}

// List returns the owner's records, newest first
func (s *RecordingService) List(ctx context.Context, ownerID string, limit int) ([]*entities.AnalysisRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	records, err := s.records.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if records == nil {
		records = []*entities.AnalysisRecord{}
	}
	return records, nil
}

// Get returns one record. Records of other owners are reported as not found.
func (s *RecordingService) Get(ctx context.Context, ownerID, id string) (*entities.AnalysisRecord, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != ownerID {
		return nil, domain.ErrRecordNotFound
	}
	return record, nil
}

// Update overwrites the name or duration of a record
func (s *RecordingService) Update(ctx context.Context, ownerID, id string, patch entities.RecordPatch) (*entities.AnalysisRecord, error) {
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	record, err := s.records.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	s.logger.Info("Record updated", zap.String("record_id", id), zap.String("owner_id", ownerID))
	return record, nil
}

// Delete removes a record and then its audio. A failed audio delete is logged
// and leaves an orphaned object behind.
func (s *RecordingService) Delete(ctx context.Context, ownerID, id string) error {
	record, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.records.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if err := s.storage.Delete(ctx, record.AudioPath); err != nil && !errors.Is(err, domain.ErrObjectNotFound) {
		s.logger.Warn("Failed to delete audio object",
			zap.String("record_id", id),
			zap.String("path", record.AudioPath),
			zap.Error(err))
	}

	s.logger.Info("Record deleted", zap.String("record_id", id), zap.String("owner_id", ownerID))
	return nil
}

// Audio returns the stored audio of a record and its content type
func (s *RecordingService) Audio(ctx context.Context, ownerID, id string) ([]byte, string, error) {
	record, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}

	data, contentType, err := s.storage.Read(ctx, record.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio: %w", err)
	}
	if contentType == "" {
		contentType = record.ContentType
	}
	return data, contentType, nil
}
