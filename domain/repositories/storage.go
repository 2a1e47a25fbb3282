package repositories

import (
	"context"

	"github.com/satriahrh/tawa/domain/entities"
)

// ObjectStorage stores raw audio by path
type ObjectStorage interface {
	// Write stores data at path. The path is returned unchanged on success.
	Write(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// Read returns the stored bytes and their content type
	Read(ctx context.Context, path string) ([]byte, string, error)
	Delete(ctx context.Context, path string) error
}

// AnalysisRepository defines data access methods for analysis records
type AnalysisRepository interface {
	// Create persists the record and sets its ID
	Create(ctx context.Context, record *entities.AnalysisRecord) error
	GetByID(ctx context.Context, id string) (*entities.AnalysisRecord, error)
	// ListByOwner returns the owner's records, newest first
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*entities.AnalysisRecord, error)
	// Update overwrites the patched fields and returns the updated record
	Update(ctx context.Context, id string, patch entities.RecordPatch) (*entities.AnalysisRecord, error)
	Delete(ctx context.Context, id string) error
}
