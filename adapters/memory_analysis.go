package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

// MemoryAnalysisRepository is an in-memory AnalysisRepository for local runs
// without MongoDB
type MemoryAnalysisRepository struct {
	mu      sync.RWMutex
	records map[string]*entities.AnalysisRecord // id -> record
	owners  map[string][]string                 // owner_id -> record ids
}

var _ repositories.AnalysisRepository = (*MemoryAnalysisRepository)(nil)

// NewMemoryAnalysisRepository creates a new in-memory analysis repository
func NewMemoryAnalysisRepository() *MemoryAnalysisRepository {
	return &MemoryAnalysisRepository{
		records: make(map[string]*entities.AnalysisRecord),
		owners:  make(map[string][]string),
	}
}

// Count returns the number of stored records
func (m *MemoryAnalysisRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Create implements AnalysisRepository interface
func (m *MemoryAnalysisRepository) Create(ctx context.Context, record *entities.AnalysisRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = uuid.New().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	recordCopy := *record
	m.records[record.ID] = &recordCopy
	m.owners[record.OwnerID] = append(m.owners[record.OwnerID], record.ID)
	return nil
}

// GetByID implements AnalysisRepository interface
func (m *MemoryAnalysisRepository) GetByID(ctx context.Context, id string) (*entities.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.records[id]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}
	recordCopy := *record
	return &recordCopy, nil
}

// ListByOwner implements AnalysisRepository interface
func (m *MemoryAnalysisRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*entities.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.owners[ownerID]
	result := make([]*entities.AnalysisRecord, 0, len(ids))
	for _, id := range ids {
		recordCopy := *m.records[id]
		result = append(result, &recordCopy)
	}

	// ids are kept in insertion order, so reversing before the stable sort
	// keeps later inserts first among equal timestamps
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(a, b int) bool {
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update implements AnalysisRepository interface
func (m *MemoryAnalysisRepository) Update(ctx context.Context, id string, patch entities.RecordPatch) (*entities.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[id]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}
	patch.Apply(record)

	recordCopy := *record
	return &recordCopy, nil
}

// Delete implements AnalysisRepository interface
func (m *MemoryAnalysisRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[id]
	if !exists {
		return domain.ErrRecordNotFound
	}
	delete(m.records, id)

	ids := m.owners[record.OwnerID]
	for i, other := range ids {
		if other == id {
			m.owners[record.OwnerID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryObjectStorage is an in-memory ObjectStorage
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

var _ repositories.ObjectStorage = (*MemoryObjectStorage)(nil)

// NewMemoryObjectStorage creates a new in-memory object storage
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{objects: make(map[string]memoryObject)}
}

// Write implements ObjectStorage interface
func (m *MemoryObjectStorage) Write(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = memoryObject{data: buf, contentType: contentType}
	return path, nil
}

// Read implements ObjectStorage interface
func (m *MemoryObjectStorage) Read(ctx context.Context, path string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, exists := m.objects[path]
	if !exists {
		return nil, "", domain.ErrObjectNotFound
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, obj.contentType, nil
}

// Delete implements ObjectStorage interface
func (m *MemoryObjectStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[path]; !exists {
		return domain.ErrObjectNotFound
	}
	delete(m.objects, path)
	return nil
}
