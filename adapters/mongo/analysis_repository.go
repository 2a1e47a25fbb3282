package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

const analysesCollection = "analyses"

// AnalysisRepository stores analysis records in MongoDB
type AnalysisRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.AnalysisRepository = (*AnalysisRepository)(nil)

type analysisDocument struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	entities.AnalysisRecord `bson:",inline"`
}

func (d *analysisDocument) toEntity() *entities.AnalysisRecord {
	record := d.AnalysisRecord
	record.ID = d.ID.Hex()
	if record.Emotions.TopEmotions == nil {
		record.Emotions.TopEmotions = []entities.EmotionScore{}
	}
	return &record
}

// NewAnalysisRepository creates a new MongoDB analysis repository
func NewAnalysisRepository(db *mongo.Database, logger *zap.Logger) *AnalysisRepository {
	collection := db.Collection(analysesCollection)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ownerCreatedIndex := mongo.IndexModel{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		}
		if _, err := collection.Indexes().CreateOne(ctx, ownerCreatedIndex); err != nil {
			logger.Error("Failed to create analysis indexes", zap.Error(err))
			return
		}
		logger.Info("Analysis indexes created")
	}()

	return &AnalysisRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create implements repositories.AnalysisRepository
func (r *AnalysisRepository) Create(ctx context.Context, record *entities.AnalysisRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	result, err := r.collection.InsertOne(ctx, analysisDocument{AnalysisRecord: *record})
	if err != nil {
		return fmt.Errorf("failed to create analysis record: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		record.ID = oid.Hex()
	}
	return nil
}

// GetByID implements repositories.AnalysisRepository
func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*entities.AnalysisRecord, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrRecordNotFound
	}

	var doc analysisDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get analysis record %s: %w", id, err)
	}
	return doc.toEntity(), nil
}

// ListByOwner implements repositories.AnalysisRepository
func (r *AnalysisRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*entities.AnalysisRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find analysis records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*entities.AnalysisRecord{}
	for cursor.Next(ctx) {
		var doc analysisDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode analysis record: %w", err)
		}
		records = append(records, doc.toEntity())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return records, nil
}

// Update implements repositories.AnalysisRepository
func (r *AnalysisRepository) Update(ctx context.Context, id string, patch entities.RecordPatch) (*entities.AnalysisRecord, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrRecordNotFound
	}

	set := bson.M{}
	if patch.Name != nil {
		var probe entities.AnalysisRecord
		patch.Apply(&probe)
		set["name"] = probe.Name
	}
	if patch.DurationSeconds != nil {
		set["duration_seconds"] = *patch.DurationSeconds
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc analysisDocument
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to update analysis record %s: %w", id, err)
	}
	return doc.toEntity(), nil
}

// Delete implements repositories.AnalysisRepository
func (r *AnalysisRepository) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrRecordNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete analysis record: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}
