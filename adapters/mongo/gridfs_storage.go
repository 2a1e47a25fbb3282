package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/repositories"
)

const DefaultBucket = "recordings"

// GridFSStorage stores audio objects in a GridFS bucket keyed by path
type GridFSStorage struct {
	bucket *gridfs.Bucket
	logger *zap.Logger
}

var _ repositories.ObjectStorage = (*GridFSStorage)(nil)

type gridFile struct {
	ID       primitive.ObjectID `bson:"_id"`
	Metadata struct {
		ContentType string `bson:"content_type"`
	} `bson:"metadata"`
}

// NewGridFSStorage creates a new GridFS backed object storage
func NewGridFSStorage(db *mongo.Database, bucketName string, logger *zap.Logger) (*GridFSStorage, error) {
	if bucketName == "" {
		bucketName = DefaultBucket
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}
	return &GridFSStorage{bucket: bucket, logger: logger}, nil
}

// Write implements repositories.ObjectStorage
func (s *GridFSStorage) Write(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	id, err := s.bucket.UploadFromStream(path, bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}

	s.logger.Debug("Audio uploaded to GridFS",
		zap.String("path", path),
		zap.String("file_id", id.Hex()),
		zap.Int("bytes", len(data)))
	return path, nil
}

// Read implements repositories.ObjectStorage
func (s *GridFSStorage) Read(ctx context.Context, path string) ([]byte, string, error) {
	file, err := s.find(ctx, path)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if _, err := s.bucket.DownloadToStream(file.ID, &buf); err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", path, err)
	}
	return buf.Bytes(), file.Metadata.ContentType, nil
}

// Delete implements repositories.ObjectStorage
func (s *GridFSStorage) Delete(ctx context.Context, path string) error {
	file, err := s.find(ctx, path)
	if err != nil {
		return err
	}
	if err := s.bucket.DeleteContext(ctx, file.ID); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return domain.ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// find returns the newest revision stored under path
func (s *GridFSStorage) find(ctx context.Context, path string) (*gridFile, error) {
	opts := options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: -1}}).SetLimit(1)
	cursor, err := s.bucket.FindContext(ctx, bson.M{"filename": path}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", path, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, fmt.Errorf("failed to look up %s: %w", path, err)
		}
		return nil, domain.ErrObjectNotFound
	}

	var file gridFile
	if err := cursor.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode file entry for %s: %w", path, err)
	}
	return &file, nil
}
