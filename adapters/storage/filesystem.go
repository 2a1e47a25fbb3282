package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/repositories"
)

// FilesystemStorage stores audio objects as files under a root directory
type FilesystemStorage struct {
	root   string
	logger *zap.Logger
}

var _ repositories.ObjectStorage = (*FilesystemStorage)(nil)

// NewFilesystemStorage creates the root directory if needed
func NewFilesystemStorage(root string, logger *zap.Logger) (*FilesystemStorage, error) {
	if root == "" {
		return nil, errors.New("storage root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("make storage root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &FilesystemStorage{root: abs, logger: logger}, nil
}

// Write writes to a temp file in the target directory and renames it into place
func (s *FilesystemStorage) Write(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("make dir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", filepath.Base(full), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", filepath.Base(full), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp %s: %w", filepath.Base(full), err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename %s: %w", filepath.Base(full), err)
	}

	s.logger.Debug("Audio written to disk", zap.String("path", full), zap.Int("bytes", len(data)))
	return path, nil
}

// Read implements repositories.ObjectStorage. The content type is derived
// from the file extension.
func (s *FilesystemStorage) Read(ctx context.Context, path string) ([]byte, string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", domain.ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, contentTypeFor(filepath.Ext(full)), nil
}

// Delete implements repositories.ObjectStorage
func (s *FilesystemStorage) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrObjectNotFound
		}
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// resolve maps an object path to a file under root, rejecting escapes
func (s *FilesystemStorage) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}

func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
