package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/TheMichaelB/casevault/internal/events"
)

const recordExt = ".json"

// FileStore keeps one file per record under a base directory.
type FileStore struct {
	baseDir       string
	logger        *events.Logger
	maxPathLength int
	maxRecordSize int64
}

// NewFileStore creates a file-backed blob store rooted at baseDir.
func NewFileStore(baseDir string, logger *events.Logger) (*FileStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{
		baseDir:       absPath,
		logger:        logger.WithField("component", "file_store"),
		maxPathLength: 1024,
		maxRecordSize: 2 << 30, // 2GB
	}, nil
}

// SetMaxRecordSize sets the maximum accepted record size.
func (s *FileStore) SetMaxRecordSize(size int64) {
	s.maxRecordSize = size
}

// Get implements BlobStore.
func (s *FileStore) Get(ctx context.Context, id string) ([]byte, error) {
	path, err := s.recordPath(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stat, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat record: %w", err)
	}
	if stat.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not allowed: %s", id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}

// Set writes the record atomically through a synced temp file and rename.
func (s *FileStore) Set(ctx context.Context, id string, value []byte) error {
	path, err := s.recordPath(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"id":      id,
		"size":    len(value),
		"session": events.GetStore(ctx),
	}).Debug("Writing record")

	tempPath, err := s.writeTemp(path, value)
	if err != nil {
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return syncDir(filepath.Dir(path))
}

// SetIfAbsent publishes the record with a hard link, which fails if the
// target already exists, so concurrent creators agree on one winner.
func (s *FileStore) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	path, err := s.recordPath(id)
	if err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	tempPath, err := s.writeTemp(path, value)
	if err != nil {
		return nil, false, err
	}
	defer os.Remove(tempPath)

	if err := os.Link(tempPath, path); err != nil {
		if !os.IsExist(err) {
			return nil, false, fmt.Errorf("link record: %w", err)
		}
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("read existing record: %w", err)
		}
		return existing, false, nil
	}

	if err := syncDir(filepath.Dir(path)); err != nil {
		return nil, false, err
	}

	s.logger.WithField("id", id).Debug("Created record")
	return clone(value), true, nil
}

// Delete implements BlobStore.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	path, err := s.recordPath(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.WithField("id", id).Debug("Deleting record")

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete record: %w", err)
	}

	s.cleanEmptyDirs(filepath.Dir(path))
	return nil
}

// Close implements BlobStore.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) writeTemp(path string, value []byte) (string, error) {
	if int64(len(value)) > s.maxRecordSize {
		return "", fmt.Errorf("record too large: %d bytes (max: %d)", len(value), s.maxRecordSize)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("create parent directory: %w", err)
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := file.Write(value); err != nil {
		file.Close()
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return tempPath, nil
}

// recordPath validates id and maps it to a file under the base directory.
// A "/" in the id becomes a subdirectory, which is how namespaces are laid out.
func (s *FileStore) recordPath(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}

	cleaned := filepath.Clean(filepath.FromSlash(id))
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("invalid record id: contains '..'")
		}
	}
	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	fullPath := filepath.Join(s.baseDir, cleaned) + recordExt
	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) {
		return "", errors.New("record id escapes base directory")
	}
	if len(fullPath) > s.maxPathLength {
		return "", fmt.Errorf("path too long: %d characters (max: %d)", len(fullPath), s.maxPathLength)
	}

	if runtime.GOOS == "windows" && strings.ContainsAny(cleaned, `<>:"|?*`) {
		return "", fmt.Errorf("invalid record id: %q", id)
	}

	return fullPath, nil
}

// cleanEmptyDirs removes empty parent directories.
func (s *FileStore) cleanEmptyDirs(dirPath string) {
	for dirPath != s.baseDir && strings.HasPrefix(dirPath, s.baseDir) {
		entries, err := os.ReadDir(dirPath)
		if err != nil || len(entries) > 0 {
			break
		}

		if err := os.Remove(dirPath); err != nil {
			break
		}

		dirPath = filepath.Dir(dirPath)
	}
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync directory: %w", err)
	}
	return nil
}
