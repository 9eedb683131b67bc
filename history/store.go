package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Store is the file-like medium transitions are persisted to
type Store interface {
	Append(ctx context.Context, line []byte) error
	ReadAll(ctx context.Context) ([]byte, error)
	Exists(ctx context.Context) (bool, error)
	Remove(ctx context.Context) error
}

// FileStore keeps the history in a single file on the local filesystem
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at path, creating parent directories
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the file path
func (s *FileStore) Path() string {
	return s.path
}

// Append implements Store
func (s *FileStore) Append(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

// ReadAll implements Store
func (s *FileStore) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// Exists implements Store
func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", s.path, err)
	}
}

// Remove implements Store. Removing a missing file is not an error.
func (s *FileStore) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore keeps the history in memory
type MemoryStore struct {
	mu     sync.Mutex
	data   []byte
	exists bool
}

// NewMemoryStore creates an empty, non-existent store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store
func (s *MemoryStore) Append(_ context.Context, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, line...)
	s.exists = true
	return nil
}

// ReadAll implements Store
func (s *MemoryStore) ReadAll(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return nil, fs.ErrNotExist
	}
	return slices.Clone(s.data), nil
}

// Exists implements Store
func (s *MemoryStore) Exists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists, nil
}

// Remove implements Store
func (s *MemoryStore) Remove(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.exists = false
	return nil
}
