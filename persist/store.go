package persist

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	filePerm os.FileMode = 0666
	dirPerm  os.FileMode = 0700
)

var (
	// ErrNotFound represents a storage key that holds no value
	ErrNotFound = errors.New("storage key not found")
)

// Store is the durable key/value storage the bridge mirrors cache
// entries into. Implementations are quota-limited and may fail any
// write; the bridge contains those failures.
type Store interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Delete(key string) error
}

// NewFileStore returns a Store keeping one file per key under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage dir not provided")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, errors.Wrap(err, "failed to create storage dir")
		}
	}

	return &FileStore{dir: dir}, nil
}

// FileStore is the file-backed Store implementation.
type FileStore struct {
	dir string
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return "", errors.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

// Read returns the value stored under key.
func (s *FileStore) Read(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read storage file")
	}
	return data, nil
}

// Write stores value under key.
func (s *FileStore) Write(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, filePerm); err != nil {
		return errors.Wrap(err, "failed to write storage file")
	}
	return nil
}

// Delete removes the value stored under key. Deleting an absent key
// is not an error.
func (s *FileStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete storage file")
	}
	return nil
}
