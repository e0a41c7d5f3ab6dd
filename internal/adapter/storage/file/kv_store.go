package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/spf13/afero"
)

var keyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// KVStore implements ports.KVStore with one JSON file per key.
// Writes go to a temp file that is renamed over the target, so a reader
// never observes a half-written payload.
type KVStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewKVStore creates the data directory if needed.
func NewKVStore(fs afero.Fs, dir string) (*KVStore, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}
	return &KVStore{fs: fs, dir: dir}, nil
}

// Get returns nil, nil if the key has never been written.
func (s *KVStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}

// Set atomically replaces the value stored at key.
func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o640); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

func (s *KVStore) path(key string) (string, error) {
	if !keyRe.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}
