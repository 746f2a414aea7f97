package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// FileStore persists every key in one JSON object on disk. Writes go through a temp file and
// rename so a crash never leaves a truncated store behind.
//
// The API server and the admin CLI may open the same file, so every operation takes an
// advisory lock on <path>.lock and re-reads the file before touching it.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileStore opens path, creating its directory when missing. A corrupt file is rejected.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = "./data/local-store.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &FileStore{path: path, lock: flock.New(path + ".lock")}
	if _, err := s.read(false); err != nil {
		return nil, err
	}
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	values, err := s.read(true)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	return s.update(func(values map[string]string) bool {
		if prev, ok := values[key]; ok && prev == value {
			return false
		}
		values[key] = value
		return true
	})
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, key string) error {
	return s.update(func(values map[string]string) bool {
		if _, ok := values[key]; !ok {
			return false
		}
		delete(values, key)
		return true
	})
}

// Path exposes the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) read(shared bool) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lockFn := s.lock.Lock
	if shared {
		lockFn = s.lock.RLock
	}
	if err := lockFn(); err != nil {
		return nil, fmt.Errorf("lock store file: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck
	return s.load()
}

// update holds the exclusive lock across load, mutate and flush so no other writer can slip
// in between.
func (s *FileStore) update(mutate func(map[string]string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock store file: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	values, err := s.load()
	if err != nil {
		return err
	}
	if !mutate(values) {
		return nil
	}
	return s.flush(values)
}

func (s *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)
	raw, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return values, nil
	case err != nil:
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	return values, nil
}

func (s *FileStore) flush(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".kv-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
