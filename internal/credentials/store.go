// Package credentials holds the bearer token used by authenticated calls.
// Login and register are the only writers; every transport call reads it.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Store is the token capability consumed by the client
type Store interface {
	Token() string
	SaveToken(token string) error
	Clear() error
}

// MemoryStore keeps the token in an atomically swapped cell
type MemoryStore struct {
	token atomic.Pointer[string]
}

// NewMemoryStore creates a store, optionally seeded with a token
func NewMemoryStore(initial string) *MemoryStore {
	s := &MemoryStore{}
	if initial != "" {
		s.token.Store(&initial)
	}
	return s
}

func (s *MemoryStore) Token() string {
	if p := s.token.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *MemoryStore) SaveToken(token string) error {
	if token == "" {
		return s.Clear()
	}
	s.token.Store(&token)
	return nil
}

func (s *MemoryStore) Clear() error {
	s.token.Store(nil)
	return nil
}

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// FileStore persists the token as JSON so separate CLI invocations share a
// login. Writes go through a temp file and rename.
type FileStore struct {
	path  string
	mu    sync.Mutex
	cache MemoryStore
}

// NewFileStore opens (or lazily creates) the token file at path
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path is required")
	}

	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var stored tokenFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	s.cache.SaveToken(stored.AccessToken)

	return s, nil
}

func (s *FileStore) Token() string {
	return s.cache.Token()
}

func (s *FileStore) SaveToken(token string) error {
	if token == "" {
		return s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(tokenFile{AccessToken: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}

	s.cache.SaveToken(token)
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}

	s.cache.Clear()
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
