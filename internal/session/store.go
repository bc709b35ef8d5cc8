package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pydea-rs/omen-creator-panel/internal/crypto"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

var (
	_ domain.SessionStore = (*MemoryStore)(nil)
	_ domain.SessionStore = (*FileStore)(nil)
)

// MemoryStore keeps tokens for the life of the process.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, endpoint string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[endpoint]
	if !ok {
		return "", domain.ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) Set(_ context.Context, endpoint, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[endpoint] = token
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, endpoint)
	return nil
}

// FileStore persists the endpoint→token map in one file. With a Sealer the
// file is encrypted; without one it is plain JSON with 0600 permissions.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer *crypto.Sealer
}

// NewFileStore returns a store backed by path. sealer may be nil.
func NewFileStore(path string, sealer *crypto.Sealer) *FileStore {
	return &FileStore{path: path, sealer: sealer}
}

func (s *FileStore) Get(_ context.Context, endpoint string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, err := s.load()
	if err != nil {
		return "", err
	}
	t, ok := tokens[endpoint]
	if !ok {
		return "", domain.ErrNotFound
	}
	return t, nil
}

func (s *FileStore) Set(_ context.Context, endpoint, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, err := s.load()
	if err != nil {
		return err
	}
	tokens[endpoint] = token
	return s.save(tokens)
}

func (s *FileStore) Clear(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := tokens[endpoint]; !ok {
		return nil
	}
	delete(tokens, endpoint)
	return s.save(tokens)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data); err != nil {
			return nil, fmt.Errorf("session: open %s: %w", s.path, err)
		}
	}
	tokens := make(map[string]string)
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	return tokens, nil
}

func (s *FileStore) save(tokens map[string]string) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("session: seal: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: replace %s: %w", s.path, err)
	}
	return nil
}
