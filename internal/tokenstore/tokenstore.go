// Package tokenstore persists the auth session across process restarts.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"iotdash/internal/models"
)

// ErrNoSession is returned by Load when no session has been saved.
var ErrNoSession = errors.New("no stored session")

// Store is a durable key-value holder for the session.
type Store interface {
	Save(session models.Session) error
	Load() (models.Session, error)
	Clear() error
}

// FileStore keeps the session as a JSON file on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the session to disk, creating the parent directory if needed.
func (s *FileStore) Save(session models.Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads the stored session. ErrNoSession means nothing has been saved.
func (s *FileStore) Load() (models.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Session{}, ErrNoSession
		}
		return models.Session{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return models.Session{}, fmt.Errorf("failed to decode session file: %w", err)
	}
	return session, nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// MemoryStore holds the session in memory only. Used in tests and as a
// fallback when no session file path is configured.
type MemoryStore struct {
	session *models.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(session models.Session) error {
	s.session = &session
	return nil
}

func (s *MemoryStore) Load() (models.Session, error) {
	if s.session == nil {
		return models.Session{}, ErrNoSession
	}
	return *s.session, nil
}

func (s *MemoryStore) Clear() error {
	s.session = nil
	return nil
}
