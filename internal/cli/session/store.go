package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

// Persisted keys. They are always written and cleared together.
const (
	KeyToken    = "authToken"
	KeyIsStaff  = "isStaff"
	KeyUsername = "username"
)

// Keys lists every persisted key
var Keys = []string{KeyToken, KeyIsStaff, KeyUsername}

// ErrNotFound is returned by Store.Get for a missing key
var ErrNotFound = errors.New("key not found")

// Store defines the key-value persistence used by the session Manager.
// A Store is scoped to a single server.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

const keyringService = "mediadmin-cli"

// KeyringStore persists session values in the OS keychain/credential manager
type KeyringStore struct {
	server string
}

// NewKeyringStore returns a keyring-backed store for the given server URL
func NewKeyringStore(server string) *KeyringStore {
	return &KeyringStore{server: server}
}

// keyringKey returns a unique keyring entry per server and key
func (s *KeyringStore) keyringKey(key string) string {
	return fmt.Sprintf("%s-%s", key, s.server)
}

func (s *KeyringStore) Get(key string) (string, error) {
	value, err := keyring.Get(keyringService, s.keyringKey(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, nil
}

func (s *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(keyringService, s.keyringKey(key), value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	if err := keyring.Delete(keyringService, s.keyringKey(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// FileStore persists session values in a 0600 JSON file shared by all servers.
// It is meant for headless machines without a keyring daemon.
type FileStore struct {
	path   string
	server string
	mu     sync.Mutex
}

// NewFileStore returns a file-backed store. path is usually DefaultFilePath().
func NewFileStore(path, server string) *FileStore {
	return &FileStore{path: path, server: server}
}

// DefaultFilePath returns ~/.config/mediadmin/sessions.json
func DefaultFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "mediadmin", "sessions.json"), nil
}

// load reads the whole file: server -> key -> value
func (s *FileStore) load() (map[string]map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	all := map[string]map[string]string{}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return all, nil
}

func (s *FileStore) save(all map[string]map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return "", err
	}
	value, ok := all[s.server][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if all[s.server] == nil {
		all[s.server] = map[string]string{}
	}
	all[s.server][key] = value
	return s.save(all)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	entries, ok := all[s.server]
	if !ok {
		return nil
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(all, s.server)
	}
	return s.save(all)
}

// MemoryStore is an in-memory Store, used in tests and for one-shot sessions
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Len reports how many keys are stored
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.values)
}
