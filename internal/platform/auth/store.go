package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store persists sessions per realm.
type Store interface {
	Load(realm Realm) (*Session, error)
	Save(s *Session) error
	Clear(realm Realm) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[Realm]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[Realm]*Session)}
}

func (m *MemoryStore) Load(realm Realm) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[realm]
	if !ok {
		return nil, ErrNotLoggedIn
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Save(s *Session) error {
	if s == nil || s.Realm == "" {
		return fmt.Errorf("session realm is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if cp.SavedAt.IsZero() {
		cp.SavedAt = time.Now().UTC()
	}
	m.sessions[s.Realm] = &cp
	return nil
}

func (m *MemoryStore) Clear(realm Realm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, realm)
	return nil
}

// FileStore keeps all realms' sessions in one JSON file readable only by
// the current user.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type sessionFile struct {
	Sessions map[Realm]*Session `json:"sessions"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) read() (*sessionFile, error) {
	data := &sessionFile{Sessions: map[Realm]*Session{}}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", f.path, err)
	}
	if data.Sessions == nil {
		data.Sessions = map[Realm]*Session{}
	}
	return data, nil
}

func (f *FileStore) write(data *sessionFile) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Load(realm Realm) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return nil, err
	}
	s, ok := data.Sessions[realm]
	if !ok || s == nil {
		return nil, ErrNotLoggedIn
	}
	return s, nil
}

func (f *FileStore) Save(s *Session) error {
	if s == nil || s.Realm == "" {
		return fmt.Errorf("session realm is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	cp := *s
	if cp.SavedAt.IsZero() {
		cp.SavedAt = time.Now().UTC()
	}
	data.Sessions[s.Realm] = &cp
	return f.write(data)
}

func (f *FileStore) Clear(realm Realm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := data.Sessions[realm]; !ok {
		return nil
	}
	delete(data.Sessions, realm)
	return f.write(data)
}
