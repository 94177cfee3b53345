package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is the persisted key-value surface the display engine writes
// preferences through. Keys are flat strings; writes are last-write-wins.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	GetFloat(key string) (float64, bool)
	SetFloat(key string, value float64)
	GetInt(key string) (int, bool)
	SetInt(key string, value int)
	GetBool(key string) (bool, bool)
	SetBool(key string, value bool)
	GetString(key string) (string, bool)
	SetString(key string, value string)
	Remove(key string)
	Keys(prefix string) []string
}

// FileStore persists the map as a single JSON document. Every mutation is
// flushed with a temp-file rename so a crash never leaves a torn file.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		values: make(map[string]any),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", path, err)
	}

	return s, nil
}

func (s *FileStore) flushLocked() {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return
	}
	_ = os.Rename(tmp, s.path)
}

func (s *FileStore) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.flushLocked()
	s.mu.Unlock()
}

func (s *FileStore) Get(key string) (any, bool) { return s.get(key) }

func (s *FileStore) Set(key string, value any) { s.set(key, value) }

func (s *FileStore) GetFloat(key string) (float64, bool) {
	v, ok := s.get(key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func (s *FileStore) SetFloat(key string, value float64) { s.set(key, value) }

func (s *FileStore) GetInt(key string) (int, bool) {
	// JSON numbers decode as float64
	v, ok := s.get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func (s *FileStore) SetInt(key string, value int) { s.set(key, value) }

func (s *FileStore) GetBool(key string) (bool, bool) {
	v, ok := s.get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (s *FileStore) SetBool(key string, value bool) { s.set(key, value) }

func (s *FileStore) GetString(key string) (string, bool) {
	v, ok := s.get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *FileStore) SetString(key string, value string) { s.set(key, value) }

func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.flushLocked()
	s.mu.Unlock()
}

func (s *FileStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// MemStore is the in-memory Store used by tests.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]any)}
}

func (s *MemStore) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemStore) set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *MemStore) Get(key string) (any, bool) { return s.get(key) }

func (s *MemStore) Set(key string, value any) { s.set(key, value) }

func (s *MemStore) GetFloat(key string) (float64, bool) {
	v, ok := s.get(key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func (s *MemStore) SetFloat(key string, value float64) { s.set(key, value) }

func (s *MemStore) GetInt(key string) (int, bool) {
	v, ok := s.get(key)
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

func (s *MemStore) SetInt(key string, value int) { s.set(key, value) }

func (s *MemStore) GetBool(key string) (bool, bool) {
	v, ok := s.get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (s *MemStore) SetBool(key string, value bool) { s.set(key, value) }

func (s *MemStore) GetString(key string) (string, bool) {
	v, ok := s.get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *MemStore) SetString(key string, value string) { s.set(key, value) }

func (s *MemStore) Remove(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

func (s *MemStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// DefaultPath returns the state file location, honoring XDG_STATE_HOME.
func DefaultPath() string {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "dankdisplay", "state.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "dankdisplay-state.json")
	}
	return filepath.Join(home, ".local", "state", "dankdisplay", "state.json")
}
