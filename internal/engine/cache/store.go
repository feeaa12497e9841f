package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExtension = ".json"

// Common cache errors.
var (
	ErrNotFound   = errors.New("cache entry not found")
	ErrExpired    = errors.New("cache entry expired")
	ErrInvalidKey = errors.New("cache key must be namespace/name")
	ErrDisabled   = errors.New("cache is disabled")
)

// FileStore stores entries as JSON files, one directory per namespace.
// Safe for concurrent use.
type FileStore struct {
	directory  string
	enabled    bool
	ttlSeconds int
	now        func() time.Time

	mu sync.RWMutex
}

// NewFileStore creates a store rooted at directory, creating it if needed.
// A disabled store answers every call with ErrDisabled.
func NewFileStore(directory string, enabled bool, ttlSeconds int) (*FileStore, error) {
	if !enabled {
		return &FileStore{}, nil
	}
	if directory == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{
		directory:  directory,
		enabled:    true,
		ttlSeconds: ttlSeconds,
		now:        time.Now,
	}, nil
}

// Get returns the entry for key. Expired entries are removed and reported as
// ErrExpired.
func (s *FileStore) Get(key string) (*Entry, error) {
	if !s.enabled {
		return nil, ErrDisabled
	}
	path, err := s.keyToFilePath(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a sanitized key
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if err = json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if entry.ExpiredAt(s.now()) {
		s.mu.Lock()
		_ = os.Remove(path)
		s.mu.Unlock()
		return nil, ErrExpired
	}
	return &entry, nil
}

// Set writes data under key, replacing any previous entry.
func (s *FileStore) Set(key string, data json.RawMessage) error {
	if !s.enabled {
		return ErrDisabled
	}
	path, err := s.keyToFilePath(key)
	if err != nil {
		return err
	}

	entryData, err := json.MarshalIndent(NewEntry(key, data, s.ttlSeconds, s.now()), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create cache namespace: %w", err)
	}
	// Write to a temporary file, then rename for atomicity.
	tempPath := path + ".tmp"
	if err = os.WriteFile(tempPath, entryData, 0o600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err = os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Delete removes key. Missing entries are not an error.
func (s *FileStore) Delete(key string) error {
	if !s.enabled {
		return ErrDisabled
	}
	path, err := s.keyToFilePath(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// DeleteNamespace removes every entry under namespace.
func (s *FileStore) DeleteNamespace(namespace string) error {
	if !s.enabled {
		return ErrDisabled
	}
	dir := sanitize(namespace)
	if dir == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(s.directory, dir)); err != nil {
		return fmt.Errorf("failed to delete cache namespace: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (s *FileStore) Clear() error {
	if !s.enabled {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err = os.RemoveAll(filepath.Join(s.directory, e.Name())); err != nil {
			return fmt.Errorf("failed to remove cache namespace %s: %w", e.Name(), err)
		}
	}
	return nil
}

// CleanupExpired removes expired entries and returns how many were removed.
func (s *FileStore) CleanupExpired() (int, error) {
	if !s.enabled {
		return 0, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	err := s.walk(func(path string, _ fs.DirEntry) {
		data, readErr := os.ReadFile(path) //nolint:gosec // walked from cache root
		if readErr != nil {
			return
		}
		var entry Entry
		if json.Unmarshal(data, &entry) != nil {
			return
		}
		if entry.ExpiredAt(now) && os.Remove(path) == nil {
			removed++
		}
	})
	return removed, err
}

// Stats summarizes the store contents.
type Stats struct {
	Entries int
	Bytes   int64
}

// Stats counts entries and their total size, including expired ones.
func (s *FileStore) Stats() (Stats, error) {
	if !s.enabled {
		return Stats{}, ErrDisabled
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	err := s.walk(func(_ string, d fs.DirEntry) {
		st.Entries++
		if info, infoErr := d.Info(); infoErr == nil {
			st.Bytes += info.Size()
		}
	})
	return st, err
}

// IsEnabled reports whether caching is active.
func (s *FileStore) IsEnabled() bool { return s.enabled }

// Directory returns the cache root.
func (s *FileStore) Directory() string { return s.directory }

// TTL returns the entry lifetime in seconds; zero never expires.
func (s *FileStore) TTL() int { return s.ttlSeconds }

func (s *FileStore) walk(fn func(path string, d fs.DirEntry)) error {
	err := filepath.WalkDir(s.directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == fileExtension {
			fn(path, d)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk cache directory: %w", err)
	}
	return nil
}

// keyToFilePath maps "namespace/name" to <root>/<namespace>/<name>.json.
func (s *FileStore) keyToFilePath(key string) (string, error) {
	ns, name, ok := strings.Cut(key, "/")
	ns, name = sanitize(ns), sanitize(name)
	if !ok || ns == "" || name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.directory, ns, name+fileExtension), nil
}

// sanitize makes a key segment safe as a single path element.
func sanitize(segment string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	out := strings.TrimSpace(r.Replace(segment))
	if out == "." {
		return ""
	}
	return out
}
