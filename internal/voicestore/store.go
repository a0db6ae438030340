// Package voicestore provides the durable name→voice-ID registry.
//
// The registry is a single owned map guarded by a read-write mutex. Every
// mutation rewrites the full snapshot on disk using
// write-to-temporary-then-rename, so a reader (or a restart after a crash)
// only ever observes a complete snapshot. Reads are served from memory.
package voicestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrDuplicateName is returned by Create when the name is already taken.
	ErrDuplicateName = errors.New("voicestore: duplicate name")

	// ErrEmptyName is returned by Create when the name is blank after trimming.
	ErrEmptyName = errors.New("voicestore: empty name")

	// ErrNotFound is returned by Lookup and Delete for unknown names.
	ErrNotFound = errors.New("voicestore: voice not found")
)

// snapshot is the on-disk format: a single self-describing JSON object.
// New fields may be added without breaking older snapshots.
type snapshot struct {
	Voices map[string]string `json:"voices"`
}

// Store is the voice registry. Safe for concurrent use: mutations serialise
// on the write lock, reads share the read lock against a consistent
// in-memory view.
type Store struct {
	mu     sync.RWMutex
	path   string
	voices map[string]string
}

// Open loads the registry from path, or starts empty when no snapshot
// exists yet. The parent directory is created if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("voicestore: create dir: %w", err)
	}

	s := &Store{path: path, voices: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("voicestore: read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("voicestore: parse snapshot %q: %w", path, err)
	}
	if snap.Voices != nil {
		s.voices = snap.Voices
	}
	return s, nil
}

// List returns a copy of the full name→ID mapping.
func (s *Store) List() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.voices)
}

// Lookup returns the voice ID bound to name.
func (s *Store) Lookup(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.voices[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return id, nil
}

// Create binds name to voiceID and persists the new snapshot. The name is
// trimmed; matching is case-sensitive. The in-memory map is only updated
// once the snapshot write succeeds, so memory and disk cannot diverge.
func (s *Store) Create(name, voiceID string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.voices[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	next := maps.Clone(s.voices)
	next[name] = voiceID
	if err := s.persist(next); err != nil {
		return err
	}
	s.voices = next
	return nil
}

// Delete removes name from the registry and persists the new snapshot.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.voices[name]; !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	next := maps.Clone(s.voices)
	delete(next, name)
	if err := s.persist(next); err != nil {
		return err
	}
	s.voices = next
	return nil
}

// Len reports the number of saved voices.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.voices)
}

// persist writes the full snapshot to a temporary file in the store
// directory and atomically renames it over the live snapshot. Must be
// called with the write lock held.
func (s *Store) persist(voices map[string]string) error {
	data, err := json.MarshalIndent(snapshot{Voices: voices}, "", "  ")
	if err != nil {
		return fmt.Errorf("voicestore: marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".voices-*.tmp")
	if err != nil {
		return fmt.Errorf("voicestore: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("voicestore: write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("voicestore: sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("voicestore: close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("voicestore: replace snapshot: %w", err)
	}
	return nil
}
