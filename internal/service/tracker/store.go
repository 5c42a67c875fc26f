package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/pkg/logger"
)

// Entry is the last known state of a tracked show.
type Entry struct {
	TMDBID    int           `json:"tmdb_id"`
	Name      string        `json:"name"`
	Status    status.Status `json:"status"`
	Summary   string        `json:"summary,omitempty"`
	Total     int           `json:"total"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store persists tracker state as a JSON file, keyed by TMDB ID.
type Store struct {
	mu    sync.RWMutex
	path  string
	items map[int]Entry
}

// NewStore opens the store at path. A missing file starts empty; a corrupt
// one is logged and ignored.
func NewStore(path string) *Store {
	s := &Store{
		path:  path,
		items: make(map[int]Entry),
	}
	if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("⚠️  Ignoring unreadable tracker state %s: %v", path, err)
	}
	return s
}

// Get returns the entry for tmdbID.
func (s *Store) Get(tmdbID int) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[tmdbID]
	return e, ok
}

// Put stores an entry and persists the store.
func (s *Store) Put(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[e.TMDBID] = e
	return s.save()
}

// Remove deletes an entry and persists the store.
func (s *Store) Remove(tmdbID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[tmdbID]; !ok {
		return nil
	}
	delete(s.items, tmdbID)
	return s.save()
}

// All returns every entry ordered by TMDB ID.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Entry, 0, len(s.items))
	for _, e := range s.items {
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TMDBID < items[j].TMDBID })
	return items
}

// Clear removes all entries.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[int]Entry)
	return s.save()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var items []Entry
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	for _, e := range items {
		s.items[e.TMDBID] = e
	}
	return nil
}

// save writes the store to disk. Caller holds the lock.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	items := make([]Entry, 0, len(s.items))
	for _, e := range s.items {
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TMDBID < items[j].TMDBID })

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so a crash never leaves a truncated file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return os.Rename(tmp, s.path)
}
