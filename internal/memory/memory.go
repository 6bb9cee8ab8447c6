// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package memory remembers which recommended papers were already shown so
// the recommender can suppress repeats for a while.
// Implements: docs/ARCHITECTURE § Recommendations (seen memory).
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/feedback-engine/internal/ident"
)

// DefaultMaxIDs caps the number of remembered papers.
const DefaultMaxIDs = 5000

// State is the on-disk form: paper id -> ISO-8601 UTC time last seen.
type State struct {
	Seen      map[string]string `json:"seen"`
	UpdatedAt string            `json:"updated_at"`
}

// Store loads, queries, and saves seen-paper memory.
type Store struct {
	path   string
	maxIDs int
	state  State

	// Log receives a warning when an unreadable memory file is reset.
	Log io.Writer
	now func() time.Time
}

// New returns an empty store for path. maxIDs <= 0 means DefaultMaxIDs.
func New(path string, maxIDs int) *Store {
	if maxIDs <= 0 {
		maxIDs = DefaultMaxIDs
	}
	s := &Store{path: path, maxIDs: maxIDs, Log: io.Discard, now: time.Now}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.state = State{Seen: map[string]string{}, UpdatedAt: ident.FormatTime(s.now())}
}

// Load replaces the in-memory state with the file's contents. A missing
// file yields empty memory. Malformed content is discarded with a warning
// rather than failing; entries with unparsable timestamps are dropped.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.reset()
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading seen memory %s: %w", s.path, err)
	}

	var raw struct {
		Seen      map[string]any `json:"seen"`
		UpdatedAt any            `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		fmt.Fprintf(s.Log, "warning: seen memory %s invalid, resetting: %v\n", s.path, err)
		s.reset()
		return nil
	}

	seen := make(map[string]string, len(raw.Seen))
	for id, v := range raw.Seen {
		ts, ok := v.(string)
		if strings.TrimSpace(id) == "" || !ok {
			continue
		}
		if t, ok := ident.ParseTime(ts); ok {
			seen[id] = ident.FormatTime(t)
		}
	}
	updated, _ := raw.UpdatedAt.(string)
	s.state = State{Seen: seen, UpdatedAt: updated}
	s.PruneToCap()
	return nil
}

// Save stamps updated_at, enforces the cap, and writes the file.
func (s *Store) Save() error {
	s.state.UpdatedAt = ident.FormatTime(s.now())
	s.PruneToCap()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding seen memory: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating memory directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing seen memory: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing seen memory: %w", err)
	}
	return nil
}

// Len returns the number of remembered papers.
func (s *Store) Len() int { return len(s.state.Seen) }

// MarkSeen records ids as seen at the given time.
func (s *Store) MarkSeen(ids []string, at time.Time) {
	ts := ident.FormatTime(at)
	for _, id := range ids {
		if id != "" {
			s.state.Seen[id] = ts
		}
	}
	s.PruneToCap()
}

// RecentlySeen reports whether id was seen within ttl of now.
func (s *Store) RecentlySeen(id string, ttl time.Duration, now time.Time) bool {
	ts, ok := s.state.Seen[id]
	if id == "" || !ok {
		return false
	}
	t, ok := ident.ParseTime(ts)
	if !ok {
		return false
	}
	return !t.Before(now.Add(-ttl))
}

// FilterRecentlySeen returns the subset of ids seen within ttl.
func (s *Store) FilterRecentlySeen(ids []string, ttl time.Duration) map[string]bool {
	now := s.now()
	out := map[string]bool{}
	for _, id := range ids {
		if s.RecentlySeen(id, ttl, now) {
			out[id] = true
		}
	}
	return out
}

// PruneExpired drops entries older than ttl and returns how many went.
func (s *Store) PruneExpired(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, ts := range s.state.Seen {
		if t, ok := ident.ParseTime(ts); !ok || t.Before(cutoff) {
			delete(s.state.Seen, id)
			removed++
		}
	}
	return removed
}

// PruneToCap keeps the maxIDs most recently seen entries.
func (s *Store) PruneToCap() int {
	if len(s.state.Seen) <= s.maxIDs {
		return 0
	}
	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, len(s.state.Seen))
	for id, ts := range s.state.Seen {
		t, _ := ident.ParseTime(ts)
		entries = append(entries, entry{id, t})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.After(entries[j].at)
		}
		return entries[i].id < entries[j].id
	})
	removed := 0
	for _, e := range entries[s.maxIDs:] {
		delete(s.state.Seen, e.id)
		removed++
	}
	return removed
}
