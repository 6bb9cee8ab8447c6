// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package seeds loads and saves the positive/negative seed sets that steer
// the recommender. Saved files are sorted, deduplicated, and normalized so
// repeated saves of unchanged state are byte-identical.
// Implements: docs/ARCHITECTURE § Seed Store.
package seeds

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// Set is the in-memory working copy of the seed store. Positive and
// Negative are kept disjoint by Add.
type Set struct {
	Positive map[string]bool
	Negative map[string]bool
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{Positive: map[string]bool{}, Negative: map[string]bool{}}
}

// FromSeeds builds a Set from persisted lists. An id listed on both sides
// is kept as negative.
func FromSeeds(s types.Seeds) *Set {
	set := NewSet()
	for _, id := range s.PositivePaperIDs {
		set.Add(id, types.LabelPositive)
	}
	for _, id := range s.NegativePaperIDs {
		set.Add(id, types.LabelNegative)
	}
	return set
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := NewSet()
	for id := range s.Positive {
		c.Positive[id] = true
	}
	for id := range s.Negative {
		c.Negative[id] = true
	}
	return c
}

// Add moves id into the set named by label and out of the other one.
// Undecided labels and empty ids leave membership unchanged. It reports
// whether membership changed.
func (s *Set) Add(id string, label types.Label) bool {
	id = ident.NormalizePaperID(id)
	if id == "" {
		return false
	}
	var into, from map[string]bool
	switch label {
	case types.LabelPositive:
		into, from = s.Positive, s.Negative
	case types.LabelNegative:
		into, from = s.Negative, s.Positive
	default:
		return false
	}
	changed := !into[id] || from[id]
	into[id] = true
	delete(from, id)
	return changed
}

// Seeds returns the sorted, persisted form.
func (s *Set) Seeds() types.Seeds {
	return types.Seeds{
		PositivePaperIDs: ident.SortSeedIDs(keys(s.Positive)),
		NegativePaperIDs: ident.SortSeedIDs(keys(s.Negative)),
	}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// fileFormat accepts ids written as strings or bare JSON numbers.
type fileFormat struct {
	Positive []seedID `json:"positive_paper_ids"`
	Negative []seedID `json:"negative_paper_ids"`
}

type seedID string

func (s *seedID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = seedID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("seed id must be a string or integer: %s", data)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("seed id must be a string or integer: %s", data)
	}
	*s = seedID(n.String())
	return nil
}

// Load reads the seed file at path. A missing file yields an empty set.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSet(), nil
		}
		return nil, fmt.Errorf("reading seeds %s: %w", path, err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seeds %s: %w", path, err)
	}

	var s types.Seeds
	for _, id := range f.Positive {
		s.PositivePaperIDs = append(s.PositivePaperIDs, string(id))
	}
	for _, id := range f.Negative {
		s.NegativePaperIDs = append(s.NegativePaperIDs, string(id))
	}
	return FromSeeds(s), nil
}

// Marshal renders the canonical file bytes for set.
func Marshal(set *Set) ([]byte, error) {
	data, err := json.MarshalIndent(set.Seeds(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding seeds: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes set to path through a temp file and rename.
func Save(path string, set *Set) error {
	data, err := Marshal(set)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating seeds directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing seeds: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing seeds %s: %w", path, err)
	}
	return nil
}
