// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"strings"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

type titleURL struct {
	title string
	url   string
}

type runEntries struct {
	byItem  map[string]types.ManifestEntry
	byPaper map[string]types.ManifestEntry
	byTitle map[titleURL]types.ManifestEntry
}

// Index answers run_id -> item lookups across one or more manifests. When
// a directory is attached, runs missing from the index are loaded from it
// on first use.
type Index struct {
	runs    map[string]*runEntries
	dir     string
	scanned bool
}

// NewIndex indexes the given manifests.
func NewIndex(manifests ...*types.Manifest) *Index {
	x := &Index{runs: map[string]*runEntries{}}
	for _, m := range manifests {
		x.Add(m)
	}
	return x
}

// WithDir attaches a manifests directory used as a lookup fallback.
func (x *Index) WithDir(dir string) *Index {
	x.dir = dir
	return x
}

// Add indexes m. An existing entry for the same run is replaced.
func (x *Index) Add(m *types.Manifest) {
	if m == nil || m.RunID == "" {
		return
	}
	r := &runEntries{
		byItem:  map[string]types.ManifestEntry{},
		byPaper: map[string]types.ManifestEntry{},
		byTitle: map[titleURL]types.ManifestEntry{},
	}
	for _, e := range m.Papers {
		if id := strings.TrimSpace(e.ItemID); id != "" {
			r.byItem[id] = e
		}
		if pid := ident.NormalizePaperID(e.PaperID()); pid != "" {
			r.byPaper[pid] = e
		}
		if e.Title != "" || e.URL != "" {
			r.byTitle[titleURL{ident.NormalizeTitle(e.Title), ident.NormalizeURL(e.URL)}] = e
		}
	}
	x.runs[m.RunID] = r
}

// HasRun reports whether runID is indexed, loading it from the attached
// directory if needed.
func (x *Index) HasRun(runID string) bool {
	return x.run(runID) != nil
}

// Item returns the entry for itemID in runID.
func (x *Index) Item(runID, itemID string) (types.ManifestEntry, bool) {
	r := x.run(runID)
	if r == nil {
		return types.ManifestEntry{}, false
	}
	e, ok := r.byItem[strings.TrimSpace(itemID)]
	return e, ok
}

// Paper returns the entry in runID whose semantic paper id is paperID.
func (x *Index) Paper(runID, paperID string) (types.ManifestEntry, bool) {
	r := x.run(runID)
	if r == nil {
		return types.ManifestEntry{}, false
	}
	e, ok := r.byPaper[ident.NormalizePaperID(paperID)]
	return e, ok
}

// TitleURL returns the entry in runID matching the normalized (title, url) pair.
func (x *Index) TitleURL(runID, title, rawURL string) (types.ManifestEntry, bool) {
	r := x.run(runID)
	if r == nil {
		return types.ManifestEntry{}, false
	}
	e, ok := r.byTitle[titleURL{ident.NormalizeTitle(title), ident.NormalizeURL(rawURL)}]
	return e, ok
}

func (x *Index) run(runID string) *runEntries {
	if r, ok := x.runs[runID]; ok {
		return r
	}
	if x.dir == "" || runID == "" {
		return nil
	}
	if m, err := Load(ManifestPath(x.dir, runID)); err == nil && m.RunID == runID {
		x.Add(m)
		return x.runs[runID]
	}
	x.scan()
	return x.runs[runID]
}

// scan indexes every readable manifest in the directory once. Manifests
// already indexed are not replaced; unreadable files are skipped.
func (x *Index) scan() {
	if x.scanned {
		return
	}
	x.scanned = true
	paths, err := List(x.dir)
	if err != nil {
		return
	}
	for _, p := range paths {
		m, err := Load(p)
		if err != nil {
			continue
		}
		if _, ok := x.runs[m.RunID]; !ok {
			x.Add(m)
		}
	}
}
