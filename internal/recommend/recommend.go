// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recommend turns the seed store into the next run's candidate
// papers. It is the consumer of the seed sets that reconciliation writes.
// Implements: docs/ARCHITECTURE § Recommendations.
package recommend

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/feedback-engine/internal/memory"
	"github.com/pdiddy/feedback-engine/internal/seeds"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

const (
	DefaultLimit   = 50
	DefaultSeenTTL = 30 * 24 * time.Hour
)

// Recommender produces papers from seed sets.
type Recommender interface {
	Name() string
	Recommend(ctx context.Context, seeds types.Seeds, limit int) ([]types.Paper, error)
}

// Stats counts what suppression did to one response.
type Stats struct {
	Total      int `json:"total"`
	Suppressed int `json:"suppressed"`
	Forwarded  int `json:"forwarded"`
}

// Run loads the seed file, asks rec for recommendations, and drops papers
// already shown within cfg.SeenTTL. Forwarded papers are recorded in the
// memory file so the next run suppresses them.
func Run(ctx context.Context, rec Recommender, seedsPath string, cfg types.RecommendConfig, w io.Writer) ([]types.Paper, Stats, error) {
	set, err := seeds.Load(seedsPath)
	if err != nil {
		return nil, Stats{}, err
	}
	current := set.Seeds()
	if len(current.PositivePaperIDs) == 0 {
		fmt.Fprintf(w, "%s: no positive seed ids in %s, skipping\n", rec.Name(), seedsPath)
		return nil, Stats{}, nil
	}

	limit := cfg.MaxResults
	if limit == 0 {
		limit = DefaultLimit
	}
	papers, err := rec.Recommend(ctx, current, limit)
	if err != nil {
		return nil, Stats{}, err
	}

	if cfg.MemoryFile == "" {
		return papers, Stats{Total: len(papers), Forwarded: len(papers)}, nil
	}

	mem := memory.New(cfg.MemoryFile, 0)
	mem.Log = w
	if err := mem.Load(); err != nil {
		return nil, Stats{}, err
	}
	ttl := cfg.SeenTTL
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	mem.PruneExpired(ttl)

	forwarded, stats := Suppress(papers, mem, ttl)
	fmt.Fprintf(w, "%s suppression: total=%d, suppressed=%d, forwarded=%d\n",
		rec.Name(), stats.Total, stats.Suppressed, stats.Forwarded)

	ids := make([]string, 0, len(forwarded))
	for _, p := range forwarded {
		ids = append(ids, p.SemanticPaperID)
	}
	mem.MarkSeen(ids, time.Now())
	if err := mem.Save(); err != nil {
		return nil, stats, err
	}
	return forwarded, stats, nil
}

// Suppress removes papers seen within ttl. Papers without an id pass.
func Suppress(papers []types.Paper, mem *memory.Store, ttl time.Duration) ([]types.Paper, Stats) {
	ids := make([]string, 0, len(papers))
	for _, p := range papers {
		if p.SemanticPaperID != "" {
			ids = append(ids, p.SemanticPaperID)
		}
	}
	seen := mem.FilterRecentlySeen(ids, ttl)

	out := make([]types.Paper, 0, len(papers))
	for _, p := range papers {
		if p.SemanticPaperID != "" && seen[p.SemanticPaperID] {
			continue
		}
		out = append(out, p)
	}
	return out, Stats{Total: len(papers), Suppressed: len(papers) - len(out), Forwarded: len(out)}
}
