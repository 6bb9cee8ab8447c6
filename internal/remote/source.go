// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package remote

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/internal/reconcile"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

var timeNow = time.Now

// Open connects to the backend selected by cfg.Driver. An empty driver
// means d1.
func Open(cfg types.RemoteConfig) (Conn, error) {
	var (
		conn Conn
		err  error
	)
	switch cfg.Driver {
	case "", types.DriverD1:
		var c *D1Client
		if c, err = NewD1Client(cfg.AccountID, cfg.DatabaseID, cfg.APIToken, cfg.UserAgent, cfg.Timeout); err == nil {
			conn = c
		}
	case types.DriverSQLite:
		var d *DB
		if d, err = OpenSQLite(cfg.DSN); err == nil {
			conn = d
		}
	case types.DriverPostgres:
		var d *DB
		if d, err = OpenPostgres(cfg.DSN); err == nil {
			conn = d
		}
	default:
		err = fmt.Errorf("unknown remote driver %q (want d1, sqlite, or postgres)", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Source lists pending rows from feedback_events and writes each terminal
// transition back with its own UPDATE.
type Source struct {
	ex       Executor
	runID    string
	index    *manifest.Index
	warnings []string
}

// NewSource returns a Source over ex. A non-empty runID restricts the pass
// to one run. Runs missing from index are fetched from feedback_runs when
// their events need manifest resolution; that lookup is best effort.
func NewSource(ex Executor, runID string, index *manifest.Index) *Source {
	return &Source{ex: ex, runID: runID, index: index}
}

// Name identifies the channel.
func (s *Source) Name() string { return "remote" }

// ListPending returns the pending rows in created_at order.
func (s *Source) ListPending(ctx context.Context) ([]reconcile.Event, error) {
	rows, err := PendingEvents(ctx, s.ex, s.runID)
	if err != nil {
		return nil, err
	}
	fetched := map[string]bool{}
	events := make([]reconcile.Event, 0, len(rows))
	for _, ev := range rows {
		if s.index != nil && ev.ResolvedSemanticPaperID == "" && !fetched[ev.RunID] && !s.index.HasRun(ev.RunID) {
			fetched[ev.RunID] = true
			m, err := PublishedManifest(ctx, s.ex, ev.RunID)
			if err != nil {
				s.warnings = append(s.warnings, fmt.Sprintf("run %s: published manifest unavailable: %v", ev.RunID, err))
			} else {
				s.index.Add(m)
			}
		}
		events = append(events, reconcile.Event{FeedbackEvent: ev})
	}
	return events, nil
}

// Warnings returns problems met while listing that did not stop the pass.
func (s *Source) Warnings() []string { return s.warnings }

// MarkTerminal updates the row for ev.EventID.
func (s *Source) MarkTerminal(ctx context.Context, ev types.FeedbackEvent) error {
	return UpdateStatus(ctx, s.ex, ev)
}

// Apply reconciles pending remote events into the seed store. Manifests
// come from manifestPath (optional), then manifestsDir, then the
// feedback_runs table.
func Apply(ctx context.Context, ex Executor, manifestPath, manifestsDir, runID string, opts reconcile.Options, w io.Writer) (reconcile.Summary, error) {
	index := manifest.NewIndex()
	if manifestPath != "" {
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return reconcile.Summary{}, err
		}
		index.Add(m)
	}
	if manifestsDir != "" {
		index.WithDir(manifestsDir)
	}
	return reconcile.Apply(ctx, NewSource(ex, runID, index), index, opts, w)
}
