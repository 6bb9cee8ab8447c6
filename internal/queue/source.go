// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package queue

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/internal/reconcile"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// Source applies queued events for a single run. Status changes are held
// in memory and written back in one Commit.
type Source struct {
	path  string
	runID string
	file  *File
}

// NewSource loads the queue at path, scoped to runID.
func NewSource(path, runID string) (*Source, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Source{path: path, runID: runID, file: f}, nil
}

// Name identifies the channel.
func (s *Source) Name() string { return "queue" }

// ListPending returns the pending events for the source's run in file order.
// Repeated copies of an event id are listed once; MarkTerminal settles
// every copy.
func (s *Source) ListPending(ctx context.Context) ([]reconcile.Event, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	var events []reconcile.Event
	seen := map[string]bool{}
	for _, ev := range s.file.Events {
		if ev.Status != types.StatusPending || ev.RunID != s.runID {
			continue
		}
		if ev.EventID != "" {
			if seen[ev.EventID] {
				continue
			}
			seen[ev.EventID] = true
		}
		events = append(events, reconcile.Event{FeedbackEvent: ev})
	}
	return events, nil
}

// MarkTerminal records the transition in memory.
func (s *Source) MarkTerminal(ctx context.Context, ev types.FeedbackEvent) error {
	if err := ensureContext(ctx); err != nil {
		return err
	}
	if !s.file.MarkTerminal(ev) {
		return fmt.Errorf("event %s not found in queue", ev.EventID)
	}
	return nil
}

// Commit rewrites the queue file with the recorded transitions.
func (s *Source) Commit(context.Context) error {
	return Save(s.path, s.file)
}

// Apply reconciles the queued events for the manifest's run into the seed
// store at opts.SeedsPath.
func Apply(ctx context.Context, queuePath, manifestPath string, opts reconcile.Options, w io.Writer) (reconcile.Summary, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return reconcile.Summary{}, err
	}
	src, err := NewSource(queuePath, m.RunID)
	if err != nil {
		return reconcile.Summary{}, err
	}
	return reconcile.Apply(ctx, src, manifest.NewIndex(m), opts, w)
}
