// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/internal/seeds"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// Source is one feedback channel. ListPending returns the events in scope;
// MarkTerminal persists a single terminal transition. Apply calls
// MarkTerminal only after the seed file has been written.
type Source interface {
	Name() string
	ListPending(ctx context.Context) ([]Event, error)
	MarkTerminal(ctx context.Context, ev types.FeedbackEvent) error
}

// Committer is implemented by sources that buffer MarkTerminal calls and
// persist them in one write.
type Committer interface {
	Commit(ctx context.Context) error
}

// Warner is implemented by sources that tolerate listing problems and
// report them alongside the per-event warnings.
type Warner interface {
	Warnings() []string
}

// Options controls an Apply pass.
type Options struct {
	SeedsPath string
	DryRun    bool
	Now       func() time.Time
}

// Summary is what Apply reports to the operator.
type Summary struct {
	Source        string   `json:"source"`
	SeedsPath     string   `json:"seeds_path"`
	DryRun        bool     `json:"dry_run"`
	Counts        Counts   `json:"counts"`
	Warnings      []string `json:"warnings"`
	PositiveTotal int      `json:"positive_total"`
	NegativeTotal int      `json:"negative_total"`
}

// Apply runs one reconciliation pass: list pending events from src, load
// the seed file, reconcile in memory, then (unless DryRun) save the seed
// file and persist every terminal transition. A listing or seed-load
// failure returns before anything is written.
func Apply(ctx context.Context, src Source, index *manifest.Index, opts Options, w io.Writer) (Summary, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	summary := Summary{Source: src.Name(), SeedsPath: opts.SeedsPath, DryRun: opts.DryRun}

	events, err := src.ListPending(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing %s events: %w", src.Name(), err)
	}
	current, err := seeds.Load(opts.SeedsPath)
	if err != nil {
		return summary, err
	}

	res := Reconcile(index, events, current, opts.Now())
	summary.Counts = res.Counts
	if wr, ok := src.(Warner); ok {
		summary.Warnings = append(summary.Warnings, wr.Warnings()...)
	}
	summary.Warnings = append(summary.Warnings, res.Warnings...)
	out := res.Seeds.Seeds()
	summary.PositiveTotal = len(out.PositivePaperIDs)
	summary.NegativeTotal = len(out.NegativePaperIDs)

	for _, o := range res.Outcomes {
		switch {
		case o.Winner:
			fmt.Fprintf(w, "applied  %s %s -> %s\n", eventName(o.Event), o.Event.Label, o.Event.ResolvedSemanticPaperID)
		default:
			fmt.Fprintf(w, "rejected %s: %s\n", eventName(o.Event), o.Event.Error)
		}
	}

	if opts.DryRun {
		fmt.Fprintf(w, "\ndry run: %s\n", countLine(summary))
		return summary, nil
	}

	if err := seeds.Save(opts.SeedsPath, res.Seeds); err != nil {
		return summary, err
	}
	for _, o := range res.Outcomes {
		if err := src.MarkTerminal(ctx, o.Event); err != nil {
			return summary, fmt.Errorf("marking event %s %s: %w", eventName(o.Event), o.Event.Status, err)
		}
	}
	if c, ok := src.(Committer); ok {
		if err := c.Commit(ctx); err != nil {
			return summary, fmt.Errorf("committing %s statuses: %w", src.Name(), err)
		}
	}

	fmt.Fprintf(w, "\n%s\n", countLine(summary))
	return summary, nil
}

func countLine(s Summary) string {
	return fmt.Sprintf("applied: %d, undecided: %d, rejected: %d, invalid: %d, skipped: %d, positive_total: %d, negative_total: %d",
		s.Counts.Applied, s.Counts.Undecided, s.Counts.Rejected, s.Counts.Invalid, s.Counts.Skipped,
		s.PositiveTotal, s.NegativeTotal)
}

func eventName(ev types.FeedbackEvent) string {
	if ev.EventID != "" {
		return ev.EventID
	}
	return ev.RunID + "/" + ev.ItemID
}
