// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// Schema is the table layout shared by every backend. All columns are
// TEXT so D1, SQLite, and PostgreSQL agree on the stored values.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS feedback_events (
		event_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		label TEXT NOT NULL,
		reviewer TEXT,
		source TEXT,
		created_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		resolved_semantic_paper_id TEXT,
		applied_at TEXT,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_events_status ON feedback_events(status, run_id)`,
	`CREATE TABLE IF NOT EXISTS feedback_runs (
		run_id TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		manifest_json TEXT NOT NULL
	)`,
}

const eventColumns = "event_id, run_id, item_id, label, reviewer, source, created_at, status, resolved_semantic_paper_id, applied_at, error"

// EnsureSchema creates the feedback tables if they do not exist.
func EnsureSchema(ctx context.Context, ex Executor) error {
	for _, stmt := range Schema {
		if err := ex.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// InsertEvent writes ev as a new row. An existing event_id yields
// ErrDuplicateEvent.
func InsertEvent(ctx context.Context, ex Executor, ev types.FeedbackEvent) error {
	if ev.Status == "" {
		ev.Status = types.StatusPending
	}
	stmt := fmt.Sprintf("INSERT INTO feedback_events (%s) VALUES (%s)", eventColumns, strings.Join([]string{
		Quote(ev.EventID),
		Quote(ev.RunID),
		Quote(ev.ItemID),
		Quote(strings.ToLower(strings.TrimSpace(ev.Label))),
		nullable(ev.Reviewer),
		nullable(ev.Source),
		Quote(ev.CreatedAt),
		Quote(string(ev.Status)),
		nullable(ev.ResolvedSemanticPaperID),
		nullable(ev.AppliedAt),
		nullable(ev.Error),
	}, ", "))
	return ex.Execute(ctx, stmt)
}

// PendingEvents lists pending rows ordered by creation time. A non-empty
// runID narrows the result to one run.
func PendingEvents(ctx context.Context, ex Executor, runID string) ([]types.FeedbackEvent, error) {
	stmt := fmt.Sprintf("SELECT %s FROM feedback_events WHERE status = %s", eventColumns, Quote(string(types.StatusPending)))
	if runID != "" {
		stmt += " AND run_id = " + Quote(runID)
	}
	stmt += " ORDER BY created_at, event_id"

	rows, err := ex.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	events := make([]types.FeedbackEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, types.FeedbackEvent{
			EventID:                 r.String("event_id"),
			RunID:                   r.String("run_id"),
			ItemID:                  r.String("item_id"),
			Label:                   r.String("label"),
			Reviewer:                r.String("reviewer"),
			Source:                  r.String("source"),
			CreatedAt:               r.String("created_at"),
			Status:                  types.Status(r.String("status")),
			ResolvedSemanticPaperID: r.String("resolved_semantic_paper_id"),
			AppliedAt:               r.String("applied_at"),
			Error:                   r.String("error"),
		})
	}
	return events, nil
}

// UpdateStatus persists one terminal transition.
func UpdateStatus(ctx context.Context, ex Executor, ev types.FeedbackEvent) error {
	stmt := fmt.Sprintf(
		"UPDATE feedback_events SET status = %s, label = %s, resolved_semantic_paper_id = %s, applied_at = %s, error = %s WHERE event_id = %s",
		Quote(string(ev.Status)),
		Quote(ev.Label),
		nullable(ev.ResolvedSemanticPaperID),
		nullable(ev.AppliedAt),
		nullable(ev.Error),
		Quote(ev.EventID),
	)
	return ex.Execute(ctx, stmt)
}

// PublishManifest upserts m into feedback_runs so the one-click endpoint
// can show reviewers what they are judging.
func PublishManifest(ctx context.Context, ex Executor, m *types.Manifest) error {
	if m == nil || m.RunID == "" {
		return fmt.Errorf("publishing manifest: missing run_id")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	generated := m.GeneratedAt
	if generated == "" {
		generated = ident.FormatTime(timeNow())
	}
	stmt := fmt.Sprintf(
		"INSERT INTO feedback_runs (run_id, generated_at, manifest_json) VALUES (%s, %s, %s) "+
			"ON CONFLICT (run_id) DO UPDATE SET generated_at = excluded.generated_at, manifest_json = excluded.manifest_json",
		Quote(m.RunID), Quote(generated), Quote(string(data)),
	)
	return ex.Execute(ctx, stmt)
}

// PublishedManifest reads a manifest back from feedback_runs. A missing
// run yields nil.
func PublishedManifest(ctx context.Context, ex Executor, runID string) (*types.Manifest, error) {
	rows, err := ex.Query(ctx, "SELECT manifest_json FROM feedback_runs WHERE run_id = "+Quote(runID))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var m types.Manifest
	if err := json.Unmarshal([]byte(rows[0].String("manifest_json")), &m); err != nil {
		return nil, fmt.Errorf("decoding published manifest %s: %w", runID, err)
	}
	return &m, nil
}
