// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package queue stores pending feedback events in a local JSON file.
//
// The file is read fully and rewritten fully on every change; callers must
// serialize writers (one ingestion or apply process at a time).
//
// Implements: docs/ARCHITECTURE § Event Queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/internal/token"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// DefaultSource tags events ingested from one-click email links.
const DefaultSource = "email_link"

// File is the on-disk queue format.
type File struct {
	Version string                `json:"version"`
	Events  []types.FeedbackEvent `json:"events"`
}

// Load reads the queue at path. A missing file is an empty queue.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{Version: types.FormatVersion, Events: []types.FeedbackEvent{}}, nil
		}
		return nil, fmt.Errorf("reading queue %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing queue %s: %w", path, err)
	}
	if f.Version == "" {
		f.Version = types.FormatVersion
	}
	if f.Events == nil {
		f.Events = []types.FeedbackEvent{}
	}
	return &f, nil
}

// Save rewrites the queue file at path.
func Save(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating queue directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing queue: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing queue %s: %w", path, err)
	}
	return nil
}

// Append adds ev to the queue at path and returns it.
func Append(path string, ev types.FeedbackEvent) (types.FeedbackEvent, error) {
	f, err := Load(path)
	if err != nil {
		return types.FeedbackEvent{}, err
	}
	f.Events = append(f.Events, ev)
	if err := Save(path, f); err != nil {
		return types.FeedbackEvent{}, err
	}
	return ev, nil
}

// NewEvent builds a pending event from verified claims.
func NewEvent(claims types.TokenClaims, source string, now time.Time) types.FeedbackEvent {
	if strings.TrimSpace(source) == "" {
		source = DefaultSource
	}
	return types.FeedbackEvent{
		EventID:                 uuid.NewString(),
		RunID:                   claims.RunID,
		ItemID:                  claims.ItemID,
		Label:                   string(claims.Label),
		Reviewer:                claims.Reviewer,
		Source:                  source,
		CreatedAt:               ident.FormatTime(now),
		Status:                  types.StatusPending,
		ResolvedSemanticPaperID: ident.NormalizePaperID(claims.SemanticPaperID),
	}
}

// IngestToken verifies tok and appends the resulting pending event to the
// queue at path. Verification failures are returned unchanged so callers
// can match token.ErrSignature, token.ErrExpired, and friends.
func IngestToken(path, tok string, secret []byte, source string) (types.FeedbackEvent, error) {
	claims, err := token.Verify(tok, secret)
	if err != nil {
		return types.FeedbackEvent{}, err
	}
	return Append(path, NewEvent(claims, source, time.Now()))
}

// MarkTerminal copies ev's terminal state onto every pending event in
// ev's run with the same event id, so replayed submissions settle
// together. Events without an id match on item and created_at instead.
// It reports whether anything was updated.
func (f *File) MarkTerminal(ev types.FeedbackEvent) bool {
	found := false
	for i := range f.Events {
		e := &f.Events[i]
		if e.Status != types.StatusPending || e.RunID != ev.RunID || e.EventID != ev.EventID {
			continue
		}
		if ev.EventID == "" && (e.ItemID != ev.ItemID || e.CreatedAt != ev.CreatedAt) {
			continue
		}
		e.Status = ev.Status
		e.Label = ev.Label
		e.ResolvedSemanticPaperID = ev.ResolvedSemanticPaperID
		e.AppliedAt = ev.AppliedAt
		e.Error = ev.Error
		found = true
		if ev.EventID == "" {
			break
		}
	}
	return found
}

// Pending returns the number of pending events, optionally for one run.
func (f *File) Pending(runID string) int {
	n := 0
	for _, ev := range f.Events {
		if ev.Status == types.StatusPending && (runID == "" || ev.RunID == runID) {
			n++
		}
	}
	return n
}

// ensureContext returns ctx.Err() once ctx is done.
func ensureContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
