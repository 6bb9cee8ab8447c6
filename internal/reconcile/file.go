// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// Fatal apply errors.
var (
	ErrRunIDMismatch   = errors.New("run_id mismatch")
	ErrInvalidFeedback = errors.New("invalid feedback file")
)

// SourceQuestionnaire tags events read from a reviewer questionnaire.
const SourceQuestionnaire = "questionnaire"

// FileSource reads events from a reviewer-edited questionnaire. It has no
// event ids, so equal timestamps resolve by position in the file, and
// terminal statuses are not persisted.
type FileSource struct {
	q *types.Questionnaire
}

// NewFileSource validates q against m: both run ids must be present and
// equal, the reviewer must be set, and reviewed_at must parse.
func NewFileSource(q *types.Questionnaire, m *types.Manifest) (*FileSource, error) {
	mRun := strings.TrimSpace(m.RunID)
	fRun := strings.TrimSpace(q.RunID)
	if mRun == "" || fRun == "" {
		return nil, fmt.Errorf("%w: both manifest.run_id and feedback.run_id are required", ErrInvalidFeedback)
	}
	if mRun != fRun {
		return nil, fmt.Errorf("%w: manifest=%s, feedback=%s", ErrRunIDMismatch, mRun, fRun)
	}
	if strings.TrimSpace(q.Reviewer) == "" {
		return nil, fmt.Errorf("%w: feedback.reviewer is required", ErrInvalidFeedback)
	}
	if _, ok := ident.ParseTime(q.ReviewedAt); !ok {
		return nil, fmt.Errorf("%w: feedback.reviewed_at must be an ISO-8601 timestamp", ErrInvalidFeedback)
	}
	return &FileSource{q: q}, nil
}

// Name identifies the channel.
func (s *FileSource) Name() string { return "feedback file" }

// ListPending turns every questionnaire label into a pending event. A
// label's own reviewed_at wins over the file-level one when it parses.
func (s *FileSource) ListPending(_ context.Context) ([]Event, error) {
	reviewer := strings.TrimSpace(s.q.Reviewer)
	events := make([]Event, 0, len(s.q.Labels))
	for _, l := range s.q.Labels {
		at := s.q.ReviewedAt
		if _, ok := ident.ParseTime(l.ReviewedAt); ok {
			at = l.ReviewedAt
		}
		events = append(events, Event{
			FeedbackEvent: types.FeedbackEvent{
				RunID:     strings.TrimSpace(s.q.RunID),
				ItemID:    strings.TrimSpace(l.ItemID),
				Label:     l.Label,
				Reviewer:  reviewer,
				Source:    SourceQuestionnaire,
				CreatedAt: at,
				Status:    types.StatusPending,
			},
			PaperHint: l.SemanticPaperID,
			Title:     l.Title,
			URL:       l.URL,
			Problem:   l.Problem,
		})
	}
	return events, nil
}

// MarkTerminal is a no-op: a questionnaire is reviewer-owned input.
func (s *FileSource) MarkTerminal(context.Context, types.FeedbackEvent) error { return nil }

// ApplyFile loads the manifest and questionnaire and applies the
// questionnaire to the seed store. Any load or validation failure is
// returned before the seed file is touched.
func ApplyFile(ctx context.Context, feedbackPath, manifestPath string, opts Options, w io.Writer) (Summary, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return Summary{}, err
	}
	q, err := manifest.LoadQuestionnaire(feedbackPath)
	if err != nil {
		return Summary{}, err
	}
	src, err := NewFileSource(q, m)
	if err != nil {
		return Summary{}, err
	}
	return Apply(ctx, src, manifest.NewIndex(m), opts, w)
}
