// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the feedback-engine:
// run manifests, reviewer questionnaires, feedback events, one-click token
// claims, seed sets, and stage configuration.
// Implements: docs/ARCHITECTURE § Data Model.
package types

import "strings"

// FormatVersion is written into every manifest, questionnaire, queue, and token.
const FormatVersion = "v1"

// Label is a reviewer judgment about a single manifest item.
type Label string

const (
	LabelPositive  Label = "positive"
	LabelNegative  Label = "negative"
	LabelUndecided Label = "undecided"
)

// ParseLabel normalizes s (trimmed, lower-cased) and reports whether it is
// one of the allowed labels.
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LabelPositive, LabelNegative, LabelUndecided:
		return l, true
	}
	return l, false
}

// Status is the lifecycle state of a FeedbackEvent. An event starts pending
// and moves exactly once to applied or rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
)

// Terminal reports whether s is applied or rejected.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusRejected
}

// ManifestEntry maps a short item id to the paper a reviewer saw.
type ManifestEntry struct {
	ItemID          string            `json:"item_id"`
	Title           string            `json:"title"`
	URL             string            `json:"url"`
	SemanticPaperID *string           `json:"semantic_paper_id"`
	ActionLinks     map[string]string `json:"action_links,omitempty"`
}

// PaperID returns the entry's semantic paper id, or "" when absent.
func (e ManifestEntry) PaperID() string {
	if e.SemanticPaperID == nil {
		return ""
	}
	return *e.SemanticPaperID
}

// Manifest is the immutable per-run record of items visible in a report.
type Manifest struct {
	Version     string          `json:"version"`
	RunID       string          `json:"run_id"`
	GeneratedAt string          `json:"generated_at"`
	Papers      []ManifestEntry `json:"papers"`
}

// QuestionnaireLabel is one reviewer answer in a questionnaire file.
// ReviewedAt, SemanticPaperID, Title, and URL are optional; they let a
// reviewer override the timestamp or identify an item without its item_id.
type QuestionnaireLabel struct {
	ItemID          string `json:"item_id"`
	Label           string `json:"label"`
	Note            string `json:"note"`
	ReviewedAt      string `json:"reviewed_at,omitempty"`
	SemanticPaperID string `json:"semantic_paper_id,omitempty"`
	Title           string `json:"title,omitempty"`
	URL             string `json:"url,omitempty"`

	// Problem is set by the loader when the entry could not be read; the
	// entry is then counted as invalid instead of failing the whole file.
	Problem string `json:"-"`
}

// Questionnaire is the reviewer-edited feedback file for one run.
type Questionnaire struct {
	Version    string               `json:"version"`
	RunID      string               `json:"run_id"`
	Reviewer   string               `json:"reviewer"`
	ReviewedAt string               `json:"reviewed_at"`
	Labels     []QuestionnaireLabel `json:"labels"`
}

// FeedbackEvent is one reviewer action regardless of the channel it arrived
// through. Field names match the remote feedback_events table columns.
type FeedbackEvent struct {
	EventID                 string `json:"event_id"`
	RunID                   string `json:"run_id"`
	ItemID                  string `json:"item_id"`
	Label                   string `json:"label"`
	Reviewer                string `json:"reviewer"`
	Source                  string `json:"source"`
	CreatedAt               string `json:"created_at"`
	Status                  Status `json:"status"`
	ResolvedSemanticPaperID string `json:"resolved_semantic_paper_id,omitempty"`
	AppliedAt               string `json:"applied_at,omitempty"`
	Error                   string `json:"error,omitempty"`
}

// TokenClaims is the payload carried by a signed one-click feedback link.
// Fields are declared in key order so the JSON encoding is canonical.
type TokenClaims struct {
	Exp             string `json:"exp"`
	ItemID          string `json:"item_id"`
	Label           Label  `json:"label"`
	Reviewer        string `json:"reviewer"`
	RunID           string `json:"run_id"`
	SemanticPaperID string `json:"semantic_paper_id"`
	Version         string `json:"version"`
}

// Seeds is the persisted allow/deny identifier state consumed by the
// recommender. The two lists are disjoint.
type Seeds struct {
	PositivePaperIDs []string `json:"positive_paper_ids"`
	NegativePaperIDs []string `json:"negative_paper_ids"`
}
