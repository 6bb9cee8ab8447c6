// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/feedback-engine/pkg/types"
)

const (
	manifestPrefix      = "run_feedback_manifest_"
	questionnairePrefix = "semantic_feedback_template_"
)

// ErrInvalid marks a manifest or questionnaire file that cannot be used.
var ErrInvalid = errors.New("invalid feedback file")

// ManifestPath returns the manifest file path for runID inside dir.
func ManifestPath(dir, runID string) string {
	return filepath.Join(dir, manifestPrefix+runID+".json")
}

// QuestionnairePath returns the questionnaire file path for runID inside dir.
func QuestionnairePath(dir, runID string) string {
	return filepath.Join(dir, questionnairePrefix+runID+".json")
}

// Write persists the manifest and its blank questionnaire into dir and
// returns both paths.
func Write(dir string, m *types.Manifest, q types.Questionnaire) (manifestPath, questionnairePath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating %s: %w", dir, err)
	}
	manifestPath = ManifestPath(dir, m.RunID)
	if err := writeJSON(manifestPath, m); err != nil {
		return "", "", err
	}
	questionnairePath = QuestionnairePath(dir, m.RunID)
	if err := writeJSON(questionnairePath, q); err != nil {
		return "", "", err
	}
	return manifestPath, questionnairePath, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func readJSONObject(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: file not found: %s", ErrInvalid, path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("%w: JSON root must be an object: %s", ErrInvalid, path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: invalid JSON in %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// Load reads and validates a manifest file. The run_id must be present and
// item ids must be unique.
func Load(path string) (*types.Manifest, error) {
	var m types.Manifest
	if err := readJSONObject(path, &m); err != nil {
		return nil, err
	}
	m.RunID = strings.TrimSpace(m.RunID)
	if m.RunID == "" {
		return nil, fmt.Errorf("%w: manifest.run_id is required: %s", ErrInvalid, path)
	}
	seen := make(map[string]bool, len(m.Papers))
	for _, e := range m.Papers {
		id := strings.TrimSpace(e.ItemID)
		if id == "" {
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate item_id %q in %s", ErrInvalid, id, path)
		}
		seen[id] = true
	}
	return &m, nil
}

// LoadQuestionnaire reads a reviewer feedback file. Top-level fields must
// decode; a label entry that does not is kept with Problem set so it is
// counted as invalid on its own.
func LoadQuestionnaire(path string) (*types.Questionnaire, error) {
	var raw struct {
		Version    string            `json:"version"`
		RunID      string            `json:"run_id"`
		Reviewer   string            `json:"reviewer"`
		ReviewedAt string            `json:"reviewed_at"`
		Labels     []json.RawMessage `json:"labels"`
	}
	if err := readJSONObject(path, &raw); err != nil {
		return nil, err
	}
	q := &types.Questionnaire{
		Version:    raw.Version,
		RunID:      raw.RunID,
		Reviewer:   raw.Reviewer,
		ReviewedAt: raw.ReviewedAt,
		Labels:     make([]types.QuestionnaireLabel, 0, len(raw.Labels)),
	}
	for _, entry := range raw.Labels {
		q.Labels = append(q.Labels, decodeLabel(entry))
	}
	return q, nil
}

func decodeLabel(raw json.RawMessage) types.QuestionnaireLabel {
	var e struct {
		ItemID          json.RawMessage `json:"item_id"`
		Label           json.RawMessage `json:"label"`
		Note            json.RawMessage `json:"note"`
		ReviewedAt      json.RawMessage `json:"reviewed_at"`
		SemanticPaperID json.RawMessage `json:"semantic_paper_id"`
		Title           json.RawMessage `json:"title"`
		URL             json.RawMessage `json:"url"`
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &e) != nil {
		return types.QuestionnaireLabel{Problem: "entry must be an object"}
	}

	var l types.QuestionnaireLabel
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"item_id", e.ItemID, &l.ItemID},
		{"label", e.Label, &l.Label},
		{"note", e.Note, &l.Note},
		{"reviewed_at", e.ReviewedAt, &l.ReviewedAt},
		{"semantic_paper_id", e.SemanticPaperID, &l.SemanticPaperID},
		{"title", e.Title, &l.Title},
		{"url", e.URL, &l.URL},
	}
	for _, f := range fields {
		v, ok := scalarText(f.raw)
		if !ok {
			if l.Problem == "" {
				l.Problem = fmt.Sprintf("%s must be a string or number: %s", f.name, bytes.TrimSpace(f.raw))
			}
			continue
		}
		*f.dst = v
	}
	return l
}

// scalarText returns the text of a JSON string or number. Absent and null
// values are empty.
func scalarText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// List returns manifest file paths in dir sorted by name, which is run
// creation order for generated run ids.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, manifestPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
