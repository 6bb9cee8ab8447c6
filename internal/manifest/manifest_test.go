// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/feedback-engine/internal/token"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

var testNow = time.Date(2026, 2, 21, 8, 0, 0, 0, time.UTC)

func samplePapers() []types.Paper {
	return []types.Paper{
		{Title: "Visible Paper", URL: "https://arxiv.org/abs/2501.00001", SemanticPaperID: "123456"},
		{Title: "Hidden Paper", URL: "https://arxiv.org/abs/2501.00002", SemanticPaperID: "CorpusId:999999"},
		{Title: "Visible Without ID", URL: "https://example.com/paper/3/"},
	}
}

const sampleReport = `<html><body>
<a HREF="HTTPS://arxiv.org/abs/2501.00001?utm_source=email">Visible Paper</a>
<a href='https://example.com/paper/3'>Visible Without ID</a>
<link href="https://cdn.example.com/style.css">
</body></html>`

func TestExtractHrefs(t *testing.T) {
	got := ExtractHrefs(sampleReport)
	assert.Equal(t, map[string]bool{
		"https://arxiv.org/abs/2501.00001":  true,
		"https://example.com/paper/3":       true,
		"https://cdn.example.com/style.css": true,
	}, got)
	assert.Empty(t, ExtractHrefs(""))
}

func TestBuildFiltersToVisibleItems(t *testing.T) {
	m, err := Build(samplePapers(), sampleReport, Options{RunID: "2026-02-21T08-00-00Z", Now: testNow})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, types.FormatVersion, m.Version)
	assert.Equal(t, "2026-02-21T08-00-00Z", m.RunID)
	assert.Equal(t, "2026-02-21T08:00:00Z", m.GeneratedAt)
	require.Len(t, m.Papers, 2)

	assert.Equal(t, "p01", m.Papers[0].ItemID)
	assert.Equal(t, "Visible Paper", m.Papers[0].Title)
	assert.Equal(t, "CorpusId:123456", m.Papers[0].PaperID())
	assert.Nil(t, m.Papers[0].ActionLinks)

	assert.Equal(t, "p02", m.Papers[1].ItemID)
	assert.Nil(t, m.Papers[1].SemanticPaperID)
}

func TestBuildDefaultsRunID(t *testing.T) {
	m, err := Build(samplePapers(), sampleReport, Options{Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-21T08-00-00Z", m.RunID)
}

func TestBuildFailOpenWhenReportHasNoLinks(t *testing.T) {
	m, err := Build(samplePapers(), "<p>plain text report</p>", Options{Now: testNow})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Len(t, m.Papers, 3)
	assert.Equal(t, "p03", m.Papers[2].ItemID)
}

func TestBuildReturnsNilWhenNothingVisible(t *testing.T) {
	tests := []struct {
		name   string
		papers []types.Paper
		report string
	}{
		{"no papers", nil, sampleReport},
		{"empty report", samplePapers(), "   "},
		{"no matching hrefs", samplePapers(), `<a href="https://other.org/x">x</a>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Build(tt.papers, tt.report, Options{Now: testNow})
			require.NoError(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestBuildAttachesVerifiableActionLinks(t *testing.T) {
	secret := []byte("link-secret")
	m, err := Build(samplePapers(), sampleReport, Options{
		RunID:       "run-1",
		Now:         testNow,
		LinkBaseURL: "https://feedback.example.com/",
		Secret:      secret,
		Reviewer:    "r@example.com",
		TokenTTL:    2 * time.Hour,
	})
	require.NoError(t, err)

	links := m.Papers[0].ActionLinks
	require.Len(t, links, 2)
	assert.Nil(t, m.Papers[1].ActionLinks, "entries without a paper id get no links")

	for _, label := range []types.Label{types.LabelPositive, types.LabelNegative} {
		u, err := url.Parse(links[string(label)])
		require.NoError(t, err)
		assert.Equal(t, "feedback.example.com", u.Host)
		assert.Equal(t, "/feedback", u.Path)

		raw, err := token.VerifyBytes(u.Query().Get("t"), secret)
		require.NoError(t, err)
		var claims types.TokenClaims
		require.NoError(t, json.Unmarshal(raw, &claims))
		assert.Equal(t, label, claims.Label)
		assert.Equal(t, "run-1", claims.RunID)
		assert.Equal(t, "p01", claims.ItemID)
		assert.Equal(t, "CorpusId:123456", claims.SemanticPaperID)
		assert.Equal(t, "r@example.com", claims.Reviewer)
		assert.Equal(t, "2026-02-22T08:00:00Z", claims.Exp, "TTL below one day is raised to the minimum")
	}
}

func TestEffectiveTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, EffectiveTTL(0))
	assert.Equal(t, MinTokenTTL, EffectiveTTL(time.Hour))
	assert.Equal(t, 72*time.Hour, EffectiveTTL(72*time.Hour))
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	m, err := Build(samplePapers(), sampleReport, Options{RunID: "2026-02-21T08-00-00Z", Now: testNow})
	require.NoError(t, err)

	q := Questionnaire(m, "", testNow)
	mp, qp, err := Write(dir, m, q)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_feedback_manifest_2026-02-21T08-00-00Z.json"), mp)
	assert.Equal(t, filepath.Join(dir, "semantic_feedback_template_2026-02-21T08-00-00Z.json"), qp)

	data, err := os.ReadFile(mp)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.Contains(t, string(data), `"semantic_paper_id": null`)

	loaded, err := Load(mp)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	lq, err := LoadQuestionnaire(qp)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-21T08-00-00Z", lq.RunID)
	require.Len(t, lq.Labels, 2)
	assert.Equal(t, "p01", lq.Labels[0].ItemID)
	assert.Equal(t, "undecided", lq.Labels[0].Label)
	assert.Equal(t, "", lq.Labels[0].Note)
}

func TestLoadQuestionnaireKeepsUnreadableEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run_id": "r1", "reviewer": "u", "labels": [
		{"item_id": 7, "label": "positive", "semantic_paper_id": 222, "note": null},
		42,
		{"item_id": "p02", "label": ["negative"]}
	]}`), 0o644))

	q, err := LoadQuestionnaire(path)
	require.NoError(t, err)
	require.Len(t, q.Labels, 3)
	assert.Equal(t, types.QuestionnaireLabel{ItemID: "7", Label: "positive", SemanticPaperID: "222"}, q.Labels[0])
	assert.Equal(t, "entry must be an object", q.Labels[1].Problem)
	assert.Equal(t, "p02", q.Labels[2].ItemID)
	assert.Equal(t, `label must be a string or number: ["negative"]`, q.Labels[2].Problem)

	require.NoError(t, os.WriteFile(path, []byte(`{"run_id": "r1", "labels": {"item_id": "p01"}}`), 0o644))
	_, err = LoadQuestionnaire(path)
	assert.ErrorIs(t, err, ErrInvalid, "labels must be a list")
}

func TestLoadRejectsInvalidManifests(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.json")},
		{"array root", write("array.json", `[]`)},
		{"bad json", write("bad.json", `{"run_id":`)},
		{"no run id", write("norun.json", `{"papers":[]}`)},
		{"duplicate item ids", write("dup.json", `{"run_id":"r","papers":[{"item_id":"p01"},{"item_id":"p01"}]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
