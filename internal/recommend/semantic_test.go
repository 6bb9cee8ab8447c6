// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/feedback-engine/internal/httputil"
	"github.com/pdiddy/feedback-engine/internal/memory"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const sampleResponse = `{"recommendedPapers": [
	{"paperId": "abc", "title": "Arxiv Paper", "abstract": "About things.", "year": 2025,
	 "url": "https://www.semanticscholar.org/paper/abc",
	 "authors": [{"authorId": "1", "name": "Ada"}, {"authorId": "2", "name": ""}],
	 "externalIds": {"ArXiv": "2501.00001", "CorpusId": 42}},
	{"paperId": "def", "title": "No Arxiv", "abstract": null, "year": null, "url": null,
	 "authors": [], "externalIds": null}
]}`

func withServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	old := recommendAPIBase
	recommendAPIBase = ts.URL + "/"
	t.Cleanup(func() { recommendAPIBase = old })
	return ts
}

func TestRecommendRequest(t *testing.T) {
	var captured *http.Request
	var body recommendRequest
	ts := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		fmt.Fprint(w, sampleResponse)
	})

	var positive []string
	for i := 0; i < 150; i++ {
		positive = append(positive, fmt.Sprintf("%d", i+1))
	}
	b := &SemanticScholar{Client: ts.Client(), APIKey: "key-1", UserAgent: "feedback-engine/test"}
	_, err := b.Recommend(context.Background(), types.Seeds{PositivePaperIDs: positive, NegativePaperIDs: []string{"CorpusId:9"}}, 9999)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if captured.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", captured.Method)
	}
	q := captured.URL.Query()
	if got := q.Get("limit"); got != "500" {
		t.Errorf("limit param = %q, want 500", got)
	}
	if got := q.Get("fields"); got != recommendFields {
		t.Errorf("fields param = %q", got)
	}
	if got := captured.Header.Get("x-api-key"); got != "key-1" {
		t.Errorf("x-api-key = %q", got)
	}
	if got := captured.Header.Get("User-Agent"); got != "feedback-engine/test" {
		t.Errorf("User-Agent = %q", got)
	}
	if len(body.PositivePaperIDs) != maxSeedIDs {
		t.Errorf("positive ids = %d, want %d", len(body.PositivePaperIDs), maxSeedIDs)
	}
	if body.PositivePaperIDs[0] != "CorpusId:1" {
		t.Errorf("first positive id = %q, want CorpusId:1", body.PositivePaperIDs[0])
	}
	if len(body.NegativePaperIDs) != 1 || body.NegativePaperIDs[0] != "CorpusId:9" {
		t.Errorf("negative ids = %v", body.NegativePaperIDs)
	}
}

func TestRecommendMapsPapers(t *testing.T) {
	ts := withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleResponse)
	})

	b := &SemanticScholar{Client: ts.Client()}
	papers, err := b.Recommend(context.Background(), types.Seeds{PositivePaperIDs: []string{"CorpusId:1"}}, 10)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("got %d papers, want 2", len(papers))
	}

	p := papers[0]
	if p.URL != "https://arxiv.org/abs/2501.00001" {
		t.Errorf("URL = %q, want arXiv abstract page", p.URL)
	}
	if p.PDFURL != "https://arxiv.org/pdf/2501.00001.pdf" {
		t.Errorf("PDFURL = %q", p.PDFURL)
	}
	if p.SemanticPaperID != "abc" || p.Year != 2025 || p.Source != "semantic_scholar" {
		t.Errorf("unexpected paper %+v", p)
	}
	if len(p.Authors) != 1 || p.Authors[0] != "Ada" {
		t.Errorf("Authors = %v, want [Ada]", p.Authors)
	}

	if got := papers[1].URL; got != "https://www.semanticscholar.org/paper/def" {
		t.Errorf("fallback URL = %q", got)
	}
}

func TestRecommendNoPositiveSeedsSkipsRequest(t *testing.T) {
	called := false
	ts := withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})

	b := &SemanticScholar{Client: ts.Client()}
	papers, err := b.Recommend(context.Background(), types.Seeds{NegativePaperIDs: []string{"1"}}, 10)
	if err != nil || papers != nil {
		t.Fatalf("got %v, %v; want nil, nil", papers, err)
	}
	if called {
		t.Error("API called without positive seeds")
	}
}

func TestRecommendErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		unauth bool
	}{
		{"unauthorized", http.StatusUnauthorized, "", true},
		{"forbidden", http.StatusForbidden, "", true},
		{"server error", http.StatusInternalServerError, "boom", false},
		{"bad json", http.StatusOK, "{", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := withServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			b := &SemanticScholar{Client: ts.Client()}
			_, err := b.Recommend(context.Background(), types.Seeds{PositivePaperIDs: []string{"1"}}, 10)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrUnauthorized); got != tt.unauth {
				t.Errorf("errors.Is(ErrUnauthorized) = %v, want %v (%v)", got, tt.unauth, err)
			}
		})
	}
}

func TestRecommendRetriesRateLimit(t *testing.T) {
	calls := 0
	ts := withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, sampleResponse)
	})

	b := &SemanticScholar{Client: ts.Client()}
	papers, err := b.Recommend(context.Background(), types.Seeds{PositivePaperIDs: []string{"1"}}, 10)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(papers) != 2 || calls != 3 {
		t.Errorf("papers = %d, calls = %d; want 2, 3", len(papers), calls)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{-5: 1, 0: 1, 1: 1, 50: 50, 500: 500, 501: 500} {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

type stubRecommender struct {
	papers []types.Paper
	calls  int
}

func (s *stubRecommender) Name() string { return "stub" }

func (s *stubRecommender) Recommend(context.Context, types.Seeds, int) ([]types.Paper, error) {
	s.calls++
	return s.papers, nil
}

func TestRunSuppressesSeenPapers(t *testing.T) {
	dir := t.TempDir()
	seedsPath := filepath.Join(dir, "seeds.json")
	if err := os.WriteFile(seedsPath, []byte(`{"positive_paper_ids": [1], "negative_paper_ids": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	memPath := filepath.Join(dir, "memory.json")
	mem := memory.New(memPath, 0)
	mem.MarkSeen([]string{"seen-recently"}, time.Now().Add(-24*time.Hour))
	mem.MarkSeen([]string{"seen-long-ago"}, time.Now().Add(-90*24*time.Hour))
	if err := mem.Save(); err != nil {
		t.Fatal(err)
	}

	rec := &stubRecommender{papers: []types.Paper{
		{Title: "A", SemanticPaperID: "seen-recently"},
		{Title: "B", SemanticPaperID: "seen-long-ago"},
		{Title: "C", SemanticPaperID: "fresh"},
		{Title: "D"},
	}}
	var out strings.Builder
	papers, stats, err := Run(context.Background(), rec, seedsPath, types.RecommendConfig{MemoryFile: memPath}, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats != (Stats{Total: 4, Suppressed: 1, Forwarded: 3}) {
		t.Errorf("stats = %+v", stats)
	}
	if len(papers) != 3 || papers[0].Title != "B" {
		t.Errorf("papers = %+v", papers)
	}
	if !strings.Contains(out.String(), "suppressed=1") {
		t.Errorf("output = %q", out.String())
	}

	// The forwarded papers are now suppressed on the next run.
	_, stats, err = Run(context.Background(), rec, seedsPath, types.RecommendConfig{MemoryFile: memPath}, &out)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.Forwarded != 1 {
		t.Errorf("second run forwarded %d, want 1 (the paper without an id)", stats.Forwarded)
	}
}

func TestRunWithoutPositiveSeeds(t *testing.T) {
	rec := &stubRecommender{}
	var out strings.Builder
	papers, _, err := Run(context.Background(), rec, filepath.Join(t.TempDir(), "missing.json"), types.RecommendConfig{}, &out)
	if err != nil || papers != nil {
		t.Fatalf("got %v, %v", papers, err)
	}
	if rec.calls != 0 {
		t.Error("recommender called without positive seeds")
	}
	if !strings.Contains(out.String(), "skipping") {
		t.Errorf("output = %q", out.String())
	}
}
