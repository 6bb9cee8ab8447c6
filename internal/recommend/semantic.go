// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/feedback-engine/internal/httputil"
	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// recommendAPIBase is the Semantic Scholar recommendations endpoint.
// Declared as a var so tests can substitute an httptest server.
var recommendAPIBase = "https://api.semanticscholar.org/recommendations/v1/papers/"

const recommendFields = "paperId,title,abstract,authors,year,venue,url,externalIds"

const (
	maxSeedIDs = 100
	maxAuthors = 20
)

// ErrUnauthorized is returned on HTTP 401 or 403.
var ErrUnauthorized = errors.New("Semantic Scholar rejected the API key")

// SemanticScholar asks the Semantic Scholar recommendations API for papers
// similar to the positive seeds and unlike the negative ones.
type SemanticScholar struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// Name returns the backend identifier.
func (b *SemanticScholar) Name() string { return "semantic_scholar" }

// Recommend posts the seed sets and maps the response to papers. Each list
// is capped at 100 ids and limit is clamped to 1..500. No positive seeds
// means no request and no papers.
func (b *SemanticScholar) Recommend(ctx context.Context, seeds types.Seeds, limit int) ([]types.Paper, error) {
	positive := capIDs(ident.SortSeedIDs(seeds.PositivePaperIDs))
	if len(positive) == 0 {
		return nil, nil
	}
	negative := capIDs(ident.SortSeedIDs(seeds.NegativePaperIDs))

	body, err := json.Marshal(recommendRequest{PositivePaperIDs: positive, NegativePaperIDs: negative})
	if err != nil {
		return nil, fmt.Errorf("encoding recommendation request: %w", err)
	}

	params := url.Values{
		"limit":  {strconv.Itoa(ClampLimit(limit))},
		"fields": {recommendFields},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recommendAPIBase+"?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 3)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar recommendations request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 120))
		return nil, fmt.Errorf("Semantic Scholar recommendations returned HTTP %d: %s", resp.StatusCode, snippet)
	}

	var rr recommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	papers := make([]types.Paper, 0, len(rr.RecommendedPapers))
	for _, p := range rr.RecommendedPapers {
		papers = append(papers, p.toPaper())
	}
	return papers, nil
}

// ClampLimit bounds a requested result count to what the API accepts.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > 500:
		return 500
	default:
		return limit
	}
}

func capIDs(ids []string) []string {
	if len(ids) > maxSeedIDs {
		return ids[:maxSeedIDs]
	}
	return ids
}

// toPaper prefers the arXiv abstract page over the Semantic Scholar URL.
func (p semanticPaper) toPaper() types.Paper {
	out := types.Paper{
		Title:           p.Title,
		Abstract:        p.Abstract,
		Year:            p.Year,
		SemanticPaperID: p.PaperID,
		Source:          "semantic_scholar",
		URL:             p.URL,
	}
	if out.URL == "" {
		out.URL = "https://www.semanticscholar.org/paper/" + p.PaperID
	}
	for i, a := range p.Authors {
		if i == maxAuthors {
			break
		}
		if a.Name != "" {
			out.Authors = append(out.Authors, a.Name)
		}
	}
	if arxiv := p.ExternalIDs.ArXiv; arxiv != "" {
		out.ArxivID = arxiv
		out.URL = "https://arxiv.org/abs/" + arxiv
		out.PDFURL = "https://arxiv.org/pdf/" + arxiv + ".pdf"
	}
	return out
}

// Semantic Scholar API JSON structures.
type recommendRequest struct {
	PositivePaperIDs []string `json:"positivePaperIds"`
	NegativePaperIDs []string `json:"negativePaperIds"`
}

type recommendResponse struct {
	RecommendedPapers []semanticPaper `json:"recommendedPapers"`
}

type semanticPaper struct {
	PaperID     string              `json:"paperId"`
	Title       string              `json:"title"`
	Abstract    string              `json:"abstract"`
	Year        int                 `json:"year"`
	Venue       string              `json:"venue"`
	URL         string              `json:"url"`
	Authors     []semanticAuthor    `json:"authors"`
	ExternalIDs semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}
