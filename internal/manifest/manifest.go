// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest builds per-run feedback manifests from a finalized paper
// list and the rendered report, issues signed one-click links, and reads and
// writes manifest and questionnaire files.
// Implements: docs/ARCHITECTURE § Manifest Builder.
package manifest

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/internal/token"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

const (
	// DefaultTokenTTL is used when no TTL is configured.
	DefaultTokenTTL = 7 * 24 * time.Hour
	// MinTokenTTL is the shortest TTL a link is issued with.
	MinTokenTTL = 24 * time.Hour
)

// Options controls manifest generation. Links are issued only when both
// LinkBaseURL and Secret are set.
type Options struct {
	RunID       string
	Now         time.Time
	LinkBaseURL string
	Secret      []byte
	Reviewer    string
	TokenTTL    time.Duration
}

// ExtractHrefs returns the normalized targets of every href attribute in
// reportHTML. Attribute names are matched case-insensitively by the parser.
func ExtractHrefs(reportHTML string) map[string]bool {
	hrefs := map[string]bool{}
	if strings.TrimSpace(reportHTML) == "" {
		return hrefs
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(reportHTML))
	if err != nil {
		return hrefs
	}
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("href"); ok {
			if n := ident.NormalizeURL(v); n != "" {
				hrefs[n] = true
			}
		}
	})
	return hrefs
}

// Build maps the papers visible in reportHTML to sequential item ids
// (p01, p02, ...). A paper is retained only if its normalized URL is among
// the report's hrefs; when the report has content but no hrefs, every paper
// is retained. Build returns nil when nothing is retained, including for an
// empty report.
func Build(papers []types.Paper, reportHTML string, opts Options) (*types.Manifest, error) {
	if len(papers) == 0 || strings.TrimSpace(reportHTML) == "" {
		return nil, nil
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	visible := ExtractHrefs(reportHTML)
	var entries []types.ManifestEntry
	for _, p := range papers {
		if len(visible) > 0 && !visible[ident.NormalizeURL(p.URL)] {
			continue
		}
		entry := types.ManifestEntry{
			Title: p.Title,
			URL:   p.URL,
		}
		if id := ident.NormalizePaperID(p.SemanticPaperID); id != "" {
			entry.SemanticPaperID = &id
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	runID := opts.RunID
	if runID == "" {
		runID = ident.RunID(opts.Now)
	}
	for i := range entries {
		entries[i].ItemID = ItemID(i + 1)
	}

	m := &types.Manifest{
		Version:     types.FormatVersion,
		RunID:       runID,
		GeneratedAt: ident.FormatTime(opts.Now),
		Papers:      entries,
	}
	if opts.LinkBaseURL != "" && len(opts.Secret) > 0 {
		if err := attachActionLinks(m, opts); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ItemID formats the n-th (1-based) manifest item id.
func ItemID(n int) string {
	return fmt.Sprintf("p%02d", n)
}

// EffectiveTTL applies the default and minimum token lifetimes.
func EffectiveTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return DefaultTokenTTL
	case ttl < MinTokenTTL:
		return MinTokenTTL
	}
	return ttl
}

func attachActionLinks(m *types.Manifest, opts Options) error {
	exp := token.Expiry(opts.Now, EffectiveTTL(opts.TokenTTL))
	for i := range m.Papers {
		e := &m.Papers[i]
		paperID := e.PaperID()
		if paperID == "" {
			continue
		}
		links := make(map[string]string, 2)
		for _, label := range []types.Label{types.LabelPositive, types.LabelNegative} {
			tok, err := token.Sign(types.TokenClaims{
				Version:         types.FormatVersion,
				RunID:           m.RunID,
				ItemID:          e.ItemID,
				SemanticPaperID: paperID,
				Label:           label,
				Reviewer:        opts.Reviewer,
				Exp:             exp,
			}, opts.Secret)
			if err != nil {
				return fmt.Errorf("signing %s link for %s: %w", label, e.ItemID, err)
			}
			links[string(label)] = ActionURL(opts.LinkBaseURL, tok)
		}
		e.ActionLinks = links
	}
	return nil
}

// ActionURL builds the one-click link <base>/feedback?t=<token>.
func ActionURL(base, tok string) string {
	return strings.TrimRight(base, "/") + "/feedback?t=" + url.QueryEscape(tok)
}

// Questionnaire returns the blank reviewer form for m: one undecided
// label per entry.
func Questionnaire(m *types.Manifest, reviewer string, now time.Time) types.Questionnaire {
	labels := make([]types.QuestionnaireLabel, 0, len(m.Papers))
	for _, e := range m.Papers {
		labels = append(labels, types.QuestionnaireLabel{
			ItemID: e.ItemID,
			Label:  string(types.LabelUndecided),
		})
	}
	return types.Questionnaire{
		Version:    types.FormatVersion,
		RunID:      m.RunID,
		Reviewer:   reviewer,
		ReviewedAt: ident.FormatTime(now),
		Labels:     labels,
	}
}
