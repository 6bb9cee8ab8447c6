// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Paper is a finalized item from a recommendation run: the unit a reviewer
// sees in the delivered report and labels afterwards.
type Paper struct {
	// Title is the paper title as shown in the report.
	Title string `json:"title" yaml:"title"`

	// URL is the link rendered in the report. Manifest visibility filtering
	// matches on the normalized form of this value.
	URL string `json:"url" yaml:"url"`

	// SemanticPaperID is the Semantic Scholar identifier (e.g. "CorpusId:123",
	// a bare corpus number, or a 40-char paper hash). Empty when unknown.
	SemanticPaperID string `json:"semantic_paper_id,omitempty" yaml:"semantic_paper_id,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// ArxivID is set when the paper has an arXiv preprint.
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// PDFURL is a direct PDF link when one is known.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Source identifies the backend that produced the paper (e.g. "semantic_scholar").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}
