// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident canonicalizes paper identifiers, URLs, titles, and
// timestamps into the comparable forms every other stage matches on.
package ident

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// CorpusPrefix namespaces bare numeric Semantic Scholar corpus ids.
const CorpusPrefix = "CorpusId:"

// NormalizeURL lower-cases scheme and host, strips trailing slashes from
// the path, and drops the query string and fragment. Input that does not
// parse falls back to a trimmed, lower-cased, slash-stripped copy.
// NormalizeURL(NormalizeURL(x)) == NormalizeURL(x).
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return strings.TrimRight(strings.ToLower(s), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// NormalizePaperID rewrites an all-digit id as CorpusId:<digits>. Ids that
// already carry a namespace prefix, and any other non-empty string, are
// returned trimmed. Empty input yields "" which callers treat as absent.
func NormalizePaperID(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}
	if isDigits(s) {
		return CorpusPrefix + s
	}
	return s
}

// NormalizeTitle trims, lower-cases, and collapses whitespace runs. It is
// only used as a last-resort matching key.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// SortSeedIDs normalizes, deduplicates, and orders seed ids: numeric
// CorpusId values ascending by number first, then all other ids
// lexicographically (case-insensitive, ties broken by the raw value).
func SortSeedIDs(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		id := NormalizePaperID(v)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return seedLess(out[i], out[j])
	})
	return out
}

func seedLess(a, b string) bool {
	an, aNum := corpusNumber(a)
	bn, bNum := corpusNumber(b)
	switch {
	case aNum && bNum:
		if len(an) != len(bn) {
			return len(an) < len(bn)
		}
		if an != bn {
			return an < bn
		}
		return a < b
	case aNum:
		return true
	case bNum:
		return false
	}
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if al != bl {
		return al < bl
	}
	return a < b
}

// corpusNumber returns the digits of a CorpusId:<digits> id with leading
// zeros removed, so that length-then-lexicographic order is numeric order.
func corpusNumber(id string) (string, bool) {
	tail, ok := strings.CutPrefix(id, CorpusPrefix)
	if !ok || !isDigits(tail) {
		return "", false
	}
	tail = strings.TrimLeft(tail, "0")
	if tail == "" {
		tail = "0"
	}
	return tail, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// timeLayouts are the ISO-8601 shapes accepted for review timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp and returns it in UTC. Values
// without a zone are taken as UTC. ok is false for empty or unparsable input.
func ParseTime(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatTime renders t as an RFC 3339 UTC timestamp with a Z suffix.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// RunID builds a run identifier that sorts lexicographically by creation
// time and contains no ':' separators (e.g. "2026-02-21T08-00-00Z").
func RunID(now time.Time) string {
	return now.UTC().Format("2006-01-02T15-04-05Z")
}
