// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile folds reviewer feedback events into the seed store.
//
// Every apply channel (questionnaire file, local queue, remote table) feeds
// the same engine: each pending event is resolved to a semantic paper id,
// the latest event per id wins, and winners are applied to a working copy
// of the seed sets. Channels differ only in where events come from and how
// terminal statuses are persisted (see Source).
//
// Implements: docs/ARCHITECTURE § Reconciliation Engine.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/internal/seeds"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// ReasonSuperseded is recorded on resolved events that lost to a newer
// event for the same paper.
const ReasonSuperseded = "superseded by newer event"

// Event is a feedback event as the engine sees it. PaperHint, Title, and
// URL are only populated by the questionnaire channel, where reviewers may
// identify an item without its item_id. A non-empty Problem marks an entry
// the channel could not read; it is counted invalid.
type Event struct {
	types.FeedbackEvent
	PaperHint string
	Title     string
	URL       string
	Problem   string
}

// Outcome is the terminal transition of one event in this pass.
type Outcome struct {
	Event  types.FeedbackEvent
	Winner bool
}

// Counts are the aggregate results of a pass. Rejected includes invalid,
// skipped, and superseded events.
type Counts struct {
	Pending    int `json:"pending"`
	Applied    int `json:"applied"`
	Undecided  int `json:"undecided"`
	Rejected   int `json:"rejected"`
	Invalid    int `json:"invalid"`
	Skipped    int `json:"skipped"`
	Superseded int `json:"superseded"`
}

// Result is the output of Reconcile. Seeds is a new working copy; the
// input set is never modified.
type Result struct {
	Seeds    *seeds.Set
	Outcomes []Outcome
	Counts   Counts
	Warnings []string
}

type candidate struct {
	pos     int
	eventID string
	at      time.Time
	label   types.Label
	paperID string
}

// newer reports whether a beats b: later timestamp first, then the greater
// event id when both carry distinct ids, then later position in the batch.
func (a candidate) newer(b candidate) bool {
	if !a.at.Equal(b.at) {
		return a.at.After(b.at)
	}
	if a.eventID != "" && b.eventID != "" && a.eventID != b.eventID {
		return a.eventID > b.eventID
	}
	return a.pos > b.pos
}

// Reconcile resolves events against index, selects one winner per paper id,
// and applies winners to a copy of current. Events already terminal are
// ignored. now stamps applied_at on every transition.
func Reconcile(index *manifest.Index, events []Event, current *seeds.Set, now time.Time) Result {
	if current == nil {
		current = seeds.NewSet()
	}
	res := Result{Seeds: current.Clone()}
	stamp := ident.FormatTime(now)

	outcomes := make([]*Outcome, len(events))
	reject := func(i int, reason string) {
		ev := events[i].FeedbackEvent
		ev.Status = types.StatusRejected
		ev.Error = reason
		ev.AppliedAt = stamp
		outcomes[i] = &Outcome{Event: ev}
		res.Counts.Rejected++
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s %s", describe(events[i], i), reason))
	}

	winners := map[string]candidate{}
	var resolved []candidate

	for i, ev := range events {
		if ev.Status.Terminal() {
			continue
		}
		res.Counts.Pending++

		if ev.Problem != "" {
			res.Counts.Invalid++
			reject(i, "invalid: "+ev.Problem)
			continue
		}
		label, ok := types.ParseLabel(ev.Label)
		if !ok {
			res.Counts.Invalid++
			reject(i, fmt.Sprintf("invalid label: %q", ev.Label))
			continue
		}
		at, ok := ident.ParseTime(ev.CreatedAt)
		if !ok {
			res.Counts.Invalid++
			reject(i, fmt.Sprintf("invalid timestamp: %q", ev.CreatedAt))
			continue
		}
		paperID, reason := resolve(index, ev)
		if paperID == "" {
			res.Counts.Skipped++
			reject(i, reason)
			continue
		}

		c := candidate{pos: i, eventID: ev.EventID, at: at, label: label, paperID: paperID}
		resolved = append(resolved, c)
		if cur, ok := winners[paperID]; !ok || c.newer(cur) {
			winners[paperID] = c
		}
	}

	ids := make([]string, 0, len(winners))
	for id := range winners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		w := winners[id]
		switch w.label {
		case types.LabelPositive, types.LabelNegative:
			res.Seeds.Add(id, w.label)
			res.Counts.Applied++
		default:
			res.Counts.Undecided++
		}
	}

	for _, c := range resolved {
		ev := events[c.pos].FeedbackEvent
		ev.Label = string(c.label)
		ev.ResolvedSemanticPaperID = c.paperID
		ev.AppliedAt = stamp
		if winners[c.paperID].pos == c.pos {
			ev.Status = types.StatusApplied
			ev.Error = ""
			outcomes[c.pos] = &Outcome{Event: ev, Winner: true}
			continue
		}
		ev.Status = types.StatusRejected
		ev.Error = ReasonSuperseded
		outcomes[c.pos] = &Outcome{Event: ev}
		res.Counts.Rejected++
		res.Counts.Superseded++
	}

	for _, o := range outcomes {
		if o != nil {
			res.Outcomes = append(res.Outcomes, *o)
		}
	}
	return res
}

// resolve returns the target paper id for ev, or "" and a reason.
func resolve(index *manifest.Index, ev Event) (string, string) {
	if id := ident.NormalizePaperID(ev.ResolvedSemanticPaperID); id != "" {
		return id, ""
	}
	if index == nil {
		return "", "no matching paper in manifest"
	}

	entry, found := types.ManifestEntry{}, false
	if ev.ItemID != "" {
		entry, found = index.Item(ev.RunID, ev.ItemID)
	}
	if !found && ev.PaperHint != "" {
		entry, found = index.Paper(ev.RunID, ev.PaperHint)
	}
	if !found && (ev.Title != "" || ev.URL != "") {
		entry, found = index.TitleURL(ev.RunID, ev.Title, ev.URL)
	}
	if !found {
		return "", "no matching paper in manifest"
	}
	id := ident.NormalizePaperID(entry.PaperID())
	if id == "" {
		return "", "matched paper has no semantic_paper_id"
	}
	return id, ""
}

func describe(ev Event, i int) string {
	if ev.EventID != "" {
		return fmt.Sprintf("event %s", ev.EventID)
	}
	return fmt.Sprintf("label[%d]", i+1)
}
