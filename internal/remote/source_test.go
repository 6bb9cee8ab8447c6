// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package remote

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/internal/queue"
	"github.com/pdiddy/feedback-engine/internal/reconcile"
	"github.com/pdiddy/feedback-engine/internal/seeds"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

const testRun = "2026-02-21T08-00-00Z"

func strPtr(s string) *string { return &s }

func testManifest() *types.Manifest {
	return &types.Manifest{Version: "v1", RunID: testRun, GeneratedAt: "2026-02-21T08:00:00Z", Papers: []types.ManifestEntry{
		{ItemID: "p01", Title: "Alpha", URL: "https://arxiv.org/abs/1", SemanticPaperID: strPtr("CorpusId:111")},
		{ItemID: "p02", Title: "Beta", URL: "https://arxiv.org/abs/2", SemanticPaperID: strPtr("CorpusId:222")},
		{ItemID: "p03", Title: "Gamma", URL: "https://arxiv.org/abs/3", SemanticPaperID: nil},
	}}
}

func testEvents() []types.FeedbackEvent {
	return []types.FeedbackEvent{
		{EventID: "e1", RunID: testRun, ItemID: "p01", Label: "positive", CreatedAt: "2026-02-21T09:00:00Z", Status: types.StatusPending},
		{EventID: "e2", RunID: testRun, ItemID: "p01", Label: "negative", CreatedAt: "2026-02-21T09:05:00Z", Status: types.StatusPending},
		{EventID: "e3", RunID: testRun, ItemID: "p02", Label: "POSITIVE", CreatedAt: "2026-02-21T09:01:00Z", Status: types.StatusPending},
		{EventID: "e4", RunID: testRun, ItemID: "p03", Label: "positive", CreatedAt: "2026-02-21T09:02:00Z", Status: types.StatusPending},
		{EventID: "e5", RunID: testRun, ItemID: "p02", Label: "maybe", CreatedAt: "2026-02-21T09:03:00Z", Status: types.StatusPending},
	}
}

func fixedNow() time.Time { return time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC) }

func seedRemote(t *testing.T, db *DB, events []types.FeedbackEvent) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, InsertEvent(context.Background(), db, ev))
	}
}

func statuses(t *testing.T, db *DB) map[string]string {
	t.Helper()
	rows, err := db.Query(context.Background(), "SELECT event_id, status, error FROM feedback_events")
	require.NoError(t, err)
	out := map[string]string{}
	for _, r := range rows {
		out[r.String("event_id")] = r.String("status") + "|" + r.String("error")
	}
	return out
}

func TestRemoteApply(t *testing.T) {
	dir := t.TempDir()
	manifestPath, _, err := manifest.Write(dir, testManifest(), types.Questionnaire{})
	require.NoError(t, err)
	db := openTestDB(t)
	seedRemote(t, db, testEvents())
	seedsPath := filepath.Join(dir, "seeds.json")

	var out bytes.Buffer
	summary, err := Apply(context.Background(), db, manifestPath, "", "", reconcile.Options{SeedsPath: seedsPath, Now: fixedNow}, &out)
	require.NoError(t, err)

	assert.Equal(t, "remote", summary.Source)
	assert.Equal(t, 5, summary.Counts.Pending)
	assert.Equal(t, 2, summary.Counts.Applied)
	assert.Equal(t, 3, summary.Counts.Rejected)
	assert.Equal(t, 1, summary.Counts.Invalid)
	assert.Equal(t, 1, summary.Counts.Skipped)
	assert.Equal(t, 1, summary.Counts.Superseded)

	set, err := seeds.Load(seedsPath)
	require.NoError(t, err)
	got := set.Seeds()
	assert.Equal(t, []string{"CorpusId:222"}, got.PositivePaperIDs)
	assert.Equal(t, []string{"CorpusId:111"}, got.NegativePaperIDs)

	st := statuses(t, db)
	assert.Equal(t, "rejected|"+reconcile.ReasonSuperseded, st["e1"])
	assert.Equal(t, "applied|", st["e2"])
	assert.Equal(t, "applied|", st["e3"])
	assert.Equal(t, "rejected|matched paper has no semantic_paper_id", st["e4"])
	assert.True(t, strings.HasPrefix(st["e5"], "rejected|"))
	assert.Contains(t, out.String(), "applied: 2")

	pending, err := PendingEvents(context.Background(), db, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRemoteApplyDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	manifestPath, _, err := manifest.Write(dir, testManifest(), types.Questionnaire{})
	require.NoError(t, err)
	db := openTestDB(t)
	var statements []string
	d1Server(t, db, &statements)
	seedRemote(t, db, testEvents())
	seedsPath := filepath.Join(dir, "seeds.json")
	before := statuses(t, db)

	summary, err := Apply(context.Background(), testD1Client(t), manifestPath, "", testRun,
		reconcile.Options{SeedsPath: seedsPath, DryRun: true, Now: fixedNow}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Counts.Applied)

	assert.NoFileExists(t, seedsPath)
	assert.Equal(t, before, statuses(t, db))
	for _, stmt := range statements {
		assert.True(t, strings.HasPrefix(stmt, "SELECT"), stmt)
	}
}

type failingExecutor struct{}

func (failingExecutor) Query(context.Context, string) ([]Row, error) {
	return nil, queryError(errors.New("network down"))
}

func (failingExecutor) Execute(context.Context, string) error {
	return queryError(errors.New("network down"))
}

func TestRemoteApplyQueryFailureLeavesSeedsUntouched(t *testing.T) {
	dir := t.TempDir()
	seedsPath := filepath.Join(dir, "seeds.json")
	original := []byte("{\n  \"negative_paper_ids\": [],\n  \"positive_paper_ids\": [\"CorpusId:9\"]\n}\n")
	require.NoError(t, os.WriteFile(seedsPath, original, 0o644))

	_, err := Apply(context.Background(), failingExecutor{}, "", dir, "", reconcile.Options{SeedsPath: seedsPath}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrQuery)

	after, err := os.ReadFile(seedsPath)
	require.NoError(t, err)
	assert.Equal(t, original, after)
}

func TestRemoteApplyUsesPublishedManifest(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t)
	require.NoError(t, PublishManifest(context.Background(), db, testManifest()))
	seedRemote(t, db, testEvents()[:1])
	seedsPath := filepath.Join(dir, "seeds.json")

	summary, err := Apply(context.Background(), db, "", dir, "", reconcile.Options{SeedsPath: seedsPath, Now: fixedNow}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts.Applied)

	set, err := seeds.Load(seedsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"CorpusId:111"}, set.Seeds().PositivePaperIDs)
}

func TestRemoteApplyPreResolvedNeedsNoManifest(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t)
	seedRemote(t, db, []types.FeedbackEvent{
		{EventID: "e1", RunID: "unknown-run", ItemID: "p09", Label: "negative", CreatedAt: "2026-02-21T09:00:00Z", ResolvedSemanticPaperID: "777"},
	})
	seedsPath := filepath.Join(dir, "seeds.json")

	summary, err := Apply(context.Background(), db, "", dir, "", reconcile.Options{SeedsPath: seedsPath, Now: fixedNow}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts.Applied)

	set, err := seeds.Load(seedsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"CorpusId:777"}, set.Seeds().NegativePaperIDs)
}

// A table provisioned without feedback_runs still applies resolvable
// events; the unresolvable one is skipped rather than failing the pass.
func TestRemoteApplyWithoutRunsTable(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "events-only.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Execute(context.Background(), Schema[0]))

	seedRemote(t, db, []types.FeedbackEvent{
		{EventID: "e1", RunID: "r-known", ItemID: "p01", Label: "positive", CreatedAt: "2026-02-21T09:00:00Z", ResolvedSemanticPaperID: "111"},
		{EventID: "e2", RunID: "r-unknown", ItemID: "p01", Label: "negative", CreatedAt: "2026-02-21T09:01:00Z"},
	})
	seedsPath := filepath.Join(dir, "seeds.json")

	summary, err := Apply(context.Background(), db, "", dir, "", reconcile.Options{SeedsPath: seedsPath, Now: fixedNow}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts.Pending)
	assert.Equal(t, 1, summary.Counts.Applied)
	assert.Equal(t, 1, summary.Counts.Skipped)
	require.NotEmpty(t, summary.Warnings)
	assert.Contains(t, summary.Warnings[0], "run r-unknown: published manifest unavailable")

	set, err := seeds.Load(seedsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"CorpusId:111"}, set.Seeds().PositivePaperIDs)

	st := statuses(t, db)
	assert.Equal(t, "applied|", st["e1"])
	assert.Equal(t, "rejected|no matching paper in manifest", st["e2"])
}

// The queue and remote channels must produce byte-identical seed files for
// the same events and starting seeds.
func TestQueueAndRemoteParity(t *testing.T) {
	dir := t.TempDir()
	manifestPath, _, err := manifest.Write(dir, testManifest(), types.Questionnaire{})
	require.NoError(t, err)

	start := []byte("{\"positive_paper_ids\": [\"CorpusId:5\", 111], \"negative_paper_ids\": [\"CorpusId:333\"]}")
	queueSeeds := filepath.Join(dir, "queue-seeds.json")
	remoteSeeds := filepath.Join(dir, "remote-seeds.json")
	require.NoError(t, os.WriteFile(queueSeeds, start, 0o644))
	require.NoError(t, os.WriteFile(remoteSeeds, start, 0o644))

	queuePath := filepath.Join(dir, "queue.json")
	require.NoError(t, queue.Save(queuePath, &queue.File{Version: types.FormatVersion, Events: testEvents()}))
	_, err = queue.Apply(context.Background(), queuePath, manifestPath, reconcile.Options{SeedsPath: queueSeeds, Now: fixedNow}, &bytes.Buffer{})
	require.NoError(t, err)

	db := openTestDB(t)
	seedRemote(t, db, testEvents())
	_, err = Apply(context.Background(), db, manifestPath, "", testRun, reconcile.Options{SeedsPath: remoteSeeds, Now: fixedNow}, &bytes.Buffer{})
	require.NoError(t, err)

	q, err := os.ReadFile(queueSeeds)
	require.NoError(t, err)
	r, err := os.ReadFile(remoteSeeds)
	require.NoError(t, err)
	assert.Equal(t, string(q), string(r))
	assert.Contains(t, string(r), "CorpusId:111")
}
