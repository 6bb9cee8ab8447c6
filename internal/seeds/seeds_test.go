// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package seeds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/feedback-engine/pkg/types"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, set.Positive)
	assert.Empty(t, set.Negative)
}

func TestLoadNormalizesAndResolvesOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "positive_paper_ids": [282913080, "CorpusId:5", "ARXIV:1", "", "CorpusId:7"],
  "negative_paper_ids": ["7", null]
}`), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, types.Seeds{
		PositivePaperIDs: []string{"CorpusId:5", "CorpusId:282913080", "ARXIV:1"},
		NegativePaperIDs: []string{"CorpusId:7"},
	}, set.Seeds())
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"positive_paper_ids": [1.5]}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestAddKeepsSetsDisjoint(t *testing.T) {
	set := NewSet()
	assert.True(t, set.Add("111", types.LabelPositive))
	assert.False(t, set.Add("CorpusId:111", types.LabelPositive), "already positive")
	assert.True(t, set.Add("111", types.LabelNegative))
	assert.False(t, set.Positive["CorpusId:111"])
	assert.True(t, set.Negative["CorpusId:111"])

	assert.False(t, set.Add("222", types.LabelUndecided))
	assert.False(t, set.Add("", types.LabelPositive))
	assert.Len(t, set.Positive, 0)
	assert.Len(t, set.Negative, 1)
}

func TestCloneIsIndependent(t *testing.T) {
	set := NewSet()
	set.Add("1", types.LabelPositive)
	c := set.Clone()
	c.Add("1", types.LabelNegative)
	assert.True(t, set.Positive["CorpusId:1"])
	assert.False(t, set.Negative["CorpusId:1"])
}

func TestSaveIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "seeds.json")
	set := NewSet()
	set.Add("222", types.LabelPositive)
	set.Add("CorpusId:111", types.LabelNegative)
	set.Add("abc", types.LabelPositive)

	require.NoError(t, Save(path, set))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{
  "positive_paper_ids": [
    "CorpusId:222",
    "abc"
  ],
  "negative_paper_ids": [
    "CorpusId:111"
  ]
}
`, string(first))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Save(path, reloaded))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSaveEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.json")
	require.NoError(t, Save(path, NewSet()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"positive_paper_ids\": [],\n  \"negative_paper_ids\": []\n}\n", string(data))
}
