// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/feedback-engine/pkg/types"
)

// ItemsFile is the final item list of a run: what the recommender
// produced and what the manifest builder consumes. JSON is accepted on
// read since it is valid YAML.
type ItemsFile struct {
	Papers  []types.Paper `yaml:"papers"`
	Summary ItemsSummary  `yaml:"summary,omitempty"`
}

// ItemsSummary records where a list came from.
type ItemsSummary struct {
	Source     string    `yaml:"source,omitempty"`
	Total      int       `yaml:"total"`
	Suppressed int       `yaml:"suppressed"`
	Timestamp  time.Time `yaml:"timestamp"`
}

// WriteItems saves papers to a YAML items file.
func WriteItems(path string, papers []types.Paper, summary ItemsSummary) error {
	if papers == nil {
		papers = []types.Paper{}
	}
	data, err := yaml.Marshal(&ItemsFile{Papers: papers, Summary: summary})
	if err != nil {
		return fmt.Errorf("marshaling items file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating items directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing items file %s: %w", path, err)
	}
	return nil
}

// ReadItems loads papers from path. The document may be an ItemsFile or a
// bare list of papers.
func ReadItems(path string) ([]types.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading items file %s: %w", path, err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing items file %s: %w", path, err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var papers []types.Paper
		if err := root.Decode(&papers); err != nil {
			return nil, fmt.Errorf("decoding items file %s: %w", path, err)
		}
		return papers, nil
	case yaml.MappingNode:
		var f ItemsFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding items file %s: %w", path, err)
		}
		return f.Papers, nil
	default:
		return nil, fmt.Errorf("items file %s: expected a list or a mapping with papers", path)
	}
}
