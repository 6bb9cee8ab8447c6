// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/internal/recommend"
	"github.com/pdiddy/feedback-engine/internal/secrets"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Fetch Semantic Scholar recommendations from the seed store",
	Long: `Recommend posts the positive and negative seed lists to the Semantic
Scholar recommendations API and writes the returned papers as an items file
that manifest build can consume. Papers recommended within --seen-ttl are
suppressed when a memory file is configured.`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().String("seeds-file", defaultSeedsFile, "seed store")
	recommendCmd.Flags().String("out", "items.yaml", "output items file")
	recommendCmd.Flags().Int("limit", recommend.DefaultLimit, "number of recommendations (1..500)")
	recommendCmd.Flags().String("memory-file", "", "seen-paper memory (empty disables suppression)")
	recommendCmd.Flags().Duration("seen-ttl", recommend.DefaultSeenTTL, "suppress papers seen within this window")
	recommendCmd.Flags().String("api-key", "", "Semantic Scholar API key (default from SEMANTIC_SCHOLAR_API_KEY)")
	recommendCmd.Flags().Duration("timeout", 40*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg := types.RecommendConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   durationSetting(cmd, "timeout", ""),
			UserAgent: defaultUserAgent,
		},
		APIKey:     secretSetting(cmd, "api-key", secrets.SemanticScholarKey),
		MaxResults: recommend.ClampLimit(intSetting(cmd, "limit", "semantic_scholar.max_results")),
		SeenTTL:    durationSetting(cmd, "seen-ttl", "semantic_scholar.seen_ttl"),
		MemoryFile: stringSetting(cmd, "memory-file", "memory_file"),
	}

	rec := &recommend.SemanticScholar{
		Client:    &http.Client{Timeout: cfg.Timeout},
		APIKey:    cfg.APIKey,
		UserAgent: cfg.UserAgent,
	}
	papers, stats, err := recommend.Run(context.Background(), rec, stringSetting(cmd, "seeds-file", "seeds_file"), cfg, os.Stdout)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if err := manifest.WriteItems(out, papers, manifest.ItemsSummary{
		Source:     rec.Name(),
		Total:      stats.Total,
		Suppressed: stats.Suppressed,
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %d paper(s) to %s\n", len(papers), out)
	return nil
}
