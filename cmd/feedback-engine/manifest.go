// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/internal/manifest"
	"github.com/pdiddy/feedback-engine/internal/remote"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Build run feedback manifests and questionnaires",
}

var manifestBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write the feedback manifest and questionnaire for a delivered run",
	Long: `Build reads the run's final item list (YAML or JSON) and the delivered
HTML report, keeps the items whose URL appears as a link in the report, and
writes run_feedback_manifest_<run_id>.json plus a questionnaire template.

When a link base URL and signing secret are available, every item with a
Semantic Scholar id gets signed positive/negative one-click links.`,
	RunE: runManifestBuild,
}

func init() {
	manifestBuildCmd.Flags().String("items", "", "final item list of the run (YAML or JSON)")
	manifestBuildCmd.Flags().String("report", "", "delivered HTML report")
	manifestBuildCmd.Flags().String("run-id", "", "run identifier (default: current UTC time)")
	manifestBuildCmd.Flags().String("out-dir", defaultArtifacts, "directory for the manifest and questionnaire")
	manifestBuildCmd.Flags().String("link-base-url", "", "feedback endpoint for one-click links")
	manifestBuildCmd.Flags().String("signing-secret", "", "HMAC secret for one-click links (default from FEEDBACK_LINK_SIGNING_SECRET)")
	manifestBuildCmd.Flags().String("reviewer", "", "reviewer embedded in links and the questionnaire")
	manifestBuildCmd.Flags().Duration("token-ttl", manifest.DefaultTokenTTL, "one-click link lifetime (minimum 24h)")
	manifestBuildCmd.Flags().Bool("publish", false, "also upsert the manifest into the remote feedback_runs table")
	addRemoteFlags(manifestBuildCmd)

	manifestCmd.AddCommand(manifestBuildCmd)
	rootCmd.AddCommand(manifestCmd)
}

func runManifestBuild(cmd *cobra.Command, args []string) error {
	itemsPath, _ := cmd.Flags().GetString("items")
	reportPath, _ := cmd.Flags().GetString("report")
	if itemsPath == "" || reportPath == "" {
		return fmt.Errorf("--items and --report are required")
	}

	papers, err := manifest.ReadItems(itemsPath)
	if err != nil {
		return err
	}
	report, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("reading report %s: %w", reportPath, err)
	}

	now := time.Now().UTC()
	runID, _ := cmd.Flags().GetString("run-id")
	if runID == "" {
		runID = ident.RunID(now)
	}
	cfg := manifestConfig(cmd)
	if cfg.LinkBaseURL != "" && cfg.SigningSecret == "" {
		fmt.Fprintln(os.Stderr, "warning: link base URL set but no signing secret; one-click links disabled")
	}

	m, err := manifest.Build(papers, string(report), manifest.Options{
		RunID:       runID,
		Now:         now,
		LinkBaseURL: cfg.LinkBaseURL,
		Secret:      []byte(cfg.SigningSecret),
		Reviewer:    cfg.Reviewer,
		TokenTTL:    cfg.TokenTTL,
	})
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Fprintln(os.Stdout, "No reviewable items in the report; nothing written.")
		return nil
	}

	manifestPath, questionnairePath, err := manifest.Write(cfg.OutputDir, m, manifest.Questionnaire(m, cfg.Reviewer, now))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Manifest:      %s (%d items)\n", manifestPath, len(m.Papers))
	fmt.Fprintf(os.Stdout, "Questionnaire: %s\n", questionnairePath)

	if publish, _ := cmd.Flags().GetBool("publish"); !publish {
		return nil
	}
	ctx := context.Background()
	conn, err := remote.Open(remoteConfig(cmd))
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := remote.EnsureSchema(ctx, conn); err != nil {
		return err
	}
	if err := remote.PublishManifest(ctx, conn, m); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Published run %s\n", m.RunID)
	return nil
}
