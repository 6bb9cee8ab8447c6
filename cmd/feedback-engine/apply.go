// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/feedback-engine/internal/queue"
	"github.com/pdiddy/feedback-engine/internal/reconcile"
	"github.com/pdiddy/feedback-engine/internal/remote"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile reviewer feedback into the seed store",
	Long: `Apply folds pending feedback into semantic_scholar_seeds.json. Exactly one
channel is used per invocation:

  --feedback-file F   a completed questionnaire for --manifest-file
  --from-queue        pending events in the local queue for the manifest's run
  --from-remote       pending rows in the remote feedback_events table

The latest judgment per paper wins. With --dry-run nothing is written.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().String("manifest-file", "", "run feedback manifest (optional with --from-remote)")
	applyCmd.Flags().String("feedback-file", "", "completed questionnaire")
	applyCmd.Flags().Bool("from-queue", false, "apply pending events from the local queue")
	applyCmd.Flags().Bool("from-remote", false, "apply pending events from the remote table")
	applyCmd.Flags().String("seeds-file", defaultSeedsFile, "seed store")
	applyCmd.Flags().String("queue-file", defaultQueueFile, "local feedback queue")
	applyCmd.Flags().String("run-id", "", "restrict --from-remote to one run")
	applyCmd.Flags().String("manifests-dir", defaultArtifacts, "directory searched for run manifests")
	applyCmd.Flags().Bool("dry-run", false, "report results without writing anything")
	addRemoteFlags(applyCmd)

	applyCmd.MarkFlagsMutuallyExclusive("from-queue", "from-remote")
	applyCmd.MarkFlagsMutuallyExclusive("feedback-file", "from-queue")
	applyCmd.MarkFlagsMutuallyExclusive("feedback-file", "from-remote")

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	manifestPath, _ := cmd.Flags().GetString("manifest-file")
	feedbackPath, _ := cmd.Flags().GetString("feedback-file")
	fromQueue, _ := cmd.Flags().GetBool("from-queue")
	fromRemote, _ := cmd.Flags().GetBool("from-remote")

	if !fromRemote && manifestPath == "" {
		return fmt.Errorf("--manifest-file is required unless --from-remote is set")
	}
	if !fromQueue && !fromRemote && feedbackPath == "" {
		return fmt.Errorf("choose a channel: --feedback-file, --from-queue, or --from-remote")
	}

	cfg := applyConfig(cmd)
	opts := reconcile.Options{SeedsPath: cfg.SeedsFile, DryRun: cfg.DryRun}
	ctx := context.Background()

	var (
		summary reconcile.Summary
		err     error
	)
	switch {
	case fromQueue:
		summary, err = queue.Apply(ctx, stringSetting(cmd, "queue-file", "queue_file"), manifestPath, opts, os.Stdout)
	case fromRemote:
		conn, openErr := remote.Open(remoteConfig(cmd))
		if openErr != nil {
			return openErr
		}
		defer conn.Close()
		summary, err = remote.Apply(ctx, conn, manifestPath, cfg.ManifestsDir, cfg.RunID, opts, os.Stdout)
	default:
		summary, err = reconcile.ApplyFile(ctx, feedbackPath, manifestPath, opts, os.Stdout)
	}
	if err != nil {
		return err
	}

	for _, w := range summary.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if summary.Source == "remote" {
		fmt.Fprintf(os.Stdout, "pending: %d\n", summary.Counts.Pending)
	}
	return nil
}
