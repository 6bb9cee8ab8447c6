// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/feedback-engine/internal/queue"
	"github.com/pdiddy/feedback-engine/internal/remote"
	"github.com/pdiddy/feedback-engine/internal/secrets"
	"github.com/pdiddy/feedback-engine/internal/token"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Verify a one-click token and record it as a pending event",
	Long: `Ingest verifies a signed one-click token and records the judgment as a
pending feedback event, either in the local queue file or, with --remote, in
the remote feedback_events table. Nothing is recorded if verification fails.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("token", "", "signed one-click token")
	ingestCmd.Flags().String("queue-file", defaultQueueFile, "local feedback queue")
	ingestCmd.Flags().String("signing-secret", "", "HMAC secret (default from FEEDBACK_LINK_SIGNING_SECRET)")
	ingestCmd.Flags().String("source", queue.DefaultSource, "event source recorded on the event")
	ingestCmd.Flags().Bool("remote", false, "insert into the remote feedback_events table instead of the queue")
	addRemoteFlags(ingestCmd)

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	tok, _ := cmd.Flags().GetString("token")
	if tok == "" {
		return fmt.Errorf("--token is required")
	}
	secret := secretSetting(cmd, "signing-secret", secrets.LinkSigningSecret)
	source, _ := cmd.Flags().GetString("source")

	if useRemote, _ := cmd.Flags().GetBool("remote"); !useRemote {
		queuePath := stringSetting(cmd, "queue-file", "queue_file")
		ev, err := queue.IngestToken(queuePath, tok, []byte(secret), source)
		if err != nil {
			return fmt.Errorf("rejecting token: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Queued %s: %s/%s %s\n", ev.EventID, ev.RunID, ev.ItemID, ev.Label)
		return nil
	}

	claims, err := token.Verify(tok, []byte(secret))
	if err != nil {
		return fmt.Errorf("rejecting token: %w", err)
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
	ev := queue.NewEvent(claims, source, time.Now())
	if err := remote.InsertEvent(ctx, conn, ev); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Recorded %s: %s/%s %s\n", ev.EventID, ev.RunID, ev.ItemID, ev.Label)
	return nil
}
