// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/feedback-engine/internal/secrets"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "feedback-engine/0.1"
	defaultSeedsFile = "semantic_scholar_seeds.json"
	defaultQueueFile = "artifacts/feedback_queue.json"
	defaultArtifacts = "artifacts"
)

// envKeyReplacer maps nested keys such as remote.dsn to
// FEEDBACK_ENGINE_REMOTE_DSN.
var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// A setting resolves as: flag set on the command line, then the viper key
// (config file or environment), then the flag's default.

func stringSetting(cmd *cobra.Command, flag, key string) string {
	if changed(cmd.Flags(), flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	if changed(cmd.Flags(), flag) {
		v, _ := cmd.Flags().GetInt(flag)
		return v
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func durationSetting(cmd *cobra.Command, flag, key string) time.Duration {
	if changed(cmd.Flags(), flag) {
		v, _ := cmd.Flags().GetDuration(flag)
		return v
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	v, _ := cmd.Flags().GetDuration(flag)
	return v
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

// secretSetting prefers an explicit flag, then the secrets store.
func secretSetting(cmd *cobra.Command, flag, key string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	return loadedSecrets.Get(key)
}

// addRemoteFlags registers the flags shared by every command that talks
// to the remote event table.
func addRemoteFlags(cmd *cobra.Command) {
	cmd.Flags().String("remote-driver", string(types.DriverD1), "remote backend: d1, sqlite, or postgres")
	cmd.Flags().String("remote-dsn", "", "SQLite path or Postgres connection string (sqlite/postgres drivers)")
	cmd.Flags().String("account-id", "", "Cloudflare account id (default from CLOUDFLARE_ACCOUNT_ID)")
	cmd.Flags().String("database-id", "", "D1 database id (default from D1_DATABASE_ID)")
	cmd.Flags().String("api-token", "", "Cloudflare API token (default from CLOUDFLARE_API_TOKEN)")
	cmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout")
}

func remoteConfig(cmd *cobra.Command) types.RemoteConfig {
	accountID := stringSetting(cmd, "account-id", "remote.account_id")
	if accountID == "" {
		accountID = loadedSecrets.Get(secrets.CloudflareAccountID)
	}
	databaseID := stringSetting(cmd, "database-id", "remote.database_id")
	if databaseID == "" {
		databaseID = loadedSecrets.Get(secrets.D1DatabaseID)
	}
	return types.RemoteConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   durationSetting(cmd, "timeout", ""),
			UserAgent: defaultUserAgent,
		},
		Driver:     types.RemoteDriver(strings.ToLower(stringSetting(cmd, "remote-driver", "remote.driver"))),
		DSN:        stringSetting(cmd, "remote-dsn", "remote.dsn"),
		AccountID:  accountID,
		DatabaseID: databaseID,
		APIToken:   secretSetting(cmd, "api-token", secrets.CloudflareAPIToken),
	}
}

func manifestConfig(cmd *cobra.Command) types.ManifestConfig {
	return types.ManifestConfig{
		OutputDir:     stringSetting(cmd, "out-dir", "manifests_dir"),
		LinkBaseURL:   stringSetting(cmd, "link-base-url", "link_base_url"),
		SigningSecret: secretSetting(cmd, "signing-secret", secrets.LinkSigningSecret),
		Reviewer:      stringSetting(cmd, "reviewer", "reviewer"),
		TokenTTL:      durationSetting(cmd, "token-ttl", "token_ttl"),
	}
}

func applyConfig(cmd *cobra.Command) types.ApplyConfig {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	return types.ApplyConfig{
		SeedsFile:    stringSetting(cmd, "seeds-file", "seeds_file"),
		ManifestsDir: stringSetting(cmd, "manifests-dir", "manifests_dir"),
		RunID:        stringSetting(cmd, "run-id", ""),
		DryRun:       dryRun,
	}
}
