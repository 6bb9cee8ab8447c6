// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the feedback-engine CLI.
// Subcommands build run manifests, ingest one-click feedback, apply
// feedback to the seed store, and fetch the next round of recommendations.
// See docs/ARCHITECTURE § CLI Surface.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/feedback-engine/internal/httputil"
	"github.com/pdiddy/feedback-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets resolves credentials: environment first, then .secrets/.
var loadedSecrets *secrets.Store

// rootCmd is the base command for the feedback-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "feedback-engine",
	Short: "Fold reviewer feedback into Semantic Scholar seed lists",
	Long: `feedback-engine closes the loop between a delivered paper report and the
next recommendation run. It writes a feedback manifest and questionnaire for
each run, accepts signed one-click judgments, and reconciles every feedback
channel (questionnaire file, local queue, remote table) into the positive and
negative seed lists that drive Semantic Scholar recommendations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Open(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		httputil.RetryLog = os.Stderr
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./feedback-engine.yaml or ~/.config/feedback-engine/feedback-engine.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of credential files")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("feedback-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "feedback-engine"))
		}
	}

	viper.SetEnvPrefix("FEEDBACK_ENGINE")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
