package types

import "time"

// HTTPConfig holds shared HTTP settings used by clients that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "feedback-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ManifestConfig holds settings for manifest generation.
type ManifestConfig struct {
	// OutputDir receives the manifest and questionnaire files (default "artifacts").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// LinkBaseURL is the feedback endpoint that one-click links point at.
	// Links are only generated when both LinkBaseURL and SigningSecret are set.
	LinkBaseURL string `json:"link_base_url" yaml:"link_base_url"`

	// SigningSecret is the shared HMAC key for one-click tokens.
	SigningSecret string `json:"-" yaml:"-"`

	// Reviewer is embedded in tokens and prefilled into the questionnaire.
	Reviewer string `json:"reviewer" yaml:"reviewer"`

	// TokenTTL is the lifetime of one-click tokens (default 7 days, minimum 1 day).
	TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl"`
}

// RemoteDriver selects how the remote event table is reached.
type RemoteDriver string

const (
	DriverD1       RemoteDriver = "d1"
	DriverSQLite   RemoteDriver = "sqlite"
	DriverPostgres RemoteDriver = "postgres"
)

// RemoteConfig holds settings for the remote feedback_events table.
type RemoteConfig struct {
	HTTPConfig `yaml:",inline"`

	// Driver selects d1 (Cloudflare D1 over HTTPS), sqlite, or postgres.
	Driver RemoteDriver `json:"driver" yaml:"driver"`

	// DSN is the SQLite path or Postgres connection string for non-D1 drivers.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`

	// AccountID is the Cloudflare account that owns the D1 database.
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`

	// DatabaseID is the D1 database identifier.
	DatabaseID string `json:"database_id,omitempty" yaml:"database_id,omitempty"`

	// APIToken authenticates D1 requests.
	APIToken string `json:"-" yaml:"-"`
}

// ApplyConfig holds settings for one reconciliation pass.
type ApplyConfig struct {
	// SeedsFile is the seed store path (default "semantic_scholar_seeds.json").
	SeedsFile string `json:"seeds_file" yaml:"seeds_file"`

	// ManifestsDir is scanned for run manifests when a remote event has no
	// pre-resolved paper id (default "artifacts").
	ManifestsDir string `json:"manifests_dir" yaml:"manifests_dir"`

	// RunID narrows remote application to a single run. Empty means all runs.
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	// DryRun computes results without writing the seed file or event statuses.
	DryRun bool `json:"dry_run" yaml:"dry_run"`
}

// RecommendConfig holds settings for the Semantic Scholar recommender.
type RecommendConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is an optional Semantic Scholar API key for higher rate limits.
	APIKey string `json:"-" yaml:"-"`

	// MaxResults is the number of recommendations requested (clamped to 1..500).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// SeenTTL suppresses papers recommended within this window (default 30 days).
	SeenTTL time.Duration `json:"seen_ttl" yaml:"seen_ttl"`

	// MemoryFile is the seen-paper memory path. Empty disables suppression.
	MemoryFile string `json:"memory_file,omitempty" yaml:"memory_file,omitempty"`
}
