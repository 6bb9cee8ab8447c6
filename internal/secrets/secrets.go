// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves credentials from the environment and from a
// directory of plain-text files. Each file in the directory represents one
// secret: the filename is the key name and the file contents (trimmed) are
// the value. An environment variable always wins over the file.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key names, as used for files under the secrets directory.
const (
	LinkSigningSecret   = "link-signing-secret"
	CloudflareAPIToken  = "cloudflare-api-token"
	CloudflareAccountID = "cloudflare-account-id"
	D1DatabaseID        = "d1-database-id"
	SemanticScholarKey  = "semantic-scholar-api-key"
)

// EnvVars maps each key to the environment variable that overrides it.
var EnvVars = map[string]string{
	LinkSigningSecret:   "FEEDBACK_LINK_SIGNING_SECRET",
	CloudflareAPIToken:  "CLOUDFLARE_API_TOKEN",
	CloudflareAccountID: "CLOUDFLARE_ACCOUNT_ID",
	D1DatabaseID:        "D1_DATABASE_ID",
	SemanticScholarKey:  "SEMANTIC_SCHOLAR_API_KEY",
}

// Store holds the secrets read from disk.
type Store struct {
	files  map[string]string
	getenv func(string) string
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Open loads dir into a Store that consults the process environment first.
func Open(dir string) (*Store, error) {
	files, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return &Store{files: files, getenv: os.Getenv}, nil
}

// Get returns the value for key: its environment variable if set,
// otherwise the file contents, otherwise "".
func (s *Store) Get(key string) string {
	if s == nil {
		return ""
	}
	if env, ok := EnvVars[key]; ok && s.getenv != nil {
		if v := strings.TrimSpace(s.getenv(env)); v != "" {
			return v
		}
	}
	return s.files[key]
}
