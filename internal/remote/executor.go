// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package remote reaches the shared feedback_events table that the
// one-click endpoint writes to. Three backends implement Executor:
// Cloudflare D1 over its HTTPS query API, a local SQLite file, and
// PostgreSQL. Statements are plain SQL strings so that the same text runs
// unchanged on every backend, including D1, whose query API takes no
// bind parameters.
// Implements: docs/ARCHITECTURE § Remote Sync.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/feedback-engine/internal/ident"
)

var (
	// ErrMissingCredentials is returned when a backend is selected without
	// the settings it needs.
	ErrMissingCredentials = errors.New("missing remote credentials")

	// ErrQuery wraps every failed remote statement.
	ErrQuery = errors.New("remote query failed")

	// ErrDuplicateEvent is returned by InsertEvent when event_id exists.
	ErrDuplicateEvent = errors.New("duplicate feedback event")
)

// Row is one result row keyed by column name.
type Row map[string]any

// String returns the column as text. NULL and missing columns are "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return ident.FormatTime(v)
	default:
		return fmt.Sprint(v)
	}
}

// Executor runs SQL text against a remote table.
type Executor interface {
	Query(ctx context.Context, stmt string) ([]Row, error)
	Execute(ctx context.Context, stmt string) error
}

// Conn is an Executor that holds resources.
type Conn interface {
	Executor
	Close() error
}

// Quote renders s as a single-quoted SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// nullable is Quote, except "" becomes NULL.
func nullable(s string) string {
	if s == "" {
		return "NULL"
	}
	return Quote(s)
}

func queryError(err error) error {
	return fmt.Errorf("%w: %w", ErrQuery, err)
}
