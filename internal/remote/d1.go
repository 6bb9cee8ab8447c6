// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/feedback-engine/internal/httputil"
)

// d1APIBase is the Cloudflare API root. Tests override it.
var d1APIBase = "https://api.cloudflare.com/client/v4"

// D1Client runs statements through the D1 HTTP query endpoint.
type D1Client struct {
	accountID  string
	databaseID string
	apiToken   string
	userAgent  string
	client     *http.Client
}

// NewD1Client returns a client for one D1 database. Every argument except
// userAgent is required.
func NewD1Client(accountID, databaseID, apiToken, userAgent string, timeout time.Duration) (*D1Client, error) {
	var missing []string
	if strings.TrimSpace(accountID) == "" {
		missing = append(missing, "CLOUDFLARE_ACCOUNT_ID")
	}
	if strings.TrimSpace(databaseID) == "" {
		missing = append(missing, "D1_DATABASE_ID")
	}
	if strings.TrimSpace(apiToken) == "" {
		missing = append(missing, "CLOUDFLARE_API_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &D1Client{
		accountID:  accountID,
		databaseID: databaseID,
		apiToken:   apiToken,
		userAgent:  userAgent,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// d1Response is the envelope returned by the query endpoint.
type d1Response struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result []struct {
		Results []map[string]any `json:"results"`
		Success bool             `json:"success"`
	} `json:"result"`
}

// Query runs stmt and returns the rows of the first result set.
func (c *D1Client) Query(ctx context.Context, stmt string) ([]Row, error) {
	resp, err := c.do(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	rows := make([]Row, 0, len(resp.Result[0].Results))
	for _, r := range resp.Result[0].Results {
		rows = append(rows, Row(r))
	}
	return rows, nil
}

// Execute runs stmt and discards any rows.
func (c *D1Client) Execute(ctx context.Context, stmt string) error {
	_, err := c.do(ctx, stmt)
	return err
}

// Close is a no-op; D1 holds no connection.
func (c *D1Client) Close() error { return nil }

func (c *D1Client) do(ctx context.Context, stmt string) (*d1Response, error) {
	body, err := json.Marshal(map[string]string{"sql": stmt})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/d1/database/%s/query", d1APIBase, c.accountID, c.databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building D1 request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
	if err != nil {
		return nil, queryError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, queryError(fmt.Errorf("reading D1 response: %w", err))
	}

	var out d1Response
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, queryError(fmt.Errorf("D1 returned status %d", resp.StatusCode))
		}
		return nil, queryError(fmt.Errorf("decoding D1 response: %w", err))
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		if len(msgs) == 0 {
			msgs = append(msgs, fmt.Sprintf("status %d", resp.StatusCode))
		}
		detail := strings.Join(msgs, "; ")
		if strings.Contains(detail, "UNIQUE constraint failed") {
			return nil, queryError(fmt.Errorf("%w: D1: %s", ErrDuplicateEvent, detail))
		}
		return nil, queryError(fmt.Errorf("D1: %s", detail))
	}
	return &out, nil
}
