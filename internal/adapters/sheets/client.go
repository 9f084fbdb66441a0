// Package sheets talks to the spreadsheet-backed record store: a Google Apps
// Script web-hook that appends one row per POSTed JSON record. The web-hook is
// opaque — this client forwards JSON and relays the response.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseBytes bounds how much of the web-hook response is relayed.
const maxResponseBytes = 1 << 20

// Client posts records to the spreadsheet web-hook.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

// Store is the interface the delivery workflow depends on.
type Store interface {
	Append(ctx context.Context, record any) error
	Forward(ctx context.Context, body []byte) ([]byte, error)
}

// NewClient creates a web-hook client. The web-hook has no timeout behavior
// of its own we can rely on, so the HTTP client carries an explicit one.
// PRE: webhookURL is the deployed Apps Script exec URL
func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Append marshals record and posts it to the web-hook.
// POST: record is appended to the spreadsheet, or an error is returned
func (c *Client) Append(ctx context.Context, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal sheet record: %w", err)
	}
	_, err = c.Forward(ctx, body)
	return err
}

// Forward posts a raw JSON body to the web-hook and returns its response body.
// Used by the /api/sheets proxy endpoint, which relays the response verbatim.
// POST: Returns the web-hook's JSON response or an error on any transport or
// HTTP failure
func (c *Client) Forward(ctx context.Context, body []byte) ([]byte, error) {
	if c.webhookURL == "" {
		return nil, fmt.Errorf("sheets webhook URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sheets request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to sheets webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read sheets response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("sheets_webhook_error", "status", resp.StatusCode)
		return nil, fmt.Errorf("sheets webhook returned status %d", resp.StatusCode)
	}

	return respBody, nil
}
