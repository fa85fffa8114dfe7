package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"content_syncer/internal/retry"
)

const userAgent = "ContentSyncer/1.0"

// NewRequest builds a GET request with the headers every provider sends.
// Callers add their own authentication on top.
func NewRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

// DoJSON executes req and decodes a 200 response into v. Non-200 statuses
// are classified so the retry layer can tell throttling and credential
// failures apart from transient faults.
func DoJSON(client *http.Client, req *http.Request, v any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return &retry.RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return retry.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// parseRetryAfter reads a Retry-After header given in whole seconds. Missing
// or malformed values return zero, which leaves the backoff schedule in
// charge.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}
