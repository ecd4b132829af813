// Package tracker implements a minimal REST client for a Jira-class issue
// tracker: projects, issue types, issues, components, links, and fields.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starford/raido/internal/apperr"
)

const apiPrefix = "/rest/api/2"

// Client talks to one tracker deployment with a static credential pair.
type Client struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
}

// New creates a tracker client for the given endpoint and credentials.
func New(baseURL, email, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		email:   email,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError carries the HTTP status and response body of a failed call.
type StatusError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker returned %d: %s", e.Status, e.Body)
}

// Unwrap maps the status code onto the apperr sentinels so callers can use
// errors.Is without inspecting status codes.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return apperr.ErrNotFound
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return apperr.ErrAuth
	case e.Status >= 400 && e.Status < 500:
		return apperr.ErrRejected
	default:
		return nil
	}
}

// retryable reports whether a failed call is worth repeating: rate limiting
// and server-side errors are, schema rejections are not.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// do issues one request and decodes the response into out (when non-nil).
// Non-2xx responses become a *StatusError with the body preserved for logs.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("tracker: encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, payload)
	if err != nil {
		return fmt.Errorf("tracker: build request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tracker: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tracker: %s %s: %w", method, path,
			&StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(detail))})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("tracker: decode response: %w", err)
		}
	}
	return nil
}

// get wraps do with a short exponential backoff for transient failures.
// Only reads go through here; writes are never retried at transport level
// because the creation protocol owns its own fallback tiers.
func (c *Client) get(ctx context.Context, path string, out any) error {
	op := func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && !retryable(se.Status) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(op, policy)
}
