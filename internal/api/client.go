// Package api is a small JSON client for the REST side of the backend. Rate
// limited requests are handed to a retry queue instead of failing at once.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/retry"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/spf13/cast"
	"github.com/yanun0323/errors"
)

const (
	APIKeyHeader   = "X-API-Key"
	DefaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.URL, e.Code, e.Message)
}

// Unwrap lets errors.Is match exception.ErrAPIRateLimited or
// exception.ErrAPIUnexpected.
func (e *StatusError) Unwrap() error {
	if e.RateLimited() {
		return exception.ErrAPIRateLimited
	}
	return exception.ErrAPIUnexpected
}

// RateLimited reports whether the server asked the client to slow down.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// Client issues JSON GET requests against the backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	apiKey  string
	retry   *retry.Queue
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// HTTP defaults to a client with DefaultTimeout.
	HTTP *http.Client
	// Retry receives 429 responses. Without it they fail immediately.
	Retry *retry.Queue
}

// NewClient validates the base URL and builds a client.
func NewClient(opt Options) (*Client, error) {
	if opt.BaseURL == "" {
		return nil, exception.ErrAPIEmptyBaseURL
	}
	u, err := url.Parse(opt.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url").With("base_url", opt.BaseURL)
	}
	if opt.HTTP == nil {
		opt.HTTP = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: u, http: opt.HTTP, apiKey: opt.APIKey, retry: opt.Retry}, nil
}

// GetJSON fetches endpoint and decodes the body into out. A 429 is retried
// through the queue, honoring Retry-After on the first retry.
func (c *Client) GetJSON(ctx context.Context, endpoint string, out any) error {
	err := c.get(ctx, endpoint, out)
	se, ok := err.(*StatusError)
	if !ok || !se.RateLimited() || c.retry == nil {
		return err
	}

	h := retry.Enqueue(ctx, c.retry, se.URL, se.RetryAfter, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.get(ctx, endpoint, out)
	})
	_, err = h.Wait(ctx)
	return err
}

func (c *Client) resolve(endpoint string) string {
	u := *c.baseURL
	ep, err := url.Parse(endpoint)
	if err != nil {
		u.Path = path.Join("/", u.Path, endpoint)
		return u.String()
	}
	u.Path = path.Join("/", u.Path, ep.Path)
	u.RawQuery = ep.RawQuery
	return u.String()
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	target := c.resolve(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, "new request").With("url", target)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request").With("url", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     http.MethodGet,
			URL:        target,
			Code:       resp.StatusCode,
			Message:    errorMessage(body),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body").With("url", target)
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return errors.Wrapf(exception.ErrAPIDecodeBody, "url: %s, err: %+v", target, err)
	}
	return nil
}

// errorMessage pulls "detail" or "message" out of a JSON error body, falling
// back to the trimmed body text.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(body, &payload); err == nil {
		if s, err := cast.ToStringE(payload.Detail); err == nil && s != "" {
			return s
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// ParseRetryAfter reads a Retry-After header in delta-seconds or HTTP-date
// form. Missing, invalid or past values yield 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0
	}
	if d := t.Sub(now); d > 0 {
		return d
	}
	return 0
}
