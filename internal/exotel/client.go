package exotel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	requestTimeout = 30 * time.Second

	// Retry policy for provider throttling. This is the only defense
	// against throttling cascades and must not be widened to other
	// status codes: business 4xx responses propagate unchanged.
	maxRetries    = 3
	retryBaseWait = 2 * time.Second
)

// ErrRetriesExhausted is returned when the provider kept throttling
// past the final retry attempt.
var ErrRetriesExhausted = errors.New("exotel: retries exhausted")

// APIError is a non-retryable provider rejection (business validation,
// auth failure, provider-side 5xx other than 503).
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exotel: provider returned %d: %s", e.StatusCode, e.Body)
}

// Credentials identify one provider account. Resolved lazily per call.
type Credentials struct {
	APIKey     string
	APIToken   string
	AccountSID string
	Subdomain  string
}

// BaseURL is the account-scoped API root, e.g.
// https://api.exotel.com/v1/Accounts/exo123
// A subdomain carrying an explicit scheme is used verbatim (local testing).
func (c Credentials) BaseURL() string {
	if strings.Contains(c.Subdomain, "://") {
		return fmt.Sprintf("%s/v1/Accounts/%s", strings.TrimRight(c.Subdomain, "/"), c.AccountSID)
	}
	return fmt.Sprintf("https://%s/v1/Accounts/%s", c.Subdomain, c.AccountSID)
}

// Client executes authenticated requests against the provider.
//
// One shared connection-pooled client per process; retry with exponential
// backoff (2s, 4s, 8s) applies only to 429 and 503. Everything else is
// surfaced to the caller on the first response.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

func NewClient(log *slog.Logger) *Client {
	return newClient(log, retryBaseWait)
}

// newClient allows tests to shrink the backoff base.
func newClient(log *slog.Logger, baseWait time.Duration) *Client {
	rc := resty.New().
		SetTimeout(requestTimeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(baseWait).
		SetRetryMaxWaitTime(baseWait << maxRetries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			return isThrottled(r.StatusCode())
		}).
		SetRetryAfter(func(_ *resty.Client, r *resty.Response) (time.Duration, error) {
			// Attempt is 1-based: 2s after the first failure, then 4s, 8s.
			shift := r.Request.Attempt - 1
			if shift < 0 {
				shift = 0
			}
			return baseWait << shift, nil
		})

	return &Client{http: rc, log: log}
}

func isThrottled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// PostForm sends a form-encoded POST and decodes the JSON response into out.
func (c *Client) PostForm(ctx context.Context, creds Credentials, url string, form map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(creds.APIKey, creds.APIToken).
		SetFormData(form).
		Post(url)
	return c.finish(resp, err, out)
}

// GetJSON sends a GET with query parameters and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, creds Credentials, url string, query map[string]string, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetBasicAuth(creds.APIKey, creds.APIToken)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(url)
	return c.finish(resp, err, out)
}

func (c *Client) finish(resp *resty.Response, err error, out any) error {
	if err != nil {
		return fmt.Errorf("exotel: request failed: %w", err)
	}
	if resp.IsError() {
		if isThrottled(resp.StatusCode()) {
			// Still throttled after the final attempt.
			if c.log != nil {
				c.log.Error("provider throttling persisted past retries",
					"status", resp.StatusCode(), "attempts", resp.Request.Attempt)
			}
			return fmt.Errorf("%w (last status %d)", ErrRetriesExhausted, resp.StatusCode())
		}
		return &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("exotel: decoding response: %w", err)
	}
	return nil
}
