package exotel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// Backoff tests use a shrunken base wait so doubling is still observable
// without multi-second sleeps.
const testBaseWait = 20 * time.Millisecond

func throttlingServer(t *testing.T, failures int, failStatus int, hits *atomic.Int32, stamps *[]time.Time) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if stamps != nil {
			*stamps = append(*stamps, time.Now())
		}
		if int(n) <= failures {
			w.WriteHeader(failStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Call":{"Sid":"CA1","Status":"in-progress"}}`))
	}))
}

func TestPostForm_RetriesThrottlingThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	var stamps []time.Time
	ts := throttlingServer(t, 3, http.StatusTooManyRequests, &hits, &stamps)
	defer ts.Close()

	c := newClient(nil, testBaseWait)
	var out CallResponse
	err := c.PostForm(context.Background(), Credentials{APIKey: "k", APIToken: "t"}, ts.URL, map[string]string{"From": "100"}, &out)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := hits.Load(); got != 4 {
		t.Fatalf("expected 4 attempts (1 + 3 retries), got %d", got)
	}
	if out.Call.Sid != "CA1" {
		t.Fatalf("expected decoded body, got %+v", out)
	}

	// Delays must roughly double: base, 2x, 4x.
	if len(stamps) != 4 {
		t.Fatalf("expected 4 timestamps, got %d", len(stamps))
	}
	d1 := stamps[1].Sub(stamps[0])
	d2 := stamps[2].Sub(stamps[1])
	d3 := stamps[3].Sub(stamps[2])
	if d1 < testBaseWait {
		t.Fatalf("first retry delay too short: %s", d1)
	}
	if d2 < 2*testBaseWait {
		t.Fatalf("second retry delay not doubled: %s (first %s)", d2, d1)
	}
	if d3 < 4*testBaseWait {
		t.Fatalf("third retry delay not doubled again: %s", d3)
	}
}

func TestPostForm_ExhaustsRetriesOnPersistentThrottling(t *testing.T) {
	var hits atomic.Int32
	ts := throttlingServer(t, 100, http.StatusTooManyRequests, &hits, nil)
	defer ts.Close()

	c := newClient(nil, testBaseWait)
	err := c.PostForm(context.Background(), Credentials{APIKey: "k", APIToken: "t"}, ts.URL, nil, nil)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if got := hits.Load(); got != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", got)
	}
}

func TestPostForm_RetriesOn503(t *testing.T) {
	var hits atomic.Int32
	ts := throttlingServer(t, 1, http.StatusServiceUnavailable, &hits, nil)
	defer ts.Close()

	c := newClient(nil, testBaseWait)
	var out CallResponse
	if err := c.PostForm(context.Background(), Credentials{}, ts.URL, nil, &out); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestPostForm_DoesNotRetryBusinessErrors(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"RestException":{"Message":"Invalid To number"}}`))
	}))
	defer ts.Close()

	c := newClient(nil, testBaseWait)
	err := c.PostForm(context.Background(), Credentials{}, ts.URL, nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", apiErr.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("business errors must not be retried, got %d attempts", got)
	}
}

func TestGetJSON_SendsBasicAuthAndQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key1" || pass != "tok1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("PageSize") != "100" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"Calls":[],"Metadata":{"Total":0}}`))
	}))
	defer ts.Close()

	c := newClient(nil, testBaseWait)
	var out CallListResponse
	err := c.GetJSON(context.Background(), Credentials{APIKey: "key1", APIToken: "tok1"}, ts.URL, map[string]string{"PageSize": "100"}, &out)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestCredentials_BaseURL(t *testing.T) {
	c := Credentials{Subdomain: "api.exotel.com", AccountSID: "acct1"}
	if got := c.BaseURL(); got != "https://api.exotel.com/v1/Accounts/acct1" {
		t.Fatalf("unexpected base url: %s", got)
	}
	c.Subdomain = "http://127.0.0.1:9999"
	if got := c.BaseURL(); got != "http://127.0.0.1:9999/v1/Accounts/acct1" {
		t.Fatalf("unexpected local base url: %s", got)
	}
}
