package exotel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"callcenter-platform/internal/config"
)

type memStore struct {
	mu    sync.Mutex
	calls []CallDetail
	sms   []SMSDetail
}

func (m *memStore) RecordInitialCall(ctx context.Context, d CallDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, d)
	return nil
}

func (m *memStore) RecordInitialSMS(ctx context.Context, d SMSDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sms = append(m.sms, d)
	return nil
}

func (m *memStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *memStore) smsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sms)
}

func testService(t *testing.T, handler http.Handler) (*Service, *memStore, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := config.ExotelConfig{
		APIKey:     "key1",
		APIToken:   "tok1",
		AccountSID: "acct1",
		Subdomain:  ts.URL,
		FromNumber: "08012345678",
	}
	store := &memStore{}
	l := newLimiterWithSpacing(nil, time.Millisecond, 10)
	t.Cleanup(l.Close)
	svc := NewService(cfg, "https://cc.example.com", newClient(nil, testBaseWait), l, store, slog.Default())
	return svc, store, ts
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestSendSMS_PostsProviderFormAndPersistsInitialRecord(t *testing.T) {
	var gotForm map[string]string
	var mu sync.Mutex
	svc, store, _ := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/Accounts/acct1/Sms/send.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		mu.Lock()
		gotForm = map[string]string{
			"From":           r.PostFormValue("From"),
			"To":             r.PostFormValue("To"),
			"Body":           r.PostFormValue("Body"),
			"StatusCallback": r.PostFormValue("StatusCallback"),
		}
		mu.Unlock()
		_, _ = w.Write([]byte(`{"SMSMessage":{"Sid":"SM1","To":"09912345678","Status":"queued"}}`))
	}))

	d, err := svc.SendSMS(context.Background(), "09912345678", "hello")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if d.Sid != "SM1" {
		t.Fatalf("expected provider response returned, got %+v", d)
	}

	mu.Lock()
	form := gotForm
	mu.Unlock()
	if form["From"] != "08012345678" || form["To"] != "09912345678" || form["Body"] != "hello" {
		t.Fatalf("unexpected form: %+v", form)
	}
	cb := form["StatusCallback"]
	if !strings.HasPrefix(cb, "https://cc.example.com/webhooks/exotel/sms-callback/") {
		t.Fatalf("unexpected callback url: %s", cb)
	}
	if !strings.HasSuffix(cb, WebhookToken("key1", "tok1")) {
		t.Fatalf("callback url must end with the webhook token: %s", cb)
	}

	// Initial persistence is fire-and-forget; it lands shortly after.
	waitFor(t, func() bool { return store.smsCount() == 1 })
}

func TestConnectCalls_UsesVoiceEndpointAndCallerId(t *testing.T) {
	svc, store, _ := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/Accounts/acct1/Calls/connect.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		if r.PostFormValue("CallerId") != "08012345678" {
			t.Errorf("expected CallerId, got %q", r.PostFormValue("CallerId"))
		}
		if r.PostFormValue("From") != "111" || r.PostFormValue("To") != "222" {
			t.Errorf("unexpected legs: %q %q", r.PostFormValue("From"), r.PostFormValue("To"))
		}
		_, _ = w.Write([]byte(`{"Call":{"Sid":"CA9","Status":"in-progress","Direction":"outbound-api"}}`))
	}))

	d, err := svc.ConnectCalls(context.Background(), "111", "222")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if d.Sid != "CA9" {
		t.Fatalf("unexpected call detail: %+v", d)
	}
	waitFor(t, func() bool { return store.callCount() == 1 })
}

func TestPlaceCall_BuildsFlowURL(t *testing.T) {
	svc, _, _ := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if got := r.PostFormValue("Url"); got != "http://my.exotel.com/acct1/exoml/start_voice/flow42" {
			t.Errorf("unexpected flow url %q", got)
		}
		_, _ = w.Write([]byte(`{"Call":{"Sid":"CA2","Status":"queued"}}`))
	}))

	if _, err := svc.PlaceCall(context.Background(), "0991", "flow42"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestOutbound_MissingCredentialsIsConfigError(t *testing.T) {
	l := newLimiterWithSpacing(nil, time.Millisecond, 10)
	defer l.Close()
	svc := NewService(config.ExotelConfig{}, "https://cc.example.com", newClient(nil, testBaseWait), l, nil, slog.Default())

	if _, err := svc.SendSMS(context.Background(), "099", "hi"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := svc.ConnectCalls(context.Background(), "1", "2"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := svc.ListCalls(context.Background(), time.Now().Add(-time.Hour), time.Now()); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestSendSMS_ProviderRejectionPropagates(t *testing.T) {
	svc, store, _ := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"RestException":{"Message":"DND number"}}`))
	}))

	_, err := svc.SendSMS(context.Background(), "099", "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if store.smsCount() != 0 {
		t.Fatalf("failed sends must not persist initial records")
	}
}

func TestListCalls_FollowsPagination(t *testing.T) {
	page := 0
	svc, _, _ := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("PageSize") != "100" {
			t.Errorf("expected PageSize=100, got %s", q.Get("PageSize"))
		}
		if !strings.HasPrefix(q.Get("DateCreated"), "gte:") {
			t.Errorf("expected DateCreated window, got %s", q.Get("DateCreated"))
		}
		var b strings.Builder
		b.WriteString(`{"Calls":[`)
		n := 100
		if page == 1 {
			n = 3
		}
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(`{"Sid":"CA` + q.Get("Page") + "_" + string(rune('a'+i%26)) + `","Status":"completed"}`)
		}
		b.WriteString(`],"Metadata":{"Total":103}}`)
		page++
		_, _ = w.Write([]byte(b.String()))
	}))

	calls, err := svc.ListCalls(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(calls) != 103 {
		t.Fatalf("expected 103 calls across pages, got %d", len(calls))
	}
}

func TestFetchExoPhones_ReturnsProviderOrdering(t *testing.T) {
	svc, _, _ := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/Accounts/acct1/IncomingPhoneNumbers.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"IncomingPhoneNumbers":[{"Sid":"PN1","PhoneNumber":"+918030752222","FriendlyName":"Support"},{"Sid":"PN2","PhoneNumber":"+918030753333"}]}`))
	}))

	phones, err := svc.FetchExoPhones(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(phones) != 2 || phones[0].Sid != "PN1" || phones[1].Sid != "PN2" {
		t.Fatalf("expected provider ordering preserved, got %+v", phones)
	}
}

func TestWebhookToken_IsStableHexMD5(t *testing.T) {
	tok := WebhookToken("key1", "tok1")
	if len(tok) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", tok)
	}
	if tok != WebhookToken("key1", "tok1") {
		t.Fatalf("token must be deterministic")
	}
	if tok == WebhookToken("key1", "other") {
		t.Fatalf("token must depend on the secret")
	}
}
