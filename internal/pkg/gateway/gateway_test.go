package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/session"

	gojwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type countingPublisher struct {
	calls int32
}

func (p *countingPublisher) PublishExpired() bool {
	return atomic.AddInt32(&p.calls, 1) == 1
}

// doerFunc adapts a function to Doer.
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func testPolicy() Policy {
	return Policy{RetryAttempts: 3, RetryDelay: 20 * time.Millisecond, Timeout: 200 * time.Millisecond}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		ExpiresAt: gojwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type fixture struct {
	gw    *Gateway
	store *session.Store
	bus   *countingPublisher
}

func newFixture(t *testing.T, baseURL string, doer Doer) *fixture {
	t.Helper()
	store := session.NewStore(session.NewMemoryBackend(), nil)
	bus := &countingPublisher{}
	gw, err := New(Config{BaseURL: baseURL, Policy: testPolicy(), DeviceID: "dev-1"}, doer, store, jwt.NewInspector(), bus, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{gw: gw, store: store, bus: bus}
}

func (f *fixture) login(t *testing.T, token string) {
	t.Helper()
	f.store.SaveRecord(context.Background(), session.Record{AuthToken: token})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestDo_SuccessDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/signals" || r.URL.Query().Get("page") != "2" {
			t.Errorf("unexpected url %s", r.URL)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"statusCode":  200,
			"message":     "ok",
			"data":        []map[string]any{{"id": "s1"}},
			"hasNextPage": true,
		})
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL+"/api/v1", srv.Client())
	resp, err := f.gw.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/signals",
		Query:  map[string][]string{"page": {"2"}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != 200 || resp.Message != "ok" || !resp.NextPage() {
		t.Errorf("unexpected response %+v", resp)
	}

	var items []struct{ ID string }
	if err := DecodeData(resp, &items); err != nil || len(items) != 1 || items[0].ID != "s1" {
		t.Errorf("DecodeData = %v, %v", items, err)
	}
}

func TestDo_AttachesBearerOnlyForValidToken(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.Header.Get(HeaderDeviceID) != "dev-1" || r.Header.Get(HeaderRequestID) == "" {
			t.Errorf("missing client headers: %v", r.Header)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, srv.Client())

	if _, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/me"}); err != nil {
		t.Fatal(err)
	}
	if got := gotAuth.Load().(string); got != "" {
		t.Errorf("anonymous call sent Authorization %q", got)
	}

	tok := signedToken(t, time.Now().Add(time.Hour))
	f.login(t, tok)

	if _, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/me"}); err != nil {
		t.Fatal(err)
	}
	if got := gotAuth.Load().(string); got != "Bearer "+tok {
		t.Errorf("Authorization = %q", got)
	}

	if _, err := f.gw.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/login", Public: true}); err != nil {
		t.Fatal(err)
	}
	if got := gotAuth.Load().(string); got != "" {
		t.Errorf("public call sent Authorization %q", got)
	}
}

func TestDo_ExpiredTokenShortCircuits(t *testing.T) {
	var transportCalls int32
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&transportCalls, 1)
		return nil, errors.New("must not be called")
	})

	f := newFixture(t, "http://pipx.test", doer)
	f.login(t, signedToken(t, time.Now().Add(-time.Second)))

	_, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/notifications"})

	if !IsAuthExpired(err) {
		t.Fatalf("err = %v, want auth expired", err)
	}
	gwErr, ok := AsError(err)
	if !ok || gwErr.Kind != KindAuthExpired || gwErr.Attempts != 0 {
		t.Errorf("unexpected error %+v", gwErr)
	}
	if transportCalls != 0 {
		t.Errorf("transport called %d times", transportCalls)
	}
	if f.bus.calls != 1 {
		t.Errorf("PublishExpired called %d times, want 1", f.bus.calls)
	}
}

func TestDo_NetworkErrorsExhaustRetryBudget(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return nil, errors.New("connection refused")
	})

	f := newFixture(t, "http://pipx.test", doer)
	_, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/signals"})

	gwErr, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v, want *Error", err)
	}
	want := testPolicy().RetryAttempts + 1
	if len(stamps) != want || gwErr.Attempts != want {
		t.Fatalf("attempts = %d (error says %d), want %d", len(stamps), gwErr.Attempts, want)
	}
	if !gwErr.IsNetworkError || gwErr.IsTimeoutError || gwErr.Kind != KindNetwork {
		t.Errorf("unexpected flags %+v", gwErr)
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < testPolicy().RetryDelay {
			t.Errorf("gap %d = %v, want >= %v", i, gap, testPolicy().RetryDelay)
		}
	}
}

func TestDo_RecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	var keys sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		keys.Store(n, r.Header.Get(HeaderIdempotencyKey))
		if n == 1 {
			// Drop the connection without answering.
			hj, _ := w.(http.Hijacker)
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"statusCode": 201, "message": "created"})
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, srv.Client())
	resp, err := f.gw.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/signals", JSON: map[string]string{"pair": "EURUSD"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != 201 || calls != 2 {
		t.Errorf("status %d after %d calls", resp.StatusCode, calls)
	}

	first, _ := keys.Load(int32(1))
	second, _ := keys.Load(int32(2))
	if first == "" || first != second {
		t.Errorf("idempotency key not stable across retries: %q vs %q", first, second)
	}
}

func TestDo_HTTPErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "message": "Signal not found"})
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, srv.Client())
	_, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/signals/missing"})

	gwErr, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 || gwErr.Attempts != 1 {
		t.Errorf("calls = %d, attempts = %d, want 1", calls, gwErr.Attempts)
	}
	if gwErr.StatusCode != 404 || gwErr.Message != "Signal not found" || gwErr.Payload["message"] != "Signal not found" {
		t.Errorf("unexpected error %+v", gwErr)
	}
	if gwErr.IsNetworkError || gwErr.IsTimeoutError {
		t.Error("HTTP error must not carry transient flags")
	}
	if StatusCode(err) != 404 {
		t.Errorf("StatusCode(err) = %d", StatusCode(err))
	}
}

func TestDo_ServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, srv.Client())
	_, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})

	gwErr, _ := AsError(err)
	if calls != 1 || gwErr.StatusCode != 502 || gwErr.Payload != nil || gwErr.Preview == "" {
		t.Errorf("calls=%d err=%+v", calls, gwErr)
	}
}

func TestDo_EmptyBodies(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"no content", http.StatusNoContent},
		{"reset content", http.StatusResetContent},
		{"empty 200", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := newFixture(t, srv.URL, srv.Client())
			resp, err := f.gw.Do(context.Background(), &Request{Method: http.MethodDelete, Path: "/likes/1"})
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if resp.StatusCode != tt.status || resp.Data != nil {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestDo_MalformedBodyIsTerminal(t *testing.T) {
	var calls int32
	body := strings.Repeat("<p>maintenance</p>", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, srv.Client())
	_, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/feed"})

	gwErr, ok := AsError(err)
	if !ok || gwErr.Kind != KindMalformed {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if gwErr.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", gwErr.ContentType)
	}
	if len(gwErr.Preview) >= len(body) || !strings.HasPrefix(body, strings.TrimSuffix(gwErr.Preview, "…")) {
		t.Errorf("preview not bounded: %d bytes", len(gwErr.Preview))
	}
}

func TestDo_TimeoutIsRetriedAndFlagged(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	f := newFixture(t, srv.URL, srv.Client())
	f.gw.policy.Timeout = 30 * time.Millisecond
	f.gw.policy.RetryAttempts = 1

	_, err := f.gw.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/slow"})

	gwErr, ok := AsError(err)
	if !ok || gwErr.Kind != KindTimeout || !gwErr.IsTimeoutError || gwErr.IsNetworkError {
		t.Fatalf("err = %+v", err)
	}
	if gwErr.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", gwErr.Attempts)
	}
}

func TestDo_CallerCancellationStopsRetries(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return nil, errors.New("connection reset")
	})

	f := newFixture(t, "http://pipx.test", doer)
	_, err := f.gw.Do(ctx, &Request{Method: http.MethodGet, Path: "/x"})

	gwErr, _ := AsError(err)
	if gwErr == nil || !gwErr.IsTimeoutError {
		t.Errorf("err = %+v, want timeout-flagged", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_BodyEncoding(t *testing.T) {
	type seen struct {
		contentType string
		form        map[string]string
		file        string
		json        map[string]any
	}
	var got seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = seen{contentType: r.Header.Get("Content-Type")}
		if strings.HasPrefix(got.contentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			got.form = map[string]string{"pair": r.FormValue("pair")}
			f, _, err := r.FormFile("chart")
			if err == nil {
				b, _ := io.ReadAll(f)
				got.file = string(b)
			}
		} else {
			json.NewDecoder(r.Body).Decode(&got.json)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, srv.Client())

	_, err := f.gw.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/signals",
		Form:   NewForm().Set("pair", "XAUUSD").AddFile("chart", "chart.png", []byte("png-bytes")),
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got.contentType, "application/json") || !strings.HasPrefix(got.contentType, "multipart/form-data; boundary=") {
		t.Errorf("multipart content type = %q", got.contentType)
	}
	if got.form["pair"] != "XAUUSD" || got.file != "png-bytes" {
		t.Errorf("multipart body = %+v", got)
	}

	_, err = f.gw.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/comments",
		JSON:   map[string]string{"text": "nice call"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.contentType != "application/json" || got.json["text"] != "nice call" {
		t.Errorf("json request = %+v", got)
	}

	_, err = f.gw.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/x", JSON: 1, Form: NewForm()})
	if gwErr, _ := AsError(err); gwErr == nil || gwErr.Kind != KindRequest {
		t.Errorf("both bodies: err = %v", err)
	}
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "/api"}, nil, nil, nil, nil, nil); err == nil {
		t.Error("expected error for relative base url")
	}
}
