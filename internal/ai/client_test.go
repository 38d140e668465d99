package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

type ipv4Server struct {
	URL  string
	srv  *http.Server
	ln   net.Listener
	hits int32
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		ln:  ln,
	}
	s.srv = &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.hits, 1)
		handler.ServeHTTP(w, r)
	})}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *ipv4Server) Hits() int { return int(atomic.LoadInt32(&s.hits)) }

func sampleDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader("a,b\n1,x\nNA,y\n"), "s.csv", dataset.DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return ds
}

func statusServer(t *testing.T, status int, body string) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func TestAnalyzeSendsDatasetAndTask(t *testing.T) {
	var got InsightsRequest
	var auth, ctype string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/analyze" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		ctype = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"insights": "Column a has a missing value."})
	}))
	defer srv.Close()

	c := NewInsightsClient("secret", srv.URL+"/v1/analyze", "", 2*time.Second)
	resp, err := c.Analyze(context.Background(), sampleDataset(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if DisplayText(resp, err) != "Column a has a missing value." {
		t.Fatalf("display = %q", DisplayText(resp, err))
	}
	if auth != "Bearer secret" || ctype != "application/json" {
		t.Fatalf("headers: auth=%q content-type=%q", auth, ctype)
	}
	if got.Task != DefaultTask {
		t.Fatalf("task = %q", got.Task)
	}
	if got.Dataset != `[{"a":1,"b":"x"},{"a":null,"b":"y"}]` {
		t.Fatalf("dataset = %s", got.Dataset)
	}
}

func TestAnalyzeServerErrorDisplaysStatusAndMessage(t *testing.T) {
	srv := statusServer(t, http.StatusInternalServerError, `{"error":"bad request"}`)
	defer srv.Close()

	c := NewInsightsClient("k", srv.URL, "", 2*time.Second)
	resp, err := c.Analyze(context.Background(), sampleDataset(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	text := DisplayText(resp, err)
	if text != "Error 500: bad request" {
		t.Fatalf("display = %q", text)
	}
	if !strings.Contains(text, "500") || !strings.Contains(text, "bad request") {
		t.Fatalf("display should carry status and message: %q", text)
	}
	if srv.Hits() != 1 {
		t.Fatalf("expected a single attempt, got %d", srv.Hits())
	}
}

func TestAnalyzeErrorShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"object message", http.StatusBadRequest, `{"error":{"message":"dataset too large","code":"too_large"}}`, "Error 400: dataset too large"},
		{"no error field", http.StatusServiceUnavailable, `{}`, "Error 503: Unknown error"},
		{"plain text body", http.StatusBadGateway, "upstream down", "Error 502: upstream down"},
		{"empty body", http.StatusUnauthorized, "", "Error 401: Unknown error"},
		{"created is not ok", http.StatusCreated, `{"insights":"ignored"}`, "Error 201: Unknown error"},
		{"numeric code beside error", http.StatusInternalServerError, `{"error":"bad request","code":400}`, "Error 500: bad request"},
		{"numeric code inside error", http.StatusInternalServerError, `{"error":{"message":"bad request","code":400}}`, "Error 500: bad request"},
		{"top-level message", http.StatusNotFound, `{"message":"no route","code":404}`, "Error 404: no route"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := statusServer(t, tt.status, tt.body)
			defer srv.Close()
			c := NewInsightsClient("k", srv.URL, "", 2*time.Second)
			resp, err := c.Analyze(context.Background(), sampleDataset(t))
			if got := DisplayText(resp, err); got != tt.want {
				t.Fatalf("display = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzeMissingInsightsField(t *testing.T) {
	srv := statusServer(t, http.StatusOK, `{"summary":"x"}`)
	defer srv.Close()
	c := NewInsightsClient("k", srv.URL, "", 2*time.Second)
	resp, err := c.Analyze(context.Background(), sampleDataset(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := DisplayText(resp, err); got != NoInsights {
		t.Fatalf("display = %q", got)
	}
}

func TestAnalyzeNonStringInsights(t *testing.T) {
	srv := statusServer(t, http.StatusOK, `{"insights":["a","b"]}`)
	defer srv.Close()
	c := NewInsightsClient("k", srv.URL, "", 2*time.Second)
	resp, err := c.Analyze(context.Background(), sampleDataset(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Text() != `["a","b"]` {
		t.Fatalf("text = %q", resp.Text())
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open local listener (%v)", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewInsightsClient("k", "http://"+addr+"/analyze", "", time.Second)
	resp, err := c.Analyze(context.Background(), sampleDataset(t))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	text := DisplayText(resp, err)
	if !strings.HasPrefix(text, "API Request Failed: ") {
		t.Fatalf("display = %q", text)
	}
}

func TestAnalyzeMalformedSuccessBody(t *testing.T) {
	srv := statusServer(t, http.StatusOK, `not json`)
	defer srv.Close()
	c := NewInsightsClient("k", srv.URL, "", 2*time.Second)
	resp, err := c.Analyze(context.Background(), sampleDataset(t))
	if got := DisplayText(resp, err); !strings.HasPrefix(got, "API Request Failed: decode response") {
		t.Fatalf("display = %q", got)
	}
}

func TestMissingKeyFailsBeforeRequest(t *testing.T) {
	srv := statusServer(t, http.StatusOK, `{"insights":"x"}`)
	defer srv.Close()

	ic := NewInsightsClient("", srv.URL, "", time.Second)
	if _, err := ic.Analyze(context.Background(), sampleDataset(t)); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	cc := NewChatClient("", srv.URL, "", 0, time.Second)
	if _, err := cc.Ping(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if srv.Hits() != 0 {
		t.Fatalf("expected no requests, got %d", srv.Hits())
	}
}

func TestPingSuccess(t *testing.T) {
	var got ChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("X-Request-Id", "req_1")
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Model:   "gpt-3.5-turbo-0125",
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "I'm fine."}}},
			Usage:   Usage{TotalTokens: 12},
		})
	}))
	defer srv.Close()

	c := NewChatClient("k", srv.URL+"/v1/", "", 0, 2*time.Second)
	res, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !res.OK || res.Reply != "I'm fine." || res.RequestID != "req_1" || res.Usage.TotalTokens != 12 {
		t.Fatalf("result = %+v", res)
	}
	if got.Model != DefaultChatModel || got.MaxTokens != DefaultPingMaxTokens {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != PingPrompt {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestPingRejectedKey(t *testing.T) {
	body := `{"error":{"message":"Incorrect API key provided","code":"invalid_api_key"}}`
	srv := statusServer(t, http.StatusUnauthorized, body)
	defer srv.Close()

	c := NewChatClient("bad", srv.URL, "", 0, 2*time.Second)
	res, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if res.OK || res.StatusCode != http.StatusUnauthorized || res.Body != body {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", res.Err)
	}
	if apiErr, ok := AsAPIError(res.Err); !ok || apiErr.Code != "invalid_api_key" {
		t.Fatalf("expected decoded error code, got %v", res.Err)
	}
}

func TestAPIErrorCategories(t *testing.T) {
	tests := []struct {
		status int
		body   string
		header string
		want   error
	}{
		{http.StatusForbidden, `{"error":"nope"}`, "", ErrUnauthorized},
		{http.StatusTooManyRequests, `{"error":"slow down"}`, "7", ErrRateLimited},
		{http.StatusNotFound, `{"error":{"message":"x","code":"model_not_found"}}`, "", ErrModelNotFound},
		{http.StatusPaymentRequired, `{"error":{"message":"You exceeded your current quota"}}`, "", ErrQuota},
		{http.StatusBadGateway, `bad gateway`, "", ErrUpstream},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.header != "" {
			h.Set("Retry-After", tt.header)
		}
		e := newAPIError(&exchange{status: tt.status, body: []byte(tt.body), header: h})
		if !errors.Is(e, tt.want) {
			t.Errorf("status %d: %v does not match %v", tt.status, e, tt.want)
		}
		if tt.want == ErrRateLimited && e.RetryAfter != 7*time.Second {
			t.Errorf("retry after = %s", e.RetryAfter)
		}
	}

	numeric := newAPIError(&exchange{status: http.StatusInternalServerError, body: []byte(`{"error":{"message":"boom","code":500}}`), header: http.Header{}})
	if numeric.Message != "boom" || numeric.Code != "500" {
		t.Errorf("numeric code = %+v", numeric)
	}

	plain := newAPIError(&exchange{status: http.StatusNotFound, body: []byte(`{"message":"no route"}`), header: http.Header{}})
	if errors.Is(plain, ErrModelNotFound) || plain.Message != "no route" {
		t.Errorf("plain 404 = %+v", plain)
	}
}

func TestNewClientTimeout(t *testing.T) {
	if got := NewClient("k", "http://x", 0).httpClient.Timeout; got != 2*time.Minute {
		t.Errorf("default timeout = %s", got)
	}
	if got := NewClient("k", "http://x", 5*time.Second).httpClient.Timeout; got != 5*time.Second {
		t.Errorf("explicit timeout = %s", got)
	}
}
