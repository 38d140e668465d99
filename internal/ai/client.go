// Package ai talks to remote analysis and chat-completion endpoints.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent      = "edaloom-cli"
	defaultTimeout = 120 * time.Second
	maxBodyBytes   = 16 << 20
)

// requestIDHeaders are checked in order for a provider request ID.
var requestIDHeaders = []string{"X-Request-Id", "OpenAI-Request-ID", "X-Amzn-Requestid"}

// Client performs single-attempt JSON POSTs with bearer authentication.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient returns a client for baseURL. A non-positive timeout means two minutes.
func NewClient(apiKey, baseURL string, httpTimeout time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// exchange is one raw request/response pair.
type exchange struct {
	status    int
	body      []byte
	requestID string
	header    http.Header
}

// post sends payload once. Only a missing key, an encoding problem or a
// transport failure is an error here; any HTTP status is returned as is.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (*exchange, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		host := endpoint
		if u, perr := url.Parse(endpoint); perr == nil {
			host = u.Host
		}
		return nil, &TransportError{Host: host, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	ex := &exchange{status: resp.StatusCode, body: body, header: resp.Header}
	for _, h := range requestIDHeaders {
		if v := resp.Header.Get(h); v != "" {
			ex.requestID = v
			break
		}
	}
	return ex, nil
}
