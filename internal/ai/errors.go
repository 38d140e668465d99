package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned before any request when no credential is configured.
var ErrMissingAPIKey = errors.New("api key is not configured")

// Failure categories. An *APIError matches exactly one of them with errors.Is.
var (
	ErrUnauthorized  = errors.New("credential rejected")
	ErrRateLimited   = errors.New("rate limited")
	ErrModelNotFound = errors.New("model not found")
	ErrBadRequest    = errors.New("bad request")
	ErrQuota         = errors.New("quota exceeded")
	ErrUpstream      = errors.New("upstream failure")
)

// APIError is a non-200 answer from a remote endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	// RetryAfter is only set for 429 answers that carry the header.
	RetryAfter time.Duration

	category error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status %d", e.StatusCode)
	if e.category != nil {
		fmt.Fprintf(&b, " (%v)", e.category)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Code != "" {
		b.WriteString(" [" + e.Code + "]")
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, "; retry after %s", e.RetryAfter)
	}
	return b.String()
}

func (e *APIError) Is(target error) bool {
	return e.category != nil && target == e.category
}

// TransportError means no HTTP response arrived at all.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("endpoint unreachable: %v", e.Err)
	}
	return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AsAPIError extracts the APIError carried by err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// errorEnvelope covers {"error":"text"}, {"error":{"message":..,"code":..}}
// and a bare {"message":..,"code":..}. Codes may be strings or numbers.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
	Code    json.RawMessage `json:"code"`
}

// newAPIError decodes and categorizes a non-200 exchange. Bodies that are
// not a JSON object become the message verbatim.
func newAPIError(ex *exchange) *APIError {
	e := &APIError{StatusCode: ex.status, RequestID: ex.requestID}
	var env errorEnvelope
	if err := json.Unmarshal(ex.body, &env); err != nil {
		e.Message = clipBody(ex.body)
	} else {
		e.Message, e.Code = jsonText(env.Message), jsonText(env.Code)
		var inner errorEnvelope
		switch {
		case jsonText(env.Error) == "":
		case env.Error[0] == '{' && json.Unmarshal(env.Error, &inner) == nil:
			if msg := jsonText(inner.Message); msg != "" {
				e.Message = msg
			} else {
				e.Message = string(env.Error)
			}
			if code := jsonText(inner.Code); code != "" {
				e.Code = code
			}
		default:
			e.Message = jsonText(env.Error)
		}
	}
	e.category = categorize(e)
	if e.category == ErrRateLimited {
		e.RetryAfter = retryAfter(ex.header.Get("Retry-After"))
	}
	return e
}

// jsonText returns a JSON string unquoted and any other value as written.
// Absent and null values give "".
func jsonText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func categorize(e *APIError) error {
	msg := strings.ToLower(e.Message)
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusNotFound:
		if e.Code == "model_not_found" || (strings.Contains(msg, "model") && strings.Contains(msg, "not found")) {
			return ErrModelNotFound
		}
		return nil
	case e.StatusCode == http.StatusBadRequest:
		return ErrBadRequest
	case e.Code == "insufficient_quota" || e.Code == "quota_exceeded" ||
		strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		return ErrQuota
	case e.StatusCode >= 500:
		return ErrUpstream
	}
	return nil
}

// retryAfter accepts delta-seconds or an HTTP date.
func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t).Truncate(time.Second); d > 0 {
			return d
		}
	}
	return 0
}

func clipBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
