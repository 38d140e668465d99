package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/metrics"
)

const (
	// DefaultInsightsURL is the analysis endpoint used when none is configured.
	DefaultInsightsURL = "https://api.deepseek.com/v1/analyze"
	// DefaultTask is the task label sent with every dataset.
	DefaultTask = "exploratory_data_analysis"
	// NoInsights is displayed when a successful response has no insights field.
	NoInsights = "No insights found."
)

// InsightsRequest is the JSON body posted to the analysis endpoint. Dataset
// holds the row-oriented records as a JSON string, not a nested array.
type InsightsRequest struct {
	Dataset string `json:"dataset"`
	Task    string `json:"task"`
}

// InsightsResponse is the outcome of a successful (200) analysis call.
type InsightsResponse struct {
	Insights  string
	Found     bool
	RequestID string
	Duration  time.Duration
}

// Text returns the insights or the placeholder shown when none came back.
func (r *InsightsResponse) Text() string {
	if r == nil || !r.Found {
		return NoInsights
	}
	return r.Insights
}

// InsightsClient posts datasets to a remote analysis endpoint. It makes
// exactly one attempt per call.
type InsightsClient struct {
	*Client
	task string
}

// NewInsightsClient builds a client for the given endpoint URL. Empty url and
// task fall back to the defaults.
func NewInsightsClient(apiKey, endpoint, task string, httpTimeout time.Duration) *InsightsClient {
	if endpoint == "" {
		endpoint = DefaultInsightsURL
	}
	if task == "" {
		task = DefaultTask
	}
	return &InsightsClient{Client: NewClient(apiKey, endpoint, httpTimeout), task: task}
}

// Analyze serializes ds and asks the endpoint for insights.
func (c *InsightsClient) Analyze(ctx context.Context, ds *dataset.Dataset) (*InsightsResponse, error) {
	records, err := ds.RecordsJSON()
	if err != nil {
		return nil, fmt.Errorf("serialize dataset: %w", err)
	}
	return c.AnalyzeRecords(ctx, records)
}

// AnalyzeRecords posts pre-serialized records. Non-200 answers come back as
// typed errors wrapping *APIError.
func (c *InsightsClient) AnalyzeRecords(ctx context.Context, records []byte) (*InsightsResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	start := time.Now()
	ex, err := c.post(ctx, c.baseURL, InsightsRequest{Dataset: string(records), Task: c.task})
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveInsights(elapsed, metrics.OutcomeTransport)
		return nil, err
	}
	if ex.status != http.StatusOK {
		metrics.ObserveInsights(elapsed, metrics.OutcomeAPIError)
		return nil, newAPIError(ex)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(ex.body, &body); err != nil {
		metrics.ObserveInsights(elapsed, metrics.OutcomeTransport)
		return nil, fmt.Errorf("decode response: %w", err)
	}
	metrics.ObserveInsights(elapsed, metrics.OutcomeSuccess)
	out := &InsightsResponse{RequestID: ex.requestID, Duration: elapsed}
	raw, ok := body["insights"]
	if !ok || string(raw) == "null" {
		return out, nil
	}
	out.Found = true
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		out.Insights = s
	} else {
		out.Insights = string(raw)
	}
	return out, nil
}

// DisplayText maps the outcome of an insights call to the text shown to the
// user: the insights themselves, "Error <status>: <message>" for API errors,
// or "API Request Failed: <error>" for anything else.
func DisplayText(resp *InsightsResponse, err error) string {
	if err == nil {
		return resp.Text()
	}
	if apiErr, ok := AsAPIError(err); ok {
		msg := apiErr.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Sprintf("Error %d: %s", apiErr.StatusCode, msg)
	}
	return fmt.Sprintf("API Request Failed: %v", err)
}
