package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	DefaultChatURL   = "https://api.openai.com/v1"
	DefaultChatModel = "gpt-3.5-turbo"
	// PingPrompt is the single user message sent by Ping.
	PingPrompt           = "Hello, how are you?"
	DefaultPingMaxTokens = 50
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ChatClient talks to an OpenAI-compatible chat completions API.
type ChatClient struct {
	*Client
	model     string
	maxTokens int
}

// NewChatClient builds a chat client. Zero values fall back to the defaults.
func NewChatClient(apiKey, baseURL, model string, maxTokens int, httpTimeout time.Duration) *ChatClient {
	if baseURL == "" {
		baseURL = DefaultChatURL
	}
	if model == "" {
		model = DefaultChatModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultPingMaxTokens
	}
	return &ChatClient{Client: NewClient(apiKey, baseURL, httpTimeout), model: model, maxTokens: maxTokens}
}

// PingResult reports whether the configured credential was accepted.
type PingResult struct {
	OK         bool
	StatusCode int
	Model      string
	// Reply is the assistant message on success.
	Reply string
	// Body is the raw response body, kept for display on failure.
	Body      string
	RequestID string
	Usage     Usage
	// Err is the classified API error for non-200 answers.
	Err error
}

// Ping sends one short chat completion. A non-200 answer is reported in the
// result, not as an error; errors are reserved for requests that could not
// be made or answered.
func (c *ChatClient) Ping(ctx context.Context) (*PingResult, error) {
	req := ChatRequest{
		Model:     c.model,
		Messages:  []Message{{Role: "user", Content: PingPrompt}},
		MaxTokens: c.maxTokens,
	}
	ex, err := c.post(ctx, c.baseURL+"/chat/completions", req)
	if err != nil {
		return nil, err
	}
	res := &PingResult{
		OK:         ex.status == http.StatusOK,
		StatusCode: ex.status,
		Model:      c.model,
		Body:       string(ex.body),
		RequestID:  ex.requestID,
	}
	if !res.OK {
		res.Err = newAPIError(ex)
		return res, nil
	}
	var out ChatResponse
	if err := json.Unmarshal(ex.body, &out); err == nil {
		if len(out.Choices) > 0 {
			res.Reply = out.Choices[0].Message.Content
		}
		if out.Model != "" {
			res.Model = out.Model
		}
		res.Usage = out.Usage
	}
	return res, nil
}
