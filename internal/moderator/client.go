// Package moderator implements the client for the external semantic
// moderation oracle. The oracle performs the deeper policy and plagiarism
// judgment this service does not reimplement; callers treat any transport or
// decode failure as an infrastructure fault and fail open.
package moderator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/orphanbars/orphanbars-api/pkg/config"
)

// Result is the oracle's verdict contract.
type Result struct {
	Approved          bool     `json:"approved"`
	Flagged           bool     `json:"flagged"`
	Reasons           []string `json:"reasons"`
	PlagiarismRisk    string   `json:"plagiarism_risk"`
	PlagiarismDetails string   `json:"plagiarism_details,omitempty"`
}

// Moderator is the behavioural contract consumed by the pipeline.
type Moderator interface {
	Moderate(ctx context.Context, content string) (*Result, error)
}

// Client calls a chat-completion style moderation endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a moderator client with a bounded request timeout. The
// timeout is mandatory: the moderation call is the only network-bound step of
// the acceptance pipeline and must never block it indefinitely.
func NewClient(cfg config.ModeratorConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

const systemPrompt = `You are a content moderator for a rap-lyrics sharing platform. Reject hate speech, threats, child exploitation, harassment and doxxing. Battle-rap disses, wordplay, slang and mild profanity are fine. Respond in JSON: {"approved": bool, "flagged": bool, "reasons": [string], "plagiarism_risk": "none"|"low"|"medium"|"high", "plagiarism_details": string}`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Moderate submits the raw content for semantic review. A non-nil error means
// the oracle was unreachable or returned garbage, never that the content was
// rejected; rejection arrives as a Result with Approved=false.
func (c *Client) Moderate(ctx context.Context, content string) (*Result, error) {
	payload, err := json.Marshal(chatRequest{
		Model: "grok-2-latest",
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Moderate this bar:\n\n%q", content)},
		},
		Temperature: 0,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("encode moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call moderator: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moderator returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode moderator response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("moderator returned no choices")
	}

	var result Result
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("parse moderator verdict: %w", err)
	}
	if result.PlagiarismRisk == "" {
		result.PlagiarismRisk = "none"
	}
	return &result, nil
}
