package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidyshare/tidyshare-api/pkg/config"
)

// Request is the stateless classification call: a fixed system instruction
// plus one chunk of inventory metadata.
type Request struct {
	Model        string          `json:"model,omitempty"`
	SystemPrompt string          `json:"system_prompt"`
	UserPayload  json.RawMessage `json:"user_payload"`
}

// RawSuggestion is one entry of the classifier's structured output.
type RawSuggestion struct {
	Category       string  `json:"category"`
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	FilePath       string  `json:"file_path"`
	SuggestedValue *string `json:"suggested_value"`
	Confidence     float64 `json:"confidence"`
}

// Response is the classifier's parsed reply.
type Response struct {
	Suggestions []RawSuggestion `json:"suggestions"`
}

// Client posts classification chunks to the external service. A non-2xx
// status or unparsable body fails only that call.
type Client struct {
	apiURL string
	apiKey string
	model  string
	http   *http.Client
}

// NewClient builds a classifier client from config.
func NewClient(cfg config.ClassifierConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		http:   &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the external classifier can be called at all.
func (c *Client) Configured() bool {
	return c != nil && c.apiURL != "" && c.apiKey != ""
}

// Classify sends one chunk and parses the structured suggestion output.
func (c *Client) Classify(ctx context.Context, systemPrompt string, payload interface{}) (*Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal classifier payload: %w", err)
	}

	body, err := json.Marshal(Request{
		Model:        c.model,
		SystemPrompt: systemPrompt,
		UserPayload:  raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return &parsed, nil
}
