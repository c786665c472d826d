package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	anthropicVersion    = "2023-06-01"
	defaultClaudeModel  = "claude-sonnet-4-5"
	defaultClaudeTokens = 8192
)

// Claude proofreads text through the Anthropic Messages API.
type Claude struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClaude creates a Claude provider. An empty apiKey leaves the provider
// unavailable; an empty model selects the default.
func NewClaude(apiKey, model string) *Claude {
	if model == "" {
		model = defaultClaudeModel
	}
	return &Claude{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.anthropic.com",
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Available() bool { return c.apiKey != "" }

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Claude) Check(ctx context.Context, chunk string) (ChunkResult, error) {
	if !c.Available() {
		return ChunkResult{}, fmt.Errorf("claude: %w", ErrUnavailable)
	}

	body, err := json.Marshal(claudeRequest{
		Model:     c.model,
		MaxTokens: defaultClaudeTokens,
		System:    systemPrompt,
		Messages:  []claudeMessage{{Role: "user", Content: chunk}},
	})
	if err != nil {
		return ChunkResult{}, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return ChunkResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("calling claude: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("reading claude response: %w", err)
	}

	var parsed claudeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ChunkResult{}, fmt.Errorf("decoding claude response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return ChunkResult{}, fmt.Errorf("claude returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return ChunkResult{}, fmt.Errorf("claude returned %d", resp.StatusCode)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return parseChunkResponse(text)
}
