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

const defaultOpenAIModel = "gpt-4o"

// OpenAI proofreads text through the Chat Completions API.
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI provider. An empty apiKey leaves the provider
// unavailable; an empty model selects the default.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.openai.com",
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Available() bool { return o.apiKey != "" }

type openaiRequest struct {
	Model          string           `json:"model"`
	Messages       []openaiMessage  `json:"messages"`
	ResponseFormat openaiRespFormat `json:"response_format"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRespFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) Check(ctx context.Context, chunk string) (ChunkResult, error) {
	if !o.Available() {
		return ChunkResult{}, fmt.Errorf("openai: %w", ErrUnavailable)
	}

	body, err := json.Marshal(openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: chunk},
		},
		ResponseFormat: openaiRespFormat{Type: "json_object"},
	})
	if err != nil {
		return ChunkResult{}, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChunkResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("calling openai: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("reading openai response: %w", err)
	}

	var parsed openaiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ChunkResult{}, fmt.Errorf("decoding openai response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return ChunkResult{}, fmt.Errorf("openai returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return ChunkResult{}, fmt.Errorf("openai returned %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return ChunkResult{}, fmt.Errorf("openai response has no choices")
	}

	return parseChunkResponse(parsed.Choices[0].Message.Content)
}
