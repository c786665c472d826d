package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini proofreads text through the Google Generative AI SDK.
type Gemini struct {
	apiKey string
	model  string
}

// NewGemini creates a Gemini provider. An empty apiKey leaves the provider
// unavailable; an empty model selects the default.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
	}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Available() bool { return g.apiKey != "" }

func (g *Gemini) Check(ctx context.Context, chunk string) (ChunkResult, error) {
	if !g.Available() {
		return ChunkResult{}, fmt.Errorf("gemini: %w", ErrUnavailable)
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return ChunkResult{}, fmt.Errorf("creating gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(chunk))
	if err != nil {
		return ChunkResult{}, fmt.Errorf("calling gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ChunkResult{}, fmt.Errorf("gemini response has no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return parseChunkResponse(text.String())
}
