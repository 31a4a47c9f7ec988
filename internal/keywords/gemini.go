package keywords

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const expandPrompt = `You are helping find YouTube content creators.
Given the topic below, suggest up to %d short YouTube search keywords that
people use when looking for creators covering it. Include product names
verbatim where present. Respond with a JSON array of strings only, no
commentary.

Topic: %q`

// GeminiExpander expands a topic into search keywords with Gemini.
type GeminiExpander struct {
	client *genai.Client
	model  string
}

// NewGeminiExpander creates an expander backed by the given API key.
func NewGeminiExpander(ctx context.Context, apiKey, model string) (*GeminiExpander, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiExpander{client: client, model: model}, nil
}

// Expand asks Gemini for keyword suggestions. The raw response is parsed
// strictly; any malformed output is an error so the caller can fall back.
func (g *GeminiExpander) Expand(ctx context.Context, topic string) ([]string, error) {
	prompt := fmt.Sprintf(expandPrompt, MaxKeywords, topic)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini expand: %w", err)
	}

	raw := stripFences(result.Text())
	var kws []string
	if err := json.Unmarshal([]byte(raw), &kws); err != nil {
		return nil, fmt.Errorf("gemini expand: parse failed on %q: %w", raw, err)
	}
	return kws, nil
}

// stripFences removes markdown code fences from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
