// Package gemini rewrites terse user prompts into richer generation prompts
// using the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const systemPrompt = `You rewrite prompts for AI media generation. Expand the
user's prompt with concrete visual detail, style, lighting and composition.
Return only the rewritten prompt, no commentary.`

// textModel is the narrow slice of the Gemini client the enhancer needs.
type textModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Enhancer turns a short prompt into a detailed one.
type Enhancer struct {
	model textModel
	name  string
}

// New creates an Enhancer backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Enhancer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Enhancer{model: client.Models, name: model}, nil
}

// newWithModel wires a fake in tests.
func newWithModel(m textModel, name string) *Enhancer {
	return &Enhancer{model: m, name: name}
}

// Enhance rewrites prompt into a more detailed generation prompt.
func (e *Enhancer) Enhance(ctx context.Context, prompt string) (string, error) {
	resp, err := e.model.GenerateContent(ctx, e.name, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("enhance prompt: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("enhance prompt: empty response")
	}
	return text, nil
}
