// Package describe generates a short sales blurb for a listing from its
// scraped data. Optional feature; without an API key every call reports
// ErrDisabled.
package describe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"google.golang.org/genai"
)

// ErrDisabled means no API key was configured; callers skip the feature.
var ErrDisabled = errors.New("description generation disabled")

const systemPrompt = `You are a copywriter for a used-car exporter.
Write a short, factual sales description (3-5 sentences) for the vehicle
described below. Mention the model, year and mileage when present. Do not
invent specifications that are not in the data. Plain text only, no
markdown.`

type Generator struct {
	client *genai.Client
	model  string
}

// New builds the generator. An empty apiKey yields a disabled generator
// rather than an error so the feature degrades quietly.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	if apiKey == "" {
		return &Generator{}, nil
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	log.Printf("[describe] generator ready (model=%s)", model)
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Enabled() bool { return g.client != nil }

// Describe produces the blurb for the given plain-text listing data.
func (g *Generator) Describe(ctx context.Context, carText string) (string, error) {
	if g.client == nil {
		return "", ErrDisabled
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: carText}},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate description: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}
