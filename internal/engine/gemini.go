package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models used by GeminiEngine.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEngine calls the Gemini API through the official genai client.
type GeminiEngine struct {
	models contentGenerator
}

// NewGeminiEngine creates a Gemini engine. With an empty apiKey the genai
// client falls back to GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGeminiEngine(ctx context.Context, apiKey string) (*GeminiEngine, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiEngine{models: cli.Models}, nil
}

func (e *GeminiEngine) Name() string { return "gemini" }

func (e *GeminiEngine) IsRunning(_ context.Context) bool { return e.models != nil }

func (e *GeminiEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	temp := float32(0.2)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if jsonSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = jsonSchema
	}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}

	resp, err := e.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
