package engine

import (
	"context"

	"github.com/kalambet/reqchat/internal/ollama"
)

// OllamaEngine adapts ollama.Client to the Engine interface.
type OllamaEngine struct {
	client      *ollama.Client
	temperature *float64
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
func NewOllamaEngine(baseURL string) *OllamaEngine {
	t := 0.2
	return &OllamaEngine{client: ollama.New(baseURL), temperature: &t}
}

func (e *OllamaEngine) Name() string { return "ollama (" + e.client.BaseURL() + ")" }

func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	req := ollama.ChatRequest{
		Model:    model,
		Messages: msgs,
		Options:  &ollama.Options{Temperature: e.temperature},
	}
	if jsonSchema != nil {
		req.Format = jsonSchema
	}
	return e.client.Chat(ctx, req)
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{Status: p.Status, Total: p.Total, Completed: p.Completed})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
