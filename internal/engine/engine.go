package engine

import "context"

// Engine abstracts a chat-completion backend (local Ollama, an
// OpenAI-compatible gateway such as OpenRouter, or Gemini). The oracle
// adapters use this interface instead of depending on a concrete client.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// Name identifies the backend in logs and status output.
	Name() string
}

// ModelManager is implemented by engines that host models locally and can
// download missing ones.
type ModelManager interface {
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
