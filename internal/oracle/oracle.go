// Package oracle adapts a chat engine into the three structured calls the
// requirements workflow needs: extraction, architecture design and
// validation. Every response is decoded and schema-checked before it is
// handed back, so callers never see a half-valid result.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/reqchat/internal/engine"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 60 * time.Second

var (
	// ErrUnavailable wraps transport and backend failures.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrMalformed wraps responses that are not JSON or violate the schema.
	ErrMalformed = errors.New("malformed oracle response")
)

// Chatter is the chat-completion interface the oracle needs. engine.Engine
// satisfies it.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// Client issues structured oracle calls against a Chatter.
type Client struct {
	chat    Chatter
	model   string
	timeout time.Duration
}

// New creates a Client. A non-positive timeout selects DefaultTimeout.
func New(chat Chatter, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{chat: chat, model: model, timeout: timeout}
}

// call runs one chat round trip and decodes the JSON body of the answer into out.
func (c *Client) call(ctx context.Context, op string, messages []engine.Message, schema *engine.Schema, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.chat.Chat(ctx, c.model, messages, schema)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	slog.Debug("oracle call finished", "op", op, "model", c.model, "duration", time.Since(start), "bytes", len(raw))

	body, ok := jsonBody(raw)
	if !ok {
		slog.Warn("oracle returned no JSON object", "op", op, "response", truncate(raw, 200))
		return fmt.Errorf("%s: %w: no JSON object in response", op, ErrMalformed)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		slog.Warn("failed to unmarshal oracle response", "op", op, "error", err, "response", truncate(raw, 200))
		return fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	return nil
}

// jsonBody strips markdown fences and surrounding prose, returning the
// outermost JSON object in s.
func jsonBody(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
