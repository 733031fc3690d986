package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// DefaultOpenRouterURL is the OpenRouter OpenAI-compatible API root.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenAIEngine talks to any OpenAI-compatible /chat/completions endpoint.
// Rate limiting and transient 5xx answers are retried with backoff.
type OpenAIEngine struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	referer string
	title   string
}

// NewOpenAIEngine creates an engine for the given API root. An empty baseURL
// selects OpenRouter.
func NewOpenAIEngine(baseURL, apiKey string) *OpenAIEngine {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	rc.HTTPClient = &http.Client{}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &OpenAIEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  rc,
		referer: "https://github.com/kalambet/reqchat",
		title:   "reqchat",
	}
}

func (e *OpenAIEngine) Name() string { return "openai-compatible (" + e.baseURL + ")" }

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema *namedJSONSchema `json:"json_schema,omitempty"`
}

type namedJSONSchema struct {
	Name   string  `json:"name"`
	Strict bool    `json:"strict"`
	Schema *Schema `json:"schema"`
}

func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	cr := chatCompletionRequest{Model: model, Messages: messages, Temperature: 0.2}
	if jsonSchema != nil {
		cr.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &namedJSONSchema{Name: "response", Schema: jsonSchema},
		}
	}
	body, err := json.Marshal(cr)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	e.setHeaders(req.Request)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		if msg := gjson.GetBytes(raw, "error.message").String(); msg != "" {
			return "", fmt.Errorf("provider error: %s", msg)
		}
		return "", fmt.Errorf("response has no choices")
	}
	return content.String(), nil
}

// IsRunning reports whether GET /models answers 200.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	e.setHeaders(req)
	resp, err := e.client.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (e *OpenAIEngine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	req.Header.Set("HTTP-Referer", e.referer)
	req.Header.Set("X-Title", e.title)
}
