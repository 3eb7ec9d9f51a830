package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient talks to a local Ollama server for completions and embeddings.
type OllamaClient struct {
	baseURL string
	client  *http.Client
	model   string
	timeout time.Duration
}

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model is the model name to use for completions or embeddings (default: qwen2.5:7b)
	Model string

	// Timeout is the request timeout duration (default: 30s)
	Timeout time.Duration
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// embedRequest represents the request body for /api/embed
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is a 2D array; only the first embedding is used.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaClient creates a new Ollama client. Missing values default to
// http://localhost:11434, qwen2.5:7b and a 30 second timeout.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "qwen2.5:7b"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &OllamaClient{
		baseURL: config.BaseURL,
		client:  &http.Client{Timeout: config.Timeout},
		model:   config.Model,
		timeout: config.Timeout,
	}
}

// GenerateCompletion sends a non-streaming chat request to /api/chat.
func (c *OllamaClient) GenerateCompletion(ctx context.Context, creq CompletionRequest) (string, error) {
	messages := make([]openAIChatMessage, 0, 2)
	if creq.SystemPrompt != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: creq.SystemPrompt})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: creq.UserPrompt})

	var respData ollamaChatResponse
	err := postJSON(ctx, c.client, "ollama", c.baseURL+"/api/chat", "", ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOptions{Temperature: creq.Temperature, NumPredict: creq.MaxTokens},
	}, &respData)
	if err != nil {
		return "", err
	}
	return respData.Message.Content, nil
}

// Embed generates an embedding for text with the configured model.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var respData embedResponse
	err := postJSON(ctx, c.client, "ollama", c.baseURL+"/api/embed", "", embedRequest{
		Model: c.model,
		Input: text,
	}, &respData)
	if err != nil {
		return nil, err
	}

	if len(respData.Embeddings) == 0 || len(respData.Embeddings[0]) == 0 {
		return nil, NewFatalError(fmt.Errorf("ollama returned empty embedding vector"))
	}
	return respData.Embeddings[0], nil
}

// HealthCheck verifies that Ollama is reachable via /api/version.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.model
}

var _ TextGenerator = (*OllamaClient)(nil)
var _ EmbeddingGenerator = (*OllamaClient)(nil)
