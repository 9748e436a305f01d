package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	defaultDeepSeekModel   = "deepseek-chat"
)

// DeepSeekProvider calls the DeepSeek chat completions API, which follows
// the OpenAI request shape.
type DeepSeekProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewDeepSeekProvider creates a DeepSeek provider. baseURL is overridable for tests.
func NewDeepSeekProvider(apiKey, baseURL string, client *http.Client, logger *slog.Logger) *DeepSeekProvider {
	if baseURL == "" {
		baseURL = defaultDeepSeekBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DeepSeekProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   defaultDeepSeekModel,
		client:  client,
		logger:  logger.With("component", "deepseek_provider"),
	}
}

func (p *DeepSeekProvider) Name() string { return "deepseek" }

type deepSeekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepSeekMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepSeekResponse struct {
	Choices []struct {
		Message deepSeekMessage `json:"message"`
	} `json:"choices"`
}

// Generate embeds the context object into the prompt and calls chat completions.
func (p *DeepSeekProvider) Generate(ctx context.Context, prompt string, contextData any) (string, error) {
	fullPrompt, err := buildPrompt(prompt, contextData)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(deepSeekRequest{
		Model:       p.model,
		Messages:    []deepSeekMessage{{Role: "user", Content: fullPrompt}},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal deepseek request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read deepseek response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepseek api error: status %d", resp.StatusCode)
	}

	var parsed deepSeekResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal deepseek response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("deepseek response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
