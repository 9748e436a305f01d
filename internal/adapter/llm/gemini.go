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
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// GeminiProvider calls the Google Gemini generateContent REST API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewGeminiProvider creates a Gemini provider. baseURL is overridable for tests.
func NewGeminiProvider(apiKey, baseURL string, client *http.Client, logger *slog.Logger) *GeminiProvider {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   defaultGeminiModel,
		client:  client,
		logger:  logger.With("component", "gemini_provider"),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate embeds the context object into the prompt and calls generateContent.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, contextData any) (string, error) {
	fullPrompt, err := buildPrompt(prompt, contextData)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fullPrompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini api error: status %d", resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response contained no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// buildPrompt appends the JSON-marshalled context object to the instruction
// prompt. All providers share this request shape.
func buildPrompt(prompt string, contextData any) (string, error) {
	contextJSON, err := json.Marshal(contextData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt context: %w", err)
	}
	return fmt.Sprintf("%s\n\nContext: %s", prompt, contextJSON), nil
}
