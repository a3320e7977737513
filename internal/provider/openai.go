package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/masanjalab/doctor-mitambo/internal/common"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// openAIClient implements the Client interface for the OpenAI API. Vision
// requests carry the image as a data-URI content part.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg AdapterConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &openAIClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  newHTTPClient(),
	}, nil
}

func (c *openAIClient) Name() string { return "openai" }

// Complete sends a chat completion request to OpenAI.
func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	var userContent any = req.UserText
	if len(req.Image) > 0 {
		dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Image)
		userContent = []map[string]any{
			{"type": "text", "text": req.UserText},
			{"type": "image_url", "image_url": map[string]string{"url": dataURI}},
		}
	}

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{"role": "system", "content": req.System},
			{"role": "user", "content": userContent},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CompletionResult{}, transportError("openai", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResult{}, transportError("openai", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CompletionResult{}, classifyHTTPStatus("openai", resp.StatusCode, body)
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return CompletionResult{}, &common.RetryableError{
			Err:       fmt.Errorf("failed to parse openai response: %w", err),
			Retryable: true,
		}
	}

	if len(response.Choices) == 0 {
		return CompletionResult{}, &common.RetryableError{
			Err:       fmt.Errorf("no completion choices returned"),
			Retryable: true,
		}
	}

	return CompletionResult{Text: cleanMarkdownWrapper(response.Choices[0].Message.Content)}, nil
}
