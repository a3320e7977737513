package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/masanjalab/doctor-mitambo/internal/common"
)

const defaultGroqBaseURL = "https://api.groq.com/openai"

// groqClient implements the Client interface for the Groq chat API. Groq
// serves text completions only; image requests are refused with a retryable
// error so the router moves on to a vision-capable provider.
type groqClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newGroqClient creates a new Groq API client.
func newGroqClient(cfg AdapterConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "llama-3.1-70b-versatile"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &groqClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  newHTTPClient(),
	}, nil
}

func (c *groqClient) Name() string { return "groq" }

// Complete sends a chat completion request to Groq.
func (c *groqClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if len(req.Image) > 0 {
		return CompletionResult{}, &common.RetryableError{
			Err:       fmt.Errorf("groq backend is text-only"),
			Retryable: true,
		}
	}

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.UserText},
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
		return CompletionResult{}, transportError("groq", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResult{}, transportError("groq", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CompletionResult{}, classifyHTTPStatus("groq", resp.StatusCode, body)
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return CompletionResult{}, &common.RetryableError{
			Err:       fmt.Errorf("failed to parse groq response: %w", err),
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

// chatCompletionResponse is the OpenAI-compatible chat completion shape used
// by both Groq and OpenAI.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
