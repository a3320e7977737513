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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiClient implements the Client interface for the Gemini generateContent
// API. Vision requests carry the image as an inline_data part.
type geminiClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newGeminiClient creates a new Gemini API client.
func newGeminiClient(cfg AdapterConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &geminiClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  newHTTPClient(),
	}, nil
}

func (c *geminiClient) Name() string { return "gemini" }

// Complete sends a generateContent request to Gemini.
func (c *geminiClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	parts := []map[string]any{
		{"text": req.UserText},
	}
	if len(req.Image) > 0 {
		parts = append(parts, map[string]any{
			"inline_data": map[string]string{
				"mime_type": "image/jpeg",
				"data":      base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}

	requestBody := map[string]any{
		"contents": []map[string]any{
			{"parts": parts},
		},
		"generationConfig": map[string]any{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxTokens,
		},
	}
	if req.System != "" {
		requestBody["system_instruction"] = map[string]any{
			"parts": []map[string]string{{"text": req.System}},
		}
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CompletionResult{}, transportError("gemini", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResult{}, transportError("gemini", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CompletionResult{}, classifyHTTPStatus("gemini", resp.StatusCode, body)
	}

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return CompletionResult{}, &common.RetryableError{
			Err:       fmt.Errorf("failed to parse gemini response: %w", err),
			Retryable: true,
		}
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return CompletionResult{}, &common.RetryableError{
			Err:       fmt.Errorf("no candidates in response"),
			Retryable: true,
		}
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return CompletionResult{Text: cleanMarkdownWrapper(text.String())}, nil
}

// geminiResponse represents the Gemini API response structure.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
			Role string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}
