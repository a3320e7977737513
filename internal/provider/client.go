// Package provider contains the adapters for the external AI completion
// backends and the registry that routes requests across them.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/masanjalab/doctor-mitambo/internal/common"
)

// CompletionRequest is the adapter-facing request contract. Image is nil for
// text-only requests; adapters for text-only backends reject image requests
// with a retryable error so the router can fall through to a vision-capable
// provider.
type CompletionRequest struct {
	System   string
	UserText string
	Image    []byte
}

// CompletionResult contains the provider's answer with any markdown code
// fencing already stripped.
type CompletionResult struct {
	Text string
}

// Client defines the interface every provider adapter implements. Complete
// runs one network call under the caller's context; failure classification
// happens inside the adapter via common.RetryableError.
type Client interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// AdapterConfig holds per-provider settings. BaseURL is only overridden in
// tests.
type AdapterConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// Config holds the full provider layer configuration.
type Config struct {
	Groq    AdapterConfig
	Gemini  AdapterConfig
	OpenAI  AdapterConfig
	Order   []string
	Timeout time.Duration
	// RatePerMinute paces outbound provider calls across the whole process.
	RatePerMinute int
}

// newHTTPClient builds the pooled HTTP client shared by the adapters. The
// transport timeout is a backstop; the router applies the per-attempt timeout
// through the request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// classifyHTTPStatus converts a non-200 provider response into a classified
// error. 429 and 5xx are transient; 401/403 mean this provider is
// misconfigured but another may answer; remaining 4xx mean our request is
// malformed and retrying elsewhere cannot help.
func classifyHTTPStatus(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}

// transportError classifies connect, DNS and timeout failures as transient.
func transportError(provider string, err error) error {
	return &common.RetryableError{
		Err:       fmt.Errorf("%s request failed: %w", provider, err),
		Retryable: true,
	}
}
