package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/masanjalab/doctor-mitambo/internal/common"
)

const defaultAttemptTimeout = 20 * time.Second

// Registry holds the priority-ordered set of configured adapters and routes
// completion requests across them. It is built once at startup and never
// mutated, so Route is safe to call from concurrent requests.
type Registry struct {
	limiter *rate.Limiter
	logger  *slog.Logger
	clients []Client
	timeout time.Duration
}

// NewRegistry constructs the adapter set from configuration. Adapters without
// credentials are skipped rather than erroring; an empty registry is a loud
// warning, not a failure, because knowledge base lookups stay usable.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	order := cfg.Order
	if len(order) == 0 {
		order = []string{"groq", "gemini", "openai"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}

	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	var clients []Client
	for _, name := range order {
		var (
			client Client
			err    error
		)
		switch strings.ToLower(name) {
		case "groq":
			client, err = newGroqClient(cfg.Groq)
		case "gemini":
			client, err = newGeminiClient(cfg.Gemini)
		case "openai":
			client, err = newOpenAIClient(cfg.OpenAI)
		default:
			logger.Warn("unknown AI provider in configuration", "provider", name)
			continue
		}

		if err != nil {
			logger.Debug("AI provider not configured, skipping",
				"provider", name,
				"reason", err)
			continue
		}

		clients = append(clients, client)
	}

	if len(clients) == 0 {
		logger.Warn("no AI providers configured; only knowledge base lookups will succeed")
	} else {
		names := make([]string, len(clients))
		for i, c := range clients {
			names[i] = c.Name()
		}
		logger.Info("AI providers configured", "providers", names)
	}

	return &Registry{
		clients: clients,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		logger:  logger,
	}
}

// Available returns the names of the configured adapters in priority order.
func (r *Registry) Available() []string {
	names := make([]string, len(r.clients))
	for i, c := range r.clients {
		names[i] = c.Name()
	}
	return names
}

// Route attempts the request against each adapter in priority order, one
// attempt per adapter, each bounded by the per-attempt timeout. A retryable
// failure moves to the next adapter; a fatal one aborts immediately. Worst
// case latency is len(clients) × timeout; callers with a harder SLA impose
// their own deadline through ctx.
func (r *Registry) Route(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if strings.TrimSpace(req.UserText) == "" && len(req.Image) == 0 {
		return CompletionResult{}, &common.RetryableError{
			Err:       common.ErrEmptyQuery,
			Retryable: false,
		}
	}

	if len(r.clients) == 0 {
		return CompletionResult{}, fmt.Errorf("%w: none configured", common.ErrAllProvidersUnavailable)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return CompletionResult{}, fmt.Errorf("rate limiter canceled: %w", err)
	}

	attemptErrs := make([]error, 0, len(r.clients))
	for _, client := range r.clients {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		result, err := client.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			r.logger.Debug("provider completed request", "provider", client.Name())
			return result, nil
		}

		// The caller canceled or ran out of deadline; stop the fallback chain.
		if ctx.Err() != nil {
			return CompletionResult{}, ctx.Err()
		}

		if !common.IsRetryable(err) {
			return CompletionResult{}, fmt.Errorf("provider %s: %w", client.Name(), err)
		}

		r.logger.Warn("provider attempt failed, trying next",
			"provider", client.Name(),
			"error", err)
		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", client.Name(), err))
	}

	return CompletionResult{}, fmt.Errorf("%w: %w", common.ErrAllProvidersUnavailable, errors.Join(attemptErrs...))
}
