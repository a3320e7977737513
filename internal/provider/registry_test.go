package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/masanjalab/doctor-mitambo/internal/common"
)

// fakeClient is a scripted test implementation of the Client interface.
type fakeClient struct {
	fn    func(req CompletionRequest) (CompletionResult, error)
	name  string
	calls int
	mu    sync.Mutex
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Complete(_ context.Context, req CompletionRequest) (CompletionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(clients ...Client) *Registry {
	return &Registry{
		clients: clients,
		timeout: time.Second,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  testLogger(),
	}
}

func transientFailure() (CompletionResult, error) {
	return CompletionResult{}, &common.RetryableError{
		Err:       fmt.Errorf("status 503"),
		Retryable: true,
	}
}

func TestRouteFallbackOrder(t *testing.T) {
	a := &fakeClient{name: "a", fn: func(CompletionRequest) (CompletionResult, error) {
		return transientFailure()
	}}
	b := &fakeClient{name: "b", fn: func(CompletionRequest) (CompletionResult, error) {
		return CompletionResult{Text: "answer from b"}, nil
	}}

	registry := newTestRegistry(a, b)
	result, err := registry.Route(context.Background(), CompletionRequest{UserText: "engine overheating"})

	require.NoError(t, err)
	assert.Equal(t, "answer from b", result.Text)
	assert.Equal(t, 1, a.callCount(), "failing adapter is tried exactly once")
	assert.Equal(t, 1, b.callCount())
}

func TestRouteAllTransientFailuresExhaustAdapters(t *testing.T) {
	a := &fakeClient{name: "a", fn: func(CompletionRequest) (CompletionResult, error) {
		return transientFailure()
	}}
	b := &fakeClient{name: "b", fn: func(CompletionRequest) (CompletionResult, error) {
		return transientFailure()
	}}
	c := &fakeClient{name: "c", fn: func(CompletionRequest) (CompletionResult, error) {
		return transientFailure()
	}}

	registry := newTestRegistry(a, b, c)
	_, err := registry.Route(context.Background(), CompletionRequest{UserText: "q"})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAllProvidersUnavailable)
	// Exactly one attempt per adapter, no same-adapter retry loop.
	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
	assert.Equal(t, 1, c.callCount())
}

func TestRouteFatalFailureStopsImmediately(t *testing.T) {
	fatal := errors.New("image payload rejected")
	a := &fakeClient{name: "a", fn: func(CompletionRequest) (CompletionResult, error) {
		return CompletionResult{}, &common.RetryableError{Err: fatal, Retryable: false}
	}}
	b := &fakeClient{name: "b", fn: func(CompletionRequest) (CompletionResult, error) {
		return CompletionResult{Text: "never reached"}, nil
	}}

	registry := newTestRegistry(a, b)
	_, err := registry.Route(context.Background(), CompletionRequest{UserText: "q"})

	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, common.ErrAllProvidersUnavailable)
	assert.Equal(t, 0, b.callCount(), "fatal failures are not retried across adapters")
}

func TestRouteRejectsEmptyRequest(t *testing.T) {
	a := &fakeClient{name: "a", fn: func(CompletionRequest) (CompletionResult, error) {
		return CompletionResult{Text: "never reached"}, nil
	}}

	registry := newTestRegistry(a)
	_, err := registry.Route(context.Background(), CompletionRequest{UserText: "   "})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrEmptyQuery)
	assert.False(t, common.IsRetryable(err))
	assert.Equal(t, 0, a.callCount())
}

func TestRouteWithNoAdapters(t *testing.T) {
	registry := newTestRegistry()
	_, err := registry.Route(context.Background(), CompletionRequest{UserText: "q"})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAllProvidersUnavailable)
}

func TestRouteStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &fakeClient{name: "a", fn: func(CompletionRequest) (CompletionResult, error) {
		cancel()
		return transientFailure()
	}}
	b := &fakeClient{name: "b", fn: func(CompletionRequest) (CompletionResult, error) {
		return CompletionResult{Text: "never reached"}, nil
	}}

	registry := newTestRegistry(a, b)
	_, err := registry.Route(ctx, CompletionRequest{UserText: "q"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, b.callCount(), "cancellation stops the fallback chain")
}

func TestNewRegistrySkipsUnconfiguredAdapters(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "no credentials at all",
			cfg:  Config{},
			want: []string{},
		},
		{
			name: "only gemini configured",
			cfg: Config{
				Gemini: AdapterConfig{APIKey: "test-key"},
			},
			want: []string{"gemini"},
		},
		{
			name: "custom order respected",
			cfg: Config{
				Order:  []string{"openai", "groq"},
				Groq:   AdapterConfig{APIKey: "test-key"},
				OpenAI: AdapterConfig{APIKey: "test-key"},
			},
			want: []string{"openai", "groq"},
		},
		{
			name: "unknown provider name skipped",
			cfg: Config{
				Order: []string{"mystery", "groq"},
				Groq:  AdapterConfig{APIKey: "test-key"},
			},
			want: []string{"groq"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry(tt.cfg, testLogger())
			assert.Equal(t, tt.want, registry.Available())
		})
	}
}
