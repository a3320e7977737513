package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masanjalab/doctor-mitambo/internal/common"
	"github.com/masanjalab/doctor-mitambo/internal/kb"
	"github.com/masanjalab/doctor-mitambo/internal/model"
	"github.com/masanjalab/doctor-mitambo/internal/provider"
)

// mockRouter is a scripted test implementation of the Router interface.
type mockRouter struct {
	fn    func(req provider.CompletionRequest) (provider.CompletionResult, error)
	calls int
}

func (m *mockRouter) Route(_ context.Context, req provider.CompletionRequest) (provider.CompletionResult, error) {
	m.calls++
	return m.fn(req)
}

func testEngine(t *testing.T, router Router, cfg Config) *Engine {
	t.Helper()
	base, err := kb.Load("")
	require.NoError(t, err)
	return New(base, router, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveKnowledgeBaseHitSkipsNetwork(t *testing.T) {
	router := &mockRouter{fn: func(provider.CompletionRequest) (provider.CompletionResult, error) {
		t.Fatal("router must not be called for a knowledge base hit")
		return provider.CompletionResult{}, nil
	}}
	eng := testEngine(t, router, Config{})

	// Case and whitespace variations of a known code all hit.
	for _, input := range []string{"E360", "e360 ", "  e360"} {
		result, err := eng.Resolve(context.Background(), model.DiagnosisQuery{RawInput: input})
		require.NoError(t, err, "input %q", input)

		assert.Equal(t, model.SourceKnowledgeBase, result.Source)
		assert.Equal(t, "CAT", result.Brand)
		assert.Equal(t, "Low Coolant Level", result.Problem)
		require.NotNil(t, result.Severity)
		assert.Equal(t, model.SeverityMinor, *result.Severity)
		assert.EqualValues(t, 2, result.Cost)
	}
	assert.Equal(t, 0, router.calls)
}

func TestResolveFallsBackToProvider(t *testing.T) {
	var captured provider.CompletionRequest
	router := &mockRouter{fn: func(req provider.CompletionRequest) (provider.CompletionResult, error) {
		captured = req
		return provider.CompletionResult{Text: "Kagua hydraulic pump na presha ya mafuta."}, nil
	}}
	eng := testEngine(t, router, Config{Language: "Swahili", FlatRate: 5})

	result, err := eng.Resolve(context.Background(), model.DiagnosisQuery{
		RawInput: "excavator arm moves slowly and jerks",
		Category: "excavator",
	})

	require.NoError(t, err)
	assert.Equal(t, model.SourceAIProvider, result.Source)
	assert.Equal(t, "Kagua hydraulic pump na presha ya mafuta.", result.Fix)
	assert.Nil(t, result.Severity, "AI answers carry no structured severity")
	assert.EqualValues(t, 5, result.Cost)

	assert.Contains(t, captured.System, "Swahili")
	assert.Contains(t, captured.System, "CAT, Komatsu, Volvo")
	assert.Contains(t, captured.UserText, "excavator arm moves slowly")
	assert.Contains(t, captured.UserText, "Equipment category: excavator")
	assert.Nil(t, captured.Image)
}

func TestResolveEmptyInput(t *testing.T) {
	router := &mockRouter{fn: func(provider.CompletionRequest) (provider.CompletionResult, error) {
		return provider.CompletionResult{}, nil
	}}
	eng := testEngine(t, router, Config{})

	_, err := eng.Resolve(context.Background(), model.DiagnosisQuery{RawInput: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrEmptyQuery)
	assert.Equal(t, 0, router.calls)
}

func TestResolvePropagatesRouterFailure(t *testing.T) {
	router := &mockRouter{fn: func(provider.CompletionRequest) (provider.CompletionResult, error) {
		return provider.CompletionResult{}, common.ErrAllProvidersUnavailable
	}}
	eng := testEngine(t, router, Config{})

	_, err := eng.Resolve(context.Background(), model.DiagnosisQuery{RawInput: "XYZ-UNKNOWN"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAllProvidersUnavailable)
}

func TestProspectiveCost(t *testing.T) {
	router := &mockRouter{fn: func(provider.CompletionRequest) (provider.CompletionResult, error) {
		return provider.CompletionResult{}, nil
	}}
	eng := testEngine(t, router, Config{FlatRate: 7})

	assert.EqualValues(t, 2, eng.ProspectiveCost("e360 "), "catalog cost for known codes")
	assert.EqualValues(t, 10, eng.ProspectiveCost("70-2"))
	assert.EqualValues(t, 7, eng.ProspectiveCost("engine smokes"), "flat rate for free text")
}

func TestResolveDefaults(t *testing.T) {
	router := &mockRouter{fn: func(req provider.CompletionRequest) (provider.CompletionResult, error) {
		assert.Contains(t, req.System, "Swahili", "default answer language")
		return provider.CompletionResult{Text: "ok"}, nil
	}}
	eng := testEngine(t, router, Config{})

	result, err := eng.Resolve(context.Background(), model.DiagnosisQuery{RawInput: "brakes grinding"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, result.Cost, "default flat rate")
}

func TestResolveDoesNotRetryFatalErrors(t *testing.T) {
	fatal := &common.RetryableError{Err: errors.New("bad request"), Retryable: false}
	router := &mockRouter{fn: func(provider.CompletionRequest) (provider.CompletionResult, error) {
		return provider.CompletionResult{}, fatal
	}}
	eng := testEngine(t, router, Config{})

	_, err := eng.Resolve(context.Background(), model.DiagnosisQuery{RawInput: "unknown fault"})
	require.Error(t, err)
	assert.Equal(t, 1, router.calls)
}
