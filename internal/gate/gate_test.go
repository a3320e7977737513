package gate

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masanjalab/doctor-mitambo/internal/common"
	"github.com/masanjalab/doctor-mitambo/internal/model"
	"github.com/masanjalab/doctor-mitambo/internal/storage"
)

// fakeResolver is a scripted VisionResolver backed by a tiny cost table.
type fakeResolver struct {
	resolveFn   func(query model.DiagnosisQuery) (model.DiagnosisResult, error)
	nameplateFn func(image []byte) (model.Nameplate, error)
	costs       map[string]int64
	flatRate    int64
	calls       atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, query model.DiagnosisQuery) (model.DiagnosisResult, error) {
	f.calls.Add(1)
	return f.resolveFn(query)
}

func (f *fakeResolver) ProspectiveCost(rawInput string) int64 {
	if cost, ok := f.costs[rawInput]; ok {
		return cost
	}
	return f.flatRate
}

func (f *fakeResolver) ExtractNameplate(_ context.Context, image []byte) (model.Nameplate, error) {
	f.calls.Add(1)
	return f.nameplateFn(image)
}

func (f *fakeResolver) NameplateCost() int64 { return f.flatRate }

func newTestStore(t *testing.T, initialBalance int64) *storage.SQLiteStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "gate.db"), initialBalance)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestGate(t *testing.T, initialBalance int64, resolver *fakeResolver) (*Gate, *storage.SQLiteStore) {
	t.Helper()

	store := newTestStore(t, initialBalance)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, resolver, logger), store
}

func kbResult(cost int64) model.DiagnosisResult {
	severity := model.SeverityMinor
	return model.DiagnosisResult{
		Source:   model.SourceKnowledgeBase,
		Brand:    "CAT",
		Problem:  "Low Coolant Level",
		Fix:      "Top up coolant and inspect for leaks.",
		Severity: &severity,
		Cost:     cost,
	}
}

func TestSpendChargesExactCost(t *testing.T) {
	resolver := &fakeResolver{
		costs:    map[string]int64{"E360": 2},
		flatRate: 5,
		resolveFn: func(model.DiagnosisQuery) (model.DiagnosisResult, error) {
			return kbResult(2), nil
		},
	}
	gate, store := newTestGate(t, 5, resolver)
	ctx := context.Background()

	result, err := gate.Spend(ctx, "fundi-1", model.DiagnosisQuery{RawInput: "E360"})

	require.NoError(t, err)
	assert.Equal(t, model.SourceKnowledgeBase, result.Source)
	assert.EqualValues(t, 2, result.Cost)

	balance, err := store.Balance(ctx, "fundi-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, balance)

	entries, err := store.History(ctx, "fundi-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2, "initial credit plus exactly one debit")
	assert.Equal(t, model.LedgerDebit, entries[0].Type)
	assert.EqualValues(t, 2, entries[0].Amount)
	assert.Contains(t, entries[0].Description, "E360")
}

func TestSpendInsufficientFundsSkipsResolution(t *testing.T) {
	resolver := &fakeResolver{
		flatRate: 5,
		resolveFn: func(model.DiagnosisQuery) (model.DiagnosisResult, error) {
			return model.DiagnosisResult{}, nil
		},
	}
	gate, store := newTestGate(t, 3, resolver)
	ctx := context.Background()

	_, err := gate.Spend(ctx, "fundi-1", model.DiagnosisQuery{RawInput: "engine smokes"})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.EqualValues(t, 0, resolver.calls.Load(), "no provider work for an unaffordable request")

	balance, err := store.Balance(ctx, "fundi-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, balance)

	entries, err := store.History(ctx, "fundi-1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the initial credit line")
}

func TestSpendFailedResolutionIsFree(t *testing.T) {
	resolver := &fakeResolver{
		flatRate: 5,
		resolveFn: func(model.DiagnosisQuery) (model.DiagnosisResult, error) {
			return model.DiagnosisResult{}, common.ErrAllProvidersUnavailable
		},
	}
	gate, store := newTestGate(t, 100, resolver)
	ctx := context.Background()

	_, err := gate.Spend(ctx, "fundi-1", model.DiagnosisQuery{RawInput: "engine smokes"})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAllProvidersUnavailable)

	balance, err := store.Balance(ctx, "fundi-1")
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance, "failed resolutions cost nothing")
}

func TestSpendAIResultUsesFlatRate(t *testing.T) {
	resolver := &fakeResolver{
		flatRate: 5,
		resolveFn: func(model.DiagnosisQuery) (model.DiagnosisResult, error) {
			return model.DiagnosisResult{
				Source: model.SourceAIProvider,
				Fix:    "Kagua hydraulic pump.",
				Cost:   5,
			}, nil
		},
	}
	gate, store := newTestGate(t, 100, resolver)
	ctx := context.Background()

	result, err := gate.Spend(ctx, "fundi-1", model.DiagnosisQuery{RawInput: "arm moves slowly"})

	require.NoError(t, err)
	assert.Equal(t, model.SourceAIProvider, result.Source)
	assert.Nil(t, result.Severity)

	balance, err := store.Balance(ctx, "fundi-1")
	require.NoError(t, err)
	assert.EqualValues(t, 95, balance)
}

func TestConcurrentSpendsAllowExactlyOneWinner(t *testing.T) {
	resolver := &fakeResolver{
		costs: map[string]int64{"1500-0": 8},
		resolveFn: func(model.DiagnosisQuery) (model.DiagnosisResult, error) {
			severity := model.SeverityCritical
			return model.DiagnosisResult{
				Source:   model.SourceKnowledgeBase,
				Brand:    "Komatsu",
				Severity: &severity,
				Cost:     8,
			}, nil
		},
	}
	gate, store := newTestGate(t, 10, resolver)
	ctx := context.Background()

	// Create the wallet up front so both goroutines race on the debit, not
	// on wallet creation.
	_, err := store.GetOrCreate(ctx, "fundi-1")
	require.NoError(t, err)

	const workers = 2
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = gate.Spend(ctx, "fundi-1", model.DiagnosisQuery{RawInput: "1500-0"})
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, common.ErrInsufficientFunds)
		insufficient++
	}
	assert.Equal(t, 1, successes, "exactly one spend wins the race")
	assert.Equal(t, 1, insufficient)

	balance, err := store.Balance(ctx, "fundi-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, balance, "the wallet is debited exactly once")
}

func TestSpendNameplate(t *testing.T) {
	resolver := &fakeResolver{
		flatRate: 5,
		nameplateFn: func([]byte) (model.Nameplate, error) {
			return model.Nameplate{Brand: "CAT", Model: "336D", Serial: "MBD0254"}, nil
		},
	}
	gate, store := newTestGate(t, 100, resolver)
	ctx := context.Background()

	plate, err := gate.SpendNameplate(ctx, "fundi-1", []byte{0xFF, 0xD8})

	require.NoError(t, err)
	assert.Equal(t, "CAT", plate.Brand)

	balance, err := store.Balance(ctx, "fundi-1")
	require.NoError(t, err)
	assert.EqualValues(t, 95, balance)

	entries, err := store.History(ctx, "fundi-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Nameplate extraction", entries[0].Description)
}

func TestSpendNameplateFailedExtractionIsFree(t *testing.T) {
	resolver := &fakeResolver{
		flatRate: 5,
		nameplateFn: func([]byte) (model.Nameplate, error) {
			return model.Nameplate{}, common.ErrMalformedResponse
		},
	}
	gate, store := newTestGate(t, 100, resolver)
	ctx := context.Background()

	_, err := gate.SpendNameplate(ctx, "fundi-1", []byte{0xFF})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)

	balance, err := store.Balance(ctx, "fundi-1")
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)
}

func TestSpendNameplateInsufficientFunds(t *testing.T) {
	resolver := &fakeResolver{
		flatRate: 5,
		nameplateFn: func([]byte) (model.Nameplate, error) {
			return model.Nameplate{}, nil
		},
	}
	gate, _ := newTestGate(t, 4, resolver)

	_, err := gate.SpendNameplate(context.Background(), "fundi-1", []byte{0xFF})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.EqualValues(t, 0, resolver.calls.Load())
}
