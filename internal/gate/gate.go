// Package gate enforces token payment around diagnosis resolution: funds are
// checked before any provider work starts, and the wallet is debited only
// after a usable answer exists.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/masanjalab/doctor-mitambo/internal/common"
	"github.com/masanjalab/doctor-mitambo/internal/model"
	"github.com/masanjalab/doctor-mitambo/internal/service"
)

// VisionResolver extends the resolver with nameplate extraction so the gate
// can meter vision requests the same way as text diagnoses.
type VisionResolver interface {
	service.Resolver
	ExtractNameplate(ctx context.Context, image []byte) (model.Nameplate, error)
	NameplateCost() int64
}

// Gate composes the wallet store and the resolution engine.
type Gate struct {
	store    service.WalletStore
	resolver VisionResolver
	logger   *slog.Logger
}

// New creates a token gate.
func New(store service.WalletStore, resolver VisionResolver, logger *slog.Logger) *Gate {
	return &Gate{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// Spend runs one paid diagnosis: load the wallet, pre-check the prospective
// cost, resolve, then debit. Failed resolutions are free. The debit is the
// only critical section; it runs after resolution succeeds, so a concurrent
// spend that drains the wallet in the meantime surfaces as insufficient
// funds rather than an overdraft.
func (g *Gate) Spend(ctx context.Context, requesterID string, query model.DiagnosisQuery) (model.DiagnosisResult, error) {
	wallet, err := g.store.GetOrCreate(ctx, requesterID)
	if err != nil {
		return model.DiagnosisResult{}, fmt.Errorf("failed to load wallet: %w", err)
	}

	cost := g.resolver.ProspectiveCost(query.RawInput)
	if wallet.Balance < cost {
		g.logger.Info("diagnosis rejected, insufficient funds",
			"requester", requesterID,
			"balance", wallet.Balance,
			"cost", cost)
		return model.DiagnosisResult{}, common.ErrInsufficientFunds
	}

	query.RequesterID = requesterID
	result, err := g.resolver.Resolve(ctx, query)
	if err != nil {
		return model.DiagnosisResult{}, err
	}

	description := fmt.Sprintf("Diagnosis (%s)", result.Source)
	if result.Source == model.SourceKnowledgeBase {
		description = fmt.Sprintf("Diagnosis %s (%s)", query.RawInput, result.Source)
	}

	if err := g.store.Debit(ctx, requesterID, result.Cost, description); err != nil {
		return model.DiagnosisResult{}, err
	}

	g.logger.Info("diagnosis charged",
		"requester", requesterID,
		"source", result.Source,
		"cost", result.Cost)

	return result, nil
}

// SpendNameplate runs one paid nameplate extraction under the same payment
// rules as Spend.
func (g *Gate) SpendNameplate(ctx context.Context, requesterID string, image []byte) (model.Nameplate, error) {
	wallet, err := g.store.GetOrCreate(ctx, requesterID)
	if err != nil {
		return model.Nameplate{}, fmt.Errorf("failed to load wallet: %w", err)
	}

	cost := g.resolver.NameplateCost()
	if wallet.Balance < cost {
		g.logger.Info("nameplate extraction rejected, insufficient funds",
			"requester", requesterID,
			"balance", wallet.Balance,
			"cost", cost)
		return model.Nameplate{}, common.ErrInsufficientFunds
	}

	plate, err := g.resolver.ExtractNameplate(ctx, image)
	if err != nil {
		return model.Nameplate{}, err
	}

	if err := g.store.Debit(ctx, requesterID, cost, "Nameplate extraction"); err != nil {
		return model.Nameplate{}, err
	}

	g.logger.Info("nameplate extraction charged",
		"requester", requesterID,
		"cost", cost)

	return plate, nil
}
