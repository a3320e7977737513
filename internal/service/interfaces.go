// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/masanjalab/doctor-mitambo/internal/model"
)

// WalletStore defines the contract for the wallet persistence layer. The
// implementation must guarantee that Debit is atomic relative to concurrent
// calls for the same requester: a wallet balance never goes negative.
type WalletStore interface {
	// GetOrCreate loads a requester's wallet, seeding a new one with the
	// store's configured initial balance if none exists.
	GetOrCreate(ctx context.Context, requesterID string) (model.Wallet, error)

	// Balance returns the current balance for a requester.
	Balance(ctx context.Context, requesterID string) (int64, error)

	// Credit adds tokens to a wallet and appends a credit ledger entry.
	Credit(ctx context.Context, requesterID string, amount int64, description string) error

	// Debit removes tokens and appends a debit ledger entry in one atomic
	// unit. It returns common.ErrInsufficientFunds when the balance does not
	// cover the amount, leaving both balance and ledger untouched.
	Debit(ctx context.Context, requesterID string, amount int64, description string) error

	// History returns a requester's ledger entries, most recent first.
	History(ctx context.Context, requesterID string, limit int) ([]model.LedgerEntry, error)

	// Migrate brings the backing schema up to date.
	Migrate(ctx context.Context) error

	Close() error
}

// Resolver defines the contract the token gate uses to produce diagnoses.
type Resolver interface {
	// Resolve answers a diagnosis query, from the knowledge base when
	// possible and from an AI provider otherwise.
	Resolve(ctx context.Context, query model.DiagnosisQuery) (model.DiagnosisResult, error)

	// ProspectiveCost returns the cost a query would incur if it succeeded:
	// the catalog cost for known codes, the flat AI rate otherwise.
	ProspectiveCost(rawInput string) int64
}
