package model

import "time"

// Wallet is a requester's token balance. The balance is never negative;
// it is only mutated through the store's atomic credit and debit operations.
type Wallet struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RequesterID string
	Balance     int64
}

// LedgerEntry is one immutable line in a wallet's transaction history.
// Debits have positive amounts; top-ups are recorded as credits.
type LedgerEntry struct {
	CreatedAt   time.Time
	ID          string
	RequesterID string
	Description string
	Type        LedgerEntryType
	Amount      int64
}

// LedgerEntryType distinguishes debits from credits in the history.
type LedgerEntryType string

const (
	// LedgerDebit is a charge for a successful diagnosis.
	LedgerDebit LedgerEntryType = "debit"
	// LedgerCredit is a top-up or the initial wallet seed.
	LedgerCredit LedgerEntryType = "credit"
)
