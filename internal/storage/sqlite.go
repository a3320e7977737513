// Package storage provides the SQLite-backed wallet store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/masanjalab/doctor-mitambo/internal/common"
	"github.com/masanjalab/doctor-mitambo/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the service.WalletStore interface using SQLite.
type SQLiteStore struct {
	db             *sql.DB
	dbPath         string
	initialBalance int64
}

// NewSQLiteStore creates a new SQLite wallet store. New wallets are seeded
// with initialBalance tokens.
func NewSQLiteStore(dbPath string, initialBalance int64) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}
	if initialBalance < 0 {
		return nil, fmt.Errorf("initial balance must not be negative: %d", initialBalance)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:             db,
		dbPath:         dbPath,
		initialBalance: initialBalance,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreate loads a wallet, seeding a new one with the initial balance and
// a matching credit ledger line.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, requesterID string) (model.Wallet, error) {
	if err := validateContext(ctx); err != nil {
		return model.Wallet{}, err
	}
	if err := validateString(requesterID, "requesterID"); err != nil {
		return model.Wallet{}, err
	}

	wallet, err := s.getWallet(ctx, requesterID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return model.Wallet{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Wallet{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (requester_id, balance, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		requesterID, s.initialBalance, now, now); err != nil {
		return model.Wallet{}, fmt.Errorf("failed to create wallet: %w", err)
	}

	if s.initialBalance > 0 {
		if err := insertLedgerEntry(ctx, tx, model.LedgerEntry{
			ID:          uuid.NewString(),
			RequesterID: requesterID,
			Type:        model.LedgerCredit,
			Amount:      s.initialBalance,
			Description: "Initial wallet balance",
			CreatedAt:   now,
		}); err != nil {
			return model.Wallet{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Wallet{}, fmt.Errorf("failed to commit wallet creation: %w", err)
	}

	return model.Wallet{
		RequesterID: requesterID,
		Balance:     s.initialBalance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Balance returns the current balance for a requester.
func (s *SQLiteStore) Balance(ctx context.Context, requesterID string) (int64, error) {
	wallet, err := s.getWallet(ctx, requesterID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

// Credit adds tokens to an existing wallet and appends a credit ledger line.
func (s *SQLiteStore) Credit(ctx context.Context, requesterID string, amount int64, description string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(requesterID, "requesterID"); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive: %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + ?, updated_at = ? WHERE requester_id = ?`,
		amount, time.Now().UTC(), requesterID)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check credit result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("wallet %s: %w", requesterID, common.ErrNotFound)
	}

	if err := insertLedgerEntry(ctx, tx, model.LedgerEntry{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Type:        model.LedgerCredit,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credit: %w", err)
	}
	return nil
}

// Debit removes tokens and appends a debit ledger line in one transaction.
// The conditional UPDATE is the compare-and-swap that closes the double-spend
// race: two concurrent debits against the same wallet cannot both pass the
// balance guard, and the balance never goes negative.
func (s *SQLiteStore) Debit(ctx context.Context, requesterID string, amount int64, description string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(requesterID, "requesterID"); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive: %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance - ?, updated_at = ? WHERE requester_id = ? AND balance >= ?`,
		amount, time.Now().UTC(), requesterID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check debit result: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM wallets WHERE requester_id = ?)`, requesterID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check wallet existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("wallet %s: %w", requesterID, common.ErrNotFound)
		}
		return common.ErrInsufficientFunds
	}

	if err := insertLedgerEntry(ctx, tx, model.LedgerEntry{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Type:        model.LedgerDebit,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit debit: %w", err)
	}
	return nil
}

// History returns a requester's ledger entries, most recent first.
func (s *SQLiteStore) History(ctx context.Context, requesterID string, limit int) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(requesterID, "requesterID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requester_id, type, amount, description, created_at
		 FROM ledger_entries
		 WHERE requester_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.RequesterID, &entry.Type, &entry.Amount, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger rows: %w", err)
	}

	return entries, nil
}

func (s *SQLiteStore) getWallet(ctx context.Context, requesterID string) (model.Wallet, error) {
	if err := validateContext(ctx); err != nil {
		return model.Wallet{}, err
	}
	if err := validateString(requesterID, "requesterID"); err != nil {
		return model.Wallet{}, err
	}

	var wallet model.Wallet
	err := s.db.QueryRowContext(ctx,
		`SELECT requester_id, balance, created_at, updated_at FROM wallets WHERE requester_id = ?`,
		requesterID).Scan(&wallet.RequesterID, &wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Wallet{}, fmt.Errorf("wallet %s: %w", requesterID, common.ErrNotFound)
	}
	if err != nil {
		return model.Wallet{}, fmt.Errorf("failed to load wallet: %w", err)
	}
	return wallet, nil
}

func insertLedgerEntry(ctx context.Context, tx *sql.Tx, entry model.LedgerEntry) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, requester_id, type, amount, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RequesterID, entry.Type, entry.Amount, entry.Description, entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}
