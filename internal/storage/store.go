// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/debtbot/debtcollector/internal/models"
)

// ErrNotFound is returned by mutation methods when no open transaction
// matches the (id, creditor) filter. A transaction that does not exist and a
// transaction owned by a different creditor are deliberately
// indistinguishable: mutations filter on both keys in a single conditional
// update, so existence never leaks to non-owners.
var ErrNotFound = errors.New("transaction not found")

// Store defines the persistence operations the ledger engine needs.
// Every query has a fixed filter/group/sort shape; there is no generic
// query builder. The abstraction allows swapping storage backends (SQLite,
// MongoDB) without changing the engine.
type Store interface {
	// InsertTransaction persists a new transaction. The ID and CreatedAt
	// fields are populated by the store when unset.
	InsertTransaction(ctx context.Context, tx *models.Transaction) error

	// DebtorTotal sums the unsettled amounts owed by a user. An empty
	// guildID aggregates across all guilds.
	DebtorTotal(ctx context.Context, debtorID, guildID string) (models.Summary, error)

	// CreditorTotal sums the unsettled amounts owed to a user. An empty
	// guildID aggregates across all guilds.
	CreditorTotal(ctx context.Context, creditorID, guildID string) (models.Summary, error)

	// PairTotal sums the unsettled amounts the debtor owes the creditor,
	// across all guilds.
	PairTotal(ctx context.Context, creditorID, debtorID string) (models.Summary, error)

	// TopDebtors groups a guild's unsettled transactions by debtor and
	// returns up to limit rows sorted by total amount descending. Ties are
	// broken by debtor id ascending so the order is deterministic.
	TopDebtors(ctx context.Context, guildID string, limit int) ([]models.DebtorRank, error)

	// DebtsByCreditor groups a user's unsettled outgoing debts within a
	// guild by creditor, sorted by total amount descending.
	DebtsByCreditor(ctx context.Context, guildID, debtorID string) ([]models.CounterpartySummary, error)

	// CreditsByDebtor groups a user's unsettled incoming credits within a
	// guild by debtor, sorted by total amount descending.
	CreditsByDebtor(ctx context.Context, guildID, creditorID string) ([]models.CounterpartySummary, error)

	// ListUnsettledBetween returns the open transactions the debtor owes
	// the creditor, newest first.
	ListUnsettledBetween(ctx context.Context, creditorID, debtorID string) ([]*models.Transaction, error)

	// SettleTransaction marks a transaction settled with amount zero,
	// regardless of the remaining amount, if it is owned by creditorID.
	// Returns the post-update record or ErrNotFound.
	SettleTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error)

	// AdjustTransactionAmount atomically applies amount += delta to an open
	// transaction owned by creditorID. A result at or below zero is clamped
	// to zero and the transaction is settled in the same update; there is
	// no intermediate state where the amount is negative. Returns the
	// post-update record or ErrNotFound.
	AdjustTransactionAmount(ctx context.Context, creditorID, txID string, delta float64) (*models.Transaction, error)

	// ForceCloseTransaction writes a transaction off: amount zero, settled,
	// unconditionally, if owned by creditorID. Returns the post-update
	// record or ErrNotFound.
	ForceCloseTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error)

	// Close releases any resources held by the store.
	Close() error
}
