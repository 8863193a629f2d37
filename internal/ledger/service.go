// Package ledger implements the debt ledger engine: aggregate positions,
// per-counterparty breakdowns, and settlement/payment mutations over a
// storage.Store. The engine is stateless; all state lives in the store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/debtbot/debtcollector/internal/models"
	"github.com/debtbot/debtcollector/internal/money"
	"github.com/debtbot/debtcollector/internal/storage"
)

// Currency is the single currency supported per deployment.
const Currency = "USD"

// DefaultLeaderboardSize bounds TopDebtors when the caller passes no limit.
const DefaultLeaderboardSize = 10

var (
	// ErrSelfDebt rejects recording a debt from a user to themselves.
	ErrSelfDebt = errors.New("a user cannot owe themselves money")

	// ErrMissingParty rejects operations without the required identifiers.
	ErrMissingParty = errors.New("guild, creditor and debtor ids are required")

	// ErrInvalidAmount rejects zero, negative, or non-finite debt amounts.
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrInvalidPayment rejects zero, negative, or non-finite payments.
	ErrInvalidPayment = errors.New("payment amount must be a positive number")
)

// Service exposes the ledger operations. Construct one per store with
// NewService; it is safe for concurrent use.
type Service struct {
	store storage.Store
}

// NewService creates a ledger engine backed by the given store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// RecordDebt creates a new open transaction: debtor owes creditor the given
// amount within a guild. The amount is normalized (clamped, two decimals)
// before storage and must come out positive.
func (s *Service) RecordDebt(ctx context.Context, guildID, creditorID, debtorID string, amount float64, description string) (*models.Transaction, error) {
	if guildID == "" || creditorID == "" || debtorID == "" {
		return nil, ErrMissingParty
	}
	if creditorID == debtorID {
		return nil, ErrSelfDebt
	}

	normalized, err := money.Normalize(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if normalized <= 0 {
		return nil, ErrInvalidAmount
	}

	tx := &models.Transaction{
		CreditorID:  creditorID,
		DebtorID:    debtorID,
		Amount:      normalized,
		Description: description,
		GuildID:     guildID,
		Currency:    Currency,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	slog.Info("debt recorded",
		"transaction_id", tx.ID,
		"guild_id", guildID,
		"creditor_id", creditorID,
		"debtor_id", debtorID,
		"amount", tx.Amount,
	)
	return tx, nil
}

// TotalDebt returns the sum and count of unsettled debts the user owes.
// An empty guildID aggregates across all guilds. No matches is a zero
// summary, never an error.
func (s *Service) TotalDebt(ctx context.Context, userID, guildID string) (models.Summary, error) {
	return s.store.DebtorTotal(ctx, userID, guildID)
}

// TotalCredit returns the sum and count of unsettled debts owed to the
// user. An empty guildID aggregates across all guilds.
func (s *Service) TotalCredit(ctx context.Context, userID, guildID string) (models.Summary, error) {
	return s.store.CreditorTotal(ctx, userID, guildID)
}

// PairTotal returns how much the debtor owes the creditor. A specific
// relationship spans servers, so there is no guild filter.
func (s *Service) PairTotal(ctx context.Context, creditorID, debtorID string) (models.Summary, error) {
	return s.store.PairTotal(ctx, creditorID, debtorID)
}

// TopDebtors returns the guild leaderboard, largest total debt first.
// A non-positive limit falls back to DefaultLeaderboardSize.
func (s *Service) TopDebtors(ctx context.Context, guildID string, limit int) ([]models.DebtorRank, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	return s.store.TopDebtors(ctx, guildID, limit)
}

// DebtsByCreditor breaks the user's open debts within a guild down by
// creditor, sorted by amount descending: "who do I owe the most?".
func (s *Service) DebtsByCreditor(ctx context.Context, guildID, userID string) ([]models.CounterpartySummary, error) {
	return s.store.DebtsByCreditor(ctx, guildID, userID)
}

// CreditsByDebtor breaks the user's open credits within a guild down by
// debtor, sorted by amount descending: "who owes me the most?".
func (s *Service) CreditsByDebtor(ctx context.Context, guildID, userID string) ([]models.CounterpartySummary, error) {
	return s.store.CreditsByDebtor(ctx, guildID, userID)
}

// TransactionDetails returns the pair's aggregate position together with
// the itemized open transactions, newest first. Both come from a single
// store read so the total always matches the list.
func (s *Service) TransactionDetails(ctx context.Context, creditorID, debtorID string) (models.PairDetails, error) {
	txs, err := s.store.ListUnsettledBetween(ctx, creditorID, debtorID)
	if err != nil {
		return models.PairDetails{}, err
	}

	details := models.PairDetails{Transactions: txs}
	for _, tx := range txs {
		details.TotalAmount += tx.Amount
		details.Count++
	}
	return details, nil
}

// AllUnsettledBetween returns the raw open transactions for the pair,
// newest first. Backing data for pagination and item-level mutations.
func (s *Service) AllUnsettledBetween(ctx context.Context, creditorID, debtorID string) ([]*models.Transaction, error) {
	return s.store.ListUnsettledBetween(ctx, creditorID, debtorID)
}

// Settle marks a transaction fully resolved regardless of the remaining
// amount. Only the creditor may settle; anyone else gets
// storage.ErrNotFound, indistinguishable from a missing transaction.
func (s *Service) Settle(ctx context.Context, actingUserID, transactionID string) (*models.Transaction, error) {
	tx, err := s.store.SettleTransaction(ctx, actingUserID, transactionID)
	if err != nil {
		return nil, err
	}

	slog.Info("transaction settled", "transaction_id", tx.ID, "creditor_id", actingUserID)
	return tx, nil
}

// AdjustAmount applies a signed delta to a transaction's outstanding
// amount (negative for a payment, positive for a correction). A result at
// or below zero clamps to zero and settles the transaction in the same
// atomic update. Only the creditor may adjust.
func (s *Service) AdjustAmount(ctx context.Context, actingUserID, transactionID string, delta float64) (*models.Transaction, error) {
	normalized, err := money.Normalize(delta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	tx, err := s.store.AdjustTransactionAmount(ctx, actingUserID, transactionID, normalized)
	if err != nil {
		return nil, err
	}

	slog.Info("transaction adjusted",
		"transaction_id", tx.ID,
		"creditor_id", actingUserID,
		"delta", normalized,
		"remaining", tx.Amount,
		"settled", tx.IsSettled,
	)
	return tx, nil
}

// ApplyPayment records a payment against a transaction: the outstanding
// amount drops by paymentAmount, settling at zero. Overpayment clamps to
// zero rather than erroring; callers that want strict behavior validate
// against the known outstanding amount first.
func (s *Service) ApplyPayment(ctx context.Context, actingUserID, transactionID string, paymentAmount float64) (*models.Transaction, error) {
	normalized, err := money.Normalize(paymentAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}
	if normalized <= 0 {
		return nil, ErrInvalidPayment
	}

	return s.AdjustAmount(ctx, actingUserID, transactionID, -normalized)
}

// ForceClose writes a transaction off: amount zero, settled, keeping the
// record for history. This is the "delete" a user sees; nothing is ever
// physically removed from the ledger.
func (s *Service) ForceClose(ctx context.Context, actingUserID, transactionID string) (*models.Transaction, error) {
	tx, err := s.store.ForceCloseTransaction(ctx, actingUserID, transactionID)
	if err != nil {
		return nil, err
	}

	slog.Info("transaction written off", "transaction_id", tx.ID, "creditor_id", actingUserID)
	return tx, nil
}
