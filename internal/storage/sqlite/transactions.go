package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/debtbot/debtcollector/internal/models"
	"github.com/debtbot/debtcollector/internal/storage"
)

const transactionColumns = "id, creditor_id, debtor_id, amount, description, guild_id, currency, created_at, is_settled, settled_at"

// InsertTransaction persists a new transaction, generating the ID and
// CreatedAt when unset.
func (s *SQLiteStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().Unix()
	}

	var description interface{}
	if tx.Description != "" {
		description = tx.Description
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, creditor_id, debtor_id, amount, description, guild_id, currency, created_at, is_settled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		tx.ID, tx.CreditorID, tx.DebtorID, tx.Amount, description, tx.GuildID, tx.Currency, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// DebtorTotal sums unsettled amounts where the user is the debtor.
func (s *SQLiteStore) DebtorTotal(ctx context.Context, debtorID, guildID string) (models.Summary, error) {
	return s.userTotal(ctx, "debtor_id", debtorID, guildID)
}

// CreditorTotal sums unsettled amounts where the user is the creditor.
func (s *SQLiteStore) CreditorTotal(ctx context.Context, creditorID, guildID string) (models.Summary, error) {
	return s.userTotal(ctx, "creditor_id", creditorID, guildID)
}

func (s *SQLiteStore) userTotal(ctx context.Context, column, userID, guildID string) (models.Summary, error) {
	query := "SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM transactions WHERE " + column + " = ? AND is_settled = 0"
	args := []interface{}{userID}
	if guildID != "" {
		query += " AND guild_id = ?"
		args = append(args, guildID)
	}

	var summary models.Summary
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&summary.TotalAmount, &summary.Count); err != nil {
		return models.Summary{}, fmt.Errorf("failed to sum transactions: %w", err)
	}

	return summary, nil
}

// PairTotal sums what the debtor owes the creditor, across all guilds.
func (s *SQLiteStore) PairTotal(ctx context.Context, creditorID, debtorID string) (models.Summary, error) {
	var summary models.Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM transactions
		 WHERE creditor_id = ? AND debtor_id = ? AND is_settled = 0`,
		creditorID, debtorID,
	).Scan(&summary.TotalAmount, &summary.Count)
	if err != nil {
		return models.Summary{}, fmt.Errorf("failed to sum pair transactions: %w", err)
	}

	return summary, nil
}

// TopDebtors returns the guild leaderboard: debtors grouped with summed
// amounts, counts, and the distinct creditors they owe, largest debt first.
func (s *SQLiteStore) TopDebtors(ctx context.Context, guildID string, limit int) ([]models.DebtorRank, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT debtor_id, SUM(amount), COUNT(*), GROUP_CONCAT(DISTINCT creditor_id)
		 FROM transactions
		 WHERE guild_id = ? AND is_settled = 0
		 GROUP BY debtor_id
		 ORDER BY SUM(amount) DESC, debtor_id ASC
		 LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top debtors: %w", err)
	}
	defer rows.Close()

	var ranks []models.DebtorRank
	for rows.Next() {
		var rank models.DebtorRank
		var creditors string
		if err := rows.Scan(&rank.DebtorID, &rank.TotalAmount, &rank.Count, &creditors); err != nil {
			return nil, fmt.Errorf("failed to scan debtor rank: %w", err)
		}
		if creditors != "" {
			rank.CreditorIDs = strings.Split(creditors, ",")
		}
		ranks = append(ranks, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top debtors: %w", err)
	}

	return ranks, nil
}

// DebtsByCreditor groups a user's open debts within a guild by creditor.
func (s *SQLiteStore) DebtsByCreditor(ctx context.Context, guildID, debtorID string) ([]models.CounterpartySummary, error) {
	return s.groupedByCounterparty(ctx, guildID, "debtor_id", debtorID, "creditor_id")
}

// CreditsByDebtor groups a user's open credits within a guild by debtor.
func (s *SQLiteStore) CreditsByDebtor(ctx context.Context, guildID, creditorID string) ([]models.CounterpartySummary, error) {
	return s.groupedByCounterparty(ctx, guildID, "creditor_id", creditorID, "debtor_id")
}

func (s *SQLiteStore) groupedByCounterparty(ctx context.Context, guildID, filterColumn, userID, groupColumn string) ([]models.CounterpartySummary, error) {
	query := `SELECT ` + groupColumn + `, SUM(amount), COUNT(*)
		 FROM transactions
		 WHERE guild_id = ? AND ` + filterColumn + ` = ? AND is_settled = 0
		 GROUP BY ` + groupColumn + `
		 ORDER BY SUM(amount) DESC, ` + groupColumn + ` ASC`

	rows, err := s.db.QueryContext(ctx, query, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breakdown: %w", err)
	}
	defer rows.Close()

	var summaries []models.CounterpartySummary
	for rows.Next() {
		var cs models.CounterpartySummary
		if err := rows.Scan(&cs.UserID, &cs.TotalAmount, &cs.Count); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breakdown: %w", err)
	}

	return summaries, nil
}

// ListUnsettledBetween returns open transactions for the pair, newest first.
func (s *SQLiteStore) ListUnsettledBetween(ctx context.Context, creditorID, debtorID string) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE creditor_id = ? AND debtor_id = ? AND is_settled = 0
		 ORDER BY created_at DESC, id ASC`,
		creditorID, debtorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pair transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pair transactions: %w", err)
	}

	return txs, nil
}

// SettleTransaction settles a transaction owned by creditorID regardless of
// the remaining amount. The ownership check is part of the UPDATE filter, so
// a missing row and a foreign row both come back as ErrNotFound.
func (s *SQLiteStore) SettleTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error) {
	return s.closeTransaction(ctx, creditorID, txID)
}

// ForceCloseTransaction writes a transaction off unconditionally: amount
// zero, settled. Identical storage semantics to settlement; the distinction
// is the caller's intent.
func (s *SQLiteStore) ForceCloseTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error) {
	return s.closeTransaction(ctx, creditorID, txID)
}

func (s *SQLiteStore) closeTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE transactions
		 SET amount = 0, is_settled = 1, settled_at = COALESCE(settled_at, ?)
		 WHERE id = ? AND creditor_id = ?
		 RETURNING `+transactionColumns,
		time.Now().Unix(), txID, creditorID,
	)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle transaction: %w", err)
	}

	return tx, nil
}

// AdjustTransactionAmount applies amount += delta in a single conditional
// UPDATE. The clamp to zero and the settlement flip happen in the same
// statement, so concurrent payments serialize on the row and the amount can
// never be observed negative.
func (s *SQLiteStore) AdjustTransactionAmount(ctx context.Context, creditorID, txID string, delta float64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE transactions
		 SET amount = MAX(0, ROUND(amount + ?, 2)),
		     is_settled = CASE WHEN ROUND(amount + ?, 2) <= 0 THEN 1 ELSE is_settled END,
		     settled_at = CASE WHEN ROUND(amount + ?, 2) <= 0 THEN ? ELSE settled_at END
		 WHERE id = ? AND creditor_id = ? AND is_settled = 0
		 RETURNING `+transactionColumns,
		delta, delta, delta, time.Now().Unix(), txID, creditorID,
	)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust transaction: %w", err)
	}

	return tx, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var description sql.NullString
	var settledAt sql.NullInt64

	err := row.Scan(&tx.ID, &tx.CreditorID, &tx.DebtorID, &tx.Amount, &description,
		&tx.GuildID, &tx.Currency, &tx.CreatedAt, &tx.IsSettled, &settledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if description.Valid {
		tx.Description = description.String
	}
	if settledAt.Valid {
		tx.SettledAt = settledAt.Int64
	}

	return tx, nil
}
