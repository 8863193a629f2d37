package sqlite

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/debtbot/debtcollector/internal/models"
	"github.com/debtbot/debtcollector/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "debtcollector-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func insertDebt(t *testing.T, store *SQLiteStore, guildID, creditorID, debtorID string, amount float64) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		CreditorID:  creditorID,
		DebtorID:    debtorID,
		Amount:      amount,
		Description: "test debt",
		GuildID:     guildID,
		Currency:    "USD",
	}
	if err := store.InsertTransaction(context.Background(), tx); err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}
	return tx
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestInsertTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("generates ID and CreatedAt", func(t *testing.T) {
		tx := insertDebt(t, store, "guild1", "alice", "bob", 50.00)

		if tx.ID == "" {
			t.Error("Expected transaction ID to be generated")
		}
		if tx.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("round-trips through ListUnsettledBetween", func(t *testing.T) {
		original := insertDebt(t, store, "guild1", "carol", "dave", 25.50)

		txs, err := store.ListUnsettledBetween(ctx, "carol", "dave")
		if err != nil {
			t.Fatalf("ListUnsettledBetween failed: %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("Expected 1 transaction, got %d", len(txs))
		}

		got := txs[0]
		if got.ID != original.ID {
			t.Errorf("ID mismatch: got %s, want %s", got.ID, original.ID)
		}
		if got.Amount != 25.50 {
			t.Errorf("Amount mismatch: got %v, want 25.50", got.Amount)
		}
		if got.Description != "test debt" {
			t.Errorf("Description mismatch: got %q", got.Description)
		}
		if got.Currency != "USD" {
			t.Errorf("Currency mismatch: got %q", got.Currency)
		}
		if got.IsSettled {
			t.Error("New transaction should not be settled")
		}
	})
}

func TestDebtorTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertDebt(t, store, "G1", "A", "B", 50.00)
	insertDebt(t, store, "G1", "A", "B", 25.50)
	insertDebt(t, store, "G2", "C", "B", 100.00)

	t.Run("sums within a guild", func(t *testing.T) {
		got, err := store.DebtorTotal(ctx, "B", "G1")
		if err != nil {
			t.Fatalf("DebtorTotal failed: %v", err)
		}
		if !almostEqual(got.TotalAmount, 75.50) || got.Count != 2 {
			t.Errorf("DebtorTotal(B, G1) = %+v, want {75.50 2}", got)
		}
	})

	t.Run("empty guild aggregates cross-guild", func(t *testing.T) {
		got, err := store.DebtorTotal(ctx, "B", "")
		if err != nil {
			t.Fatalf("DebtorTotal failed: %v", err)
		}
		if !almostEqual(got.TotalAmount, 175.50) || got.Count != 3 {
			t.Errorf("DebtorTotal(B) = %+v, want {175.50 3}", got)
		}
	})

	t.Run("no matches yields zero summary", func(t *testing.T) {
		got, err := store.DebtorTotal(ctx, "nobody", "")
		if err != nil {
			t.Fatalf("DebtorTotal failed: %v", err)
		}
		if got.TotalAmount != 0 || got.Count != 0 {
			t.Errorf("DebtorTotal(nobody) = %+v, want zero summary", got)
		}
	})

	t.Run("settled transactions are excluded", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 10.00)
		if _, err := store.SettleTransaction(ctx, "A", tx.ID); err != nil {
			t.Fatalf("SettleTransaction failed: %v", err)
		}

		got, err := store.DebtorTotal(ctx, "B", "G1")
		if err != nil {
			t.Fatalf("DebtorTotal failed: %v", err)
		}
		if !almostEqual(got.TotalAmount, 75.50) || got.Count != 2 {
			t.Errorf("DebtorTotal after settle = %+v, want {75.50 2}", got)
		}
	})
}

func TestCreditorTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertDebt(t, store, "G1", "A", "B", 30.00)
	insertDebt(t, store, "G2", "A", "C", 20.00)

	got, err := store.CreditorTotal(ctx, "A", "")
	if err != nil {
		t.Fatalf("CreditorTotal failed: %v", err)
	}
	if !almostEqual(got.TotalAmount, 50.00) || got.Count != 2 {
		t.Errorf("CreditorTotal(A) = %+v, want {50.00 2}", got)
	}

	got, err = store.CreditorTotal(ctx, "A", "G1")
	if err != nil {
		t.Fatalf("CreditorTotal failed: %v", err)
	}
	if !almostEqual(got.TotalAmount, 30.00) || got.Count != 1 {
		t.Errorf("CreditorTotal(A, G1) = %+v, want {30.00 1}", got)
	}
}

func TestPairTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertDebt(t, store, "G1", "A", "B", 50.00)
	insertDebt(t, store, "G2", "A", "B", 25.50) // pair totals span guilds
	insertDebt(t, store, "G1", "B", "A", 99.00) // reverse direction, excluded

	got, err := store.PairTotal(ctx, "A", "B")
	if err != nil {
		t.Fatalf("PairTotal failed: %v", err)
	}
	if !almostEqual(got.TotalAmount, 75.50) || got.Count != 2 {
		t.Errorf("PairTotal(A, B) = %+v, want {75.50 2}", got)
	}

	got, err = store.PairTotal(ctx, "A", "C")
	if err != nil {
		t.Fatalf("PairTotal failed: %v", err)
	}
	if got.TotalAmount != 0 || got.Count != 0 {
		t.Errorf("PairTotal(A, C) = %+v, want zero summary", got)
	}
}

func TestTopDebtors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertDebt(t, store, "G1", "A", "B", 40.00)
	insertDebt(t, store, "G1", "C", "B", 60.00)
	insertDebt(t, store, "G1", "A", "D", 30.00)
	insertDebt(t, store, "G1", "A", "E", 30.00)
	insertDebt(t, store, "G2", "A", "F", 500.00) // other guild, excluded

	ranks, err := store.TopDebtors(ctx, "G1", 10)
	if err != nil {
		t.Fatalf("TopDebtors failed: %v", err)
	}
	if len(ranks) != 3 {
		t.Fatalf("Expected 3 ranks, got %d", len(ranks))
	}

	if ranks[0].DebtorID != "B" || !almostEqual(ranks[0].TotalAmount, 100.00) || ranks[0].Count != 2 {
		t.Errorf("ranks[0] = %+v, want B with 100.00 over 2", ranks[0])
	}
	if len(ranks[0].CreditorIDs) != 2 {
		t.Errorf("Expected 2 distinct creditors for B, got %v", ranks[0].CreditorIDs)
	}

	// D and E tie at 30.00; debtor id ascending breaks the tie.
	if ranks[1].DebtorID != "D" || ranks[2].DebtorID != "E" {
		t.Errorf("tie order = %s, %s; want D, E", ranks[1].DebtorID, ranks[2].DebtorID)
	}

	t.Run("limit truncates", func(t *testing.T) {
		ranks, err := store.TopDebtors(ctx, "G1", 1)
		if err != nil {
			t.Fatalf("TopDebtors failed: %v", err)
		}
		if len(ranks) != 1 || ranks[0].DebtorID != "B" {
			t.Errorf("TopDebtors limit 1 = %+v, want just B", ranks)
		}
	})
}

func TestBreakdowns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertDebt(t, store, "G1", "A", "B", 20.00)
	insertDebt(t, store, "G1", "A", "B", 15.00)
	insertDebt(t, store, "G1", "C", "B", 50.00)

	t.Run("DebtsByCreditor sorted descending", func(t *testing.T) {
		rows, err := store.DebtsByCreditor(ctx, "G1", "B")
		if err != nil {
			t.Fatalf("DebtsByCreditor failed: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(rows))
		}
		if rows[0].UserID != "C" || !almostEqual(rows[0].TotalAmount, 50.00) || rows[0].Count != 1 {
			t.Errorf("rows[0] = %+v, want C with 50.00", rows[0])
		}
		if rows[1].UserID != "A" || !almostEqual(rows[1].TotalAmount, 35.00) || rows[1].Count != 2 {
			t.Errorf("rows[1] = %+v, want A with 35.00 over 2", rows[1])
		}
	})

	t.Run("CreditsByDebtor groups by debtor", func(t *testing.T) {
		insertDebt(t, store, "G1", "A", "X", 5.00)

		rows, err := store.CreditsByDebtor(ctx, "G1", "A")
		if err != nil {
			t.Fatalf("CreditsByDebtor failed: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(rows))
		}
		if rows[0].UserID != "B" || !almostEqual(rows[0].TotalAmount, 35.00) {
			t.Errorf("rows[0] = %+v, want B with 35.00", rows[0])
		}
		if rows[1].UserID != "X" || !almostEqual(rows[1].TotalAmount, 5.00) {
			t.Errorf("rows[1] = %+v, want X with 5.00", rows[1])
		}
	})
}

func TestSettleTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("settles with amount forced to zero", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 50.00)

		settled, err := store.SettleTransaction(ctx, "A", tx.ID)
		if err != nil {
			t.Fatalf("SettleTransaction failed: %v", err)
		}
		if !settled.IsSettled || settled.Amount != 0 {
			t.Errorf("settled = %+v, want amount 0 and settled", settled)
		}
		if settled.SettledAt == 0 {
			t.Error("Expected SettledAt to be set")
		}
	})

	t.Run("wrong creditor gets ErrNotFound and no change", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 50.00)

		_, err := store.SettleTransaction(ctx, "mallory", tx.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}

		txs, err := store.ListUnsettledBetween(ctx, "A", "B")
		if err != nil {
			t.Fatalf("ListUnsettledBetween failed: %v", err)
		}
		if len(txs) != 1 || txs[0].IsSettled {
			t.Errorf("Transaction should be unchanged, got %+v", txs)
		}
	})

	t.Run("unknown id gets ErrNotFound", func(t *testing.T) {
		_, err := store.SettleTransaction(ctx, "A", "no-such-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestAdjustTransactionAmount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("partial payment reduces amount", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 100.00)

		updated, err := store.AdjustTransactionAmount(ctx, "A", tx.ID, -30.00)
		if err != nil {
			t.Fatalf("AdjustTransactionAmount failed: %v", err)
		}
		if !almostEqual(updated.Amount, 70.00) || updated.IsSettled {
			t.Errorf("updated = %+v, want amount 70.00 still open", updated)
		}
	})

	t.Run("payment to exactly zero auto-settles", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 100.00)

		updated, err := store.AdjustTransactionAmount(ctx, "A", tx.ID, -100.00)
		if err != nil {
			t.Fatalf("AdjustTransactionAmount failed: %v", err)
		}
		if updated.Amount != 0 || !updated.IsSettled {
			t.Errorf("updated = %+v, want amount 0 and settled", updated)
		}

		got, err := store.DebtorTotal(ctx, "B", "G1")
		if err != nil {
			t.Fatalf("DebtorTotal failed: %v", err)
		}
		if got.Count != 1 || !almostEqual(got.TotalAmount, 70.00) {
			t.Errorf("DebtorTotal after settle = %+v, want the earlier 70.00 only", got)
		}
	})

	t.Run("overpayment clamps to zero", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 30.00)

		updated, err := store.AdjustTransactionAmount(ctx, "A", tx.ID, -40.00)
		if err != nil {
			t.Fatalf("AdjustTransactionAmount failed: %v", err)
		}
		if updated.Amount != 0 || !updated.IsSettled {
			t.Errorf("updated = %+v, want clamped to 0 and settled", updated)
		}
		if updated.SettledAt == 0 {
			t.Error("Expected SettledAt to be set on auto-settle")
		}
	})

	t.Run("adjusting a settled transaction is ErrNotFound", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 10.00)
		if _, err := store.SettleTransaction(ctx, "A", tx.ID); err != nil {
			t.Fatalf("SettleTransaction failed: %v", err)
		}

		_, err := store.AdjustTransactionAmount(ctx, "A", tx.ID, -5.00)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("wrong creditor leaves transaction unchanged", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 100.00)

		_, err := store.AdjustTransactionAmount(ctx, "mallory", tx.ID, -100.00)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}

		got, err := store.PairTotal(ctx, "A", "B")
		if err != nil {
			t.Fatalf("PairTotal failed: %v", err)
		}
		if got.Count == 0 {
			t.Error("Transaction should still be open")
		}
	})
}

func TestForceCloseTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := insertDebt(t, store, "G1", "A", "B", 42.00)

	closed, err := store.ForceCloseTransaction(ctx, "A", tx.ID)
	if err != nil {
		t.Fatalf("ForceCloseTransaction failed: %v", err)
	}
	if closed.Amount != 0 || !closed.IsSettled {
		t.Errorf("closed = %+v, want amount 0 and settled", closed)
	}

	// The record survives as audit trail: it is simply excluded from
	// unsettled listings.
	txs, err := store.ListUnsettledBetween(ctx, "A", "B")
	if err != nil {
		t.Fatalf("ListUnsettledBetween failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("Expected no open transactions, got %d", len(txs))
	}
}
