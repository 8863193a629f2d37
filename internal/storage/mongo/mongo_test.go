package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/debtbot/debtcollector/internal/models"
	"github.com/debtbot/debtcollector/internal/storage"
)

// Tests need a running MongoDB; set MONGO_TEST_URI to enable them, e.g.
//
//	MONGO_TEST_URI=mongodb://localhost:27017 go test ./internal/storage/mongo
func newTestStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping MongoDB store tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database := fmt.Sprintf("debtcollector_test_%d", time.Now().UnixNano())
	store, err := New(ctx, uri, database)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.col.Database().Drop(context.Background())
		store.Close()
	})

	return store
}

func insertDebt(t *testing.T, store *MongoStore, guildID, creditorID, debtorID string, amount float64) *models.Transaction {
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

func TestMongoStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("totals with optional guild filter", func(t *testing.T) {
		insertDebt(t, store, "G1", "A", "B", 50.00)
		insertDebt(t, store, "G2", "C", "B", 100.00)

		got, err := store.DebtorTotal(ctx, "B", "")
		if err != nil {
			t.Fatalf("DebtorTotal failed: %v", err)
		}
		if !almostEqual(got.TotalAmount, 150.00) || got.Count != 2 {
			t.Errorf("DebtorTotal(B) = %+v, want {150.00 2}", got)
		}

		got, err = store.DebtorTotal(ctx, "B", "G1")
		if err != nil {
			t.Fatalf("DebtorTotal failed: %v", err)
		}
		if !almostEqual(got.TotalAmount, 50.00) || got.Count != 1 {
			t.Errorf("DebtorTotal(B, G1) = %+v, want {50.00 1}", got)
		}
	})

	t.Run("adjust clamps and settles atomically", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 30.00)

		updated, err := store.AdjustTransactionAmount(ctx, "A", tx.ID, -40.00)
		if err != nil {
			t.Fatalf("AdjustTransactionAmount failed: %v", err)
		}
		if updated.Amount != 0 || !updated.IsSettled {
			t.Errorf("updated = %+v, want clamped to 0 and settled", updated)
		}
	})

	t.Run("ownership collapses to ErrNotFound", func(t *testing.T) {
		tx := insertDebt(t, store, "G1", "A", "B", 20.00)

		_, err := store.SettleTransaction(ctx, "mallory", tx.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}

		_, err = store.SettleTransaction(ctx, "A", "no-such-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("leaderboard sorts and collects creditors", func(t *testing.T) {
		insertDebt(t, store, "LB", "A", "B", 40.00)
		insertDebt(t, store, "LB", "C", "B", 60.00)
		insertDebt(t, store, "LB", "A", "D", 30.00)

		ranks, err := store.TopDebtors(ctx, "LB", 10)
		if err != nil {
			t.Fatalf("TopDebtors failed: %v", err)
		}
		if len(ranks) != 2 {
			t.Fatalf("Expected 2 ranks, got %d", len(ranks))
		}
		if ranks[0].DebtorID != "B" || !almostEqual(ranks[0].TotalAmount, 100.00) || len(ranks[0].CreditorIDs) != 2 {
			t.Errorf("ranks[0] = %+v, want B with 100.00 and 2 creditors", ranks[0])
		}
	})
}
