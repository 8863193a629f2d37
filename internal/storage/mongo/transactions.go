package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/debtbot/debtcollector/internal/models"
	"github.com/debtbot/debtcollector/internal/storage"
)

// InsertTransaction persists a new transaction, generating the ID and
// CreatedAt when unset.
func (s *MongoStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().Unix()
	}

	if _, err := s.col.InsertOne(ctx, toDoc(tx)); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

type summaryRow struct {
	TotalAmount float64 `bson:"totalAmount"`
	Count       int     `bson:"count"`
}

func (s *MongoStore) sumMatching(ctx context.Context, match bson.M) (models.Summary, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"totalAmount": bson.M{"$sum": "$amount"},
			"count":       bson.M{"$sum": 1},
		}}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return models.Summary{}, fmt.Errorf("failed to aggregate transactions: %w", err)
	}

	var rows []summaryRow
	if err := cur.All(ctx, &rows); err != nil {
		return models.Summary{}, fmt.Errorf("failed to decode aggregation: %w", err)
	}
	if len(rows) == 0 {
		return models.Summary{}, nil
	}
	return models.Summary{TotalAmount: rows[0].TotalAmount, Count: rows[0].Count}, nil
}

// DebtorTotal sums unsettled amounts where the user is the debtor.
func (s *MongoStore) DebtorTotal(ctx context.Context, debtorID, guildID string) (models.Summary, error) {
	match := bson.M{"debtorId": debtorID, "isSettled": false}
	if guildID != "" {
		match["guildId"] = guildID
	}
	return s.sumMatching(ctx, match)
}

// CreditorTotal sums unsettled amounts where the user is the creditor.
func (s *MongoStore) CreditorTotal(ctx context.Context, creditorID, guildID string) (models.Summary, error) {
	match := bson.M{"creditorId": creditorID, "isSettled": false}
	if guildID != "" {
		match["guildId"] = guildID
	}
	return s.sumMatching(ctx, match)
}

// PairTotal sums what the debtor owes the creditor, across all guilds.
func (s *MongoStore) PairTotal(ctx context.Context, creditorID, debtorID string) (models.Summary, error) {
	return s.sumMatching(ctx, bson.M{
		"creditorId": creditorID,
		"debtorId":   debtorID,
		"isSettled":  false,
	})
}

// TopDebtors returns the guild leaderboard: debtors grouped with summed
// amounts, counts, and the distinct creditors they owe, largest debt first.
func (s *MongoStore) TopDebtors(ctx context.Context, guildID string, limit int) ([]models.DebtorRank, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"guildId": guildID, "isSettled": false}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":         "$debtorId",
			"totalAmount": bson.M{"$sum": "$amount"},
			"count":       bson.M{"$sum": 1},
			"creditors":   bson.M{"$addToSet": "$creditorId"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "totalAmount", Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top debtors: %w", err)
	}

	var rows []struct {
		DebtorID    string   `bson:"_id"`
		TotalAmount float64  `bson:"totalAmount"`
		Count       int      `bson:"count"`
		Creditors   []string `bson:"creditors"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode top debtors: %w", err)
	}

	ranks := make([]models.DebtorRank, 0, len(rows))
	for _, row := range rows {
		ranks = append(ranks, models.DebtorRank{
			DebtorID:    row.DebtorID,
			TotalAmount: row.TotalAmount,
			Count:       row.Count,
			CreditorIDs: row.Creditors,
		})
	}
	return ranks, nil
}

// DebtsByCreditor groups a user's open debts within a guild by creditor.
func (s *MongoStore) DebtsByCreditor(ctx context.Context, guildID, debtorID string) ([]models.CounterpartySummary, error) {
	return s.groupedByCounterparty(ctx,
		bson.M{"guildId": guildID, "debtorId": debtorID, "isSettled": false},
		"$creditorId")
}

// CreditsByDebtor groups a user's open credits within a guild by debtor.
func (s *MongoStore) CreditsByDebtor(ctx context.Context, guildID, creditorID string) ([]models.CounterpartySummary, error) {
	return s.groupedByCounterparty(ctx,
		bson.M{"guildId": guildID, "creditorId": creditorID, "isSettled": false},
		"$debtorId")
}

func (s *MongoStore) groupedByCounterparty(ctx context.Context, match bson.M, groupField string) ([]models.CounterpartySummary, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":         groupField,
			"totalAmount": bson.M{"$sum": "$amount"},
			"count":       bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "totalAmount", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate breakdown: %w", err)
	}

	var rows []struct {
		UserID      string  `bson:"_id"`
		TotalAmount float64 `bson:"totalAmount"`
		Count       int     `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown: %w", err)
	}

	summaries := make([]models.CounterpartySummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, models.CounterpartySummary{
			UserID:      row.UserID,
			TotalAmount: row.TotalAmount,
			Count:       row.Count,
		})
	}
	return summaries, nil
}

// ListUnsettledBetween returns open transactions for the pair, newest first.
func (s *MongoStore) ListUnsettledBetween(ctx context.Context, creditorID, debtorID string) ([]*models.Transaction, error) {
	filter := bson.M{"creditorId": creditorID, "debtorId": debtorID, "isSettled": false}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pair transactions: %w", err)
	}

	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode pair transactions: %w", err)
	}

	txs := make([]*models.Transaction, 0, len(docs))
	for i := range docs {
		txs = append(txs, fromDoc(&docs[i]))
	}
	return txs, nil
}

// SettleTransaction settles a transaction owned by creditorID regardless of
// the remaining amount, in a single findOneAndUpdate.
func (s *MongoStore) SettleTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error) {
	return s.closeTransaction(ctx, creditorID, txID)
}

// ForceCloseTransaction writes a transaction off unconditionally: amount
// zero, settled.
func (s *MongoStore) ForceCloseTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error) {
	return s.closeTransaction(ctx, creditorID, txID)
}

func (s *MongoStore) closeTransaction(ctx context.Context, creditorID, txID string) (*models.Transaction, error) {
	// Pipeline update so an already-set settledAt survives re-settlement.
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"amount":    0.0,
			"isSettled": true,
			"settledAt": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$isSettled", true}},
				"$settledAt",
				time.Now().Unix(),
			}},
		}}},
	}

	return s.findOneAndUpdate(ctx, bson.M{"_id": txID, "creditorId": creditorID}, update)
}

// AdjustTransactionAmount applies amount += delta in a single conditional
// findOneAndUpdate. The clamp to zero and the settlement flip are computed
// server-side in the same update, so the amount is never observed negative.
func (s *MongoStore) AdjustTransactionAmount(ctx context.Context, creditorID, txID string, delta float64) (*models.Transaction, error) {
	newAmount := bson.M{"$round": bson.A{bson.M{"$add": bson.A{"$amount", delta}}, 2}}
	settles := bson.M{"$lte": bson.A{newAmount, 0.0}}

	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"amount":    bson.M{"$max": bson.A{0.0, newAmount}},
			"isSettled": settles,
			"settledAt": bson.M{"$cond": bson.A{settles, time.Now().Unix(), "$settledAt"}},
		}}},
	}

	filter := bson.M{"_id": txID, "creditorId": creditorID, "isSettled": false}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, filter bson.M, update mongo.Pipeline) (*models.Transaction, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc transactionDoc
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return fromDoc(&doc), nil
}
