// Package mongo provides a MongoDB-backed implementation of the
// storage.Store interface. Aggregations and conditional updates run
// server-side, which keeps mutations atomic per document.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/debtbot/debtcollector/internal/models"
	"github.com/debtbot/debtcollector/internal/storage"
)

const collectionName = "debts"

// compile-time interface check
var _ storage.Store = (*MongoStore)(nil)

// MongoStore implements storage.Store using MongoDB.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// New connects to MongoDB, ensures the ledger indexes exist, and returns the
// store. The caller owns the lifecycle: Close disconnects the client.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &MongoStore{
		client: client,
		col:    client.Database(database).Collection(collectionName),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "creditorId", Value: 1}, {Key: "debtorId", Value: 1}}},
		{Keys: bson.D{{Key: "creditorId", Value: 1}, {Key: "isSettled", Value: 1}}},
		{Keys: bson.D{{Key: "debtorId", Value: 1}, {Key: "isSettled", Value: 1}}},
		{Keys: bson.D{{Key: "guildId", Value: 1}, {Key: "isSettled", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isSettled", Value: 1}}},
	}

	if _, err := s.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// transactionDoc is the persisted document shape. Field names are fixed:
// existing deployments already hold documents written with these keys.
type transactionDoc struct {
	ID          string  `bson:"_id"`
	CreditorID  string  `bson:"creditorId"`
	DebtorID    string  `bson:"debtorId"`
	Amount      float64 `bson:"amount"`
	Description string  `bson:"description,omitempty"`
	GuildID     string  `bson:"guildId"`
	Currency    string  `bson:"currency"`
	CreatedAt   int64   `bson:"createdAt"`
	IsSettled   bool    `bson:"isSettled"`
	SettledAt   int64   `bson:"settledAt,omitempty"`
}

func toDoc(tx *models.Transaction) *transactionDoc {
	return &transactionDoc{
		ID:          tx.ID,
		CreditorID:  tx.CreditorID,
		DebtorID:    tx.DebtorID,
		Amount:      tx.Amount,
		Description: tx.Description,
		GuildID:     tx.GuildID,
		Currency:    tx.Currency,
		CreatedAt:   tx.CreatedAt,
		IsSettled:   tx.IsSettled,
		SettledAt:   tx.SettledAt,
	}
}

func fromDoc(doc *transactionDoc) *models.Transaction {
	return &models.Transaction{
		ID:          doc.ID,
		CreditorID:  doc.CreditorID,
		DebtorID:    doc.DebtorID,
		Amount:      doc.Amount,
		Description: doc.Description,
		GuildID:     doc.GuildID,
		Currency:    doc.Currency,
		CreatedAt:   doc.CreatedAt,
		IsSettled:   doc.IsSettled,
		SettledAt:   doc.SettledAt,
	}
}
