package config

import (
	"context"
	"fmt"
	"time"

	"scilems/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDatabase dials MongoDB and pings it before returning.
func ConnectDatabase(ctx context.Context, s Settings, log *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Info("connected to MongoDB", zap.String("database", s.MongoDB))
	return client, client.Database(s.MongoDB), nil
}

// EnsureIndexes creates the indexes the lending queries rely on. It is safe
// to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		store.CollectionCarts: {
			{Keys: bson.D{{Key: "brID", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		store.CollectionTransactions: {
			{Keys: bson.D{{Key: "currentStatus", Value: 1}, {Key: "returnDate", Value: 1}}},
			{Keys: bson.D{{Key: "cartID", Value: 1}}},
		},
		store.CollectionLogbook: {
			{Keys: bson.D{{Key: "transactionID", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "cartID", Value: 1}}},
		},
		store.CollectionNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}}},
		},
		store.CollectionLabRequests: {
			{Keys: bson.D{{Key: "brID", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
