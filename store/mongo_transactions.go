package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scilems/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoTransactions struct {
	col *mongo.Collection
}

func NewMongoTransactions(col *mongo.Collection) *MongoTransactions {
	return &MongoTransactions{col: col}
}

func (r *MongoTransactions) Get(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	var t models.Transaction
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction %s: %w", id.Hex(), err)
	}
	return &t, nil
}

func (r *MongoTransactions) Insert(ctx context.Context, t *models.Transaction) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func statusFilter(id primitive.ObjectID, from []models.Status) bson.M {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["currentStatus"] = bson.M{"$in": from}
	}
	return filter
}

func (r *MongoTransactions) Update(ctx context.Context, id primitive.ObjectID, from []models.Status, upd models.TransactionUpdate) (*models.Transaction, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var t models.Transaction
	err := r.col.FindOneAndUpdate(ctx, statusFilter(id, from), upd.BSON(), opts).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", id.Hex(), err)
	}
	return &t, nil
}

func (r *MongoTransactions) Delete(ctx context.Context, id primitive.ObjectID, from []models.Status) error {
	res, err := r.col.DeleteOne(ctx, statusFilter(id, from))
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// missOrConflict tells a missing document apart from one whose status no
// longer matched the filter.
func (r *MongoTransactions) missOrConflict(ctx context.Context, id primitive.ObjectID) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("count transaction %s: %w", id.Hex(), err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (r *MongoTransactions) FindOverdue(ctx context.Context, before time.Time) ([]models.Transaction, error) {
	return r.find(ctx, bson.M{
		"currentStatus": models.StatusBorrowed,
		"returnDate":    bson.M{"$lt": before},
	}, options.Find().SetSort(bson.D{{Key: "returnDate", Value: 1}}))
}

func (r *MongoTransactions) List(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	filter := bson.M{}
	status := bson.M{}
	if len(f.Statuses) > 0 {
		status["$in"] = f.Statuses
	}
	if len(f.ExcludeStatuses) > 0 {
		status["$nin"] = f.ExcludeStatuses
	}
	if len(status) > 0 {
		filter["currentStatus"] = status
	}
	if len(f.CartIDs) > 0 {
		filter["cartID"] = bson.M{"$in": f.CartIDs}
	}

	opts := options.Find()
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	dir := 1
	if f.Desc {
		dir = -1
	}
	opts.SetSort(bson.D{{Key: sortBy, Value: dir}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return r.find(ctx, filter, opts)
}

func (r *MongoTransactions) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Transaction, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Transaction{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return out, nil
}
