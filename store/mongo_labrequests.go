package store

import (
	"context"
	"errors"
	"fmt"

	"scilems/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoLabRequests struct {
	col *mongo.Collection
}

func NewMongoLabRequests(col *mongo.Collection) *MongoLabRequests {
	return &MongoLabRequests{col: col}
}

func (r *MongoLabRequests) Insert(ctx context.Context, lr *models.LabRequest) error {
	if lr.ID.IsZero() {
		lr.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, lr); err != nil {
		return fmt.Errorf("insert lab request: %w", err)
	}
	return nil
}

func (r *MongoLabRequests) Get(ctx context.Context, id primitive.ObjectID) (*models.LabRequest, error) {
	var lr models.LabRequest
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&lr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find lab request %s: %w", id.Hex(), err)
	}
	return &lr, nil
}

func (r *MongoLabRequests) List(ctx context.Context, f LabRequestFilter) ([]models.LabRequest, error) {
	filter := bson.M{}
	if !f.BorrowerID.IsZero() {
		filter["brID"] = f.BorrowerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find lab requests: %w", err)
	}
	out := []models.LabRequest{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode lab requests: %w", err)
	}
	return out, nil
}

func labFilter(id primitive.ObjectID, from []models.LabStatus) bson.M {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}
	return filter
}

func (r *MongoLabRequests) Decide(ctx context.Context, id primitive.ObjectID, from []models.LabStatus, d models.LabDecision) (*models.LabRequest, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lr models.LabRequest
	err := r.col.FindOneAndUpdate(ctx, labFilter(id, from), d.BSON(), opts).Decode(&lr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update lab request %s: %w", id.Hex(), err)
	}
	return &lr, nil
}

func (r *MongoLabRequests) Delete(ctx context.Context, id primitive.ObjectID, from []models.LabStatus) error {
	res, err := r.col.DeleteOne(ctx, labFilter(id, from))
	if err != nil {
		return fmt.Errorf("delete lab request %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *MongoLabRequests) missOrConflict(ctx context.Context, id primitive.ObjectID) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("count lab request %s: %w", id.Hex(), err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}
