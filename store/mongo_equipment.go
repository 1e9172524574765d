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
)

type MongoEquipment struct {
	col *mongo.Collection
}

func NewMongoEquipment(col *mongo.Collection) *MongoEquipment {
	return &MongoEquipment{col: col}
}

func (r *MongoEquipment) Get(ctx context.Context, id primitive.ObjectID) (*models.Equipment, error) {
	var eq models.Equipment
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&eq)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find equipment %s: %w", id.Hex(), err)
	}
	return &eq, nil
}

func (r *MongoEquipment) Reserve(ctx context.Context, id primitive.ObjectID, qty int) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"dateUpdated": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("reserve equipment %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("count equipment %s: %w", id.Hex(), err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

func (r *MongoEquipment) Release(ctx context.Context, id primitive.ObjectID, qty int) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock": qty},
			"$set": bson.M{"dateUpdated": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("release equipment %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoEquipment) Resolve(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.EquipmentRef, error) {
	out := make(map[primitive.ObjectID]models.EquipmentRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = models.Unresolved(id)
	}

	cursor, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("resolve equipment: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var eq models.Equipment
		if err := cursor.Decode(&eq); err != nil {
			return nil, fmt.Errorf("decode equipment: %w", err)
		}
		out[eq.ID] = models.Resolved(&eq)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
