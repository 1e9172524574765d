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

// MongoLogbook is append only. Nothing in this package updates or deletes
// logbook entries.
type MongoLogbook struct {
	col *mongo.Collection
}

func NewMongoLogbook(col *mongo.Collection) *MongoLogbook {
	return &MongoLogbook{col: col}
}

func (r *MongoLogbook) Append(ctx context.Context, e *models.LogbookEntry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("append logbook entry: %w", err)
	}
	return nil
}

func (r *MongoLogbook) ListByTransaction(ctx context.Context, txnID primitive.ObjectID) ([]models.LogbookEntry, error) {
	return r.find(ctx, bson.M{"transactionID": txnID})
}

func (r *MongoLogbook) ListByCarts(ctx context.Context, cartIDs []primitive.ObjectID) ([]models.LogbookEntry, error) {
	if len(cartIDs) == 0 {
		return []models.LogbookEntry{}, nil
	}
	return r.find(ctx, bson.M{"cartID": bson.M{"$in": cartIDs}})
}

func (r *MongoLogbook) ListAll(ctx context.Context) ([]models.LogbookEntry, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoLogbook) find(ctx context.Context, filter bson.M) ([]models.LogbookEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find logbook entries: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.LogbookEntry{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode logbook entries: %w", err)
	}
	return out, nil
}

type MongoCarts struct {
	col *mongo.Collection
}

func NewMongoCarts(col *mongo.Collection) *MongoCarts {
	return &MongoCarts{col: col}
}

func (r *MongoCarts) Get(ctx context.Context, id primitive.ObjectID) (*models.Cart, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoCarts) FindByBorrower(ctx context.Context, borrowerID primitive.ObjectID) (*models.Cart, error) {
	return r.findOne(ctx, bson.M{"brID": borrowerID})
}

func (r *MongoCarts) findOne(ctx context.Context, filter bson.M) (*models.Cart, error) {
	var c models.Cart
	err := r.col.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return &c, nil
}

func (r *MongoCarts) ListIDsByBorrower(ctx context.Context, borrowerID primitive.ObjectID) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.col.Find(ctx, bson.M{"brID": borrowerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find carts: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode cart id: %w", err)
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

func (r *MongoCarts) Save(ctx context.Context, c *models.Cart) error {
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	if c.ID.IsZero() {
		return r.upsertByBorrower(ctx, c)
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, opts); err != nil {
		return fmt.Errorf("save cart %s: %w", c.ID.Hex(), err)
	}
	return nil
}

// upsertByBorrower writes a cart that has no id yet onto the borrower's
// single cart document, creating it if needed. Concurrent first writes race
// on the unique brID index; the loser retries once as a plain update.
func (r *MongoCarts) upsertByBorrower(ctx context.Context, c *models.Cart) error {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{
		"$set":         bson.M{"items": c.Items},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}
	filter := bson.M{"brID": c.BorrowerID}

	var saved models.Cart
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved)
	if mongo.IsDuplicateKeyError(err) {
		err = r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved)
	}
	if err != nil {
		return fmt.Errorf("upsert cart for %s: %w", c.BorrowerID.Hex(), err)
	}
	c.ID = saved.ID
	return nil
}

type MongoNotifications struct {
	col *mongo.Collection
}

func NewMongoNotifications(col *mongo.Collection) *MongoNotifications {
	return &MongoNotifications{col: col}
}

func (r *MongoNotifications) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *MongoNotifications) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	return r.find(ctx, bson.M{"type": models.NotificationUserSpecific, "userId": userID})
}

func (r *MongoNotifications) ListGlobal(ctx context.Context) ([]models.Notification, error) {
	return r.find(ctx, bson.M{"type": models.NotificationGlobal})
}

func (r *MongoNotifications) find(ctx context.Context, filter bson.M) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}

func (r *MongoNotifications) MarkRead(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var n models.Notification
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isRead": true}}, opts).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification %s read: %w", id.Hex(), err)
	}
	return &n, nil
}

func (r *MongoNotifications) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"type": models.NotificationUserSpecific, "userId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

type MongoUsers struct {
	users  *mongo.Collection
	admins *mongo.Collection
}

func NewMongoUsers(users, admins *mongo.Collection) *MongoUsers {
	return &MongoUsers{users: users, admins: admins}
}

func (r *MongoUsers) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id.Hex(), err)
	}
	return &u, nil
}

func (r *MongoUsers) CountUsers(ctx context.Context) (int64, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *MongoUsers) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.users.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return &u, nil
}

func (r *MongoUsers) FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var a models.Admin
	err := r.admins.FindOne(ctx, bson.M{"username": username}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find admin %q: %w", username, err)
	}
	return &a, nil
}

// NewMongo wires every repository to its collection in db.
func NewMongo(db *mongo.Database) Repos {
	return Repos{
		Equipment:     NewMongoEquipment(db.Collection(CollectionEquipment)),
		Transactions:  NewMongoTransactions(db.Collection(CollectionTransactions)),
		Logbook:       NewMongoLogbook(db.Collection(CollectionLogbook)),
		Carts:         NewMongoCarts(db.Collection(CollectionCarts)),
		Notifications: NewMongoNotifications(db.Collection(CollectionNotifications)),
		Users:         NewMongoUsers(db.Collection(CollectionUsers), db.Collection(CollectionAdmins)),
		LabRequests:   NewMongoLabRequests(db.Collection(CollectionLabRequests)),
	}
}

const (
	CollectionEquipment     = "equipments"
	CollectionTransactions  = "transactions"
	CollectionLogbook       = "logbooks"
	CollectionCarts         = "carts"
	CollectionNotifications = "notifications"
	CollectionUsers         = "users"
	CollectionAdmins        = "admins"
	CollectionLabRequests   = "labrequests"
)
