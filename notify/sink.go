package notify

import (
	"context"
	"time"

	"scilems/models"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationSink writes in-app notifications.
type NotificationSink interface {
	CreateGlobal(ctx context.Context, title, description, resourceType string, resourceID *primitive.ObjectID) error
	CreateForUser(ctx context.Context, userID primitive.ObjectID, title, description, resourceType string, resourceID *primitive.ObjectID) error
}

// Mailer sends the transactional emails. Implementations block until the
// message is handed to the mail server.
type Mailer interface {
	SendApproved(to, name, txnID string, items []models.BorrowedItem, pickUpDate *time.Time) error
	SendRejected(to, name, txnID, reason string) error
	SendBorrowed(to, name, txnID string, items []models.BorrowedItem, returnDate *time.Time) error
	SendOverdue(to, name, txnID string, dueDate *time.Time) error
}

// Directory finds the borrower behind a transaction's cart.
type Directory interface {
	Borrower(ctx context.Context, cartID primitive.ObjectID) (*models.User, error)
}

type StoreSink struct {
	repo store.NotificationRepository
	now  func() time.Time
}

func NewStoreSink(repo store.NotificationRepository) *StoreSink {
	return &StoreSink{repo: repo, now: time.Now}
}

func (s *StoreSink) CreateGlobal(ctx context.Context, title, description, resourceType string, resourceID *primitive.ObjectID) error {
	return s.repo.Insert(ctx, &models.Notification{
		Title:        title,
		Description:  description,
		Type:         models.NotificationGlobal,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    s.now(),
	})
}

func (s *StoreSink) CreateForUser(ctx context.Context, userID primitive.ObjectID, title, description, resourceType string, resourceID *primitive.ObjectID) error {
	return s.repo.Insert(ctx, &models.Notification{
		Title:        title,
		Description:  description,
		Type:         models.NotificationUserSpecific,
		UserID:       &userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    s.now(),
	})
}

type StoreDirectory struct {
	Carts store.CartRepository
	Users store.UserRepository
}

func (d StoreDirectory) Borrower(ctx context.Context, cartID primitive.ObjectID) (*models.User, error) {
	return store.BorrowerOf(ctx, d.Carts, d.Users, cartID)
}
