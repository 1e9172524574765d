// Package store is the persistence boundary of the lending core. Every
// repository has a Mongo implementation and an in-memory one; both give the
// same atomicity per document, which is all the core relies on.
package store

import (
	"context"
	"errors"
	"time"

	"scilems/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound          = errors.New("store: document not found")
	ErrInsufficientStock = errors.New("store: insufficient stock")
	// ErrStatusConflict means the document exists but is no longer in any of
	// the expected statuses, usually because a concurrent request moved it.
	ErrStatusConflict = errors.New("store: document status changed")
)

type EquipmentRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Equipment, error)
	// Reserve decrements stock by qty only if stock >= qty, atomically.
	Reserve(ctx context.Context, id primitive.ObjectID, qty int) error
	// Release increments stock by qty with no upper bound.
	Release(ctx context.Context, id primitive.ObjectID, qty int) error
	// Resolve turns ids into refs; ids with no document stay unresolved.
	Resolve(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.EquipmentRef, error)
}

// TransactionFilter selects transactions for the queue views. Zero values
// mean "no constraint".
type TransactionFilter struct {
	Statuses        []models.Status
	ExcludeStatuses []models.Status
	CartIDs         []primitive.ObjectID
	SortBy          string
	Desc            bool
	Limit           int64
}

type TransactionRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	Insert(ctx context.Context, t *models.Transaction) error
	// Update applies upd only while the transaction is in one of from
	// (any status when from is empty) and returns the updated document.
	Update(ctx context.Context, id primitive.ObjectID, from []models.Status, upd models.TransactionUpdate) (*models.Transaction, error)
	// Delete removes the transaction only while it is in one of from.
	Delete(ctx context.Context, id primitive.ObjectID, from []models.Status) error
	// FindOverdue lists borrowed transactions whose return date is before the
	// given instant.
	FindOverdue(ctx context.Context, before time.Time) ([]models.Transaction, error)
	List(ctx context.Context, f TransactionFilter) ([]models.Transaction, error)
}

type LogbookRepository interface {
	Append(ctx context.Context, e *models.LogbookEntry) error
	ListByTransaction(ctx context.Context, txnID primitive.ObjectID) ([]models.LogbookEntry, error)
	ListByCarts(ctx context.Context, cartIDs []primitive.ObjectID) ([]models.LogbookEntry, error)
	ListAll(ctx context.Context) ([]models.LogbookEntry, error)
}

type CartRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Cart, error)
	FindByBorrower(ctx context.Context, borrowerID primitive.ObjectID) (*models.Cart, error)
	ListIDsByBorrower(ctx context.Context, borrowerID primitive.ObjectID) ([]primitive.ObjectID, error)
	// Save writes a cart without an id onto the borrower's existing cart,
	// creating one if needed. A cart with an id is replaced.
	Save(ctx context.Context, c *models.Cart) error
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	ListGlobal(ctx context.Context) ([]models.Notification, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// LabRequestFilter selects lab requests. Zero values mean "no constraint".
type LabRequestFilter struct {
	BorrowerID primitive.ObjectID
	Statuses   []models.LabStatus
}

type LabRequestRepository interface {
	Insert(ctx context.Context, r *models.LabRequest) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.LabRequest, error)
	// List returns matches newest first.
	List(ctx context.Context, f LabRequestFilter) ([]models.LabRequest, error)
	// Decide applies d only while the request is in one of from.
	Decide(ctx context.Context, id primitive.ObjectID, from []models.LabStatus, d models.LabDecision) (*models.LabRequest, error)
	// Delete removes the request only while it is in one of from.
	Delete(ctx context.Context, id primitive.ObjectID, from []models.LabStatus) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error)
}

// Repos bundles one implementation of every repository.
type Repos struct {
	Equipment     EquipmentRepository
	Transactions  TransactionRepository
	Logbook       LogbookRepository
	Carts         CartRepository
	Notifications NotificationRepository
	Users         UserRepository
	LabRequests   LabRequestRepository
}
