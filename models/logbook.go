package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LogbookEntry is an immutable audit record of one transaction status change.
// It keeps its own copy of the items so it outlives the transaction.
type LogbookEntry struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TransactionID primitive.ObjectID `bson:"transactionID" json:"transactionID"`
	CartID        primitive.ObjectID `bson:"cartID" json:"cartID"`
	BorrowedItems []BorrowedItem     `bson:"borrowedItems" json:"borrowedItems"`
	LastStatus    Status             `bson:"lastStatus,omitempty" json:"lastStatus,omitempty"`
	CurrentStatus Status             `bson:"currentStatus" json:"currentStatus"`
	Action        string             `bson:"action" json:"action"`
	DateApplied   *time.Time         `bson:"dateApplied,omitempty" json:"dateApplied,omitempty"`
	DateApproved  *time.Time         `bson:"dateApproved,omitempty" json:"dateApproved,omitempty"`
	PickUpDate    *time.Time         `bson:"pickUpDate,omitempty" json:"pickUpDate,omitempty"`
	DateBorrowed  *time.Time         `bson:"dateBorrowed,omitempty" json:"dateBorrowed,omitempty"`
	ReturnDate    *time.Time         `bson:"returnDate,omitempty" json:"returnDate,omitempty"`
	DateReturned  *time.Time         `bson:"dateReturned,omitempty" json:"dateReturned,omitempty"`
	DateArchived  *time.Time         `bson:"dateArchived,omitempty" json:"dateArchived,omitempty"`
	Remarks       string             `bson:"remarks,omitempty" json:"remarks,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
