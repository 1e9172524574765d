package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BorrowedItem is the snapshot of a cart line taken when the request is
// submitted. Name is copied so the record survives equipment edits.
type BorrowedItem struct {
	EquipmentID      primitive.ObjectID `bson:"eqID" json:"eqID"`
	Name             string             `bson:"name,omitempty" json:"name,omitempty"`
	Quantity         int                `bson:"quantity" json:"quantity"`
	DateOrdered      time.Time          `bson:"dateOrdered" json:"dateOrdered"`
	ReturnedQuantity int                `bson:"returnedQuantity" json:"returnedQuantity"`
}

type Transaction struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CartID        primitive.ObjectID `bson:"cartID" json:"cartID"`
	BorrowedItems []BorrowedItem     `bson:"borrowedItems" json:"borrowedItems"`
	CurrentStatus Status             `bson:"currentStatus" json:"currentStatus"`
	LastStatus    Status             `bson:"lastStatus,omitempty" json:"lastStatus,omitempty"`
	DateApplied   *time.Time         `bson:"dateApplied,omitempty" json:"dateApplied,omitempty"`
	DateApproved  *time.Time         `bson:"dateApproved,omitempty" json:"dateApproved,omitempty"`
	PickUpDate    *time.Time         `bson:"pickUpDate,omitempty" json:"pickUpDate,omitempty"`
	DateBorrowed  *time.Time         `bson:"dateBorrowed,omitempty" json:"dateBorrowed,omitempty"`
	ReturnDate    *time.Time         `bson:"returnDate,omitempty" json:"returnDate,omitempty"`
	DateReturned  *time.Time         `bson:"dateReturned,omitempty" json:"dateReturned,omitempty"`
	DateArchived  *time.Time         `bson:"dateArchived,omitempty" json:"dateArchived,omitempty"`
	Remarks       string             `bson:"remarks,omitempty" json:"remarks,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TransactionUpdate is a pending change to a transaction. Nil fields are left
// untouched. It is applied to the stored document and, before that, to a copy
// of the transaction so the logbook records the values it is about to take.
type TransactionUpdate struct {
	CurrentStatus     *Status
	LastStatus        *Status
	DateApproved      *time.Time
	PickUpDate        *time.Time
	DateBorrowed      *time.Time
	ReturnDate        *time.Time
	DateReturned      *time.Time
	DateArchived      *time.Time
	ClearDateArchived bool
	Remarks           *string
	BorrowedItems     []BorrowedItem
	UpdatedAt         time.Time
}

// ApplyTo returns a copy of t with the update applied.
func (u TransactionUpdate) ApplyTo(t Transaction) Transaction {
	if u.CurrentStatus != nil {
		t.CurrentStatus = *u.CurrentStatus
	}
	if u.LastStatus != nil {
		t.LastStatus = *u.LastStatus
	}
	if u.DateApproved != nil {
		t.DateApproved = u.DateApproved
	}
	if u.PickUpDate != nil {
		t.PickUpDate = u.PickUpDate
	}
	if u.DateBorrowed != nil {
		t.DateBorrowed = u.DateBorrowed
	}
	if u.ReturnDate != nil {
		t.ReturnDate = u.ReturnDate
	}
	if u.DateReturned != nil {
		t.DateReturned = u.DateReturned
	}
	if u.DateArchived != nil {
		t.DateArchived = u.DateArchived
	}
	if u.ClearDateArchived {
		t.DateArchived = nil
	}
	if u.Remarks != nil {
		t.Remarks = *u.Remarks
	}
	if u.BorrowedItems != nil {
		t.BorrowedItems = u.BorrowedItems
	}
	if !u.UpdatedAt.IsZero() {
		t.UpdatedAt = u.UpdatedAt
	}
	return t
}

// BSON renders the update as a mongo update document.
func (u TransactionUpdate) BSON() bson.M {
	set := bson.M{}
	if u.CurrentStatus != nil {
		set["currentStatus"] = *u.CurrentStatus
	}
	if u.LastStatus != nil {
		set["lastStatus"] = *u.LastStatus
	}
	if u.DateApproved != nil {
		set["dateApproved"] = *u.DateApproved
	}
	if u.PickUpDate != nil {
		set["pickUpDate"] = *u.PickUpDate
	}
	if u.DateBorrowed != nil {
		set["dateBorrowed"] = *u.DateBorrowed
	}
	if u.ReturnDate != nil {
		set["returnDate"] = *u.ReturnDate
	}
	if u.DateReturned != nil {
		set["dateReturned"] = *u.DateReturned
	}
	if u.DateArchived != nil && !u.ClearDateArchived {
		set["dateArchived"] = *u.DateArchived
	}
	if u.Remarks != nil {
		set["remarks"] = *u.Remarks
	}
	if u.BorrowedItems != nil {
		set["borrowedItems"] = u.BorrowedItems
	}
	if !u.UpdatedAt.IsZero() {
		set["updatedAt"] = u.UpdatedAt
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if u.ClearDateArchived {
		update["$unset"] = bson.M{"dateArchived": ""}
	}
	return update
}

func StatusPtr(s Status) *Status { return &s }

func TimePtr(t time.Time) *time.Time { return &t }

func StringPtr(s string) *string { return &s }
