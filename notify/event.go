package notify

import (
	"time"

	"scilems/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Kind string

const (
	KindSubmitted           Kind = "submitted"
	KindApproved            Kind = "approved"
	KindApplicationDeclined Kind = "application_declined"
	KindBorrowed            Kind = "borrowed"
	KindApprovalDeclined    Kind = "approval_declined"
	KindReturned            Kind = "returned"
	KindRestored            Kind = "restored"
	KindOverdue             Kind = "overdue"
)

// Event describes a committed transition. It carries a copy of everything a
// handler needs so nothing has to be re-read from the transaction.
type Event struct {
	ID            string
	Kind          Kind
	TransactionID primitive.ObjectID
	CartID        primitive.ObjectID
	Status        models.Status
	Items         []models.BorrowedItem
	PickUpDate    *time.Time
	ReturnDate    *time.Time
	Remarks       string
	OccurredAt    time.Time
}

func NewEvent(kind Kind, t models.Transaction, at time.Time) Event {
	items := make([]models.BorrowedItem, len(t.BorrowedItems))
	copy(items, t.BorrowedItems)
	return Event{
		ID:            uuid.NewString(),
		Kind:          kind,
		TransactionID: t.ID,
		CartID:        t.CartID,
		Status:        t.CurrentStatus,
		Items:         items,
		PickUpDate:    t.PickUpDate,
		ReturnDate:    t.ReturnDate,
		Remarks:       t.Remarks,
		OccurredAt:    at,
	}
}
