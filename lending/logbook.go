package lending

import (
	"context"
	"fmt"
	"time"

	"scilems/models"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// statusEntry records what t is about to become under upd. The entry's
// lastStatus is the status t has before the change.
func statusEntry(t models.Transaction, upd models.TransactionUpdate, action string, at time.Time) models.LogbookEntry {
	next := upd.ApplyTo(t)
	if action == "" {
		action = string(next.CurrentStatus)
	}
	return entryFrom(next, t.CurrentStatus, action, at)
}

func entryFrom(t models.Transaction, last models.Status, action string, at time.Time) models.LogbookEntry {
	items := make([]models.BorrowedItem, len(t.BorrowedItems))
	copy(items, t.BorrowedItems)
	return models.LogbookEntry{
		TransactionID: t.ID,
		CartID:        t.CartID,
		BorrowedItems: items,
		LastStatus:    last,
		CurrentStatus: t.CurrentStatus,
		Action:        action,
		DateApplied:   t.DateApplied,
		DateApproved:  t.DateApproved,
		PickUpDate:    t.PickUpDate,
		DateBorrowed:  t.DateBorrowed,
		ReturnDate:    t.ReturnDate,
		DateReturned:  t.DateReturned,
		DateArchived:  t.DateArchived,
		Remarks:       t.Remarks,
		CreatedAt:     at,
	}
}

// CreateSnapshot appends a point-in-time copy of the transaction that is not
// tied to any transition.
func (s *Service) CreateSnapshot(ctx context.Context, txnID primitive.ObjectID) (*models.LogbookEntry, error) {
	txn, err := s.transactions.Get(ctx, txnID)
	if err != nil {
		return nil, notFound(err, "transaction")
	}
	return s.snapshot(ctx, *txn)
}

func (s *Service) snapshot(ctx context.Context, txn models.Transaction) (*models.LogbookEntry, error) {
	entry := entryFrom(txn, txn.LastStatus, models.ActionSnapshot, s.now())
	if err := s.logbook.Append(ctx, &entry); err != nil {
		return nil, fmt.Errorf("append snapshot for %s: %w", txn.ID.Hex(), err)
	}
	return &entry, nil
}

// CreateSystemSnapshot snapshots every transaction that is not archived and
// returns how many entries were written.
func (s *Service) CreateSystemSnapshot(ctx context.Context) (int, error) {
	txns, err := s.transactions.List(ctx, store.TransactionFilter{
		ExcludeStatuses: []models.Status{models.StatusDeclined, models.StatusDeleted},
	})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	count := 0
	for _, txn := range txns {
		if _, err := s.snapshot(ctx, txn); err != nil {
			s.log.Error("snapshot failed", zap.String("transaction_id", txn.ID.Hex()), zap.Error(err))
			return count, err
		}
		count++
	}
	s.log.Info("system snapshot created", zap.Int("transactions", count))
	return count, nil
}
