package lending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scilems/metrics"
	"scilems/models"
	"scilems/notify"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const defaultRemarks = "No remarks provided"

type stockEffect int

const (
	stockNone stockEffect = iota
	stockReserve
	stockRelease
)

// transition is one edge family of the lifecycle. plan computes the pending
// update from the current document; commit does the rest.
type transition struct {
	action    string
	verb      string
	from      []models.Status
	logAction string
	event     notify.Kind
	plan      func(t models.Transaction, now time.Time) (models.TransactionUpdate, stockEffect, error)
}

func statusIn(s models.Status, set []models.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func remarksOrDefault(r string) *string {
	if r = strings.TrimSpace(r); r == "" {
		r = defaultRemarks
	}
	return &r
}

func optionalRemarks(r string) *string {
	if r = strings.TrimSpace(r); r == "" {
		return nil
	}
	return &r
}

func (s *Service) run(ctx context.Context, id primitive.ObjectID, tr transition) (*models.Transaction, error) {
	txn, err := s.transactions.Get(ctx, id)
	if err != nil {
		err = notFound(err, "transaction")
		metrics.Transition(tr.action, err)
		return nil, err
	}
	out, err := s.commit(ctx, *txn, tr)
	metrics.Transition(tr.action, err)
	return out, err
}

// commit validates the edge, takes stock when the target holds a
// reservation, writes the status conditionally on the observed one, then
// appends the logbook entry built from the pre-transition document, gives
// stock back when the edge releases it and publishes the side-effect event.
// A conditional write that loses a race releases what it reserved and
// leaves no logbook entry.
func (s *Service) commit(ctx context.Context, txn models.Transaction, tr transition) (*models.Transaction, error) {
	if !statusIn(txn.CurrentStatus, tr.from) {
		return nil, NewInvalidTransitionError(fmt.Sprintf("cannot %s a transaction that is %s", tr.verb, txn.CurrentStatus))
	}

	now := s.now()
	upd, effect, err := tr.plan(txn, now)
	if err != nil {
		return nil, err
	}
	if upd.LastStatus == nil {
		upd.LastStatus = models.StatusPtr(txn.CurrentStatus)
	}
	upd.UpdatedAt = now
	entry := statusEntry(txn, upd, tr.logAction, now)

	if effect == stockReserve {
		if err := s.ReserveAll(ctx, txn.BorrowedItems); err != nil {
			return nil, err
		}
	}

	updated, err := s.transactions.Update(ctx, txn.ID, []models.Status{txn.CurrentStatus}, upd)
	if err != nil {
		if effect == stockReserve {
			_ = s.ReleaseAll(ctx, txn.BorrowedItems)
		}
		switch {
		case errors.Is(err, store.ErrStatusConflict):
			return nil, NewInvalidTransitionError("transaction was changed by another request")
		case errors.Is(err, store.ErrNotFound):
			return nil, NewNotFoundError("transaction not found")
		}
		return nil, fmt.Errorf("update transaction %s: %w", txn.ID.Hex(), err)
	}

	if err := s.logbook.Append(ctx, &entry); err != nil {
		metrics.LogbookAppendFailedTotal.WithLabelValues(tr.action).Inc()
		s.log.Error("logbook append failed",
			zap.String("transaction_id", txn.ID.Hex()), zap.String("action", entry.Action), zap.Error(err))
	}
	if effect == stockRelease {
		_ = s.ReleaseAll(ctx, txn.BorrowedItems)
	}
	if tr.event != "" {
		s.events.Publish(notify.NewEvent(tr.event, *updated, now))
	}

	s.log.Info("transaction status changed",
		zap.String("transaction_id", txn.ID.Hex()),
		zap.String("action", tr.action),
		zap.String("from", string(txn.CurrentStatus)),
		zap.String("status", string(updated.CurrentStatus)),
	)
	return updated, nil
}

// ConfirmApplication approves a request and reserves its stock. Nothing is
// persisted when any line cannot be reserved.
func (s *Service) ConfirmApplication(ctx context.Context, id primitive.ObjectID, pickUpDate *time.Time) (*models.Transaction, error) {
	return s.run(ctx, id, transition{
		action: "confirm_application",
		verb:   "approve",
		from:   []models.Status{models.StatusApplying},
		event:  notify.KindApproved,
		plan: func(_ models.Transaction, now time.Time) (models.TransactionUpdate, stockEffect, error) {
			upd := models.TransactionUpdate{
				CurrentStatus: models.StatusPtr(models.StatusApproved),
				DateApproved:  models.TimePtr(now),
			}
			if pickUpDate != nil {
				upd.PickUpDate = models.TimePtr(*pickUpDate)
			}
			return upd, stockReserve, nil
		},
	})
}

func (s *Service) DeclineApplication(ctx context.Context, id primitive.ObjectID, remarks string) (*models.Transaction, error) {
	return s.run(ctx, id, transition{
		action: "decline_application",
		verb:   "decline",
		from:   []models.Status{models.StatusApplying},
		event:  notify.KindApplicationDeclined,
		plan: func(_ models.Transaction, now time.Time) (models.TransactionUpdate, stockEffect, error) {
			return models.TransactionUpdate{
				CurrentStatus: models.StatusPtr(models.StatusDeclined),
				DateArchived:  models.TimePtr(now),
				Remarks:       remarksOrDefault(remarks),
			}, stockNone, nil
		},
	})
}

func (s *Service) ConfirmBorrowedStatus(ctx context.Context, id primitive.ObjectID, returnDate *time.Time) (*models.Transaction, error) {
	if returnDate == nil || returnDate.IsZero() {
		metrics.Transition("confirm_borrowed", errMissingReturnDate)
		return nil, errMissingReturnDate
	}
	return s.run(ctx, id, transition{
		action: "confirm_borrowed",
		verb:   "mark as borrowed",
		from:   []models.Status{models.StatusApproved},
		event:  notify.KindBorrowed,
		plan: func(_ models.Transaction, now time.Time) (models.TransactionUpdate, stockEffect, error) {
			return models.TransactionUpdate{
				CurrentStatus: models.StatusPtr(models.StatusBorrowed),
				DateBorrowed:  models.TimePtr(now),
				ReturnDate:    models.TimePtr(*returnDate),
			}, stockNone, nil
		},
	})
}

var (
	errMissingReturnDate = NewValidationError("returnDate is required")
	errMissingReturn     = NewValidationError("dateReturned and remarks are required")
)

func (s *Service) DeclineApproval(ctx context.Context, id primitive.ObjectID, remarks string) (*models.Transaction, error) {
	return s.run(ctx, id, transition{
		action: "decline_approval",
		verb:   "decline the approval of",
		from:   []models.Status{models.StatusApproved},
		event:  notify.KindApprovalDeclined,
		plan: func(_ models.Transaction, now time.Time) (models.TransactionUpdate, stockEffect, error) {
			return models.TransactionUpdate{
				CurrentStatus: models.StatusPtr(models.StatusDeclined),
				DateArchived:  models.TimePtr(now),
				Remarks:       remarksOrDefault(remarks),
			}, stockRelease, nil
		},
	})
}

// ConfirmReturn closes a borrowed or overdue transaction and restocks the
// full snapshot quantity of every line.
func (s *Service) ConfirmReturn(ctx context.Context, id primitive.ObjectID, dateReturned *time.Time, remarks string) (*models.Transaction, error) {
	if dateReturned == nil || dateReturned.IsZero() || strings.TrimSpace(remarks) == "" {
		metrics.Transition("confirm_return", errMissingReturn)
		return nil, errMissingReturn
	}
	return s.run(ctx, id, transition{
		action: "confirm_return",
		verb:   "return",
		from:   []models.Status{models.StatusBorrowed, models.StatusPending},
		event:  notify.KindReturned,
		plan: func(t models.Transaction, _ time.Time) (models.TransactionUpdate, stockEffect, error) {
			items := make([]models.BorrowedItem, len(t.BorrowedItems))
			for i, it := range t.BorrowedItems {
				it.ReturnedQuantity = it.Quantity
				items[i] = it
			}
			return models.TransactionUpdate{
				CurrentStatus: models.StatusPtr(models.StatusReturned),
				DateReturned:  models.TimePtr(*dateReturned),
				Remarks:       models.StringPtr(strings.TrimSpace(remarks)),
				BorrowedItems: items,
			}, stockRelease, nil
		},
	})
}

// RemoveBorrowedRecords archives a live transaction as deleted.
func (s *Service) RemoveBorrowedRecords(ctx context.Context, id primitive.ObjectID, remarks string) (*models.Transaction, error) {
	return s.run(ctx, id, transition{
		action: "remove",
		verb:   "delete",
		from:   []models.Status{models.StatusApplying, models.StatusApproved, models.StatusBorrowed, models.StatusPending},
		plan: func(t models.Transaction, now time.Time) (models.TransactionUpdate, stockEffect, error) {
			effect := stockNone
			if t.CurrentStatus.HoldsStock() {
				effect = stockRelease
			}
			return models.TransactionUpdate{
				CurrentStatus: models.StatusPtr(models.StatusDeleted),
				DateArchived:  models.TimePtr(now),
				Remarks:       remarksOrDefault(remarks),
			}, effect, nil
		},
	})
}

// RestoreArchivedRecord swaps current and last status on a declined or
// deleted transaction, so restoring and archiving again round-trips.
func (s *Service) RestoreArchivedRecord(ctx context.Context, id primitive.ObjectID, remarks string) (*models.Transaction, error) {
	return s.run(ctx, id, transition{
		action:    "restore",
		verb:      "restore",
		from:      []models.Status{models.StatusDeclined, models.StatusDeleted},
		logAction: models.ActionRestored,
		event:     notify.KindRestored,
		plan: func(t models.Transaction, _ time.Time) (models.TransactionUpdate, stockEffect, error) {
			target := t.LastStatus
			if !target.Valid() || target.Archived() {
				return models.TransactionUpdate{}, stockNone,
					NewInvalidTransitionError("transaction has no previous status to restore")
			}
			previous := t.CurrentStatus
			effect := stockNone
			if target.HoldsStock() {
				effect = stockReserve
			}
			return models.TransactionUpdate{
				CurrentStatus:     &target,
				LastStatus:        &previous,
				ClearDateArchived: true,
				Remarks:           optionalRemarks(remarks),
			}, effect, nil
		},
	})
}
