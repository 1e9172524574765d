package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scilems/metrics"
	"scilems/models"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// owned loads a transaction and checks that actor owns the cart it came from.
func (s *Service) owned(ctx context.Context, actor, txnID primitive.ObjectID, verb string) (*models.Transaction, *models.Cart, error) {
	txn, err := s.transactions.Get(ctx, txnID)
	if err != nil {
		return nil, nil, notFound(err, "transaction")
	}
	cart, err := s.carts.Get(ctx, txn.CartID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil || cart.BorrowerID != actor {
		return nil, nil, NewUnauthorizedError("not authorized to " + verb + " this transaction")
	}
	return txn, cart, nil
}

// hardDelete removes the transaction while it is still in the observed
// status and gives back stock it was holding.
func (s *Service) hardDelete(ctx context.Context, txn *models.Transaction) error {
	err := s.transactions.Delete(ctx, txn.ID, []models.Status{txn.CurrentStatus})
	switch {
	case errors.Is(err, store.ErrStatusConflict):
		return NewInvalidTransitionError("transaction was changed by another request")
	case errors.Is(err, store.ErrNotFound):
		return NewNotFoundError("transaction not found")
	case err != nil:
		return fmt.Errorf("delete transaction %s: %w", txn.ID.Hex(), err)
	}
	if txn.CurrentStatus.HoldsStock() {
		_ = s.ReleaseAll(ctx, txn.BorrowedItems)
	}
	return nil
}

// CancelApplication lets the borrower withdraw a request. The transaction is
// removed outright and leaves no logbook entry.
func (s *Service) CancelApplication(ctx context.Context, actor, txnID primitive.ObjectID) (err error) {
	defer func() { metrics.Transition("cancel", err) }()

	txn, _, err := s.owned(ctx, actor, txnID, "cancel")
	if err != nil {
		return err
	}
	switch txn.CurrentStatus {
	case models.StatusApplying, models.StatusApproved, models.StatusBorrowed:
	case models.StatusDeclined:
		return NewInvalidTransitionError("cannot cancel a declined transaction")
	default:
		return NewInvalidTransitionError(fmt.Sprintf("cannot cancel a transaction that is %s", txn.CurrentStatus))
	}

	if err := s.hardDelete(ctx, txn); err != nil {
		return err
	}
	s.log.Info("transaction cancelled by borrower",
		zap.String("transaction_id", txn.ID.Hex()), zap.String("status", string(txn.CurrentStatus)))
	return nil
}

// ResetTransaction deletes a not yet borrowed transaction and merges its
// lines back into the borrower's cart.
func (s *Service) ResetTransaction(ctx context.Context, actor, txnID primitive.ObjectID) (_ *CartView, err error) {
	defer func() { metrics.Transition("reset", err) }()

	txn, cart, err := s.owned(ctx, actor, txnID, "reset")
	if err != nil {
		return nil, err
	}
	switch txn.CurrentStatus {
	case models.StatusApplying, models.StatusApproved:
	case models.StatusDeclined:
		return nil, NewInvalidTransitionError("cannot reset a declined transaction")
	default:
		return nil, NewInvalidTransitionError(fmt.Sprintf("cannot reset a transaction that is %s", txn.CurrentStatus))
	}

	// The cart is written first so a failed save leaves the transaction
	// and its reserved stock untouched.
	before := append([]models.CartItem(nil), cart.Items...)
	now := s.now()
	for _, it := range txn.BorrowedItems {
		cart.Merge(it.EquipmentID, it.Quantity, now)
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err := s.hardDelete(ctx, txn); err != nil {
		cart.Items = before
		if rerr := s.carts.Save(ctx, cart); rerr != nil {
			s.log.Error("revert cart after failed reset",
				zap.String("cart_id", cart.ID.Hex()), zap.Error(rerr))
		}
		return nil, err
	}

	s.log.Info("transaction reset into cart",
		zap.String("transaction_id", txn.ID.Hex()), zap.String("cart_id", cart.ID.Hex()))
	return s.cartView(ctx, cart)
}

// UpdatePickUpDate moves the pick-up date of a request that has not been
// picked up yet.
func (s *Service) UpdatePickUpDate(ctx context.Context, actor, txnID primitive.ObjectID, date *time.Time) (_ *models.Transaction, err error) {
	defer func() { metrics.Transition("update_pickup", err) }()

	if date == nil || date.IsZero() {
		return nil, NewValidationError("pickUpDate is required")
	}
	if date.Before(s.startOfToday()) {
		return nil, NewValidationError("pickUpDate cannot be in the past")
	}

	txn, _, err := s.owned(ctx, actor, txnID, "edit")
	if err != nil {
		return nil, err
	}
	allowed := []models.Status{models.StatusApplying, models.StatusApproved}
	if !statusIn(txn.CurrentStatus, allowed) {
		return nil, NewInvalidTransitionError(fmt.Sprintf("cannot edit pickUpDate when status is %s", txn.CurrentStatus))
	}

	updated, err := s.transactions.Update(ctx, txn.ID, []models.Status{txn.CurrentStatus}, models.TransactionUpdate{
		PickUpDate: models.TimePtr(*date),
		UpdatedAt:  s.now(),
	})
	switch {
	case errors.Is(err, store.ErrStatusConflict):
		return nil, NewInvalidTransitionError("transaction was changed by another request")
	case errors.Is(err, store.ErrNotFound):
		return nil, NewNotFoundError("transaction not found")
	case err != nil:
		return nil, fmt.Errorf("update pickUpDate: %w", err)
	}
	return updated, nil
}
