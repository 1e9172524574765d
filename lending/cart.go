package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scilems/models"
	"scilems/notify"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CartLine is a cart item with its equipment resolved for display.
type CartLine struct {
	models.CartItem
	Equipment models.EquipmentRef `json:"equipment"`
}

type CartView struct {
	ID         primitive.ObjectID `json:"id,omitempty"`
	BorrowerID primitive.ObjectID `json:"brID"`
	Items      []CartLine         `json:"items"`
}

func (s *Service) cartOf(ctx context.Context, borrowerID primitive.ObjectID) (*models.Cart, error) {
	cart, err := s.carts.FindByBorrower(ctx, borrowerID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.Cart{BorrowerID: borrowerID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}

func (s *Service) cartView(ctx context.Context, cart *models.Cart) (*CartView, error) {
	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.EquipmentID)
	}
	refs, err := s.equipment.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve cart equipment: %w", err)
	}

	v := &CartView{ID: cart.ID, BorrowerID: cart.BorrowerID, Items: make([]CartLine, 0, len(cart.Items))}
	for _, it := range cart.Items {
		ref, ok := refs[it.EquipmentID]
		if !ok {
			ref = models.Unresolved(it.EquipmentID)
		}
		v.Items = append(v.Items, CartLine{CartItem: it, Equipment: ref})
	}
	return v, nil
}

// GetCart returns the borrower's cart, empty when none was ever created.
func (s *Service) GetCart(ctx context.Context, borrowerID primitive.ObjectID) (*CartView, error) {
	cart, err := s.cartOf(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	return s.cartView(ctx, cart)
}

// AddItem adds qty of an equipment to the cart, creating the cart on first
// use. Stock is only checked here, not reserved.
func (s *Service) AddItem(ctx context.Context, borrowerID, eqID primitive.ObjectID, qty int) (*CartView, error) {
	if qty <= 0 {
		return nil, NewValidationError("quantity must be greater than 0")
	}
	eq, err := s.equipment.Get(ctx, eqID)
	if err != nil {
		return nil, notFound(err, "equipment")
	}
	if qty > eq.Stock {
		return nil, NewValidationError(fmt.Sprintf("requested quantity exceeds available stock (%d)", eq.Stock))
	}

	cart, err := s.cartOf(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	cart.Merge(eqID, qty, s.now())
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return s.cartView(ctx, cart)
}

// RemoveItems drops the given equipment lines and reports how many were
// removed. Stock is untouched since carts never reserve.
func (s *Service) RemoveItems(ctx context.Context, borrowerID primitive.ObjectID, eqIDs []primitive.ObjectID) (int, *CartView, error) {
	if len(eqIDs) == 0 {
		return 0, nil, NewValidationError("no items provided")
	}
	cart, err := s.carts.FindByBorrower(ctx, borrowerID)
	if err != nil {
		return 0, nil, notFound(err, "cart")
	}

	removed := cart.Remove(eqIDs)
	if err := s.carts.Save(ctx, cart); err != nil {
		return 0, nil, fmt.Errorf("save cart: %w", err)
	}
	v, err := s.cartView(ctx, cart)
	return removed, v, err
}

func (s *Service) SetQuantity(ctx context.Context, borrowerID, eqID primitive.ObjectID, qty int) (*CartView, error) {
	if qty < 1 {
		return nil, NewValidationError("quantity must be at least 1")
	}
	cart, err := s.carts.FindByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, notFound(err, "cart")
	}
	i, ok := cart.Find(eqID)
	if !ok {
		return nil, NewNotFoundError("item not found in cart")
	}
	eq, err := s.equipment.Get(ctx, eqID)
	if err != nil {
		return nil, notFound(err, "equipment")
	}
	if qty > eq.Stock {
		return nil, NewValidationError(fmt.Sprintf("only %d items available in stock", eq.Stock))
	}

	cart.Items[i].Quantity = qty
	cart.Items[i].DateOrdered = s.now()
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return s.cartView(ctx, cart)
}

// Submit turns the cart into a transaction in applying and empties the cart.
// The cart document itself is kept for reuse.
func (s *Service) Submit(ctx context.Context, borrowerID primitive.ObjectID, pickUpDate *time.Time) (*models.Transaction, error) {
	if pickUpDate != nil && pickUpDate.Before(s.startOfToday()) {
		return nil, NewValidationError("pickUpDate cannot be in the past")
	}

	cart, err := s.carts.FindByBorrower(ctx, borrowerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, NewValidationError("cart is empty")
	}

	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.EquipmentID)
	}
	refs, err := s.equipment.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve cart equipment: %w", err)
	}

	now := s.now()
	items := make([]models.BorrowedItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, models.BorrowedItem{
			EquipmentID: it.EquipmentID,
			Name:        refs[it.EquipmentID].Name(""),
			Quantity:    it.Quantity,
			DateOrdered: it.DateOrdered,
		})
	}

	txn := &models.Transaction{
		CartID:        cart.ID,
		BorrowedItems: items,
		CurrentStatus: models.StatusApplying,
		DateApplied:   models.TimePtr(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if pickUpDate != nil {
		txn.PickUpDate = models.TimePtr(*pickUpDate)
	}
	if err := s.transactions.Insert(ctx, txn); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	cart.Items = []models.CartItem{}
	if err := s.carts.Save(ctx, cart); err != nil {
		s.log.Error("cart not cleared after submission",
			zap.String("cart_id", cart.ID.Hex()), zap.String("transaction_id", txn.ID.Hex()), zap.Error(err))
	}

	s.events.Publish(notify.NewEvent(notify.KindSubmitted, *txn, now))
	s.log.Info("borrow request submitted",
		zap.String("transaction_id", txn.ID.Hex()), zap.Int("lines", len(items)))
	return txn, nil
}
