package lending

import (
	"context"
	"errors"
	"fmt"

	"scilems/models"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type stockLine struct {
	id  primitive.ObjectID
	qty int
}

// aggregate sums quantities per equipment, keeping first-seen order.
func aggregate(items []models.BorrowedItem) []stockLine {
	idx := map[primitive.ObjectID]int{}
	var lines []stockLine
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i, ok := idx[it.EquipmentID]; ok {
			lines[i].qty += it.Quantity
			continue
		}
		idx[it.EquipmentID] = len(lines)
		lines = append(lines, stockLine{id: it.EquipmentID, qty: it.Quantity})
	}
	return lines
}

// ReserveAll takes stock for every line or for none. All lines are checked
// before the first decrement; a line lost to a concurrent reservation after
// the check undoes the decrements already applied.
func (s *Service) ReserveAll(ctx context.Context, items []models.BorrowedItem) error {
	lines := aggregate(items)

	for _, l := range lines {
		eq, err := s.equipment.Get(ctx, l.id)
		if err != nil {
			return notFound(err, "equipment "+l.id.Hex())
		}
		if eq.Stock < l.qty {
			return NewInsufficientStockError(fmt.Sprintf(
				"insufficient stock for %s: requested %d, available %d", eq.Name, l.qty, eq.Stock))
		}
	}

	applied := make([]stockLine, 0, len(lines))
	for _, l := range lines {
		err := s.equipment.Reserve(ctx, l.id, l.qty)
		if err == nil {
			applied = append(applied, l)
			continue
		}

		s.releaseLines(ctx, applied)
		switch {
		case errors.Is(err, store.ErrInsufficientStock):
			return NewInsufficientStockError(fmt.Sprintf(
				"insufficient stock for equipment %s: requested %d", l.id.Hex(), l.qty))
		case errors.Is(err, store.ErrNotFound):
			return NewNotFoundError("equipment " + l.id.Hex() + " not found")
		default:
			return fmt.Errorf("reserve equipment %s: %w", l.id.Hex(), err)
		}
	}
	return nil
}

// ReleaseAll returns the snapshot quantities to stock. Equipment that no
// longer exists is skipped.
func (s *Service) ReleaseAll(ctx context.Context, items []models.BorrowedItem) error {
	return s.releaseLines(ctx, aggregate(items))
}

func (s *Service) releaseLines(ctx context.Context, lines []stockLine) error {
	var errs []error
	for _, l := range lines {
		err := s.equipment.Release(ctx, l.id, l.qty)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound):
			s.log.Warn("equipment missing on restock, skipped",
				zap.String("equipment_id", l.id.Hex()), zap.Int("quantity", l.qty))
		default:
			s.log.Error("restock failed",
				zap.String("equipment_id", l.id.Hex()), zap.Int("quantity", l.qty), zap.Error(err))
			errs = append(errs, fmt.Errorf("release equipment %s: %w", l.id.Hex(), err))
		}
	}
	return errors.Join(errs...)
}
