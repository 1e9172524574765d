package lending

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"scilems/models"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ItemTotals struct {
	TotalBorrowed int `json:"totalBorrowed"`
	TotalReturned int `json:"totalReturned"`
}

type MonthlyBorrowers struct {
	Month         string `json:"month"`
	BorrowerCount int    `json:"borrowerCount"`
}

func (s *Service) UserCount(ctx context.Context) (int64, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ActiveBorrowerCount counts distinct borrowers holding a borrowed or
// overdue transaction. Transactions whose cart is gone are not counted.
func (s *Service) ActiveBorrowerCount(ctx context.Context) (int, error) {
	txns, err := s.transactions.List(ctx, store.TransactionFilter{
		Statuses: []models.Status{models.StatusBorrowed, models.StatusPending},
	})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	owners := newCartOwners(s.carts)
	borrowers := map[primitive.ObjectID]bool{}
	for _, t := range txns {
		id, ok, err := owners.of(ctx, t.CartID)
		if err != nil {
			return 0, err
		}
		if ok {
			borrowers[id] = true
		}
	}
	return len(borrowers), nil
}

// ItemTotals sums item quantities over borrowed and over returned
// transactions.
func (s *Service) ItemTotals(ctx context.Context) (*ItemTotals, error) {
	sum := func(st models.Status) (int, error) {
		txns, err := s.transactions.List(ctx, store.TransactionFilter{Statuses: []models.Status{st}})
		if err != nil {
			return 0, fmt.Errorf("list %s transactions: %w", st, err)
		}
		n := 0
		for _, t := range txns {
			for _, it := range t.BorrowedItems {
				n += it.Quantity
			}
		}
		return n, nil
	}

	var out ItemTotals
	var err error
	if out.TotalBorrowed, err = sum(models.StatusBorrowed); err != nil {
		return nil, err
	}
	if out.TotalReturned, err = sum(models.StatusReturned); err != nil {
		return nil, err
	}
	return &out, nil
}

// MonthlyBorrowerCounts counts "borrowed" logbook entries per UTC month of
// their borrow date, oldest month first.
func (s *Service) MonthlyBorrowerCounts(ctx context.Context) ([]MonthlyBorrowers, error) {
	entries, err := s.logbook.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logbook: %w", err)
	}
	owners := newCartOwners(s.carts)
	counts := map[string]int{}
	for _, e := range entries {
		if e.CurrentStatus != models.StatusBorrowed || e.DateBorrowed == nil {
			continue
		}
		_, ok, err := owners.of(ctx, e.CartID)
		if err != nil {
			return nil, err
		}
		if ok {
			counts[e.DateBorrowed.UTC().Format("2006-01")]++
		}
	}

	out := make([]MonthlyBorrowers, 0, len(counts))
	for month, n := range counts {
		out = append(out, MonthlyBorrowers{Month: month, BorrowerCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// cartOwners memoizes cart id to borrower id lookups.
type cartOwners struct {
	carts store.CartRepository
	seen  map[primitive.ObjectID]*primitive.ObjectID
}

func newCartOwners(carts store.CartRepository) *cartOwners {
	return &cartOwners{carts: carts, seen: map[primitive.ObjectID]*primitive.ObjectID{}}
}

func (c *cartOwners) of(ctx context.Context, cartID primitive.ObjectID) (primitive.ObjectID, bool, error) {
	if owner, ok := c.seen[cartID]; ok {
		if owner == nil {
			return primitive.NilObjectID, false, nil
		}
		return *owner, true, nil
	}
	cart, err := c.carts.Get(ctx, cartID)
	if errors.Is(err, store.ErrNotFound) {
		c.seen[cartID] = nil
		return primitive.NilObjectID, false, nil
	}
	if err != nil {
		return primitive.NilObjectID, false, fmt.Errorf("load cart: %w", err)
	}
	owner := cart.BorrowerID
	c.seen[cartID] = &owner
	return owner, true, nil
}
