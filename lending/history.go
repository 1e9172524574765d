package lending

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"scilems/models"
	"scilems/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BorrowerSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
	Name     string             `json:"name"`
	Email    string             `json:"email,omitempty"`
}

// TransactionView is a transaction with its borrower and equipment resolved
// for display.
type TransactionView struct {
	models.Transaction
	Borrower  *BorrowerSummary      `json:"borrower,omitempty"`
	Equipment []models.EquipmentRef `json:"equipment"`
}

type TimelineEntry struct {
	TransactionID primitive.ObjectID `json:"transactionId"`
	BorrowerName  string             `json:"borrowerName"`
	Date          *time.Time         `json:"date,omitempty"`
	Status        models.Status      `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type DetailItem struct {
	EquipmentID primitive.ObjectID `json:"equipmentId"`
	Name        string             `json:"name"`
	Quantity    int                `json:"quantity"`
	DateOrdered time.Time          `json:"dateOrdered"`
	Equipment   *models.Equipment  `json:"equipment,omitempty"`
}

type TransactionDetails struct {
	TransactionID primitive.ObjectID `json:"transactionId"`
	BorrowerID    string             `json:"borrowerId"`
	BorrowerName  string             `json:"borrowerName"`
	CurrentStatus models.Status      `json:"currentStatus"`
	AppliedOn     *time.Time         `json:"appliedOn,omitempty"`
	ApprovedOn    *time.Time         `json:"approvedOn,omitempty"`
	PickUpDate    *time.Time         `json:"pickUpDate,omitempty"`
	BorrowedOn    *time.Time         `json:"borrowedOn,omitempty"`
	ReturnedOn    *time.Time         `json:"returnedOn,omitempty"`
	Remarks       string             `json:"remarks,omitempty"`
	Items         []DetailItem       `json:"items"`
	// FromLogbook is set when the transaction document is gone and the
	// details come from its most recent logbook entry.
	FromLogbook bool `json:"fromLogbook"`
}

// borrowers caches cart -> borrower lookups for the length of one read.
type borrowers struct {
	s     *Service
	cache map[primitive.ObjectID]*BorrowerSummary
}

func (s *Service) borrowers() *borrowers {
	return &borrowers{s: s, cache: map[primitive.ObjectID]*BorrowerSummary{}}
}

func (b *borrowers) of(ctx context.Context, cartID primitive.ObjectID) (*BorrowerSummary, error) {
	if v, ok := b.cache[cartID]; ok {
		return v, nil
	}
	u, err := store.BorrowerOf(ctx, b.s.carts, b.s.users, cartID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	var summary *BorrowerSummary
	if u != nil {
		summary = &BorrowerSummary{ID: u.ID, Username: u.Username, Name: u.FullName(), Email: u.Email}
	}
	b.cache[cartID] = summary
	return summary, nil
}

func (b *borrowers) nameOf(ctx context.Context, cartID primitive.ObjectID) (string, error) {
	summary, err := b.of(ctx, cartID)
	if err != nil || summary == nil {
		return "Unknown", err
	}
	return summary.Name, nil
}

func (s *Service) views(ctx context.Context, txns []models.Transaction) ([]TransactionView, error) {
	var ids []primitive.ObjectID
	for _, t := range txns {
		for _, it := range t.BorrowedItems {
			ids = append(ids, it.EquipmentID)
		}
	}
	refs, err := s.equipment.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	who := s.borrowers()
	out := make([]TransactionView, 0, len(txns))
	for _, t := range txns {
		b, err := who.of(ctx, t.CartID)
		if err != nil {
			return nil, err
		}
		v := TransactionView{Transaction: t, Borrower: b, Equipment: make([]models.EquipmentRef, 0, len(t.BorrowedItems))}
		for _, it := range t.BorrowedItems {
			ref, ok := refs[it.EquipmentID]
			if !ok {
				ref = models.Unresolved(it.EquipmentID)
			}
			v.Equipment = append(v.Equipment, ref)
		}
		out = append(out, v)
	}
	return out, nil
}

// QueueArchived selects declined and deleted transactions together.
const QueueArchived = "archived"

// ListQueue returns the approver's view of one status queue.
func (s *Service) ListQueue(ctx context.Context, queue string) ([]TransactionView, error) {
	f := store.TransactionFilter{SortBy: "createdAt", Desc: true}
	switch {
	case queue == QueueArchived:
		f.Statuses = []models.Status{models.StatusDeclined, models.StatusDeleted}
		f.SortBy = "dateArchived"
	case models.Status(queue).Valid() && !models.Status(queue).Archived():
		f.Statuses = []models.Status{models.Status(queue)}
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown transaction status %q", queue))
	}

	txns, err := s.transactions.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list %s transactions: %w", queue, err)
	}
	return s.views(ctx, txns)
}

// ListMine returns every transaction created from the borrower's carts,
// newest first.
func (s *Service) ListMine(ctx context.Context, borrowerID primitive.ObjectID) ([]TransactionView, error) {
	cartIDs, err := s.carts.ListIDsByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	if len(cartIDs) == 0 {
		return []TransactionView{}, nil
	}
	txns, err := s.transactions.List(ctx, store.TransactionFilter{CartIDs: cartIDs, SortBy: "createdAt", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return s.views(ctx, txns)
}

// TransactionHistory lists the logbook of one transaction, oldest first. It
// still answers after the transaction itself has been deleted.
func (s *Service) TransactionHistory(ctx context.Context, txnID primitive.ObjectID) ([]models.LogbookEntry, error) {
	entries, err := s.logbook.ListByTransaction(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("list logbook: %w", err)
	}
	if len(entries) > 0 {
		return entries, nil
	}
	if _, err := s.transactions.Get(ctx, txnID); err != nil {
		return nil, notFound(err, "transaction")
	}
	return entries, nil
}

func (s *Service) BorrowerHistory(ctx context.Context, borrowerID primitive.ObjectID) ([]models.LogbookEntry, error) {
	cartIDs, err := s.carts.ListIDsByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	return s.logbook.ListByCarts(ctx, cartIDs)
}

// OverallTimeline merges the current status of every transaction with every
// logbook status, one row per transaction and status, grouped by transaction
// and ordered by time within a group.
func (s *Service) OverallTimeline(ctx context.Context) ([]TimelineEntry, error) {
	txns, err := s.transactions.List(ctx, store.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	entries, err := s.logbook.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logbook: %w", err)
	}

	who := s.borrowers()
	seen := map[string]bool{}
	out := []TimelineEntry{}
	add := func(txnID, cartID primitive.ObjectID, status models.Status, date *time.Time, at time.Time) error {
		key := txnID.Hex() + "_" + string(status)
		if seen[key] {
			return nil
		}
		seen[key] = true
		name, err := who.nameOf(ctx, cartID)
		if err != nil {
			return err
		}
		out = append(out, TimelineEntry{TransactionID: txnID, BorrowerName: name, Date: date, Status: status, CreatedAt: at})
		return nil
	}

	for _, t := range txns {
		if err := add(t.ID, t.CartID, t.CurrentStatus, t.DateApplied, t.CreatedAt); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		if e.Action == models.ActionSnapshot {
			continue
		}
		if err := add(e.TransactionID, e.CartID, e.CurrentStatus, e.DateApplied, e.CreatedAt); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TransactionID == b.TransactionID {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.TransactionID.Hex() < b.TransactionID.Hex()
	})
	return out, nil
}

// TransactionDetails describes one transaction, falling back to its latest
// logbook entry when the document has been hard deleted.
func (s *Service) TransactionDetails(ctx context.Context, txnID primitive.ObjectID) (*TransactionDetails, error) {
	var (
		src         models.Transaction
		fromLogbook bool
	)

	txn, err := s.transactions.Get(ctx, txnID)
	switch {
	case err == nil:
		src = *txn
	case errors.Is(err, store.ErrNotFound):
		entries, lerr := s.logbook.ListByTransaction(ctx, txnID)
		if lerr != nil {
			return nil, fmt.Errorf("list logbook: %w", lerr)
		}
		if len(entries) == 0 {
			return nil, NewNotFoundError("transaction not found")
		}
		last := entries[len(entries)-1]
		src = models.Transaction{
			ID:            last.TransactionID,
			CartID:        last.CartID,
			BorrowedItems: last.BorrowedItems,
			CurrentStatus: last.CurrentStatus,
			DateApplied:   last.DateApplied,
			DateApproved:  last.DateApproved,
			PickUpDate:    last.PickUpDate,
			DateBorrowed:  last.DateBorrowed,
			DateReturned:  last.DateReturned,
			Remarks:       last.Remarks,
		}
		fromLogbook = true
	default:
		return nil, fmt.Errorf("load transaction: %w", err)
	}

	d := &TransactionDetails{
		TransactionID: src.ID,
		BorrowerID:    "Unknown",
		BorrowerName:  "Unknown",
		CurrentStatus: src.CurrentStatus,
		AppliedOn:     src.DateApplied,
		ApprovedOn:    src.DateApproved,
		PickUpDate:    src.PickUpDate,
		BorrowedOn:    src.DateBorrowed,
		ReturnedOn:    src.DateReturned,
		Remarks:       src.Remarks,
		Items:         make([]DetailItem, 0, len(src.BorrowedItems)),
		FromLogbook:   fromLogbook,
	}

	b, err := s.borrowers().of(ctx, src.CartID)
	if err != nil {
		return nil, err
	}
	if b != nil {
		d.BorrowerID = b.ID.Hex()
		d.BorrowerName = b.Name
	}

	ids := make([]primitive.ObjectID, 0, len(src.BorrowedItems))
	for _, it := range src.BorrowedItems {
		ids = append(ids, it.EquipmentID)
	}
	refs, err := s.equipment.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range src.BorrowedItems {
		ref := refs[it.EquipmentID]
		d.Items = append(d.Items, DetailItem{
			EquipmentID: it.EquipmentID,
			Name:        ref.Name(it.Name),
			Quantity:    it.Quantity,
			DateOrdered: it.DateOrdered,
			Equipment:   ref.Equipment,
		})
	}
	return d, nil
}
