package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"scilems/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory keeps every collection in process behind one mutex. It backs the
// STORE_DRIVER=memory mode and the package tests of the layers above.
type Memory struct {
	mu            sync.Mutex
	equipment     map[primitive.ObjectID]models.Equipment
	transactions  map[primitive.ObjectID]models.Transaction
	logbook       []models.LogbookEntry
	carts         map[primitive.ObjectID]models.Cart
	notifications []models.Notification
	users         map[primitive.ObjectID]models.User
	admins        map[primitive.ObjectID]models.Admin
	labRequests   map[primitive.ObjectID]models.LabRequest
}

func NewMemory() *Memory {
	return &Memory{
		equipment:    map[primitive.ObjectID]models.Equipment{},
		transactions: map[primitive.ObjectID]models.Transaction{},
		carts:        map[primitive.ObjectID]models.Cart{},
		users:        map[primitive.ObjectID]models.User{},
		admins:       map[primitive.ObjectID]models.Admin{},
		labRequests:  map[primitive.ObjectID]models.LabRequest{},
	}
}

func (m *Memory) Repos() Repos {
	return Repos{
		Equipment:     memEquipment{m},
		Transactions:  memTransactions{m},
		Logbook:       memLogbook{m},
		Carts:         memCarts{m},
		Notifications: memNotifications{m},
		Users:         memUsers{m},
		LabRequests:   memLabRequests{m},
	}
}

// PutEquipment stores e, assigning an id when it has none.
func (m *Memory) PutEquipment(e models.Equipment) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	m.equipment[e.ID] = e
	return e.ID
}

func (m *Memory) DeleteEquipment(id primitive.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.equipment, id)
}

// StockOf returns the current stock and whether the equipment exists.
func (m *Memory) StockOf(id primitive.ObjectID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.equipment[id]
	return e.Stock, ok
}

func (m *Memory) PutUser(u models.User) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = u
	return u.ID
}

func (m *Memory) PutAdmin(a models.Admin) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.admins[a.ID] = a
	return a.ID
}

func copyItems(items []models.BorrowedItem) []models.BorrowedItem {
	if items == nil {
		return nil
	}
	out := make([]models.BorrowedItem, len(items))
	copy(out, items)
	return out
}

func copyTxn(t models.Transaction) *models.Transaction {
	t.BorrowedItems = copyItems(t.BorrowedItems)
	return &t
}

func copyCart(c models.Cart) *models.Cart {
	items := make([]models.CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return &c
}

type memEquipment struct{ m *Memory }

func (r memEquipment) Get(_ context.Context, id primitive.ObjectID) (*models.Equipment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.equipment[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r memEquipment) Reserve(_ context.Context, id primitive.ObjectID, qty int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.equipment[id]
	if !ok {
		return ErrNotFound
	}
	if e.Stock < qty {
		return ErrInsufficientStock
	}
	e.Stock -= qty
	e.DateUpdated = time.Now()
	r.m.equipment[id] = e
	return nil
}

func (r memEquipment) Release(_ context.Context, id primitive.ObjectID, qty int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.equipment[id]
	if !ok {
		return ErrNotFound
	}
	e.Stock += qty
	e.DateUpdated = time.Now()
	r.m.equipment[id] = e
	return nil
}

func (r memEquipment) Resolve(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.EquipmentRef, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make(map[primitive.ObjectID]models.EquipmentRef, len(ids))
	for _, id := range ids {
		if e, ok := r.m.equipment[id]; ok {
			out[id] = models.Resolved(&e)
			continue
		}
		out[id] = models.Unresolved(id)
	}
	return out, nil
}

type memTransactions struct{ m *Memory }

func inStatuses(s models.Status, set []models.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (r memTransactions) Get(_ context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTxn(t), nil
}

func (r memTransactions) Insert(_ context.Context, t *models.Transaction) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	r.m.transactions[t.ID] = *copyTxn(*t)
	return nil
}

func (r memTransactions) Update(_ context.Context, id primitive.ObjectID, from []models.Status, upd models.TransactionUpdate) (*models.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if len(from) > 0 && !inStatuses(t.CurrentStatus, from) {
		return nil, ErrStatusConflict
	}
	upd.BorrowedItems = copyItems(upd.BorrowedItems)
	t = upd.ApplyTo(t)
	r.m.transactions[id] = t
	return copyTxn(t), nil
}

func (r memTransactions) Delete(_ context.Context, id primitive.ObjectID, from []models.Status) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.transactions[id]
	if !ok {
		return ErrNotFound
	}
	if len(from) > 0 && !inStatuses(t.CurrentStatus, from) {
		return ErrStatusConflict
	}
	delete(r.m.transactions, id)
	return nil
}

func (r memTransactions) FindOverdue(_ context.Context, before time.Time) ([]models.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Transaction{}
	for _, t := range r.m.transactions {
		if t.CurrentStatus == models.StatusBorrowed && t.ReturnDate != nil && t.ReturnDate.Before(before) {
			out = append(out, *copyTxn(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReturnDate.Before(*out[j].ReturnDate) })
	return out, nil
}

func txnSortKey(t models.Transaction, field string) time.Time {
	var p *time.Time
	switch field {
	case "updatedAt":
		return t.UpdatedAt
	case "dateApplied":
		p = t.DateApplied
	case "dateApproved":
		p = t.DateApproved
	case "pickUpDate":
		p = t.PickUpDate
	case "dateBorrowed":
		p = t.DateBorrowed
	case "returnDate":
		p = t.ReturnDate
	case "dateReturned":
		p = t.DateReturned
	case "dateArchived":
		p = t.DateArchived
	default:
		return t.CreatedAt
	}
	if p == nil {
		return time.Time{}
	}
	return *p
}

func (r memTransactions) List(_ context.Context, f TransactionFilter) ([]models.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	carts := map[primitive.ObjectID]bool{}
	for _, id := range f.CartIDs {
		carts[id] = true
	}

	out := []models.Transaction{}
	for _, t := range r.m.transactions {
		if len(f.Statuses) > 0 && !inStatuses(t.CurrentStatus, f.Statuses) {
			continue
		}
		if inStatuses(t.CurrentStatus, f.ExcludeStatuses) {
			continue
		}
		if len(carts) > 0 && !carts[t.CartID] {
			continue
		}
		out = append(out, *copyTxn(t))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := txnSortKey(out[i], f.SortBy), txnSortKey(out[j], f.SortBy)
		if a.Equal(b) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		if f.Desc {
			return a.After(b)
		}
		return a.Before(b)
	})
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memLogbook struct{ m *Memory }

func (r memLogbook) Append(_ context.Context, e *models.LogbookEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	cp := *e
	cp.BorrowedItems = copyItems(e.BorrowedItems)
	r.m.logbook = append(r.m.logbook, cp)
	return nil
}

func (r memLogbook) filter(keep func(models.LogbookEntry) bool) []models.LogbookEntry {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.LogbookEntry{}
	for _, e := range r.m.logbook {
		if keep(e) {
			e.BorrowedItems = copyItems(e.BorrowedItems)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memLogbook) ListByTransaction(_ context.Context, txnID primitive.ObjectID) ([]models.LogbookEntry, error) {
	return r.filter(func(e models.LogbookEntry) bool { return e.TransactionID == txnID }), nil
}

func (r memLogbook) ListByCarts(_ context.Context, cartIDs []primitive.ObjectID) ([]models.LogbookEntry, error) {
	set := map[primitive.ObjectID]bool{}
	for _, id := range cartIDs {
		set[id] = true
	}
	return r.filter(func(e models.LogbookEntry) bool { return set[e.CartID] }), nil
}

func (r memLogbook) ListAll(_ context.Context) ([]models.LogbookEntry, error) {
	return r.filter(func(models.LogbookEntry) bool { return true }), nil
}

type memCarts struct{ m *Memory }

func (r memCarts) Get(_ context.Context, id primitive.ObjectID) (*models.Cart, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCart(c), nil
}

func (r memCarts) FindByBorrower(_ context.Context, borrowerID primitive.ObjectID) (*models.Cart, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.carts {
		if c.BorrowerID == borrowerID {
			return copyCart(c), nil
		}
	}
	return nil, ErrNotFound
}

func (r memCarts) ListIDsByBorrower(_ context.Context, borrowerID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []primitive.ObjectID
	for id, c := range r.m.carts {
		if c.BorrowerID == borrowerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memCarts) Save(_ context.Context, c *models.Cart) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.ID.IsZero() {
		for id, existing := range r.m.carts {
			if existing.BorrowerID == c.BorrowerID {
				c.ID = id
				break
			}
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	r.m.carts[c.ID] = *copyCart(*c)
	return nil
}

type memNotifications struct{ m *Memory }

func (r memNotifications) Insert(_ context.Context, n *models.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	r.m.notifications = append(r.m.notifications, *n)
	return nil
}

func (r memNotifications) list(keep func(models.Notification) bool) []models.Notification {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.m.notifications {
		if keep(n) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memNotifications) ListForUser(_ context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	return r.list(func(n models.Notification) bool {
		return n.Type == models.NotificationUserSpecific && n.UserID != nil && *n.UserID == userID
	}), nil
}

func (r memNotifications) ListGlobal(_ context.Context) ([]models.Notification, error) {
	return r.list(func(n models.Notification) bool { return n.Type == models.NotificationGlobal }), nil
}

func (r memNotifications) MarkRead(_ context.Context, id primitive.ObjectID) (*models.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.notifications {
		if r.m.notifications[i].ID == id {
			r.m.notifications[i].IsRead = true
			n := r.m.notifications[i]
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

func (r memNotifications) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var changed int64
	for i, n := range r.m.notifications {
		if n.Type == models.NotificationUserSpecific && n.UserID != nil && *n.UserID == userID && !n.IsRead {
			r.m.notifications[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

type memUsers struct{ m *Memory }

func (r memUsers) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memUsers) CountUsers(context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.users)), nil
}

func (r memUsers) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memUsers) FindAdminByUsername(_ context.Context, username string) (*models.Admin, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.admins {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}
