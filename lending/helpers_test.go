package lending

import (
	"context"
	"sync"
	"testing"
	"time"

	"scilems/models"
	"scilems/notify"
	"scilems/store"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	ctx      context.Context
	mem      *store.Memory
	repos    store.Repos
	svc      *Service
	clock    *fixedClock
	events   *recorder
	borrower primitive.ObjectID
	cart     *models.Cart
}

var testNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	repos := mem.Repos()
	clock := &fixedClock{t: testNow}
	events := &recorder{}
	svc := NewService(repos, events, zap.NewNop()).WithClock(clock).WithLocation(time.UTC)

	borrower := mem.PutUser(models.User{
		Username:  "jdoe",
		Email:     "jane@example.edu",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      models.RoleUser,
	})
	cart := &models.Cart{BorrowerID: borrower}
	require.NoError(t, repos.Carts.Save(context.Background(), cart))

	return &fixture{
		ctx:      context.Background(),
		mem:      mem,
		repos:    repos,
		svc:      svc,
		clock:    clock,
		events:   events,
		borrower: borrower,
		cart:     cart,
	}
}

func (f *fixture) equipment(name string, stock int) primitive.ObjectID {
	return f.mem.PutEquipment(models.Equipment{Name: name, Stock: stock})
}

func (f *fixture) stock(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	n, ok := f.mem.StockOf(id)
	require.True(t, ok)
	return n
}

type line struct {
	id  primitive.ObjectID
	qty int
}

// insert stores a transaction in the given status without going through the
// cart, so tests can set up requests larger than current stock.
func (f *fixture) insert(t *testing.T, status models.Status, lines ...line) *models.Transaction {
	t.Helper()
	items := make([]models.BorrowedItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.BorrowedItem{EquipmentID: l.id, Name: "item", Quantity: l.qty, DateOrdered: testNow})
	}
	txn := &models.Transaction{
		CartID:        f.cart.ID,
		BorrowedItems: items,
		CurrentStatus: status,
		DateApplied:   models.TimePtr(testNow),
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	require.NoError(t, f.repos.Transactions.Insert(f.ctx, txn))
	return txn
}

func (f *fixture) history(t *testing.T, id primitive.ObjectID) []models.LogbookEntry {
	t.Helper()
	entries, err := f.repos.Logbook.ListByTransaction(f.ctx, id)
	require.NoError(t, err)
	return entries
}
