package lending

import (
	"testing"
	"time"

	"scilems/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTransactionHistory(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Balance", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 1})

	entries, err := f.svc.TransactionHistory(f.ctx, txn.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.DeclineApproval(f.ctx, txn.ID, "")
	require.NoError(t, err)

	entries, err = f.svc.TransactionHistory(f.ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.StatusApproved, entries[0].CurrentStatus)
	assert.Equal(t, models.StatusDeclined, entries[1].CurrentStatus)

	_, err = f.svc.TransactionHistory(f.ctx, primitive.NewObjectID())
	assert.True(t, IsCode(err, ErrCodeNotFound))
}

func TestBorrowerHistoryAndListMine(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Balance", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 1})
	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)

	entries, err := f.svc.BorrowerHistory(f.ctx, f.borrower)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	mine, err := f.svc.ListMine(f.ctx, f.borrower)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Borrower)
	assert.Equal(t, "Jane Doe", mine[0].Borrower.Name)
	require.Len(t, mine[0].Equipment, 1)
	assert.True(t, mine[0].Equipment[0].IsResolved())

	none, err := f.svc.ListMine(f.ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListQueue(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Balance", 5)
	f.insert(t, models.StatusApplying, line{eq, 1})
	f.insert(t, models.StatusDeclined, line{eq, 1})
	f.insert(t, models.StatusDeleted, line{eq, 1})

	applying, err := f.svc.ListQueue(f.ctx, "applying")
	require.NoError(t, err)
	assert.Len(t, applying, 1)

	archived, err := f.svc.ListQueue(f.ctx, QueueArchived)
	require.NoError(t, err)
	assert.Len(t, archived, 2)

	_, err = f.svc.ListQueue(f.ctx, "lost")
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestOverallTimelineDeduplicates(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Balance", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 1})
	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CreateSnapshot(f.ctx, txn.ID)
	require.NoError(t, err)

	timeline, err := f.svc.OverallTimeline(f.ctx)
	require.NoError(t, err)
	require.Len(t, timeline, 1, "current approved and logbook approved collapse")
	assert.Equal(t, models.StatusApproved, timeline[0].Status)
	assert.Equal(t, "Jane Doe", timeline[0].BorrowerName)
}

func TestTransactionDetailsFallsBackToLogbook(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Balance", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 2})
	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)

	live, err := f.svc.TransactionDetails(f.ctx, txn.ID)
	require.NoError(t, err)
	assert.False(t, live.FromLogbook)
	assert.Equal(t, "Balance", live.Items[0].Name)

	require.NoError(t, f.svc.CancelApplication(f.ctx, f.borrower, txn.ID))
	f.mem.DeleteEquipment(eq)

	gone, err := f.svc.TransactionDetails(f.ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, gone.FromLogbook)
	assert.Equal(t, models.StatusApproved, gone.CurrentStatus)
	assert.Equal(t, "Jane Doe", gone.BorrowerName)
	require.Len(t, gone.Items, 1)
	assert.Equal(t, "item", gone.Items[0].Name, "falls back to the snapshot name")

	_, err = f.svc.TransactionDetails(f.ctx, primitive.NewObjectID())
	assert.True(t, IsCode(err, ErrCodeNotFound))
}

func TestCreateSystemSnapshot(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Balance", 5)
	live := f.insert(t, models.StatusApplying, line{eq, 1})
	f.insert(t, models.StatusDeleted, line{eq, 1})

	n, err := f.svc.CreateSystemSnapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries := f.history(t, live.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionSnapshot, entries[0].Action)
	assert.Equal(t, models.StatusApplying, entries[0].CurrentStatus)
}
