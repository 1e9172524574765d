package lending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scilems/metrics"
	"scilems/models"
	"scilems/notify"
	"scilems/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type failAppendLogbook struct {
	store.LogbookRepository
}

func (failAppendLogbook) Append(context.Context, *models.LogbookEntry) error {
	return errors.New("mongo down")
}

func TestTransitionCommitsWhenLogbookAppendFails(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 2})

	repos := f.repos
	repos.Logbook = failAppendLogbook{f.repos.Logbook}
	svc := NewService(repos, f.events, zap.NewNop()).WithClock(f.clock)

	failed := metrics.LogbookAppendFailedTotal.WithLabelValues("confirm_application")
	before := testutil.ToFloat64(failed)

	got, err := svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.CurrentStatus)
	assert.Equal(t, 3, f.stock(t, eq))
	assert.Empty(t, f.history(t, txn.ID))
	assert.Equal(t, before+1, testutil.ToFloat64(failed))
}

func TestConfirmApplicationReservesStock(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 3})

	got, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, got.CurrentStatus)
	assert.Equal(t, models.StatusApplying, got.LastStatus)
	require.NotNil(t, got.DateApproved)
	assert.Equal(t, 2, f.stock(t, eq))

	entries := f.history(t, txn.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusApplying, entries[0].LastStatus)
	assert.Equal(t, models.StatusApproved, entries[0].CurrentStatus)
	assert.Equal(t, "approved", entries[0].Action)
	assert.Equal(t, []notify.Kind{notify.KindApproved}, f.events.kinds())
}

func TestDeclineApprovalReleasesStock(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 3})
	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, eq))

	got, err := f.svc.DeclineApproval(f.ctx, txn.ID, "")
	require.NoError(t, err)

	assert.Equal(t, 5, f.stock(t, eq))
	assert.Equal(t, models.StatusDeclined, got.CurrentStatus)
	assert.Equal(t, models.StatusApproved, got.LastStatus)
	assert.NotNil(t, got.DateArchived)
	assert.Equal(t, defaultRemarks, got.Remarks)

	entries := f.history(t, txn.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, models.StatusApproved, entries[1].LastStatus)
	assert.Equal(t, models.StatusDeclined, entries[1].CurrentStatus)
}

func TestConfirmApplicationInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 2)
	txn := f.insert(t, models.StatusApplying, line{eq, 10})

	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	assert.True(t, IsCode(err, ErrCodeInsufficientStock), "got %v", err)

	assert.Equal(t, 2, f.stock(t, eq))
	assert.Empty(t, f.history(t, txn.ID))
	stored, err := f.repos.Transactions.Get(f.ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplying, stored.CurrentStatus)
	assert.Empty(t, f.events.kinds())
}

func TestConfirmApplicationAllOrNothing(t *testing.T) {
	f := newFixture(t)
	plenty := f.equipment("Beaker", 10)
	scarce := f.equipment("Centrifuge", 1)
	txn := f.insert(t, models.StatusApplying, line{plenty, 4}, line{scarce, 2})

	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	assert.True(t, IsCode(err, ErrCodeInsufficientStock))
	assert.Equal(t, 10, f.stock(t, plenty))
	assert.Equal(t, 1, f.stock(t, scarce))
}

func TestConfirmApplicationAggregatesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Pipette", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 3}, line{eq, 3})

	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	assert.True(t, IsCode(err, ErrCodeInsufficientStock))
	assert.Equal(t, 5, f.stock(t, eq))
}

func TestConfirmApplicationMissingEquipment(t *testing.T) {
	f := newFixture(t)
	txn := f.insert(t, models.StatusApplying, line{primitive.NewObjectID(), 1})

	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	assert.True(t, IsCode(err, ErrCodeNotFound))
}

func TestConfirmApplicationSetsPickUpDate(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Scale", 1)
	txn := f.insert(t, models.StatusApplying, line{eq, 1})
	pickUp := testNow.AddDate(0, 0, 2)

	got, err := f.svc.ConfirmApplication(f.ctx, txn.ID, &pickUp)
	require.NoError(t, err)
	require.NotNil(t, got.PickUpDate)
	assert.True(t, got.PickUpDate.Equal(pickUp))
}

func TestTransitionOnUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeclineApplication(f.ctx, primitive.NewObjectID(), "")
	assert.True(t, IsCode(err, ErrCodeNotFound))
}

func TestTransitionFromWrongState(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Scale", 3)
	txn := f.insert(t, models.StatusBorrowed, line{eq, 1})

	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	assert.True(t, IsCode(err, ErrCodeInvalidTransition))
	_, err = f.svc.DeclineApproval(f.ctx, txn.ID, "")
	assert.True(t, IsCode(err, ErrCodeInvalidTransition))
	assert.Equal(t, 3, f.stock(t, eq))
	assert.Empty(t, f.history(t, txn.ID))
}

func TestDeclineApplication(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Scale", 3)
	txn := f.insert(t, models.StatusApplying, line{eq, 2})

	got, err := f.svc.DeclineApplication(f.ctx, txn.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, got.CurrentStatus)
	assert.Equal(t, defaultRemarks, got.Remarks)
	assert.Equal(t, 3, f.stock(t, eq))
	assert.Equal(t, []notify.Kind{notify.KindApplicationDeclined}, f.events.kinds())

	got, err = f.svc.DeclineApplication(f.ctx, f.insert(t, models.StatusApplying, line{eq, 1}).ID, "Lab closed")
	require.NoError(t, err)
	assert.Equal(t, "Lab closed", got.Remarks)
}

func TestConfirmBorrowedRequiresReturnDate(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Scale", 3)
	txn := f.insert(t, models.StatusApproved, line{eq, 1})

	_, err := f.svc.ConfirmBorrowedStatus(f.ctx, txn.ID, nil)
	assert.True(t, IsCode(err, ErrCodeValidation))

	due := testNow.AddDate(0, 0, 7)
	got, err := f.svc.ConfirmBorrowedStatus(f.ctx, txn.ID, &due)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBorrowed, got.CurrentStatus)
	assert.True(t, got.ReturnDate.Equal(due))
	assert.NotNil(t, got.DateBorrowed)
}

func TestConfirmReturnRestocksEveryLine(t *testing.T) {
	f := newFixture(t)
	a := f.equipment("Flask", 4)
	b := f.equipment("Burner", 0)
	txn := f.insert(t, models.StatusBorrowed, line{a, 1}, line{b, 3})
	returned := testNow

	got, err := f.svc.ConfirmReturn(f.ctx, txn.ID, &returned, "All good")
	require.NoError(t, err)

	assert.Equal(t, models.StatusReturned, got.CurrentStatus)
	assert.Equal(t, 5, f.stock(t, a))
	assert.Equal(t, 3, f.stock(t, b))
	for _, it := range got.BorrowedItems {
		assert.Equal(t, it.Quantity, it.ReturnedQuantity)
	}
	entries := f.history(t, txn.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusBorrowed, entries[0].LastStatus)
	assert.Equal(t, models.StatusReturned, entries[0].CurrentStatus)
}

func TestConfirmReturnValidation(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Flask", 1)
	txn := f.insert(t, models.StatusBorrowed, line{eq, 1})
	returned := testNow

	_, err := f.svc.ConfirmReturn(f.ctx, txn.ID, nil, "ok")
	assert.True(t, IsCode(err, ErrCodeValidation))
	_, err = f.svc.ConfirmReturn(f.ctx, txn.ID, &returned, "")
	assert.True(t, IsCode(err, ErrCodeValidation))
	assert.Equal(t, 1, f.stock(t, eq))
}

func TestConfirmReturnFromPending(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Flask", 0)
	txn := f.insert(t, models.StatusPending, line{eq, 2})
	returned := testNow

	got, err := f.svc.ConfirmReturn(f.ctx, txn.ID, &returned, "late")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.LastStatus)
	assert.Equal(t, 2, f.stock(t, eq))
}

func TestReturnToleratesMissingEquipment(t *testing.T) {
	f := newFixture(t)
	kept := f.equipment("Flask", 0)
	gone := f.equipment("Retired", 0)
	txn := f.insert(t, models.StatusBorrowed, line{gone, 1}, line{kept, 2})
	f.mem.DeleteEquipment(gone)
	returned := testNow

	_, err := f.svc.ConfirmReturn(f.ctx, txn.ID, &returned, "ok")
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, kept))
}

func TestRemoveReleasesOnlyHeldStock(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Scale", 5)

	applying := f.insert(t, models.StatusApplying, line{eq, 2})
	got, err := f.svc.RemoveBorrowedRecords(f.ctx, applying.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, got.CurrentStatus)
	assert.NotNil(t, got.DateArchived)
	assert.Equal(t, "No remarks provided", got.Remarks)
	assert.Equal(t, 5, f.stock(t, eq))

	approved := f.insert(t, models.StatusApplying, line{eq, 2})
	_, err = f.svc.ConfirmApplication(f.ctx, approved.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 3, f.stock(t, eq))

	got, err = f.svc.RemoveBorrowedRecords(f.ctx, approved.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, "duplicate", got.Remarks)
	assert.Equal(t, 5, f.stock(t, eq))

	returned := f.insert(t, models.StatusReturned, line{eq, 1})
	_, err = f.svc.RemoveBorrowedRecords(f.ctx, returned.ID, "")
	assert.True(t, IsCode(err, ErrCodeInvalidTransition))
}

func TestRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 3})

	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.DeclineApproval(f.ctx, txn.ID, "")
	require.NoError(t, err)
	require.Equal(t, 5, f.stock(t, eq))

	got, err := f.svc.RestoreArchivedRecord(f.ctx, txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.CurrentStatus)
	assert.Equal(t, models.StatusDeclined, got.LastStatus)
	assert.Nil(t, got.DateArchived)
	assert.Equal(t, 2, f.stock(t, eq))

	entries := f.history(t, txn.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, models.ActionRestored, entries[2].Action)
	assert.Equal(t, models.StatusDeclined, entries[2].LastStatus)
	assert.Equal(t, models.StatusApproved, entries[2].CurrentStatus)

	_, err = f.svc.DeclineApproval(f.ctx, txn.ID, "")
	require.NoError(t, err)
	again, err := f.svc.RestoreArchivedRecord(f.ctx, txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, again.CurrentStatus)
	assert.Equal(t, 2, f.stock(t, eq))
}

func TestRestoreDeclinedApplicationTakesNoStock(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 5)
	txn := f.insert(t, models.StatusApplying, line{eq, 3})
	_, err := f.svc.DeclineApplication(f.ctx, txn.ID, "")
	require.NoError(t, err)

	got, err := f.svc.RestoreArchivedRecord(f.ctx, txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplying, got.CurrentStatus)
	assert.Equal(t, 5, f.stock(t, eq))
}

func TestRestoreFailsWhenStockIsGone(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 3)
	txn := f.insert(t, models.StatusApplying, line{eq, 3})
	_, err := f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.DeclineApproval(f.ctx, txn.ID, "")
	require.NoError(t, err)

	other := f.insert(t, models.StatusApplying, line{eq, 2})
	_, err = f.svc.ConfirmApplication(f.ctx, other.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.RestoreArchivedRecord(f.ctx, txn.ID, "")
	assert.True(t, IsCode(err, ErrCodeInsufficientStock))
	stored, err := f.repos.Transactions.Get(f.ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, stored.CurrentStatus)
	assert.Equal(t, 1, f.stock(t, eq))
}

func TestRestoreRequiresArchivedRecord(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 3)
	txn := f.insert(t, models.StatusApproved, line{eq, 1})

	_, err := f.svc.RestoreArchivedRecord(f.ctx, txn.ID, "")
	assert.True(t, IsCode(err, ErrCodeInvalidTransition))
}

func TestConcurrentApprovalsSucceedOnce(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 10)
	txn := f.insert(t, models.StatusApplying, line{eq, 3})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ConfirmApplication(f.ctx, txn.ID, nil)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		// losers either saw the committed status or found the stock held by
		// another in-flight approval
		code := CodeOf(err)
		assert.Contains(t, []string{ErrCodeInvalidTransition, ErrCodeInsufficientStock}, code, "got %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, f.stock(t, eq))
	assert.Len(t, f.history(t, txn.ID), 1)
}

func TestApprovalsCompeteForStock(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 5)
	first := f.insert(t, models.StatusApplying, line{eq, 3})
	second := f.insert(t, models.StatusApplying, line{eq, 3})

	_, err := f.svc.ConfirmApplication(f.ctx, first.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.ConfirmApplication(f.ctx, second.ID, nil)
	assert.True(t, IsCode(err, ErrCodeInsufficientStock))
	assert.Equal(t, 2, f.stock(t, eq))
}

func TestEventsCarryCommittedState(t *testing.T) {
	f := newFixture(t)
	eq := f.equipment("Microscope", 5)
	txn := f.insert(t, models.StatusApproved, line{eq, 1})
	due := testNow.Add(72 * time.Hour)

	_, err := f.svc.ConfirmBorrowedStatus(f.ctx, txn.ID, &due)
	require.NoError(t, err)

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, notify.KindBorrowed, ev.Kind)
	assert.Equal(t, txn.ID, ev.TransactionID)
	assert.Equal(t, f.cart.ID, ev.CartID)
	assert.Equal(t, models.StatusBorrowed, ev.Status)
	assert.NotEmpty(t, ev.ID)
	require.NotNil(t, ev.ReturnDate)
	assert.True(t, ev.ReturnDate.Equal(due))
}
