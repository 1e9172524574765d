package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) RunOverdueSweep(ctx context.Context) (int, error) {
	s.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep must run with a deadline")
	}
	return 3, s.err
}

type heldLock struct{ err error }

func (l heldLock) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, l.err
}

type recordingLock struct {
	name     string
	released bool
}

func (l *recordingLock) TryLock(_ context.Context, name string, _ time.Duration) (func(), bool, error) {
	l.name = name
	return func() { l.released = true }, true, nil
}

func TestOverdueJobRunsUnderLock(t *testing.T) {
	sweeper := &countingSweeper{}
	lock := &recordingLock{}

	(&OverdueJob{Sweeper: sweeper, Lock: lock}).Run()

	assert.EqualValues(t, 1, sweeper.calls.Load())
	assert.Equal(t, overdueLockName, lock.name)
	assert.True(t, lock.released)
}

func TestOverdueJobSkipsWithoutLock(t *testing.T) {
	sweeper := &countingSweeper{}

	(&OverdueJob{Sweeper: sweeper, Lock: heldLock{}}).Run()
	(&OverdueJob{Sweeper: sweeper, Lock: heldLock{err: errors.New("redis down")}}).Run()

	assert.EqualValues(t, 0, sweeper.calls.Load())
}

func TestOverdueJobDefaultsToNoopLock(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("boom")}

	(&OverdueJob{Sweeper: sweeper}).Run()

	assert.EqualValues(t, 1, sweeper.calls.Load())
}

func TestScheduleOverdueSweep(t *testing.T) {
	job := &OverdueJob{Sweeper: &countingSweeper{}}

	s, err := ScheduleOverdueSweep(time.UTC, "00:00", job)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	assert.True(t, s.IsRunning())
	assert.Equal(t, 1, s.Len())

	_, err = ScheduleOverdueSweep(time.UTC, "25:99", job)
	assert.Error(t, err)
}

func TestNoopLocker(t *testing.T) {
	unlock, ok, err := NoopLocker{}.TryLock(context.Background(), "x", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock()
}

func TestConnectRedisDisabled(t *testing.T) {
	rdb, err := ConnectRedis(context.Background(), "", "")
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
