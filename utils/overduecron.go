package utils

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const overdueLockName = "overdue-sweep"

type OverdueSweeper interface {
	RunOverdueSweep(ctx context.Context) (int, error)
}

// OverdueJob runs the overdue sweep under a lock so only one replica flips
// records on a given day.
type OverdueJob struct {
	Sweeper OverdueSweeper
	Lock    Locker
	Log     *zap.Logger
	Timeout time.Duration
}

func (j *OverdueJob) Run() {
	log := j.Log
	if log == nil {
		log = zap.NewNop()
	}
	lock := j.Lock
	if lock == nil {
		lock = NoopLocker{}
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	unlock, ok, err := lock.TryLock(ctx, overdueLockName, timeout)
	if err != nil {
		log.Error("overdue sweep: lock failed", zap.Error(err))
		return
	}
	if !ok {
		log.Info("overdue sweep: another replica holds the lock")
		return
	}
	defer unlock()

	start := time.Now()
	n, err := j.Sweeper.RunOverdueSweep(ctx)
	if err != nil {
		log.Error("overdue sweep failed", zap.Int("updated", n), zap.Error(err))
		return
	}
	log.Info("overdue sweep completed", zap.Int("updated", n), zap.Duration("took", time.Since(start)))
}

// ScheduleOverdueSweep runs job every day at the given "HH:MM" in loc. The
// returned scheduler is already started.
func ScheduleOverdueSweep(loc *time.Location, at string, job *OverdueJob) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(loc)
	if _, err := s.Every(1).Day().At(at).Do(job.Run); err != nil {
		return nil, err
	}
	s.StartAsync()
	return s, nil
}
