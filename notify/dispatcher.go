// Package notify delivers the side effects of committed transitions: in-app
// notifications and transactional emails. Delivery is asynchronous and best
// effort; a failure here never reaches the request that caused it.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"scilems/metrics"
	"scilems/models"
	"scilems/store"

	"go.uber.org/zap"
)

// FailureCode tags side effects that gave up after their last retry.
const FailureCode = "EXTERNAL_SIDE_EFFECT_FAILURE"

var ErrStopped = errors.New("notify: dispatcher stopped")

type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// BaseBackoff is the wait after the first failed attempt; it doubles on
	// each further attempt.
	BaseBackoff    time.Duration
	AttemptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	return c
}

type Dispatcher struct {
	cfg   Config
	sink  NotificationSink
	mail  Mailer
	dir   Directory
	log   *zap.Logger
	queue chan Event

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher. mail may be nil, in which case events
// only produce in-app notifications.
func NewDispatcher(sink NotificationSink, mail Mailer, dir Directory, cfg Config, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		mail:  mail,
		dir:   dir,
		log:   log,
		queue: make(chan Event, cfg.QueueSize),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.log.Info("notification dispatcher started",
		zap.Int("workers", d.cfg.Workers), zap.Int("queue_size", d.cfg.QueueSize))
}

// Publish queues ev without blocking. When the queue is full or the
// dispatcher is stopped the event is dropped and counted.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.drop(ev, ErrStopped.Error())
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev Event, reason string) {
	metrics.QueueDroppedTotal.Inc()
	d.log.Warn("side-effect event dropped",
		zap.String("reason", reason),
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("transaction_id", ev.TransactionID.Hex()),
	)
}

// Stop closes the queue and waits for queued events to drain, or for ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for ev := range d.queue {
		d.handle(ctx, ev)
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	msg, ok := messageFor(ev)
	if !ok {
		return
	}
	resourceID := ev.TransactionID

	if msg.global {
		d.retry(ctx, "notification", ev, func(ctx context.Context) error {
			return d.sink.CreateGlobal(ctx, msg.title, msg.description, msg.resourceType, &resourceID)
		})
		return
	}

	user := d.borrower(ctx, ev)
	if user == nil {
		return
	}

	d.retry(ctx, "notification", ev, func(ctx context.Context) error {
		return d.sink.CreateForUser(ctx, user.ID, msg.title, msg.description, msg.resourceType, &resourceID)
	})

	if d.mail == nil || !hasEmail(ev.Kind) {
		return
	}
	if user.Email == "" {
		d.log.Warn("borrower has no email address", zap.String("user_id", user.ID.Hex()))
		return
	}
	d.retry(ctx, "email", ev, func(context.Context) error {
		return sendEmail(d.mail, ev, user)
	})
}

func (d *Dispatcher) borrower(ctx context.Context, ev Event) *models.User {
	var user *models.User
	d.retry(ctx, "borrower_lookup", ev, func(ctx context.Context) error {
		u, err := d.dir.Borrower(ctx, ev.CartID)
		if errors.Is(err, store.ErrNotFound) {
			d.log.Warn("borrower not found for event",
				zap.String("event_id", ev.ID), zap.String("cart_id", ev.CartID.Hex()))
			return nil
		}
		user = u
		return err
	})
	return user
}

// retry runs fn until it succeeds or MaxAttempts is reached, doubling the
// wait between attempts. The final failure is logged and counted only.
func (d *Dispatcher) retry(ctx context.Context, kind string, ev Event, fn func(context.Context) error) {
	wait := d.cfg.BaseBackoff
	var err error
attempts:
	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		err = fn(actx)
		cancel()
		if err == nil {
			metrics.SideEffectsTotal.WithLabelValues(kind, "ok").Inc()
			return
		}
		if attempt >= d.cfg.MaxAttempts {
			break
		}

		d.log.Warn("side effect failed, retrying",
			zap.String("kind", kind),
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			err = ctx.Err()
			break attempts
		case <-t.C:
		}
		wait *= 2
	}

	metrics.SideEffectsTotal.WithLabelValues(kind, "failed").Inc()
	d.log.Error("side effect failed",
		zap.String("code", FailureCode),
		zap.String("kind", kind),
		zap.String("event_id", ev.ID),
		zap.String("event", string(ev.Kind)),
		zap.String("transaction_id", ev.TransactionID.Hex()),
		zap.Error(err),
	)
}
