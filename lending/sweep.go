package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scilems/metrics"
	"scilems/models"
	"scilems/notify"

	"go.uber.org/zap"
)

var markOverdue = transition{
	action: "mark_overdue",
	verb:   "mark as overdue",
	from:   []models.Status{models.StatusBorrowed},
	event:  notify.KindOverdue,
	plan: func(models.Transaction, time.Time) (models.TransactionUpdate, stockEffect, error) {
		return models.TransactionUpdate{
			CurrentStatus: models.StatusPtr(models.StatusPending),
			LastStatus:    models.StatusPtr(models.StatusBorrowed),
		}, stockNone, nil
	},
}

// RunOverdueSweep moves every borrowed transaction whose return date is
// before the start of today to pending. Each flip is conditional on the
// transaction still being borrowed, so a second run finds nothing to do.
func (s *Service) RunOverdueSweep(ctx context.Context) (int, error) {
	cutoff := s.startOfToday()
	candidates, err := s.transactions.FindOverdue(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue transactions: %w", err)
	}

	updated := 0
	var errs []error
	for _, txn := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := s.commit(ctx, txn, markOverdue)
		metrics.Transition(markOverdue.action, err)
		switch {
		case err == nil:
			updated++
			metrics.OverdueMarkedTotal.Inc()
		case IsCode(err, ErrCodeInvalidTransition), IsCode(err, ErrCodeNotFound):
			// moved on since the query ran
		default:
			s.log.Error("overdue flip failed", zap.String("transaction_id", txn.ID.Hex()), zap.Error(err))
			errs = append(errs, err)
		}
	}

	s.log.Info("overdue sweep finished",
		zap.Time("cutoff", cutoff), zap.Int("candidates", len(candidates)), zap.Int("updated", updated))
	return updated, errors.Join(errs...)
}
