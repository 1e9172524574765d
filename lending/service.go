// Package lending holds the borrow transaction lifecycle: the state machine,
// the stock ledger it drives, the audit logbook it writes and the cart that
// feeds it.
package lending

import (
	"time"

	"scilems/notify"
	"scilems/store"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Publisher receives side-effect events once a transition has been
// persisted. Publish must not block.
type Publisher interface {
	Publish(ev notify.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(notify.Event) {}

type Service struct {
	equipment    store.EquipmentRepository
	transactions store.TransactionRepository
	logbook      store.LogbookRepository
	carts        store.CartRepository
	users        store.UserRepository
	labRequests  store.LabRequestRepository

	events Publisher
	clock  Clock
	loc    *time.Location
	log    *zap.Logger
}

func NewService(repos store.Repos, events Publisher, log *zap.Logger) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		equipment:    repos.Equipment,
		transactions: repos.Transactions,
		logbook:      repos.Logbook,
		carts:        repos.Carts,
		users:        repos.Users,
		labRequests:  repos.LabRequests,
		events:       events,
		clock:        realClock{},
		loc:          time.Local,
		log:          log,
	}
}

func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

// WithLocation sets the zone that decides where "today" starts for the
// overdue sweep and pick-up date checks.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

func (s *Service) startOfToday() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}
