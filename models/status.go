package models

// Status is the lifecycle state of a borrow transaction.
type Status string

const (
	StatusApplying Status = "applying"
	StatusApproved Status = "approved"
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"
	StatusPending  Status = "pending" // overdue, set only by the daily sweep
	StatusDeclined Status = "declined"
	StatusDeleted  Status = "deleted"
)

// Logbook action labels that are not transaction states.
const (
	ActionRestored = "restored"
	ActionSnapshot = "snapshot"
)

var allStatuses = []Status{
	StatusApplying,
	StatusApproved,
	StatusBorrowed,
	StatusReturned,
	StatusPending,
	StatusDeclined,
	StatusDeleted,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Archived reports whether the status is one restoreArchivedRecord can undo.
func (s Status) Archived() bool {
	return s == StatusDeclined || s == StatusDeleted
}

// HoldsStock reports whether equipment stock is reserved while a transaction
// sits in this status.
func (s Status) HoldsStock() bool {
	switch s {
	case StatusApproved, StatusBorrowed, StatusPending:
		return true
	}
	return false
}
