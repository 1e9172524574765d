package notify

import (
	"fmt"
	"strings"

	"scilems/models"
)

const dateLayout = "Jan 2, 2006"

type message struct {
	title        string
	description  string
	resourceType string
	global       bool
}

func itemSummary(items []models.BorrowedItem) string {
	if len(items) == 0 {
		return "equipment"
	}
	name := items[0].Name
	if name == "" {
		name = "equipment"
	}
	if len(items) == 1 {
		return name
	}
	return fmt.Sprintf("%s and %d more", name, len(items)-1)
}

// messageFor returns the in-app notification for an event kind. The second
// result is false for kinds that have none.
func messageFor(ev Event) (message, bool) {
	switch ev.Kind {
	case KindSubmitted:
		return message{
			title:        "New Borrow Request",
			description:  fmt.Sprintf("A new borrow request for %s is waiting for approval.", itemSummary(ev.Items)),
			resourceType: models.ResourceApplication,
			global:       true,
		}, true
	case KindApproved:
		return message{
			title:        "Borrow Request Approved",
			description:  fmt.Sprintf("Your borrow request for %s has been approved.", itemSummary(ev.Items)),
			resourceType: models.ResourceTransaction,
		}, true
	case KindApplicationDeclined:
		return message{
			title:        "Borrow Request Declined",
			description:  "Your borrow request has been declined. Remarks: " + ev.Remarks,
			resourceType: models.ResourceTransaction,
		}, true
	case KindBorrowed:
		due := "the agreed date"
		if ev.ReturnDate != nil {
			due = ev.ReturnDate.Format(dateLayout)
		}
		return message{
			title:        "Items Borrowed",
			description:  fmt.Sprintf("You have successfully borrowed the items. Please return them by %s.", due),
			resourceType: models.ResourceTransaction,
		}, true
	case KindApprovalDeclined:
		return message{
			title:        "Approval Declined",
			description:  "Your approval request was declined. Remarks: " + ev.Remarks,
			resourceType: models.ResourceTransaction,
		}, true
	case KindReturned:
		return message{
			title:        "Items Returned",
			description:  "Your return has been confirmed. Remarks: " + ev.Remarks,
			resourceType: models.ResourceTransaction,
		}, true
	case KindRestored:
		desc := "Your transaction has been restored."
		if r := strings.TrimSpace(ev.Remarks); r != "" {
			desc += " Remarks: " + r
		}
		return message{
			title:        "Transaction Restored",
			description:  desc,
			resourceType: models.ResourceTransaction,
		}, true
	case KindOverdue:
		due := "its due date"
		if ev.ReturnDate != nil {
			due = ev.ReturnDate.Format(dateLayout)
		}
		return message{
			title:        "Items Overdue",
			description:  fmt.Sprintf("Your borrowed items were due on %s. Please return them as soon as possible.", due),
			resourceType: models.ResourceTransaction,
		}, true
	}
	return message{}, false
}

func hasEmail(k Kind) bool {
	switch k {
	case KindApproved, KindApplicationDeclined, KindBorrowed, KindOverdue:
		return true
	}
	return false
}

func sendEmail(m Mailer, ev Event, u *models.User) error {
	txnID := ev.TransactionID.Hex()
	name := u.FullName()
	switch ev.Kind {
	case KindApproved:
		return m.SendApproved(u.Email, name, txnID, ev.Items, ev.PickUpDate)
	case KindApplicationDeclined:
		return m.SendRejected(u.Email, name, txnID, ev.Remarks)
	case KindBorrowed:
		return m.SendBorrowed(u.Email, name, txnID, ev.Items, ev.ReturnDate)
	case KindOverdue:
		return m.SendOverdue(u.Email, name, txnID, ev.ReturnDate)
	}
	return nil
}
