package controllers

import (
	"net/http"

	"scilems/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminController struct{ *Srv }

func NewAdminController(s *Srv) *AdminController { return &AdminController{Srv: s} }

type transitionInput struct {
	PickUpDate   string `json:"pickUpDate"`
	ReturnDate   string `json:"returnDate"`
	DateReturned string `json:"dateReturned"`
	Remarks      string `json:"remarks"`
}

// ListTransactions serves one admin queue: a status or "archived".
func (ac *AdminController) ListTransactions(c *gin.Context) {
	views, err := ac.Lending.ListQueue(c.Request.Context(), c.Param("status"))
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": views})
}

// transition wraps the shared parse/run/respond steps of the admin actions.
func (ac *AdminController) transition(c *gin.Context, message string, run func(primitive.ObjectID, transitionInput) (*models.Transaction, error)) {
	id, ok := objectIDParam(c, "transactionId")
	if !ok {
		return
	}
	var in transitionInput
	if !bindOptional(c, &in) {
		return
	}
	txn, err := run(id, in)
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "transaction": txn})
}

func (ac *AdminController) ConfirmApplication(c *gin.Context) {
	ac.transition(c, "Application approved", func(id primitive.ObjectID, in transitionInput) (*models.Transaction, error) {
		pickUp, err := ac.parseDate(in.PickUpDate)
		if err != nil {
			return nil, err
		}
		return ac.Lending.ConfirmApplication(c.Request.Context(), id, pickUp)
	})
}

func (ac *AdminController) DeclineApplication(c *gin.Context) {
	ac.transition(c, "Application declined", func(id primitive.ObjectID, in transitionInput) (*models.Transaction, error) {
		return ac.Lending.DeclineApplication(c.Request.Context(), id, in.Remarks)
	})
}

func (ac *AdminController) ConfirmBorrowed(c *gin.Context) {
	ac.transition(c, "Items marked as borrowed", func(id primitive.ObjectID, in transitionInput) (*models.Transaction, error) {
		due, err := ac.parseDate(in.ReturnDate)
		if err != nil {
			return nil, err
		}
		return ac.Lending.ConfirmBorrowedStatus(c.Request.Context(), id, due)
	})
}

func (ac *AdminController) DeclineApproval(c *gin.Context) {
	ac.transition(c, "Approval declined", func(id primitive.ObjectID, in transitionInput) (*models.Transaction, error) {
		return ac.Lending.DeclineApproval(c.Request.Context(), id, in.Remarks)
	})
}

func (ac *AdminController) ConfirmReturn(c *gin.Context) {
	ac.transition(c, "Return confirmed", func(id primitive.ObjectID, in transitionInput) (*models.Transaction, error) {
		returned, err := ac.parseDate(in.DateReturned)
		if err != nil {
			return nil, err
		}
		return ac.Lending.ConfirmReturn(c.Request.Context(), id, returned, in.Remarks)
	})
}

func (ac *AdminController) RemoveBorrowed(c *gin.Context) {
	ac.transition(c, "Transaction removed", func(id primitive.ObjectID, in transitionInput) (*models.Transaction, error) {
		return ac.Lending.RemoveBorrowedRecords(c.Request.Context(), id, in.Remarks)
	})
}

func (ac *AdminController) RestoreArchived(c *gin.Context) {
	ac.transition(c, "Transaction restored", func(id primitive.ObjectID, in transitionInput) (*models.Transaction, error) {
		return ac.Lending.RestoreArchivedRecord(c.Request.Context(), id, in.Remarks)
	})
}

// CheckOverdue runs the overdue sweep on demand. It is idempotent.
func (ac *AdminController) CheckOverdue(c *gin.Context) {
	n, err := ac.Lending.RunOverdueSweep(c.Request.Context())
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Overdue check completed", "updatedCount": n})
}

func (ac *AdminController) UserCount(c *gin.Context) {
	n, err := ac.Lending.UserCount(c.Request.Context())
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// ActiveBorrowerCount counts users with a borrowed or overdue transaction.
func (ac *AdminController) ActiveBorrowerCount(c *gin.Context) {
	n, err := ac.Lending.ActiveBorrowerCount(c.Request.Context())
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (ac *AdminController) ItemTotals(c *gin.Context) {
	totals, err := ac.Lending.ItemTotals(c.Request.Context())
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (ac *AdminController) MonthlyBorrowerCounts(c *gin.Context) {
	out, err := ac.Lending.MonthlyBorrowerCounts(c.Request.Context())
	if err != nil {
		ac.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
