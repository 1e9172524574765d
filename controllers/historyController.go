package controllers

import (
	"net/http"

	"scilems/lending"

	"github.com/gin-gonic/gin"
)

type HistoryController struct{ *Srv }

func NewHistoryController(s *Srv) *HistoryController { return &HistoryController{Srv: s} }

func (hc *HistoryController) TransactionHistory(c *gin.Context) {
	id, ok := objectIDParam(c, "transactionId")
	if !ok {
		return
	}
	entries, err := hc.Lending.TransactionHistory(c.Request.Context(), id)
	if err != nil {
		hc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// UserHistory lists a borrower's logbook. Borrowers only see their own.
func (hc *HistoryController) UserHistory(c *gin.Context) {
	userID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}
	if !isAdmin(c) && c.GetString("clientID") != userID.Hex() {
		hc.respondError(c, lending.NewUnauthorizedError("cannot view another borrower's history"))
		return
	}
	entries, err := hc.Lending.BorrowerHistory(c.Request.Context(), userID)
	if err != nil {
		hc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (hc *HistoryController) Overall(c *gin.Context) {
	timeline, err := hc.Lending.OverallTimeline(c.Request.Context())
	if err != nil {
		hc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": timeline})
}

func (hc *HistoryController) Details(c *gin.Context) {
	id, ok := objectIDParam(c, "transactionId")
	if !ok {
		return
	}
	details, err := hc.Lending.TransactionDetails(c.Request.Context(), id)
	if err != nil {
		hc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"details": details})
}

func (hc *HistoryController) SystemSnapshot(c *gin.Context) {
	n, err := hc.Lending.CreateSystemSnapshot(c.Request.Context())
	if err != nil {
		hc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Snapshot created", "count": n})
}
