package controllers

import (
	"net/http"

	"scilems/lending"

	"github.com/gin-gonic/gin"
)

type LabController struct{ *Srv }

func NewLabController(s *Srv) *LabController { return &LabController{Srv: s} }

func (lc *LabController) CreateRequest(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	var in struct {
		Lab         string `json:"lab"`
		Title       string `json:"title"`
		Description string `json:"description"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
	}
	if !bindOptional(c, &in) {
		return
	}
	start, err := lc.parseDate(in.StartDate)
	if err != nil {
		lc.respondError(c, err)
		return
	}
	end, err := lc.parseDate(in.EndDate)
	if err != nil {
		lc.respondError(c, err)
		return
	}
	lr, err := lc.Lending.CreateLabRequest(c.Request.Context(), me, lending.LabRequestInput{
		Lab:         in.Lab,
		Title:       in.Title,
		Description: in.Description,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		lc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Lab request created", "labRequest": lr})
}

func (lc *LabController) MyRequests(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	view, err := lc.Lending.LabRequests(c.Request.Context(), me)
	if err != nil {
		lc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (lc *LabController) DeleteRequest(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if err := lc.Lending.DeleteLabRequest(c.Request.Context(), me, id); err != nil {
		lc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lab request deleted"})
}

// ListRequests is the admin queue. ?status= narrows it.
func (lc *LabController) ListRequests(c *gin.Context) {
	out, err := lc.Lending.ListLabRequests(c.Request.Context(), c.Query("status"))
	if err != nil {
		lc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labRequests": out})
}

func (lc *LabController) Approve(c *gin.Context) { lc.decide(c, true) }

func (lc *LabController) Decline(c *gin.Context) { lc.decide(c, false) }

func (lc *LabController) decide(c *gin.Context, approve bool) {
	admin, ok := clientID(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var in struct {
		Remarks string `json:"remarks"`
	}
	if !bindOptional(c, &in) {
		return
	}
	lr, err := lc.Lending.DecideLabRequest(c.Request.Context(), admin, id, approve, in.Remarks)
	if err != nil {
		lc.respondError(c, err)
		return
	}
	msg := "Lab request declined"
	if approve {
		msg = "Lab request approved"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "labRequest": lr})
}
