package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserTransactionController struct{ *Srv }

func NewUserTransactionController(s *Srv) *UserTransactionController {
	return &UserTransactionController{Srv: s}
}

func (uc *UserTransactionController) GetCart(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	cart, err := uc.Lending.GetCart(c.Request.Context(), me)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

func (uc *UserTransactionController) AddToCart(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	var in struct {
		EquipmentID primitive.ObjectID `json:"eqID" binding:"required"`
		Quantity    int                `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cart, err := uc.Lending.AddItem(c.Request.Context(), me, in.EquipmentID, in.Quantity)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item added to cart", "cart": cart})
}

func (uc *UserTransactionController) RemoveFromCart(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	var in struct {
		EquipmentIDs []primitive.ObjectID `json:"eqIDs" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, cart, err := uc.Lending.RemoveItems(c.Request.Context(), me, in.EquipmentIDs)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Items removed from cart", "removed": n, "cart": cart})
}

func (uc *UserTransactionController) EditCartQuantity(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	var in struct {
		EquipmentID primitive.ObjectID `json:"eqID" binding:"required"`
		NewQuantity int                `json:"newQuantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cart, err := uc.Lending.SetQuantity(c.Request.Context(), me, in.EquipmentID, in.NewQuantity)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quantity updated", "cart": cart})
}

func (uc *UserTransactionController) Borrow(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	var in struct {
		PickUpDate string `json:"pickUpDate"`
	}
	if !bindOptional(c, &in) {
		return
	}
	pickUp, err := uc.parseDate(in.PickUpDate)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	txn, err := uc.Lending.Submit(c.Request.Context(), me, pickUp)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Borrow request submitted", "transaction": txn})
}

func (uc *UserTransactionController) MyTransactions(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	views, err := uc.Lending.ListMine(c.Request.Context(), me)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": views})
}

func (uc *UserTransactionController) UpdatePickUpDate(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var in struct {
		PickUpDate string `json:"pickUpDate"`
	}
	if !bindOptional(c, &in) {
		return
	}
	date, err := uc.parseDate(in.PickUpDate)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	txn, err := uc.Lending.UpdatePickUpDate(c.Request.Context(), me, id, date)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pick-up date updated", "transaction": txn})
}

func (uc *UserTransactionController) ResetTransaction(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	cart, err := uc.Lending.ResetTransaction(c.Request.Context(), me, id)
	if err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction moved back to cart", "cart": cart})
}

func (uc *UserTransactionController) CancelApplication(c *gin.Context) {
	me, ok := clientID(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if err := uc.Lending.CancelApplication(c.Request.Context(), me, id); err != nil {
		uc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application cancelled"})
}
