package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is one line of a cart, unique per equipment.
type CartItem struct {
	EquipmentID primitive.ObjectID `bson:"eqID" json:"eqID"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	DateOrdered time.Time          `bson:"dateOrdered" json:"dateOrdered"`
}

type Cart struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	BorrowerID primitive.ObjectID `bson:"brID" json:"brID"`
	Items      []CartItem         `bson:"items" json:"items"`
}

func (c *Cart) Find(eqID primitive.ObjectID) (int, bool) {
	for i, it := range c.Items {
		if it.EquipmentID == eqID {
			return i, true
		}
	}
	return -1, false
}

// Merge adds qty to an existing line or appends a new one.
func (c *Cart) Merge(eqID primitive.ObjectID, qty int, now time.Time) {
	if i, ok := c.Find(eqID); ok {
		c.Items[i].Quantity += qty
		c.Items[i].DateOrdered = now
		return
	}
	c.Items = append(c.Items, CartItem{EquipmentID: eqID, Quantity: qty, DateOrdered: now})
}

// Remove drops the lines for the given ids and reports how many were removed.
func (c *Cart) Remove(eqIDs []primitive.ObjectID) int {
	drop := make(map[primitive.ObjectID]bool, len(eqIDs))
	for _, id := range eqIDs {
		drop[id] = true
	}
	kept := c.Items[:0]
	removed := 0
	for _, it := range c.Items {
		if drop[it.EquipmentID] {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	c.Items = kept
	return removed
}
