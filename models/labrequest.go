package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LabStatus string

const (
	LabPending   LabStatus = "pending"
	LabApproved  LabStatus = "approved"
	LabDeclined  LabStatus = "declined"
	LabCancelled LabStatus = "cancelled"
)

// LabRequest is a borrower's request to book a lab room for a time window.
// It has no stock and no logbook.
type LabRequest struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	BorrowerID   primitive.ObjectID  `bson:"brID" json:"brID"`
	Lab          string              `bson:"lab" json:"lab"`
	Title        string              `bson:"title" json:"title"`
	Description  string              `bson:"description,omitempty" json:"description,omitempty"`
	StartDate    time.Time           `bson:"startDate" json:"startDate"`
	EndDate      time.Time           `bson:"endDate" json:"endDate"`
	Status       LabStatus           `bson:"status" json:"status"`
	Remarks      string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	AdminID      *primitive.ObjectID `bson:"adminId,omitempty" json:"adminId,omitempty"`
	DateApproved *time.Time          `bson:"dateApproved,omitempty" json:"dateApproved,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// LabDecision is the admin's verdict on a pending lab request.
type LabDecision struct {
	Status       LabStatus
	AdminID      primitive.ObjectID
	Remarks      string
	DateApproved *time.Time
	UpdatedAt    time.Time
}

func (d LabDecision) BSON() bson.M {
	set := bson.M{
		"status":    d.Status,
		"adminId":   d.AdminID,
		"updatedAt": d.UpdatedAt,
	}
	if d.Remarks != "" {
		set["remarks"] = d.Remarks
	}
	if d.DateApproved != nil {
		set["dateApproved"] = *d.DateApproved
	}
	return bson.M{"$set": set}
}

// Apply mirrors BSON on an in-memory copy.
func (d LabDecision) Apply(r *LabRequest) {
	r.Status = d.Status
	id := d.AdminID
	r.AdminID = &id
	r.UpdatedAt = d.UpdatedAt
	if d.Remarks != "" {
		r.Remarks = d.Remarks
	}
	if d.DateApproved != nil {
		t := *d.DateApproved
		r.DateApproved = &t
	}
}
