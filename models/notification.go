package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationGlobal       = "global"
	NotificationUserSpecific = "user-specific"
)

const (
	ResourceEquipment   = "equipment"
	ResourceTransaction = "transaction"
	ResourceApplication = "application"
	ResourceCategory    = "category"
	ResourceOther       = "other"
)

type Notification struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Title        string              `bson:"title" json:"title"`
	Description  string              `bson:"description" json:"description"`
	Type         string              `bson:"type" json:"type"`
	UserID       *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	ResourceType string              `bson:"resourceType" json:"resourceType"`
	ResourceID   *primitive.ObjectID `bson:"resourceId,omitempty" json:"resourceId,omitempty"`
	IsRead       bool                `bson:"isRead" json:"isRead"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
}
