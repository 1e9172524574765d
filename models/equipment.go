package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Equipment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CategoryID  primitive.ObjectID `bson:"catID" json:"catID"`
	Name        string             `bson:"name" json:"name"`
	Stock       int                `bson:"stock" json:"stock"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	YtLink      string             `bson:"ytLink,omitempty" json:"ytLink,omitempty"`
	DateAdded   time.Time          `bson:"dateAdded,omitempty" json:"dateAdded,omitempty"`
	DateUpdated time.Time          `bson:"dateUpdated,omitempty" json:"dateUpdated,omitempty"`
}

// EquipmentRef is an equipment reference that is either only an id or an id
// resolved to the equipment document. It is produced by the store when a view
// needs equipment details; the state machine itself only handles ids.
type EquipmentRef struct {
	ID        primitive.ObjectID `json:"id"`
	Equipment *Equipment         `json:"equipment,omitempty"`
}

func Unresolved(id primitive.ObjectID) EquipmentRef {
	return EquipmentRef{ID: id}
}

func Resolved(e *Equipment) EquipmentRef {
	return EquipmentRef{ID: e.ID, Equipment: e}
}

func (r EquipmentRef) IsResolved() bool {
	return r.Equipment != nil
}

// Name falls back to the given snapshot name when the equipment is gone.
func (r EquipmentRef) Name(fallback string) string {
	if r.Equipment != nil && r.Equipment.Name != "" {
		return r.Equipment.Name
	}
	if fallback != "" {
		return fallback
	}
	return "Unknown"
}
