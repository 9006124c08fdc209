package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationNewStudent NotificationType = "NEW_STUDENT"
)

// Notification is an in-app message for a user, currently only sent to
// trainers when a new premium student is assigned to them.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Recipient primitive.ObjectID `bson:"recipient" json:"recipient"`
	Student   primitive.ObjectID `bson:"student" json:"student"`
	Type      NotificationType   `bson:"type" json:"type"`
	Message   string             `bson:"message" json:"message"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
