// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a club event. RSVPs is the set of user ids who confirmed
// attendance; event updates notify that set.
type Event struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ClubID        primitive.ObjectID   `bson:"club_id" json:"club_id"`
	Name          string               `bson:"name" json:"name"`
	Description   string               `bson:"description" json:"description"`
	StartTime     time.Time            `bson:"start_time" json:"start_time"`
	EndTime       time.Time            `bson:"end_time" json:"end_time"`
	Longitude     float64              `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Latitude      float64              `bson:"latitude,omitempty" json:"latitude,omitempty"`
	ShortLocation string               `bson:"short_location,omitempty" json:"short_location,omitempty"`
	Picture       string               `bson:"picture,omitempty" json:"picture,omitempty"`
	RSVPs         []primitive.ObjectID `bson:"rsvps,omitempty" json:"rsvps,omitempty"`
	LastUpdated   time.Time            `bson:"last_updated" json:"last_updated"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
