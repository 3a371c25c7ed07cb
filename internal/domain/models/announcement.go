// internal/domain/models/announcement.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Announcement is a broadcast notice posted to a club by a member holding
// the MANAGE_ANNOUNCEMENTS permission.
type Announcement struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClubID    primitive.ObjectID `bson:"club_id" json:"club_id"`
	Message   string             `bson:"message" json:"message"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
