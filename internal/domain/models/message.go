// internal/domain/models/message.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one chat message in a club's channel. Messages are immutable
// and append-only; the canonical ordering within a club is the stored
// Timestamp, not insertion order.
//
// AuthorName is a snapshot taken at send time from the chat session, so a
// later display-name change does not rewrite history.
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClubID     primitive.ObjectID `bson:"club_id" json:"club_id"`
	AuthorID   primitive.ObjectID `bson:"author_id" json:"author_id"`
	AuthorName string             `bson:"author_name" json:"author_name"`
	Body       string             `bson:"body" json:"body"`
	Attachment string             `bson:"attachment,omitempty" json:"attachment,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}
