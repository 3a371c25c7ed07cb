// internal/app/store/announcements/announcementstore.go
package announcementstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/clubhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrAnnouncementNotFound = errors.New("announcement not found")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("announcements")}
}

func (s *Store) Create(ctx context.Context, clubID primitive.ObjectID, message string) (models.Announcement, error) {
	a := models.Announcement{
		ID:        primitive.NewObjectID(),
		ClubID:    clubID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Announcement{}, err
	}
	return a, nil
}

// ListByClub returns a club's announcements, newest first.
func (s *Store) ListByClub(ctx context.Context, clubID primitive.ObjectID, limit int64) ([]models.Announcement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"club_id": clubID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Announcement
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one announcement, scoped to the club so a handler
// cannot cross club boundaries with a forged id.
func (s *Store) Delete(ctx context.Context, clubID, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "club_id": clubID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrAnnouncementNotFound
	}
	return nil
}
