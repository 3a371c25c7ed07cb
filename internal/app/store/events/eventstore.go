// internal/app/store/events/eventstore.go
package eventstore

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

var ErrEventNotFound = errors.New("event not found")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("events")}
}

func (s *Store) Create(ctx context.Context, e models.Event) (models.Event, error) {
	now := time.Now().UTC()
	e.ID = primitive.NewObjectID()
	if e.RSVPs == nil {
		e.RSVPs = []primitive.ObjectID{}
	}
	e.LastUpdated = now
	e.CreatedAt = now
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var e models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListByClub returns a club's events ordered by start time. Pass a
// non-zero from to hide events that ended before it.
func (s *Store) ListByClub(ctx context.Context, clubID primitive.ObjectID, from time.Time) ([]models.Event, error) {
	filter := bson.M{"club_id": clubID}
	if !from.IsZero() {
		filter["end_time"] = bson.M{"$gte": from}
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, clubID, id primitive.ObjectID, e models.Event) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "club_id": clubID},
		bson.M{"$set": bson.M{
			"name":           e.Name,
			"description":    e.Description,
			"start_time":     e.StartTime,
			"end_time":       e.EndTime,
			"longitude":      e.Longitude,
			"latitude":       e.Latitude,
			"short_location": e.ShortLocation,
			"picture":        e.Picture,
			"last_updated":   time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, clubID, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "club_id": clubID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SetRSVP adds or removes the user on the attendance list.
func (s *Store) SetRSVP(ctx context.Context, id, userID primitive.ObjectID, attending bool) error {
	update := bson.M{
		"$pull": bson.M{"rsvps": userID},
		"$set":  bson.M{"last_updated": time.Now().UTC()},
	}
	if attending {
		update = bson.M{
			"$addToSet": bson.M{"rsvps": userID},
			"$set":      bson.M{"last_updated": time.Now().UTC()},
		}
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}
