// internal/app/store/messages/messagestore.go
package messagestore

import (
	"context"
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

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("messages")}
}

// Insert stores a message. Messages are immutable once written; there is
// no update or delete path.
func (s *Store) Insert(ctx context.Context, m *models.Message) error {
	if m.ID == primitive.NilObjectID {
		m.ID = primitive.NewObjectID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, m)
	return err
}

// History returns one page of a club's messages, newest first. before
// bounds the page for older-message pagination; pass the zero time for
// the first page.
func (s *Store) History(ctx context.Context, clubID primitive.ObjectID, before time.Time, limit int64) ([]models.Message, error) {
	filter := bson.M{"club_id": clubID}
	if !before.IsZero() {
		filter["timestamp"] = bson.M{"$lt": before}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// LatestPerClub returns each club's most recent message in one
// aggregation. Clubs with no messages are absent from the map.
func (s *Store) LatestPerClub(ctx context.Context, clubIDs []primitive.ObjectID) (map[primitive.ObjectID]models.Message, error) {
	out := make(map[primitive.ObjectID]models.Message, len(clubIDs))
	if len(clubIDs) == 0 {
		return out, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"club_id": bson.M{"$in": clubIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$club_id",
			"latest": bson.M{"$first": "$$ROOT"},
		}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ClubID primitive.ObjectID `bson:"_id"`
			Latest models.Message     `bson:"latest"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ClubID] = row.Latest
	}
	return out, cur.Err()
}

// DeleteByClub drops a club's whole message history. Used only for the
// admin hard-delete path.
func (s *Store) DeleteByClub(ctx context.Context, clubID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"club_id": clubID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
