// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/clubhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateEmail = errors.New("a user with this email already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Collection exposes the underlying collection for cross-document writes
// coordinated by the membership store.
func (s *Store) Collection() *mongo.Collection { return s.c }

func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.NameCI = text.Fold(u.Name)
	if u.AppRole == "" {
		u.AppRole = models.AppRoleMember
	}
	if u.Clubs == nil {
		u.Clubs = []models.ClubMembership{}
	}
	if u.JoinRequests == nil {
		u.JoinRequests = []models.UserJoinRequest{}
	}
	// Push notifications start on; users opt out through settings.
	u.Settings.Notifications.Enabled = true
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, name, bio, picture string, tags []string) error {
	set := bson.M{
		"bio":             bio,
		"profile_picture": picture,
		"updated_at":      time.Now().UTC(),
	}
	if strings.TrimSpace(name) != "" {
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if tags != nil {
		set["tags"] = tags
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

func (s *Store) UpdateSettings(ctx context.Context, id primitive.ObjectID, settings models.UserSettings) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"settings":   settings,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

func (s *Store) SetPushToken(ctx context.Context, id primitive.ObjectID, token string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"push_token": token,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// SetBanned flags the account and clears its push token so no further
// notifications reach the device. The membership snapshot on the user
// document is left intact for a later unban.
func (s *Store) SetBanned(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_banned":  true,
		"banned_at":  at,
		"push_token": "",
		"updated_at": time.Now().UTC(),
	}})
	return err
}

func (s *Store) ClearBanned(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"is_banned": false, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"banned_at": ""},
	})
	return err
}

func (s *Store) SetDisabled(ctx context.Context, id primitive.ObjectID, disabled bool) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_disabled": disabled,
		"updated_at":  time.Now().UTC(),
	}})
	return err
}

// FindByIDs loads users in one query, keyed by id.
func (s *Store) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cur.Err()
}

// NotifiableIDs narrows ids to users who can currently receive push
// notifications: not banned, not disabled, and opted in through their
// settings.
func (s *Store) NotifiableIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{
		"_id":                            bson.M{"$in": ids},
		"is_banned":                      false,
		"is_disabled":                    false,
		"settings.notifications.enabled": true,
	}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.ID)
	}
	return out, cur.Err()
}

// Delete removes a user document. The membership purge happens first in
// the membership store; this only drops the document itself.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns users for admin screens in folded-name order. query
// filters on the folded-name prefix; banned filters on ban state when
// non-nil.
func (s *Store) List(ctx context.Context, query string, banned *bool, limit, offset int64) ([]models.User, error) {
	filter := bson.M{}
	if q := text.Fold(strings.TrimSpace(query)); q != "" {
		filter["name_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(q)}
	}
	if banned != nil {
		filter["is_banned"] = *banned
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) Count(ctx context.Context, banned *bool) (int64, error) {
	filter := bson.M{}
	if banned != nil {
		filter["is_banned"] = *banned
	}
	return s.c.CountDocuments(ctx, filter)
}
