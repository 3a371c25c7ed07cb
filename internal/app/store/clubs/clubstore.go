// internal/app/store/clubs/clubstore.go
package clubstore

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

var (
	ErrDuplicateClubName = errors.New("a club with this name already exists")
	ErrClubDeleted       = errors.New("club has been deleted")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("clubs")}
}

// Collection exposes the underlying collection for cross-document writes
// coordinated by the membership store.
func (s *Store) Collection() *mongo.Collection { return s.c }

func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Club, error) {
	var c models.Club
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindLiveByID loads a club and rejects soft-deleted ones. Most callers
// want this; the raw FindByID exists for admin screens.
func (s *Store) FindLiveByID(ctx context.Context, id primitive.ObjectID) (*models.Club, error) {
	c, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Deleted.IsDeleted {
		return nil, ErrClubDeleted
	}
	return c, nil
}

func (s *Store) Create(ctx context.Context, c models.Club) (models.Club, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.NameCI = text.Fold(c.Name)
	if c.Members == nil {
		c.Members = []models.ClubMember{}
	}
	if c.JoinRequests == nil {
		c.JoinRequests = []models.ClubJoinRequest{}
	}
	if c.RoleIDs == nil {
		c.RoleIDs = []primitive.ObjectID{}
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Club{}, ErrDuplicateClubName
		}
		return models.Club{}, err
	}
	return c, nil
}

func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, name, description, logo, theme string, tags, pictures []string) error {
	set := bson.M{
		"description": description,
		"logo":        logo,
		"theme":       theme,
		"updated_at":  time.Now().UTC(),
	}
	if strings.TrimSpace(name) != "" {
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if tags != nil {
		set["tags"] = tags
	}
	if pictures != nil {
		set["pictures"] = pictures
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateClubName
		}
		return err
	}
	return nil
}

func (s *Store) SetEnabled(ctx context.Context, id primitive.ObjectID, enabled bool) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_enabled": enabled,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// SoftDelete marks the club deleted, freeing its name for reuse. The
// document and its history remain readable for admins.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted.is_deleted": false},
		bson.M{"$set": bson.M{
			"deleted.is_deleted": true,
			"deleted.deleted_at": now,
			"updated_at":         now,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrClubDeleted
	}
	return nil
}

func (s *Store) AttachRole(ctx context.Context, clubID, roleID primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, clubID, bson.M{
		"$addToSet": bson.M{"role_ids": roleID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func (s *Store) DetachRole(ctx context.Context, clubID, roleID primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, clubID, bson.M{
		"$pull": bson.M{"role_ids": roleID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// List returns live, enabled clubs for the directory. tag narrows to one
// tag; query is a folded-name prefix.
func (s *Store) List(ctx context.Context, query, tag string, limit, offset int64) ([]models.Club, error) {
	filter := bson.M{
		"deleted.is_deleted": false,
		"is_enabled":         true,
	}
	if q := text.Fold(strings.TrimSpace(query)); q != "" {
		filter["name_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(q)}
	}
	if tag != "" {
		filter["tags"] = strings.ToUpper(strings.TrimSpace(tag))
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

	var clubs []models.Club
	if err := cur.All(ctx, &clubs); err != nil {
		return nil, err
	}
	return clubs, nil
}

// MemberIDs returns the user ids of a club's members.
func (s *Store) MemberIDs(ctx context.Context, clubID primitive.ObjectID) ([]primitive.ObjectID, error) {
	club, err := s.FindByID(ctx, clubID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(club.Members))
	for _, m := range club.Members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

// FindByIDs loads the named clubs in one query, including soft-deleted
// ones so chat threads can still label a vanished club.
func (s *Store) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Club, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var clubs []models.Club
	if err := cur.All(ctx, &clubs); err != nil {
		return nil, err
	}
	return clubs, nil
}
