// internal/app/store/roles/rolestore.go
package rolestore

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

var (
	ErrPresetImmutable = errors.New("preset roles cannot be modified or deleted")
	ErrRoleNotFound    = errors.New("role not found")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("roles")}
}

// EnsurePresets seeds the two platform presets when missing: the owner
// role carrying every permission and the plain member role carrying none.
// Safe to call on every startup.
func (s *Store) EnsurePresets(ctx context.Context) error {
	presets := []struct {
		name  string
		perms []string
	}{
		{models.OwnerRoleName, models.AllPermissions},
		{models.MemberRoleName, []string{}},
	}

	for _, p := range presets {
		now := time.Now().UTC()
		_, err := s.c.UpdateOne(ctx,
			bson.M{"preset": true, "name": p.name},
			bson.M{
				"$setOnInsert": bson.M{
					"_id":         primitive.NewObjectID(),
					"name":        p.name,
					"permissions": p.perms,
					"preset":      true,
					"created_at":  now,
					"updated_at":  now,
				},
			},
			// upsert keeps this idempotent across restarts
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Role, error) {
	var r models.Role
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &r, nil
}

// FindPreset loads a preset role by name.
func (s *Store) FindPreset(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role
	err := s.c.FindOne(ctx, bson.M{"preset": true, "name": name}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &r, nil
}

// FindByIDs loads roles in one query, keyed by id for callers resolving
// many memberships at once.
func (s *Store) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Role, error) {
	out := make(map[primitive.ObjectID]models.Role, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var r models.Role
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}
		out[r.ID] = r
	}
	return out, cur.Err()
}

// ListByClub returns the club's own roles plus the presets, which every
// club can assign.
func (s *Store) ListByClub(ctx context.Context, clubID primitive.ObjectID) ([]models.Role, error) {
	cur, err := s.c.Find(ctx, bson.M{"$or": []bson.M{
		{"club_id": clubID},
		{"preset": true},
	}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var roles []models.Role
	if err := cur.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) Create(ctx context.Context, clubID primitive.ObjectID, name string, perms []string) (models.Role, error) {
	now := time.Now().UTC()
	r := models.Role{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Permissions: perms,
		ClubID:      &clubID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.Role{}, err
	}
	return r, nil
}

// Update rewrites a role's name and permissions. Preset roles are
// refused.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, name string, perms []string) error {
	role, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if role.Preset {
		return ErrPresetImmutable
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if name != "" {
		set["name"] = name
	}
	if perms != nil {
		set["permissions"] = perms
	}
	_, err = s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// Delete removes a role. Preset roles are refused.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	role, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if role.Preset {
		return ErrPresetImmutable
	}
	_, err = s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
