// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent
(CreateMany is a no-op for an index that already exists with the same name
and keys). Errors are aggregated so every problem is visible and startup
can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureClubs(ctx, db); err != nil {
		problems = append(problems, "clubs: "+err.Error())
	}
	if err := ensureRoles(ctx, db); err != nil {
		problems = append(problems, "roles: "+err.Error())
	}
	if err := ensureMessages(ctx, db); err != nil {
		problems = append(problems, "messages: "+err.Error())
	}
	if err := ensureAnnouncements(ctx, db); err != nil {
		problems = append(problems, "announcements: "+err.Error())
	}
	if err := ensureEvents(ctx, db); err != nil {
		problems = append(problems, "events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func createAll(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		zap.L().Debug("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", name))
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return createAll(ctx, db.Collection("users"), []mongo.IndexModel{
		// Email is the external-identity join key.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Folded name for case-insensitive search and stable list ordering.
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_nameci_id"),
		},
		// Membership lookups walk from a club to its users.
		{
			Keys:    bson.D{{Key: "clubs.club_id", Value: 1}},
			Options: options.Index().SetName("idx_users_clubs_clubid"),
		},
		{
			Keys:    bson.D{{Key: "join_requests.club_id", Value: 1}},
			Options: options.Index().SetName("idx_users_joinrequests_clubid"),
		},
		// Admin list screens filter on banned state.
		{
			Keys:    bson.D{{Key: "is_banned", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_users_banned_nameci"),
		},
	})
}

func ensureClubs(ctx context.Context, db *mongo.Database) error {
	return createAll(ctx, db.Collection("clubs"), []mongo.IndexModel{
		// Name uniqueness applies only to live clubs; a deleted club frees
		// its name. Enforced with a partial unique index on the folded name.
		{
			Keys: bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_clubs_nameci_live").
				SetPartialFilterExpression(bson.D{{Key: "deleted.is_deleted", Value: false}}),
		},
		{
			Keys:    bson.D{{Key: "members.user_id", Value: 1}},
			Options: options.Index().SetName("idx_clubs_members_userid"),
		},
		{
			Keys:    bson.D{{Key: "join_requests.user_id", Value: 1}},
			Options: options.Index().SetName("idx_clubs_joinrequests_userid"),
		},
		// Directory browse: live, enabled clubs filtered by tag.
		{
			Keys: bson.D{
				{Key: "deleted.is_deleted", Value: 1},
				{Key: "is_enabled", Value: 1},
				{Key: "tags", Value: 1},
			},
			Options: options.Index().SetName("idx_clubs_live_enabled_tags"),
		},
	})
}

func ensureRoles(ctx context.Context, db *mongo.Database) error {
	return createAll(ctx, db.Collection("roles"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "club_id", Value: 1}},
			Options: options.Index().SetName("idx_roles_clubid"),
		},
		// Preset lookup at startup and when approving members.
		{
			Keys:    bson.D{{Key: "preset", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_roles_preset_name"),
		},
	})
}

func ensureMessages(ctx context.Context, db *mongo.Database) error {
	return createAll(ctx, db.Collection("messages"), []mongo.IndexModel{
		// History reads are always club-scoped, newest first.
		{
			Keys:    bson.D{{Key: "club_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_messages_clubid_ts"),
		},
	})
}

func ensureAnnouncements(ctx context.Context, db *mongo.Database) error {
	return createAll(ctx, db.Collection("announcements"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "club_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_announcements_clubid_ts"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	return createAll(ctx, db.Collection("events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "club_id", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().SetName("idx_events_clubid_start"),
		},
	})
}
