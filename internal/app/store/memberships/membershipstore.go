// internal/app/store/memberships/membershipstore.go

// Package membershipstore owns every transition of the join/membership
// state machine. A membership or pending request is recorded twice, on
// the club document and on the user document, and every transition here
// writes both sides inside one transaction (or sequentially on
// deployments without transaction support) so the mirror stays in sync.
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/clubhub/internal/app/system/txn"
	"github.com/dalemusser/clubhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Store struct {
	users *mongo.Collection
	clubs *mongo.Collection
	log   *zap.Logger
}

var (
	ErrClubUnavailable  = errors.New("club does not exist or has been deleted")
	ErrAlreadyMember    = errors.New("user is already a member of this club")
	ErrAlreadyRequested = errors.New("user has already requested to join this club")
	ErrNoPendingRequest = errors.New("user has no pending request for this club")
	ErrNotMember        = errors.New("user is not a member of this club")
)

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		users: db.Collection("users"),
		clubs: db.Collection("clubs"),
		log:   log,
	}
}

func (s *Store) client() *mongo.Client {
	return s.users.Database().Client()
}

func (s *Store) loadClub(ctx context.Context, clubID primitive.ObjectID) (*models.Club, error) {
	var club models.Club
	if err := s.clubs.FindOne(ctx, bson.M{"_id": clubID}).Decode(&club); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrClubUnavailable
		}
		return nil, err
	}
	if club.Deleted.IsDeleted {
		return nil, ErrClubUnavailable
	}
	return &club, nil
}

// RequestJoin records a pending join request on both documents. Members
// and users with an open request are rejected before anything is written.
func (s *Store) RequestJoin(ctx context.Context, userID, clubID primitive.ObjectID) error {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return err
	}
	if club.MemberEntry(userID) != nil {
		return ErrAlreadyMember
	}
	if club.HasPendingRequest(userID) {
		return ErrAlreadyRequested
	}

	now := time.Now().UTC()
	return txn.WithTransaction(ctx, s.client(), s.log, func(ctx context.Context) error {
		if _, err := s.clubs.UpdateByID(ctx, clubID, bson.M{
			"$push": bson.M{"join_requests": models.ClubJoinRequest{
				UserID: userID, Status: models.JoinStatusPending, RequestedAt: now,
			}},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return err
		}
		_, err := s.users.UpdateByID(ctx, userID, bson.M{
			"$push": bson.M{"join_requests": models.UserJoinRequest{
				ClubID: clubID, Status: models.JoinStatusPending, RequestedAt: now,
			}},
			"$set": bson.M{"updated_at": now},
		})
		return err
	})
}

// Approve turns a pending request into a membership with the given role.
// The request entries are removed and member entries appear on both
// sides in the same transaction.
func (s *Store) Approve(ctx context.Context, clubID, targetID, roleID primitive.ObjectID) error {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return err
	}
	if !club.HasPendingRequest(targetID) {
		return ErrNoPendingRequest
	}
	if club.MemberEntry(targetID) != nil {
		return ErrAlreadyMember
	}

	now := time.Now().UTC()
	return txn.WithTransaction(ctx, s.client(), s.log, func(ctx context.Context) error {
		if _, err := s.clubs.UpdateByID(ctx, clubID, bson.M{
			"$pull": bson.M{"join_requests": bson.M{"user_id": targetID}},
			"$push": bson.M{"members": models.ClubMember{
				UserID: targetID, RoleID: roleID, ApprovedAt: now,
			}},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return err
		}
		_, err := s.users.UpdateByID(ctx, targetID, bson.M{
			"$pull": bson.M{"join_requests": bson.M{"club_id": clubID}},
			"$push": bson.M{"clubs": models.ClubMembership{
				ClubID: clubID, RoleID: roleID, ApprovedAt: now,
			}},
			"$set": bson.M{"updated_at": now},
		})
		return err
	})
}

// Deny removes a pending request from both sides. The user may request
// again later.
func (s *Store) Deny(ctx context.Context, clubID, targetID primitive.ObjectID) error {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return err
	}
	if !club.HasPendingRequest(targetID) {
		return ErrNoPendingRequest
	}

	now := time.Now().UTC()
	return txn.WithTransaction(ctx, s.client(), s.log, func(ctx context.Context) error {
		if _, err := s.clubs.UpdateByID(ctx, clubID, bson.M{
			"$pull": bson.M{"join_requests": bson.M{"user_id": targetID}},
			"$set":  bson.M{"updated_at": now},
		}); err != nil {
			return err
		}
		_, err := s.users.UpdateByID(ctx, targetID, bson.M{
			"$pull": bson.M{"join_requests": bson.M{"club_id": clubID}},
			"$set":  bson.M{"updated_at": now},
		})
		return err
	})
}

// Remove drops a membership from both sides. Used for kicks and for a
// member leaving on their own. Stray pending requests, which a partial
// dual-write can leave behind, are pulled along with the membership so
// the user can cleanly request again.
func (s *Store) Remove(ctx context.Context, clubID, targetID primitive.ObjectID) error {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return err
	}
	if club.MemberEntry(targetID) == nil {
		return ErrNotMember
	}

	now := time.Now().UTC()
	return txn.WithTransaction(ctx, s.client(), s.log, func(ctx context.Context) error {
		if _, err := s.clubs.UpdateByID(ctx, clubID, bson.M{
			"$pull": bson.M{
				"members":       bson.M{"user_id": targetID},
				"join_requests": bson.M{"user_id": targetID},
			},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return err
		}
		_, err := s.users.UpdateByID(ctx, targetID, bson.M{
			"$pull": bson.M{
				"clubs":         bson.M{"club_id": clubID},
				"join_requests": bson.M{"club_id": clubID},
			},
			"$set": bson.M{"updated_at": now},
		})
		return err
	})
}

// AddDirect inserts a membership on both sides without a request. Used
// for the creator of a new club, who becomes its owner immediately.
func (s *Store) AddDirect(ctx context.Context, clubID, userID, roleID primitive.ObjectID) error {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return err
	}
	if club.MemberEntry(userID) != nil {
		return ErrAlreadyMember
	}

	now := time.Now().UTC()
	return txn.WithTransaction(ctx, s.client(), s.log, func(ctx context.Context) error {
		if _, err := s.clubs.UpdateByID(ctx, clubID, bson.M{
			"$push": bson.M{"members": models.ClubMember{
				UserID: userID, RoleID: roleID, ApprovedAt: now,
			}},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return err
		}
		_, err := s.users.UpdateByID(ctx, userID, bson.M{
			"$push": bson.M{"clubs": models.ClubMembership{
				ClubID: clubID, RoleID: roleID, ApprovedAt: now,
			}},
			"$set": bson.M{"updated_at": now},
		})
		return err
	})
}

// AssignRole changes a member's role on both sides of the mirror.
func (s *Store) AssignRole(ctx context.Context, clubID, targetID, roleID primitive.ObjectID) error {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return err
	}
	if club.MemberEntry(targetID) == nil {
		return ErrNotMember
	}

	now := time.Now().UTC()
	return txn.WithTransaction(ctx, s.client(), s.log, func(ctx context.Context) error {
		if _, err := s.clubs.UpdateOne(ctx,
			bson.M{"_id": clubID, "members.user_id": targetID},
			bson.M{"$set": bson.M{
				"members.$.role_id": roleID,
				"updated_at":        now,
			}}); err != nil {
			return err
		}
		_, err := s.users.UpdateOne(ctx,
			bson.M{"_id": targetID, "clubs.club_id": clubID},
			bson.M{"$set": bson.M{
				"clubs.$.role_id": roleID,
				"updated_at":      now,
			}})
		return err
	})
}

// PurgeUser removes the user from every club-side members and
// join_requests array. The user document's own arrays are left alone:
// for a ban they are the snapshot a later unban restores from, and for a
// hard delete the document is dropped right after.
func (s *Store) PurgeUser(ctx context.Context, userID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.clubs.UpdateMany(ctx,
		bson.M{"$or": []bson.M{
			{"members.user_id": userID},
			{"join_requests.user_id": userID},
		}},
		bson.M{
			"$pull": bson.M{
				"members":       bson.M{"user_id": userID},
				"join_requests": bson.M{"user_id": userID},
			},
			"$set": bson.M{"updated_at": now},
		})
	return err
}

// Restore re-creates the club-side entries from the user document's
// snapshot. Clubs that were deleted or that re-admitted someone into the
// member slot in the meantime are skipped; entries pointing at vanished
// clubs are pruned from the snapshot. Returns the club ids restored.
func (s *Store) Restore(ctx context.Context, user *models.User) ([]primitive.ObjectID, error) {
	now := time.Now().UTC()
	var restored []primitive.ObjectID
	var staleClubs []primitive.ObjectID

	for _, m := range user.Clubs {
		club, err := s.loadClub(ctx, m.ClubID)
		if err != nil {
			if errors.Is(err, ErrClubUnavailable) {
				staleClubs = append(staleClubs, m.ClubID)
				continue
			}
			return restored, err
		}
		if club.MemberEntry(user.ID) != nil {
			continue
		}
		if _, err := s.clubs.UpdateByID(ctx, m.ClubID, bson.M{
			"$push": bson.M{"members": models.ClubMember{
				UserID: user.ID, RoleID: m.RoleID, ApprovedAt: m.ApprovedAt,
			}},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return restored, err
		}
		restored = append(restored, m.ClubID)
	}

	for _, r := range user.JoinRequests {
		club, err := s.loadClub(ctx, r.ClubID)
		if err != nil {
			if errors.Is(err, ErrClubUnavailable) {
				staleClubs = append(staleClubs, r.ClubID)
				continue
			}
			return restored, err
		}
		if club.HasPendingRequest(user.ID) || club.MemberEntry(user.ID) != nil {
			continue
		}
		if _, err := s.clubs.UpdateByID(ctx, r.ClubID, bson.M{
			"$push": bson.M{"join_requests": models.ClubJoinRequest{
				UserID: user.ID, Status: r.Status, RequestedAt: r.RequestedAt,
			}},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return restored, err
		}
	}

	if len(staleClubs) > 0 {
		if _, err := s.users.UpdateByID(ctx, user.ID, bson.M{
			"$pull": bson.M{
				"clubs":         bson.M{"club_id": bson.M{"$in": staleClubs}},
				"join_requests": bson.M{"club_id": bson.M{"$in": staleClubs}},
			},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return restored, err
		}
	}

	return restored, nil
}

// ClearUserSnapshot empties the user-side membership arrays. Used when a
// ban falls outside the restore window and the snapshot should not be
// honored anymore.
func (s *Store) ClearUserSnapshot(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.users.UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"clubs":         []models.ClubMembership{},
		"join_requests": []models.UserJoinRequest{},
		"updated_at":    time.Now().UTC(),
	}})
	return err
}
