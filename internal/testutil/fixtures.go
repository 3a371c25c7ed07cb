// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given name and app role.
func (f *Fixtures) CreateUser(ctx context.Context, name, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Email:        fmt.Sprintf("%s@test.edu", primitive.NewObjectID().Hex()),
		AppRole:      role,
		IsConfirmed:  true,
		Settings:     models.UserSettings{Notifications: models.NotificationSettings{Enabled: true}},
		Clubs:        []models.ClubMembership{},
		JoinRequests: []models.UserJoinRequest{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateClub creates an enabled, live test club.
func (f *Fixtures) CreateClub(ctx context.Context, name string) models.Club {
	f.t.Helper()

	now := time.Now().UTC()
	club := models.Club{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		IsEnabled:    true,
		Members:      []models.ClubMember{},
		JoinRequests: []models.ClubJoinRequest{},
		RoleIDs:      []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("clubs").InsertOne(ctx, club); err != nil {
		f.t.Fatalf("failed to create test club: %v", err)
	}
	return club
}

// CreateRole creates a club-scoped role with the given permissions.
func (f *Fixtures) CreateRole(ctx context.Context, clubID primitive.ObjectID, name string, perms []string) models.Role {
	f.t.Helper()

	now := time.Now().UTC()
	role := models.Role{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Permissions: perms,
		ClubID:      &clubID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("roles").InsertOne(ctx, role); err != nil {
		f.t.Fatalf("failed to create test role: %v", err)
	}
	if _, err := f.db.Collection("clubs").UpdateByID(ctx, clubID,
		bson.M{"$push": bson.M{"role_ids": role.ID}}); err != nil {
		f.t.Fatalf("failed to attach role to club: %v", err)
	}
	return role
}

// AddMember writes the membership to both sides (club.members and
// user.clubs), keeping the documents mirrored the way the live code does.
func (f *Fixtures) AddMember(ctx context.Context, clubID, userID, roleID primitive.ObjectID) {
	f.t.Helper()

	now := time.Now().UTC()
	if _, err := f.db.Collection("clubs").UpdateByID(ctx, clubID, bson.M{
		"$push": bson.M{"members": models.ClubMember{UserID: userID, RoleID: roleID, ApprovedAt: now}},
	}); err != nil {
		f.t.Fatalf("failed to add club-side member: %v", err)
	}
	if _, err := f.db.Collection("users").UpdateByID(ctx, userID, bson.M{
		"$push": bson.M{"clubs": models.ClubMembership{ClubID: clubID, RoleID: roleID, ApprovedAt: now}},
	}); err != nil {
		f.t.Fatalf("failed to add user-side membership: %v", err)
	}
}

// AddJoinRequest writes a pending request to both sides.
func (f *Fixtures) AddJoinRequest(ctx context.Context, clubID, userID primitive.ObjectID) {
	f.t.Helper()

	now := time.Now().UTC()
	if _, err := f.db.Collection("clubs").UpdateByID(ctx, clubID, bson.M{
		"$push": bson.M{"join_requests": models.ClubJoinRequest{
			UserID: userID, Status: models.JoinStatusPending, RequestedAt: now,
		}},
	}); err != nil {
		f.t.Fatalf("failed to add club-side join request: %v", err)
	}
	if _, err := f.db.Collection("users").UpdateByID(ctx, userID, bson.M{
		"$push": bson.M{"join_requests": models.UserJoinRequest{
			ClubID: clubID, Status: models.JoinStatusPending, RequestedAt: now,
		}},
	}); err != nil {
		f.t.Fatalf("failed to add user-side join request: %v", err)
	}
}

// CreateMessage inserts a chat message with the given timestamp.
func (f *Fixtures) CreateMessage(ctx context.Context, clubID, authorID primitive.ObjectID, body string, at time.Time) models.Message {
	f.t.Helper()

	msg := models.Message{
		ID:         primitive.NewObjectID(),
		ClubID:     clubID,
		AuthorID:   authorID,
		AuthorName: "Test Author",
		Body:       body,
		Timestamp:  at,
	}
	if _, err := f.db.Collection("messages").InsertOne(ctx, msg); err != nil {
		f.t.Fatalf("failed to create test message: %v", err)
	}
	return msg
}

// AssertMirrored fails the test when the club-side and user-side views of
// a membership disagree.
func (f *Fixtures) AssertMirrored(ctx context.Context, clubID, userID primitive.ObjectID) {
	f.t.Helper()

	var club models.Club
	if err := f.db.Collection("clubs").FindOne(ctx, bson.M{"_id": clubID}).Decode(&club); err != nil {
		f.t.Fatalf("load club: %v", err)
	}
	var user models.User
	if err := f.db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		f.t.Fatalf("load user: %v", err)
	}

	clubSide := club.MemberEntry(userID) != nil
	userSide := user.MembershipFor(clubID) != nil
	if clubSide != userSide {
		f.t.Errorf("membership mirror out of sync: club side %v, user side %v", clubSide, userSide)
	}

	clubPending := club.HasPendingRequest(userID)
	userPending := user.PendingRequestFor(clubID) != nil
	if clubPending != userPending {
		f.t.Errorf("join request mirror out of sync: club side %v, user side %v", clubPending, userPending)
	}
}
