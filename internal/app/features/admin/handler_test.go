package admin_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/clubhub/internal/app/features/admin"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/app/system/notify"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/clubhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testRestoreWindow = 30 * 24 * time.Hour

func newTestHandler(t *testing.T) (*admin.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	handler := admin.NewHandler(db, testRestoreWindow, notify.NopDispatcher{}, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	return handler, fixtures
}

func adminSession() *auth.SessionUser {
	return &auth.SessionUser{
		ID:      primitive.NewObjectID(),
		Name:    "Platform Admin",
		Email:   "admin@test.edu",
		AppRole: models.AppRoleAdmin,
	}
}

func jsonBody(t *testing.T, v any) *strings.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return strings.NewReader(string(raw))
}

func TestHandleBan_PurgesClubSideKeepsSnapshot(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	user := fixtures.CreateUser(ctx, "Troublemaker", models.AppRoleMember)
	role := fixtures.CreateRole(ctx, club.ID, "Member", nil)
	fixtures.AddMember(ctx, club.ID, user.ID, role.ID)

	body := jsonBody(t, map[string]any{"userId": user.ID.Hex(), "reason": "spam"})
	req := httptest.NewRequest("POST", "/admin/users/ban", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, adminSession())

	rec := httptest.NewRecorder()
	handler.HandleBan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var gotClub models.Club
	if err := db.Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&gotClub); err != nil {
		t.Fatalf("load club: %v", err)
	}
	if gotClub.MemberEntry(user.ID) != nil {
		t.Error("expected club-side membership purged")
	}

	var gotUser models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": user.ID}).Decode(&gotUser); err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !gotUser.IsBanned || gotUser.BannedAt == nil {
		t.Errorf("expected ban flags set, got banned=%v bannedAt=%v", gotUser.IsBanned, gotUser.BannedAt)
	}
	if gotUser.MembershipFor(club.ID) == nil {
		t.Error("expected user-side snapshot kept for restore")
	}
}

func TestHandleBan_AlreadyBanned(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := fixtures.CreateUser(ctx, "Banned", models.AppRoleMember)
	now := time.Now().UTC()
	_, err := fixtures.DB().Collection("users").UpdateByID(ctx, user.ID,
		bson.M{"$set": bson.M{"is_banned": true, "banned_at": now}})
	if err != nil {
		t.Fatalf("flag user: %v", err)
	}

	body := jsonBody(t, map[string]any{"userId": user.ID.Hex()})
	req := httptest.NewRequest("POST", "/admin/users/ban", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, adminSession())

	rec := httptest.NewRecorder()
	handler.HandleBan(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleUnban_WithinWindowRestores(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	user := fixtures.CreateUser(ctx, "Reformed", models.AppRoleMember)
	role := fixtures.CreateRole(ctx, club.ID, "Member", nil)
	fixtures.AddMember(ctx, club.ID, user.ID, role.ID)

	// Ban state as HandleBan leaves it: club side purged, snapshot kept.
	if _, err := db.Collection("clubs").UpdateByID(ctx, club.ID,
		bson.M{"$pull": bson.M{"members": bson.M{"user_id": user.ID}}}); err != nil {
		t.Fatalf("purge club side: %v", err)
	}
	bannedAt := time.Now().UTC().Add(-24 * time.Hour)
	if _, err := db.Collection("users").UpdateByID(ctx, user.ID,
		bson.M{"$set": bson.M{"is_banned": true, "banned_at": bannedAt}}); err != nil {
		t.Fatalf("flag user: %v", err)
	}

	body := jsonBody(t, map[string]any{"userId": user.ID.Hex()})
	req := httptest.NewRequest("POST", "/admin/users/unban", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, adminSession())

	rec := httptest.NewRecorder()
	handler.HandleUnban(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		MembershipsRestored bool `json:"membershipsRestored"`
		ClubsRestored       int  `json:"clubsRestored"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.MembershipsRestored || resp.ClubsRestored != 1 {
		t.Errorf("expected 1 club restored, got %+v", resp)
	}

	var gotClub models.Club
	if err := db.Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&gotClub); err != nil {
		t.Fatalf("load club: %v", err)
	}
	entry := gotClub.MemberEntry(user.ID)
	if entry == nil || entry.RoleID != role.ID {
		t.Errorf("expected membership restored with original role, got %+v", entry)
	}

	var gotUser models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": user.ID}).Decode(&gotUser); err != nil {
		t.Fatalf("load user: %v", err)
	}
	if gotUser.IsBanned || gotUser.BannedAt != nil {
		t.Errorf("expected ban flags cleared, got banned=%v bannedAt=%v", gotUser.IsBanned, gotUser.BannedAt)
	}
	fixtures.AssertMirrored(ctx, club.ID, user.ID)
}

func TestHandleUnban_OutsideWindowDropsSnapshot(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	user := fixtures.CreateUser(ctx, "Forgotten", models.AppRoleMember)
	role := fixtures.CreateRole(ctx, club.ID, "Member", nil)
	fixtures.AddMember(ctx, club.ID, user.ID, role.ID)

	if _, err := db.Collection("clubs").UpdateByID(ctx, club.ID,
		bson.M{"$pull": bson.M{"members": bson.M{"user_id": user.ID}}}); err != nil {
		t.Fatalf("purge club side: %v", err)
	}
	bannedAt := time.Now().UTC().Add(-testRestoreWindow - 24*time.Hour)
	if _, err := db.Collection("users").UpdateByID(ctx, user.ID,
		bson.M{"$set": bson.M{"is_banned": true, "banned_at": bannedAt}}); err != nil {
		t.Fatalf("flag user: %v", err)
	}

	body := jsonBody(t, map[string]any{"userId": user.ID.Hex()})
	req := httptest.NewRequest("POST", "/admin/users/unban", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, adminSession())

	rec := httptest.NewRecorder()
	handler.HandleUnban(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var gotUser models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": user.ID}).Decode(&gotUser); err != nil {
		t.Fatalf("load user: %v", err)
	}
	if gotUser.IsBanned {
		t.Error("expected ban lifted")
	}
	if len(gotUser.Clubs) != 0 {
		t.Errorf("expected snapshot discarded, got %d entries", len(gotUser.Clubs))
	}

	var gotClub models.Club
	if err := db.Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&gotClub); err != nil {
		t.Fatalf("load club: %v", err)
	}
	if gotClub.MemberEntry(user.ID) != nil {
		t.Error("expected membership not restored outside the window")
	}
}

func TestHandleDeleteUser_RemovesAccountAndMemberships(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	user := fixtures.CreateUser(ctx, "Leaving", models.AppRoleMember)
	role := fixtures.CreateRole(ctx, club.ID, "Member", nil)
	fixtures.AddMember(ctx, club.ID, user.ID, role.ID)

	body := jsonBody(t, map[string]any{"userId": user.ID.Hex()})
	req := httptest.NewRequest("POST", "/admin/users/delete", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, adminSession())

	rec := httptest.NewRecorder()
	handler.HandleDeleteUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	count, _ := db.Collection("users").CountDocuments(ctx, bson.M{"_id": user.ID})
	if count != 0 {
		t.Errorf("expected user document deleted, found %d", count)
	}
	var gotClub models.Club
	if err := db.Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&gotClub); err != nil {
		t.Fatalf("load club: %v", err)
	}
	if gotClub.MemberEntry(user.ID) != nil {
		t.Error("expected club-side membership purged")
	}
}

func TestHandleEnableClub(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Pending Club")
	if _, err := db.Collection("clubs").UpdateByID(ctx, club.ID,
		bson.M{"$set": bson.M{"is_enabled": false}}); err != nil {
		t.Fatalf("disable club: %v", err)
	}

	body := jsonBody(t, map[string]any{"clubId": club.ID.Hex()})
	req := httptest.NewRequest("POST", "/admin/clubs/enable", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, adminSession())

	rec := httptest.NewRecorder()
	handler.HandleEnableClub(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var got models.Club
	if err := db.Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&got); err != nil {
		t.Fatalf("load club: %v", err)
	}
	if !got.IsEnabled {
		t.Error("expected club enabled")
	}
}

func TestHandleEnableClub_DeletedClub(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Gone Club")
	now := time.Now().UTC()
	if _, err := fixtures.DB().Collection("clubs").UpdateByID(ctx, club.ID,
		bson.M{"$set": bson.M{"deleted.is_deleted": true, "deleted.deleted_at": now}}); err != nil {
		t.Fatalf("soft delete club: %v", err)
	}

	body := jsonBody(t, map[string]any{"clubId": club.ID.Hex()})
	req := httptest.NewRequest("POST", "/admin/clubs/enable", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, adminSession())

	rec := httptest.NewRecorder()
	handler.HandleEnableClub(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
