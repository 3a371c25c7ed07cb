package roles_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/clubhub/internal/app/features/roles"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/clubhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*roles.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	handler := roles.NewHandler(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	return handler, fixtures
}

func sessionFor(u models.User) *auth.SessionUser {
	return &auth.SessionUser{ID: u.ID, Name: u.Name, Email: u.Email, AppRole: u.AppRole}
}

func jsonBody(t *testing.T, v any) *strings.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return strings.NewReader(string(raw))
}

func TestHandleCreate_Success(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)

	body := jsonBody(t, map[string]any{
		"clubId":      club.ID.Hex(),
		"name":        "Treasurer",
		"permissions": []string{models.PermManageEvents, models.PermManageAnnouncements},
	})
	req := httptest.NewRequest("POST", "/clubs/roles", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var stored models.Role
	err := db.Collection("roles").FindOne(ctx, bson.M{"name": "Treasurer"}).Decode(&stored)
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if stored.ClubID == nil || *stored.ClubID != club.ID {
		t.Errorf("ClubID: got %v, want %v", stored.ClubID, club.ID)
	}
	if !stored.Has(models.PermManageEvents) {
		t.Errorf("expected stored role to carry %s", models.PermManageEvents)
	}

	// The role id must be attached to the club document.
	var gotClub models.Club
	if err := db.Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&gotClub); err != nil {
		t.Fatalf("load club: %v", err)
	}
	attached := false
	for _, id := range gotClub.RoleIDs {
		if id == stored.ID {
			attached = true
		}
	}
	if !attached {
		t.Error("expected new role id in club.role_ids")
	}
}

func TestHandleCreate_UnknownPermissionsRejectedAsBatch(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)

	body := jsonBody(t, map[string]any{
		"clubId":      club.ID.Hex(),
		"name":        "Broken",
		"permissions": []string{models.PermManageEvents, "FLY", "TELEPORT"},
	})
	req := httptest.NewRequest("POST", "/clubs/roles", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	var resp struct {
		WrongPermissions []string `json:"wrongPermissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.WrongPermissions) != 2 {
		t.Errorf("wrongPermissions: got %v, want both unknown values", resp.WrongPermissions)
	}

	// A partially valid list must not create anything.
	count, _ := db.Collection("roles").CountDocuments(ctx, bson.M{"name": "Broken"})
	if count != 0 {
		t.Errorf("expected 0 roles created, got %d", count)
	}
}

func TestHandleCreate_RequiresManagePermission(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Chess Club")
	member := fixtures.CreateUser(ctx, "Plain Member", models.AppRoleMember)
	plainRole := fixtures.CreateRole(ctx, club.ID, "Member", nil)
	fixtures.AddMember(ctx, club.ID, member.ID, plainRole.ID)

	body := jsonBody(t, map[string]any{
		"clubId": club.ID.Hex(),
		"name":   "Treasurer",
	})
	req := httptest.NewRequest("POST", "/clubs/roles", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(member))

	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestServeList_IncludesPresets(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Chess Club")
	member := fixtures.CreateUser(ctx, "Member", models.AppRoleMember)
	own := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, member.ID, own.ID)

	// Preset shared by every club.
	now := primitive.NewObjectID()
	_, err := fixtures.DB().Collection("roles").InsertOne(ctx, bson.M{
		"_id": now, "name": models.OwnerRoleName, "permissions": models.AllPermissions, "preset": true,
	})
	if err != nil {
		t.Fatalf("insert preset: %v", err)
	}

	req := httptest.NewRequest("GET", "/clubs/roles?id="+club.ID.Hex(), nil)
	req = auth.WithTestUser(req, sessionFor(member))

	rec := httptest.NewRecorder()
	handler.ServeList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		Roles []struct {
			Name   string `json:"name"`
			Preset bool   `json:"preset"`
		} `json:"roles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Roles) != 2 {
		t.Fatalf("expected 2 roles (own + preset), got %d", len(resp.Roles))
	}
	foundPreset := false
	for _, r := range resp.Roles {
		if r.Preset && r.Name == models.OwnerRoleName {
			foundPreset = true
		}
	}
	if !foundPreset {
		t.Error("expected preset role in list")
	}
}

func TestServeList_NonMemberForbidden(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Chess Club")
	outsider := fixtures.CreateUser(ctx, "Outsider", models.AppRoleMember)

	req := httptest.NewRequest("GET", "/clubs/roles?id="+club.ID.Hex(), nil)
	req = auth.WithTestUser(req, sessionFor(outsider))

	rec := httptest.NewRecorder()
	handler.ServeList(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestHandleUpdate_PresetRefused(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Chess Club")
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)

	presetID := primitive.NewObjectID()
	_, err := fixtures.DB().Collection("roles").InsertOne(ctx, bson.M{
		"_id": presetID, "name": models.MemberRoleName, "permissions": []string{}, "preset": true,
	})
	if err != nil {
		t.Fatalf("insert preset: %v", err)
	}

	body := jsonBody(t, map[string]any{
		"clubId": club.ID.Hex(),
		"roleId": presetID.Hex(),
		"name":   "Hijacked",
	})
	req := httptest.NewRequest("PUT", "/clubs/roles", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleUpdate(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestHandleUpdate_Success(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)
	target := fixtures.CreateRole(ctx, club.ID, "Treasurer", []string{models.PermManageEvents})

	body := jsonBody(t, map[string]any{
		"clubId":      club.ID.Hex(),
		"roleId":      target.ID.Hex(),
		"name":        "Finance Lead",
		"permissions": []string{models.PermManageAnnouncements},
	})
	req := httptest.NewRequest("PUT", "/clubs/roles", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var updated models.Role
	if err := db.Collection("roles").FindOne(ctx, bson.M{"_id": target.ID}).Decode(&updated); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if updated.Name != "Finance Lead" {
		t.Errorf("Name: got %q, want %q", updated.Name, "Finance Lead")
	}
	if updated.Has(models.PermManageEvents) || !updated.Has(models.PermManageAnnouncements) {
		t.Errorf("Permissions: got %v, want only %s", updated.Permissions, models.PermManageAnnouncements)
	}
}

func TestHandleDelete_DetachesFromClub(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	db := fixtures.DB()
	club := fixtures.CreateClub(ctx, "Chess Club")
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)
	target := fixtures.CreateRole(ctx, club.ID, "Doomed", nil)

	body := jsonBody(t, map[string]any{
		"clubId": club.ID.Hex(),
		"roleId": target.ID.Hex(),
	})
	req := httptest.NewRequest("DELETE", "/clubs/roles", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	count, _ := db.Collection("roles").CountDocuments(ctx, bson.M{"_id": target.ID})
	if count != 0 {
		t.Errorf("expected role deleted, found %d", count)
	}
	var gotClub models.Club
	if err := db.Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&gotClub); err != nil {
		t.Fatalf("load club: %v", err)
	}
	for _, id := range gotClub.RoleIDs {
		if id == target.ID {
			t.Error("expected role id detached from club.role_ids")
		}
	}
}

func TestHandleAssign_Success(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Chess Club")
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)

	target := fixtures.CreateUser(ctx, "Promoted", models.AppRoleMember)
	plain := fixtures.CreateRole(ctx, club.ID, "Member", nil)
	fixtures.AddMember(ctx, club.ID, target.ID, plain.ID)
	promoted := fixtures.CreateRole(ctx, club.ID, "Event Lead", []string{models.PermManageEvents})

	body := jsonBody(t, map[string]any{
		"clubId": club.ID.Hex(),
		"userId": target.ID.Hex(),
		"roleId": promoted.ID.Hex(),
	})
	req := httptest.NewRequest("POST", "/clubs/roles/assign", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleAssign(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var gotClub models.Club
	if err := fixtures.DB().Collection("clubs").FindOne(ctx, bson.M{"_id": club.ID}).Decode(&gotClub); err != nil {
		t.Fatalf("load club: %v", err)
	}
	entry := gotClub.MemberEntry(target.ID)
	if entry == nil || entry.RoleID != promoted.ID {
		t.Errorf("expected member role updated to %v, got %+v", promoted.ID, entry)
	}
	fixtures.AssertMirrored(ctx, club.ID, target.ID)
}

func TestHandleAssign_ForeignRoleRejected(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Chess Club")
	other := fixtures.CreateClub(ctx, fmt.Sprintf("Other %s", primitive.NewObjectID().Hex()[:6]))
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)

	target := fixtures.CreateUser(ctx, "Member", models.AppRoleMember)
	plain := fixtures.CreateRole(ctx, club.ID, "Member", nil)
	fixtures.AddMember(ctx, club.ID, target.ID, plain.ID)
	foreign := fixtures.CreateRole(ctx, other.ID, "Foreign", []string{models.PermManageEvents})

	body := jsonBody(t, map[string]any{
		"clubId": club.ID.Hex(),
		"userId": target.ID.Hex(),
		"roleId": foreign.ID.Hex(),
	})
	req := httptest.NewRequest("POST", "/clubs/roles/assign", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleAssign(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleAssign_NonMemberRejected(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	club := fixtures.CreateClub(ctx, "Chess Club")
	manager := fixtures.CreateUser(ctx, "Role Manager", models.AppRoleMember)
	managerRole := fixtures.CreateRole(ctx, club.ID, "Officer", []string{models.PermManageRoles})
	fixtures.AddMember(ctx, club.ID, manager.ID, managerRole.ID)

	outsider := fixtures.CreateUser(ctx, "Outsider", models.AppRoleMember)
	role := fixtures.CreateRole(ctx, club.ID, "Member", nil)

	body := jsonBody(t, map[string]any{
		"clubId": club.ID.Hex(),
		"userId": outsider.ID.Hex(),
		"roleId": role.ID.Hex(),
	})
	req := httptest.NewRequest("POST", "/clubs/roles/assign", body)
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, sessionFor(manager))

	rec := httptest.NewRecorder()
	handler.HandleAssign(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
