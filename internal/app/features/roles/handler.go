// internal/app/features/roles/handler.go

// Package roles manages the per-club role registry and role assignment.
// Permission lists are validated as a batch: one unknown permission
// rejects the whole request and the response names every offending
// value.
package roles

import (
	"errors"
	"net/http"

	"github.com/dalemusser/clubhub/internal/app/policy/clubpolicy"
	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	membershipstore "github.com/dalemusser/clubhub/internal/app/store/memberships"
	rolestore "github.com/dalemusser/clubhub/internal/app/store/roles"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/clubhub/internal/app/system/httpjson"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB      *mongo.Database
	Log     *zap.Logger
	Clubs   *clubstore.Store
	Roles   *rolestore.Store
	Members *membershipstore.Store
	Policy  *clubpolicy.Policy
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	roles := rolestore.New(db)
	return &Handler{
		DB:      db,
		Log:     logger,
		Clubs:   clubstore.New(db),
		Roles:   roles,
		Members: membershipstore.New(db, logger),
		Policy:  clubpolicy.New(roles),
	}
}

type roleView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Preset      bool     `json:"preset"`
}

func viewOf(r models.Role) roleView {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleView{ID: r.ID.Hex(), Name: r.Name, Permissions: perms, Preset: r.Preset}
}

// ServeList returns a club's assignable roles: its own plus the presets.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	clubID, ok := parseID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeClubError(w, "role list", err)
		return
	}
	if club.MemberEntry(actor.ID) == nil && actor.AppRole != models.AppRoleAdmin {
		httpjson.Forbidden(w, "only members can view roles")
		return
	}

	roles, err := h.Roles.ListByClub(r.Context(), clubID)
	if err != nil {
		httpjson.Internal(w, h.Log, "role list", err)
		return
	}
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, viewOf(role))
	}
	httpjson.OK(w, map[string]any{"roles": out})
}

// HandleCreate adds a club role. Requires the manage-roles permission;
// the permission list is validated all-or-nothing.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID      string   `json:"clubId"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID)
	if !ok {
		return
	}
	name := htmlsanitize.Strip(req.Name)
	if name == "" {
		httpjson.BadRequest(w, "role name is required")
		return
	}
	if !h.requireManageRoles(w, r, clubID, actor.ID) {
		return
	}

	valid, invalid := models.NormalizePermissions(req.Permissions)
	if len(invalid) > 0 {
		httpjson.Write(w, http.StatusBadRequest, map[string]any{
			"error":            "unknown permissions",
			"wrongPermissions": invalid,
		})
		return
	}

	role, err := h.Roles.Create(r.Context(), clubID, name, valid)
	if err != nil {
		httpjson.Internal(w, h.Log, "role create", err)
		return
	}
	if err := h.Clubs.AttachRole(r.Context(), clubID, role.ID); err != nil {
		httpjson.Internal(w, h.Log, "role attach", err)
		return
	}
	httpjson.Write(w, http.StatusCreated, viewOf(role))
}

// HandleUpdate rewrites a role's name and permissions. The role is
// addressed by id alone; the club in the request is used only for the
// permission check.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID      string   `json:"clubId"`
		RoleID      string   `json:"roleId"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID)
	if !ok {
		return
	}
	roleID, ok := parseID(w, req.RoleID)
	if !ok {
		return
	}
	if !h.requireManageRoles(w, r, clubID, actor.ID) {
		return
	}

	var perms []string
	if req.Permissions != nil {
		valid, invalid := models.NormalizePermissions(req.Permissions)
		if len(invalid) > 0 {
			httpjson.Write(w, http.StatusBadRequest, map[string]any{
				"error":            "unknown permissions",
				"wrongPermissions": invalid,
			})
			return
		}
		perms = valid
		if perms == nil {
			perms = []string{}
		}
	}

	if err := h.Roles.Update(r.Context(), roleID, htmlsanitize.Strip(req.Name), perms); err != nil {
		h.writeRoleError(w, "role update", err)
		return
	}
	httpjson.Message(w, "role updated")
}

// HandleDelete removes a role and detaches it from the club. Members
// still holding the role keep the dangling reference; the roster view
// shows them with an empty role name until reassigned.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
		RoleID string `json:"roleId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID)
	if !ok {
		return
	}
	roleID, ok := parseID(w, req.RoleID)
	if !ok {
		return
	}
	if !h.requireManageRoles(w, r, clubID, actor.ID) {
		return
	}

	if err := h.Roles.Delete(r.Context(), roleID); err != nil {
		h.writeRoleError(w, "role delete", err)
		return
	}
	if err := h.Clubs.DetachRole(r.Context(), clubID, roleID); err != nil {
		httpjson.Internal(w, h.Log, "role detach", err)
		return
	}
	httpjson.Message(w, "role deleted")
}

// HandleAssign changes a member's role. The role must be a preset or
// belong to the club.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
		UserID string `json:"userId"`
		RoleID string `json:"roleId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID)
	if !ok {
		return
	}
	targetID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	roleID, ok := parseID(w, req.RoleID)
	if !ok {
		return
	}
	if !h.requireManageRoles(w, r, clubID, actor.ID) {
		return
	}

	role, err := h.Roles.FindByID(r.Context(), roleID)
	if err != nil {
		h.writeRoleError(w, "role assign", err)
		return
	}
	if !role.Preset && (role.ClubID == nil || *role.ClubID != clubID) {
		httpjson.BadRequest(w, "role does not belong to this club")
		return
	}

	if err := h.Members.AssignRole(r.Context(), clubID, targetID, roleID); err != nil {
		switch {
		case errors.Is(err, membershipstore.ErrNotMember):
			httpjson.BadRequest(w, err.Error())
		case errors.Is(err, membershipstore.ErrClubUnavailable):
			httpjson.NotFound(w, "club not found")
		default:
			httpjson.Internal(w, h.Log, "role assign", err)
		}
		return
	}
	httpjson.Message(w, "role assigned")
}

// helpers

func parseID(w http.ResponseWriter, hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		httpjson.BadRequest(w, "invalid id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) requireManageRoles(w http.ResponseWriter, r *http.Request, clubID, userID primitive.ObjectID) bool {
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeClubError(w, "role permission check", err)
		return false
	}
	ok, err := h.Policy.HasPermission(r.Context(), club, userID, models.PermManageRoles)
	if err != nil {
		httpjson.Internal(w, h.Log, "role permission check", err)
		return false
	}
	if !ok {
		httpjson.Forbidden(w, "missing permission: "+models.PermManageRoles)
		return false
	}
	return true
}

func (h *Handler) writeClubError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, clubstore.ErrClubDeleted) {
		httpjson.NotFound(w, "club not found")
		return
	}
	httpjson.Internal(w, h.Log, op, err)
}

func (h *Handler) writeRoleError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, rolestore.ErrRoleNotFound):
		httpjson.NotFound(w, "role not found")
	case errors.Is(err, rolestore.ErrPresetImmutable):
		httpjson.Forbidden(w, err.Error())
	default:
		httpjson.Internal(w, h.Log, op, err)
	}
}
