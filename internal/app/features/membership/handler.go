// internal/app/features/membership/handler.go

// Package membership exposes the join request and membership endpoints:
// request, approve, deny, kick, leave. Every transition is validated
// here and in the store before any write, and both sides of the
// club/user mirror move together.
package membership

import (
	"errors"
	"net/http"

	"github.com/dalemusser/clubhub/internal/app/policy/clubpolicy"
	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	membershipstore "github.com/dalemusser/clubhub/internal/app/store/memberships"
	rolestore "github.com/dalemusser/clubhub/internal/app/store/roles"
	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/app/system/httpjson"
	"github.com/dalemusser/clubhub/internal/app/system/metrics"
	"github.com/dalemusser/clubhub/internal/app/system/notify"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB       *mongo.Database
	Log      *zap.Logger
	Users    *userstore.Store
	Clubs    *clubstore.Store
	Roles    *rolestore.Store
	Members  *membershipstore.Store
	Policy   *clubpolicy.Policy
	Notifier notify.Dispatcher
}

func NewHandler(db *mongo.Database, notifier notify.Dispatcher, logger *zap.Logger) *Handler {
	roles := rolestore.New(db)
	return &Handler{
		DB:       db,
		Log:      logger,
		Users:    userstore.New(db),
		Clubs:    clubstore.New(db),
		Roles:    roles,
		Members:  membershipstore.New(db, logger),
		Policy:   clubpolicy.New(roles),
		Notifier: notifier,
	}
}

// HandleJoin records a pending join request for the caller.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID, "club")
	if !ok {
		return
	}

	if err := h.Members.RequestJoin(r.Context(), user.ID, clubID); err != nil {
		h.writeTransitionError(w, "join request", err)
		return
	}
	metrics.JoinRequest("requested")

	h.notifyApprovers(r, clubID, user.Name+" requested to join")
	httpjson.Message(w, "join request submitted")
}

// HandleApprove turns a pending request into a membership with the
// member preset role. Requires the approval permission.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
		UserID string `json:"userId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID, "club")
	if !ok {
		return
	}
	targetID, ok := parseID(w, req.UserID, "user")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, clubID, actor.ID, models.PermApproveMembers) {
		return
	}

	memberRole, err := h.Roles.FindPreset(r.Context(), models.MemberRoleName)
	if err != nil {
		httpjson.Internal(w, h.Log, "approve member preset", err)
		return
	}
	if err := h.Members.Approve(r.Context(), clubID, targetID, memberRole.ID); err != nil {
		h.writeTransitionError(w, "approve", err)
		return
	}
	metrics.JoinRequest("approved")

	h.notifyUser(r, targetID, "Your join request was approved")
	httpjson.Message(w, "member approved")
}

// HandleDeny removes a pending request. Denial is not terminal; the
// user may request again.
func (h *Handler) HandleDeny(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
		UserID string `json:"userId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID, "club")
	if !ok {
		return
	}
	targetID, ok := parseID(w, req.UserID, "user")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, clubID, actor.ID, models.PermApproveMembers) {
		return
	}

	if err := h.Members.Deny(r.Context(), clubID, targetID); err != nil {
		h.writeTransitionError(w, "deny", err)
		return
	}
	metrics.JoinRequest("denied")

	h.notifyUser(r, targetID, "Your join request was denied")
	httpjson.Message(w, "request denied")
}

// HandleKick removes another member. Owner-equivalent members cannot be
// kicked.
func (h *Handler) HandleKick(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
		UserID string `json:"userId"`
		Reason string `json:"reason"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID, "club")
	if !ok {
		return
	}
	targetID, ok := parseID(w, req.UserID, "user")
	if !ok {
		return
	}
	if targetID == actor.ID {
		httpjson.BadRequest(w, "use leave to remove yourself")
		return
	}

	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeTransitionError(w, "kick", err)
		return
	}
	allowed, err := h.Policy.CanRemove(r.Context(), club, actor.ID, targetID)
	if err != nil {
		httpjson.Internal(w, h.Log, "kick permission check", err)
		return
	}
	if !allowed {
		httpjson.Forbidden(w, "cannot remove this member")
		return
	}

	if err := h.Members.Remove(r.Context(), clubID, targetID); err != nil {
		h.writeTransitionError(w, "kick", err)
		return
	}

	body := "You were removed from " + club.Name
	if req.Reason != "" {
		body += ": " + req.Reason
	}
	h.notifyUser(r, targetID, body)

	h.Log.Info("member kicked",
		zap.String("club_id", clubID.Hex()),
		zap.String("target_id", targetID.Hex()),
		zap.String("by", actor.ID.Hex()))
	httpjson.Message(w, "member removed")
}

// HandleLeave removes the caller's own membership. The club's last
// owner-equivalent member cannot leave.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID, "club")
	if !ok {
		return
	}

	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeTransitionError(w, "leave", err)
		return
	}

	isOwner, err := h.Policy.IsOwner(r.Context(), club, user.ID)
	if err != nil {
		httpjson.Internal(w, h.Log, "leave owner check", err)
		return
	}
	if isOwner {
		owners, err := h.Policy.OwnerCount(r.Context(), club)
		if err != nil {
			httpjson.Internal(w, h.Log, "leave owner count", err)
			return
		}
		if owners <= 1 {
			httpjson.Forbidden(w, "the last owner cannot leave the club")
			return
		}
	}

	if err := h.Members.Remove(r.Context(), clubID, user.ID); err != nil {
		h.writeTransitionError(w, "leave", err)
		return
	}
	httpjson.Message(w, "left club")
}

type requestView struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Picture     string `json:"picture"`
	RequestedAt string `json:"requestedAt"`
}

// ServeRequests lists a club's pending join requests with requester
// details. Requires the approval permission.
func (h *Handler) ServeRequests(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	clubID, ok := parseID(w, r.URL.Query().Get("id"), "club")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, clubID, actor.ID, models.PermApproveMembers) {
		return
	}

	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeTransitionError(w, "requests", err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(club.JoinRequests))
	for _, jr := range club.JoinRequests {
		ids = append(ids, jr.UserID)
	}
	users, err := h.Users.FindByIDs(r.Context(), ids)
	if err != nil {
		httpjson.Internal(w, h.Log, "requests user lookup", err)
		return
	}

	out := make([]requestView, 0, len(club.JoinRequests))
	for _, jr := range club.JoinRequests {
		u := users[jr.UserID]
		out = append(out, requestView{
			UserID:      jr.UserID.Hex(),
			Name:        u.Name,
			Picture:     u.ProfilePicture,
			RequestedAt: jr.RequestedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	httpjson.OK(w, map[string]any{"requests": out})
}

type memberView struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	RoleID   string `json:"roleId"`
	RoleName string `json:"roleName"`
}

// ServeMembers lists a club's members with their role names. Any club
// member may view the roster.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	clubID, ok := parseID(w, r.URL.Query().Get("id"), "club")
	if !ok {
		return
	}
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeTransitionError(w, "members", err)
		return
	}
	if club.MemberEntry(actor.ID) == nil && actor.AppRole != models.AppRoleAdmin {
		httpjson.Forbidden(w, "only members can view the roster")
		return
	}

	userIDs := make([]primitive.ObjectID, 0, len(club.Members))
	roleIDs := make([]primitive.ObjectID, 0, len(club.Members))
	for _, m := range club.Members {
		userIDs = append(userIDs, m.UserID)
		roleIDs = append(roleIDs, m.RoleID)
	}
	users, err := h.Users.FindByIDs(r.Context(), userIDs)
	if err != nil {
		httpjson.Internal(w, h.Log, "members user lookup", err)
		return
	}
	roles, err := h.Roles.FindByIDs(r.Context(), roleIDs)
	if err != nil {
		httpjson.Internal(w, h.Log, "members role lookup", err)
		return
	}

	out := make([]memberView, 0, len(club.Members))
	for _, m := range club.Members {
		u := users[m.UserID]
		out = append(out, memberView{
			UserID:   m.UserID.Hex(),
			Name:     u.Name,
			Picture:  u.ProfilePicture,
			RoleID:   m.RoleID.Hex(),
			RoleName: roles[m.RoleID].Name,
		})
	}
	httpjson.OK(w, map[string]any{"members": out})
}

// helpers

func parseID(w http.ResponseWriter, hex, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		httpjson.BadRequest(w, "invalid "+what+" id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) requirePermission(w http.ResponseWriter, r *http.Request, clubID, userID primitive.ObjectID, perm string) bool {
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeTransitionError(w, "permission check", err)
		return false
	}
	ok, err := h.Policy.HasPermission(r.Context(), club, userID, perm)
	if err != nil {
		httpjson.Internal(w, h.Log, "permission check", err)
		return false
	}
	if !ok {
		httpjson.Forbidden(w, "missing permission: "+perm)
		return false
	}
	return true
}

// writeTransitionError maps store sentinels onto the HTTP error
// taxonomy: unknown club is 404, business-rule failures are 400.
func (h *Handler) writeTransitionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, membershipstore.ErrClubUnavailable),
		errors.Is(err, clubstore.ErrClubDeleted),
		errors.Is(err, mongo.ErrNoDocuments):
		httpjson.NotFound(w, "club not found")
	case errors.Is(err, membershipstore.ErrAlreadyMember),
		errors.Is(err, membershipstore.ErrAlreadyRequested),
		errors.Is(err, membershipstore.ErrNoPendingRequest),
		errors.Is(err, membershipstore.ErrNotMember):
		httpjson.BadRequest(w, err.Error())
	default:
		httpjson.Internal(w, h.Log, op, err)
	}
}

// notifyApprovers pushes to every member whose role can approve
// requests. Best effort.
func (h *Handler) notifyApprovers(r *http.Request, clubID primitive.ObjectID, body string) {
	if h.Notifier == nil {
		return
	}
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		return
	}
	roleIDs := make([]primitive.ObjectID, 0, len(club.Members))
	for _, m := range club.Members {
		roleIDs = append(roleIDs, m.RoleID)
	}
	roles, err := h.Roles.FindByIDs(r.Context(), roleIDs)
	if err != nil {
		return
	}
	var recipients []primitive.ObjectID
	for _, m := range club.Members {
		if role, ok := roles[m.RoleID]; ok && role.Has(models.PermApproveMembers) {
			recipients = append(recipients, m.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}
	h.Notifier.Dispatch(r.Context(), notify.Notification{
		UserIDs: recipients,
		Title:   club.Name,
		Body:    body,
	})
}

func (h *Handler) notifyUser(r *http.Request, userID primitive.ObjectID, body string) {
	if h.Notifier == nil {
		return
	}
	h.Notifier.Dispatch(r.Context(), notify.Notification{
		UserIDs: []primitive.ObjectID{userID},
		Body:    body,
	})
}
