// internal/app/features/admin/handler.go

// Package admin holds the platform-admin surface: the user directory,
// the ban lifecycle, hard deletes, and club enablement. Every route is
// gated on the ADMIN app role.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	membershipstore "github.com/dalemusser/clubhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/httpjson"
	"github.com/dalemusser/clubhub/internal/app/system/notify"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const defaultPageSize = 50

type Handler struct {
	DB      *mongo.Database
	Log     *zap.Logger
	Users   *userstore.Store
	Clubs   *clubstore.Store
	Members *membershipstore.Store

	// RestoreWindow bounds how long after a ban the membership snapshot
	// is honored on unban. Outside the window the snapshot is discarded
	// and the user starts over with no clubs.
	RestoreWindow time.Duration
	Notifier      notify.Dispatcher
}

func NewHandler(db *mongo.Database, restoreWindow time.Duration, notifier notify.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		DB:            db,
		Log:           logger,
		Users:         userstore.New(db),
		Clubs:         clubstore.New(db),
		Members:       membershipstore.New(db, logger),
		RestoreWindow: restoreWindow,
		Notifier:      notifier,
	}
}

type userRow struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	AppRole  string     `json:"appRole"`
	IsBanned bool       `json:"isBanned"`
	BannedAt *time.Time `json:"bannedAt,omitempty"`
	Clubs    int        `json:"clubs"`
}

// ServeUsers lists accounts for the admin console. ?query= matches a
// name prefix, ?banned=true|false filters by ban state.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var banned *bool
	if raw := q.Get("banned"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			httpjson.BadRequest(w, "banned must be true or false")
			return
		}
		banned = &b
	}
	limit := int64(defaultPageSize)
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 500 {
			httpjson.BadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	var offset int64
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			httpjson.BadRequest(w, "offset must be non-negative")
			return
		}
		offset = n
	}

	users, err := h.Users.List(r.Context(), q.Get("query"), banned, limit, offset)
	if err != nil {
		httpjson.Internal(w, h.Log, "admin user list", err)
		return
	}
	total, err := h.Users.Count(r.Context(), banned)
	if err != nil {
		httpjson.Internal(w, h.Log, "admin user count", err)
		return
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID:       u.ID.Hex(),
			Name:     u.Name,
			Email:    u.Email,
			AppRole:  u.AppRole,
			IsBanned: u.IsBanned,
			BannedAt: u.BannedAt,
			Clubs:    len(u.Clubs),
		})
	}
	httpjson.OK(w, map[string]any{"users": rows, "total": total})
}

// HandleBan removes the user from every club and flags the account. The
// user-side membership arrays survive as the snapshot an unban inside
// the restore window rebuilds from.
func (h *Handler) HandleBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Reason string `json:"reason"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	user, err := h.Users.FindByID(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, "admin ban", err)
		return
	}
	if user.IsBanned {
		httpjson.BadRequest(w, "user is already banned")
		return
	}
	if user.AppRole == models.AppRoleAdmin {
		httpjson.BadRequest(w, "admins cannot be banned")
		return
	}

	if err := h.Members.PurgeUser(r.Context(), userID); err != nil {
		httpjson.Internal(w, h.Log, "admin ban purge", err)
		return
	}
	if err := h.Users.SetBanned(r.Context(), userID, time.Now().UTC()); err != nil {
		httpjson.Internal(w, h.Log, "admin ban flag", err)
		return
	}

	h.Log.Info("user banned",
		zap.String("user_id", userID.Hex()),
		zap.String("reason", req.Reason))
	httpjson.Message(w, "user banned")
}

// HandleUnban lifts a ban. Inside the restore window the club
// memberships come back from the snapshot; outside it the snapshot is
// discarded first.
func (h *Handler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	user, err := h.Users.FindByID(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, "admin unban", err)
		return
	}
	if !user.IsBanned {
		httpjson.BadRequest(w, "user is not banned")
		return
	}

	withinWindow := user.BannedAt != nil &&
		time.Since(*user.BannedAt) <= h.RestoreWindow

	var restored []primitive.ObjectID
	if withinWindow {
		restored, err = h.Members.Restore(r.Context(), user)
		if err != nil {
			httpjson.Internal(w, h.Log, "admin unban restore", err)
			return
		}
	} else {
		if err := h.Members.ClearUserSnapshot(r.Context(), userID); err != nil {
			httpjson.Internal(w, h.Log, "admin unban snapshot clear", err)
			return
		}
	}
	if err := h.Users.ClearBanned(r.Context(), userID); err != nil {
		httpjson.Internal(w, h.Log, "admin unban flag", err)
		return
	}

	if h.Notifier != nil {
		h.Notifier.Dispatch(r.Context(), notify.Notification{
			UserIDs: []primitive.ObjectID{userID},
			Body:    "your account has been reinstated",
		})
	}

	h.Log.Info("user unbanned",
		zap.String("user_id", userID.Hex()),
		zap.Bool("memberships_restored", withinWindow),
		zap.Int("clubs_restored", len(restored)))
	httpjson.OK(w, map[string]any{
		"message":             "user unbanned",
		"membershipsRestored": withinWindow,
		"clubsRestored":       len(restored),
	})
}

// HandleDeleteUser hard-deletes an account after purging it from every
// club. Chat messages keep their author-name snapshots.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	user, err := h.Users.FindByID(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, "admin delete", err)
		return
	}
	if user.AppRole == models.AppRoleAdmin {
		httpjson.BadRequest(w, "admins cannot be deleted")
		return
	}

	if err := h.Members.PurgeUser(r.Context(), userID); err != nil {
		httpjson.Internal(w, h.Log, "admin delete purge", err)
		return
	}
	deleted, err := h.Users.Delete(r.Context(), userID)
	if err != nil {
		httpjson.Internal(w, h.Log, "admin delete", err)
		return
	}
	if deleted == 0 {
		httpjson.NotFound(w, "user not found")
		return
	}

	h.Log.Info("user deleted", zap.String("user_id", userID.Hex()))
	httpjson.Message(w, "user deleted")
}

// HandleEnableClub flips a club's enabled flag. New clubs start
// disabled and stay invisible until this runs.
func (h *Handler) HandleEnableClub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClubID  string `json:"clubId"`
		Enabled *bool  `json:"enabled"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, ok := parseID(w, req.ClubID)
	if !ok {
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	club, err := h.Clubs.FindByID(r.Context(), clubID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.NotFound(w, "club not found")
			return
		}
		httpjson.Internal(w, h.Log, "admin club enable", err)
		return
	}
	if club.Deleted.IsDeleted {
		httpjson.NotFound(w, "club not found")
		return
	}

	if err := h.Clubs.SetEnabled(r.Context(), clubID, enabled); err != nil {
		httpjson.Internal(w, h.Log, "admin club enable", err)
		return
	}

	if h.Notifier != nil && enabled && !club.IsEnabled {
		recipients := make([]primitive.ObjectID, 0, len(club.Members))
		for _, m := range club.Members {
			recipients = append(recipients, m.UserID)
		}
		if len(recipients) > 0 {
			h.Notifier.Dispatch(r.Context(), notify.Notification{
				UserIDs: recipients,
				Title:   club.Name,
				Body:    "your club is now live",
			})
		}
	}

	h.Log.Info("club enablement changed",
		zap.String("club_id", clubID.Hex()),
		zap.Bool("enabled", enabled))
	httpjson.Message(w, "club updated")
}

func parseID(w http.ResponseWriter, hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		httpjson.BadRequest(w, "invalid id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) writeUserError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.NotFound(w, "user not found")
		return
	}
	httpjson.Internal(w, h.Log, op, err)
}
