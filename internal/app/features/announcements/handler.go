// internal/app/features/announcements/handler.go
package announcements

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/clubhub/internal/app/policy/clubpolicy"
	announcementstore "github.com/dalemusser/clubhub/internal/app/store/announcements"
	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	rolestore "github.com/dalemusser/clubhub/internal/app/store/roles"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/clubhub/internal/app/system/httpjson"
	"github.com/dalemusser/clubhub/internal/app/system/notify"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const listLimit = 50

type Handler struct {
	DB            *mongo.Database
	Log           *zap.Logger
	Clubs         *clubstore.Store
	Announcements *announcementstore.Store
	Policy        *clubpolicy.Policy
	Notifier      notify.Dispatcher
}

func NewHandler(db *mongo.Database, notifier notify.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		DB:            db,
		Log:           logger,
		Clubs:         clubstore.New(db),
		Announcements: announcementstore.New(db),
		Policy:        clubpolicy.New(rolestore.New(db)),
		Notifier:      notifier,
	}
}

type announcementView struct {
	ID        string    `json:"id"`
	ClubID    string    `json:"clubId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HandlePost publishes an announcement to a club and pushes it to every
// member except the author.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID  string `json:"clubId"`
		Message string `json:"message"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, err := primitive.ObjectIDFromHex(req.ClubID)
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return
	}
	message := htmlsanitize.Strip(req.Message)
	if message == "" {
		httpjson.BadRequest(w, "message is required")
		return
	}

	club, ok := h.requirePermission(w, r, clubID, actor.ID, models.PermManageAnnouncements)
	if !ok {
		return
	}

	created, err := h.Announcements.Create(r.Context(), clubID, message)
	if err != nil {
		httpjson.Internal(w, h.Log, "announcement create", err)
		return
	}

	if h.Notifier != nil {
		recipients := make([]primitive.ObjectID, 0, len(club.Members))
		for _, m := range club.Members {
			if m.UserID != actor.ID {
				recipients = append(recipients, m.UserID)
			}
		}
		if len(recipients) > 0 {
			h.Notifier.Dispatch(r.Context(), notify.Notification{
				UserIDs: recipients,
				Title:   club.Name,
				Body:    message,
				Data:    map[string]string{"clubId": clubID.Hex()},
			})
		}
	}

	httpjson.Write(w, http.StatusCreated, announcementView{
		ID:        created.ID.Hex(),
		ClubID:    created.ClubID.Hex(),
		Message:   created.Message,
		Timestamp: created.Timestamp,
	})
}

// ServeList returns a club's recent announcements, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	clubID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("id"))
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return
	}
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeClubError(w, "announcement list", err)
		return
	}
	if club.MemberEntry(actor.ID) == nil && actor.AppRole != models.AppRoleAdmin {
		httpjson.Forbidden(w, "only members can view announcements")
		return
	}

	list, err := h.Announcements.ListByClub(r.Context(), clubID, listLimit)
	if err != nil {
		httpjson.Internal(w, h.Log, "announcement list", err)
		return
	}
	out := make([]announcementView, 0, len(list))
	for _, a := range list {
		out = append(out, announcementView{
			ID:        a.ID.Hex(),
			ClubID:    a.ClubID.Hex(),
			Message:   a.Message,
			Timestamp: a.Timestamp,
		})
	}
	httpjson.OK(w, map[string]any{"announcements": out})
}

// HandleDelete removes an announcement.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID         string `json:"clubId"`
		AnnouncementID string `json:"announcementId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, err := primitive.ObjectIDFromHex(req.ClubID)
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return
	}
	announcementID, err := primitive.ObjectIDFromHex(req.AnnouncementID)
	if err != nil {
		httpjson.BadRequest(w, "invalid announcement id")
		return
	}

	if _, ok := h.requirePermission(w, r, clubID, actor.ID, models.PermManageAnnouncements); !ok {
		return
	}

	if err := h.Announcements.Delete(r.Context(), clubID, announcementID); err != nil {
		if errors.Is(err, announcementstore.ErrAnnouncementNotFound) {
			httpjson.NotFound(w, "announcement not found")
			return
		}
		httpjson.Internal(w, h.Log, "announcement delete", err)
		return
	}
	httpjson.Message(w, "announcement deleted")
}

func (h *Handler) requirePermission(w http.ResponseWriter, r *http.Request, clubID, userID primitive.ObjectID, perm string) (*models.Club, bool) {
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeClubError(w, "announcement permission check", err)
		return nil, false
	}
	ok, err := h.Policy.HasPermission(r.Context(), club, userID, perm)
	if err != nil {
		httpjson.Internal(w, h.Log, "announcement permission check", err)
		return nil, false
	}
	if !ok {
		httpjson.Forbidden(w, "missing permission: "+perm)
		return nil, false
	}
	return club, true
}

func (h *Handler) writeClubError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, clubstore.ErrClubDeleted) {
		httpjson.NotFound(w, "club not found")
		return
	}
	httpjson.Internal(w, h.Log, op, err)
}
