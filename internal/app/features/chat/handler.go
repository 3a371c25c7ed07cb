// internal/app/features/chat/handler.go

// Package chat exposes the websocket endpoint plus the two REST reads
// built on the message store: the thread list and the reconstructed
// per-club transcript.
package chat

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	messagestore "github.com/dalemusser/clubhub/internal/app/store/messages"
	rolestore "github.com/dalemusser/clubhub/internal/app/store/roles"
	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/app/system/chathub"
	"github.com/dalemusser/clubhub/internal/app/system/httpjson"
	"github.com/dalemusser/clubhub/internal/app/system/ratelimit"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	defaultHistoryPage = 200

	// Upgrade attempts per client IP per minute. The endpoint is open
	// until the login event, so this is the only pre-auth throttle.
	upgradesPerMinute = 12
)

type Handler struct {
	DB       *mongo.Database
	Log      *zap.Logger
	Hub      *chathub.Hub
	Users    *userstore.Store
	Clubs    *clubstore.Store
	Roles    *rolestore.Store
	Messages *messagestore.Store

	upgrader       websocket.Upgrader
	upgradeLimiter *ratelimit.Limiter
}

func NewHandler(db *mongo.Database, hub *chathub.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      logger,
		Hub:      hub,
		Users:    userstore.New(db),
		Clubs:    clubstore.New(db),
		Roles:    rolestore.New(db),
		Messages: messagestore.New(db),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens after the upgrade, in the login event.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		upgradeLimiter: ratelimit.New(upgradesPerMinute, time.Minute),
	}
}

// HandleSocket upgrades the connection and hands it to the hub. The
// socket authenticates itself with a login event; no HTTP-level auth.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)
	if !h.upgradeLimiter.Allow(ip) {
		h.Log.Warn("websocket upgrade rate limited", zap.String("ip", ip))
		httpjson.Write(w, http.StatusTooManyRequests, map[string]string{"error": "too many connection attempts"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Hub.Serve(conn)
}

type threadView struct {
	ClubID   string `json:"clubId"`
	Name     string `json:"name"`
	Logo     string `json:"logo,omitempty"`
	RoleName string `json:"roleName,omitempty"`

	Latest *threadMessage `json:"latestMessage,omitempty"`
}

type threadMessage struct {
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// ServeThreads lists the caller's chat threads: one per club membership,
// with the caller's role name and the most recent message for preview.
// Clubs that have gone quiet still appear, just without a preview.
func (h *Handler) ServeThreads(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	user, err := h.Users.FindByID(r.Context(), actor.ID)
	if err != nil {
		httpjson.Internal(w, h.Log, "chat threads", err)
		return
	}

	clubIDs := make([]primitive.ObjectID, 0, len(user.Clubs))
	roleIDs := make([]primitive.ObjectID, 0, len(user.Clubs))
	for _, m := range user.Clubs {
		clubIDs = append(clubIDs, m.ClubID)
		roleIDs = append(roleIDs, m.RoleID)
	}

	clubs, err := h.Clubs.FindByIDs(r.Context(), clubIDs)
	if err != nil {
		httpjson.Internal(w, h.Log, "chat threads", err)
		return
	}
	roles, err := h.Roles.FindByIDs(r.Context(), roleIDs)
	if err != nil {
		httpjson.Internal(w, h.Log, "chat threads", err)
		return
	}
	latest, err := h.Messages.LatestPerClub(r.Context(), clubIDs)
	if err != nil {
		httpjson.Internal(w, h.Log, "chat threads", err)
		return
	}

	byID := make(map[primitive.ObjectID]models.Club, len(clubs))
	for _, c := range clubs {
		byID[c.ID] = c
	}

	threads := make([]threadView, 0, len(user.Clubs))
	for _, m := range user.Clubs {
		club, ok := byID[m.ClubID]
		if !ok {
			continue
		}
		tv := threadView{ClubID: club.ID.Hex(), Name: club.Name, Logo: club.Logo}
		if role, ok := roles[m.RoleID]; ok {
			tv.RoleName = role.Name
		}
		if msg, ok := latest[m.ClubID]; ok {
			tv.Latest = &threadMessage{
				AuthorName: msg.AuthorName,
				Body:       msg.Body,
				Timestamp:  msg.Timestamp,
			}
		}
		threads = append(threads, tv)
	}
	httpjson.OK(w, map[string]any{"threads": threads})
}

// ServeHistory returns a club's transcript as author runs with date
// separators, oldest first. Pagination walks backwards with ?before=;
// each page is reconstructed independently.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	clubID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("id"))
	if err != nil {
		httpjson.BadRequest(w, "invalid id")
		return
	}

	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, clubstore.ErrClubDeleted) {
			httpjson.NotFound(w, "club not found")
			return
		}
		httpjson.Internal(w, h.Log, "chat history", err)
		return
	}
	if club.MemberEntry(actor.ID) == nil && actor.AppRole != models.AppRoleAdmin {
		httpjson.Forbidden(w, "only members can read the club chat")
		return
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httpjson.BadRequest(w, "before must be RFC 3339")
			return
		}
	}
	limit := int64(defaultHistoryPage)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 1000 {
			httpjson.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	msgs, err := h.Messages.History(r.Context(), clubID, before, limit)
	if err != nil {
		httpjson.Internal(w, h.Log, "chat history", err)
		return
	}

	// The store pages newest first; the transcript reads oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	entries := BuildTranscript(msgs, actor.ID)
	h.attachAuthorPictures(r, entries)

	resp := map[string]any{"entries": entries}
	if len(msgs) > 0 {
		resp["oldest"] = msgs[0].Timestamp.Format(time.RFC3339Nano)
	}
	httpjson.OK(w, resp)
}

// attachAuthorPictures fills in current profile pictures, which are not
// snapshotted on messages. Lookup failures leave the pictures empty.
func (h *Handler) attachAuthorPictures(r *http.Request, entries []TranscriptEntry) {
	ids := make([]primitive.ObjectID, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDate {
			continue
		}
		if _, dup := seen[e.AuthorID]; dup {
			continue
		}
		seen[e.AuthorID] = struct{}{}
		if id, err := primitive.ObjectIDFromHex(e.AuthorID); err == nil {
			ids = append(ids, id)
		}
	}

	users, err := h.Users.FindByIDs(r.Context(), ids)
	if err != nil {
		h.Log.Debug("author picture lookup failed", zap.Error(err))
		return
	}
	for i := range entries {
		if entries[i].IsDate {
			continue
		}
		if id, err := primitive.ObjectIDFromHex(entries[i].AuthorID); err == nil {
			if u, ok := users[id]; ok {
				entries[i].AuthorPicture = u.ProfilePicture
			}
		}
	}
}
