// internal/app/features/profile/handler.go

// Package profile serves the signed-in user's own profile and settings,
// public profile views of other users, and push token registration.
package profile

import (
	"errors"
	"net/http"
	"time"

	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/clubhub/internal/app/system/httpjson"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB    *mongo.Database
	Log   *zap.Logger
	Users *userstore.Store
	Clubs *clubstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:    db,
		Log:   logger,
		Users: userstore.New(db),
		Clubs: clubstore.New(db),
	}
}

type clubRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

type profileView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Tags           []string  `json:"tags"`
	AppRole        string    `json:"appRole,omitempty"`
	Clubs          []clubRef `json:"clubs"`

	Settings *models.UserSettings `json:"settings,omitempty"`
	JoinedAt time.Time            `json:"joinedAt"`
}

// ServeOwn returns the caller's full profile, settings included.
func (h *Handler) ServeOwn(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	user, err := h.Users.FindByID(r.Context(), actor.ID)
	if err != nil {
		h.writeUserError(w, "own profile", err)
		return
	}
	view, err := h.buildView(r, user, true)
	if err != nil {
		httpjson.Internal(w, h.Log, "own profile", err)
		return
	}
	httpjson.OK(w, view)
}

// ServeOther returns another user's public profile. Email, settings and
// app role stay private.
func (h *Handler) ServeOther(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("id"))
	if err != nil {
		httpjson.BadRequest(w, "invalid user id")
		return
	}
	user, err := h.Users.FindByID(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, "other profile", err)
		return
	}
	if user.IsBanned || user.IsDisabled {
		httpjson.NotFound(w, "user not found")
		return
	}
	view, err := h.buildView(r, user, false)
	if err != nil {
		httpjson.Internal(w, h.Log, "other profile", err)
		return
	}
	httpjson.OK(w, view)
}

// HandleUpdate edits the caller's profile. Tags must come from the
// fixed vocabulary; an empty list clears them.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		Name           string   `json:"name"`
		Bio            string   `json:"bio"`
		ProfilePicture string   `json:"profilePicture"`
		Tags           []string `json:"tags"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}

	if req.Tags != nil {
		for _, tag := range req.Tags {
			if !models.IsValidClubTag(tag) {
				httpjson.BadRequest(w, "unknown tag: "+tag)
				return
			}
		}
	}

	name := htmlsanitize.Strip(req.Name)
	bio := htmlsanitize.Sanitize(req.Bio)
	if err := h.Users.UpdateProfile(r.Context(), actor.ID, name, bio, req.ProfilePicture, req.Tags); err != nil {
		httpjson.Internal(w, h.Log, "profile update", err)
		return
	}
	httpjson.Message(w, "profile updated")
}

// HandleSettings replaces the caller's settings document.
func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req models.UserSettings
	if !httpjson.Decode(w, r, &req) {
		return
	}
	if err := h.Users.UpdateSettings(r.Context(), actor.ID, req); err != nil {
		httpjson.Internal(w, h.Log, "settings update", err)
		return
	}
	httpjson.Message(w, "settings updated")
}

// HandleRegisterPush stores the device push token. An empty token
// unregisters the device.
func (h *Handler) HandleRegisterPush(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		Token string `json:"token"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	if err := h.Users.SetPushToken(r.Context(), actor.ID, req.Token); err != nil {
		httpjson.Internal(w, h.Log, "push token register", err)
		return
	}
	httpjson.Message(w, "push token registered")
}

func (h *Handler) buildView(r *http.Request, user *models.User, own bool) (profileView, error) {
	clubIDs := make([]primitive.ObjectID, 0, len(user.Clubs))
	for _, m := range user.Clubs {
		clubIDs = append(clubIDs, m.ClubID)
	}
	clubs, err := h.Clubs.FindByIDs(r.Context(), clubIDs)
	if err != nil {
		return profileView{}, err
	}

	refs := make([]clubRef, 0, len(clubs))
	for _, c := range clubs {
		if c.Deleted.IsDeleted {
			continue
		}
		refs = append(refs, clubRef{ID: c.ID.Hex(), Name: c.Name, Logo: c.Logo})
	}

	tags := user.Tags
	if tags == nil {
		tags = []string{}
	}
	view := profileView{
		ID:             user.ID.Hex(),
		Name:           user.Name,
		ProfilePicture: user.ProfilePicture,
		Bio:            user.Bio,
		Tags:           tags,
		Clubs:          refs,
		JoinedAt:       user.CreatedAt,
	}
	if own {
		view.Email = user.Email
		view.AppRole = user.AppRole
		settings := user.Settings
		view.Settings = &settings
	}
	return view, nil
}

func (h *Handler) writeUserError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.NotFound(w, "user not found")
		return
	}
	httpjson.Internal(w, h.Log, op, err)
}
