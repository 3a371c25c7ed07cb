// internal/app/features/clubs/handler.go
package clubs

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

// Handler is the feature-level handler for club lifecycle and profile.
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

type clubView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Logo        string   `json:"logo"`
	Theme       string   `json:"theme"`
	Tags        []string `json:"tags"`
	Pictures    []string `json:"pictures"`
	IsEnabled   bool     `json:"isEnabled"`
	MemberCount int      `json:"memberCount"`
}

func viewOf(c *models.Club) clubView {
	return clubView{
		ID:          c.ID.Hex(),
		Name:        c.Name,
		Description: c.Description,
		Logo:        c.Logo,
		Theme:       c.Theme,
		Tags:        c.Tags,
		Pictures:    c.Pictures,
		IsEnabled:   c.IsEnabled,
		MemberCount: len(c.Members),
	}
}

// HandleCreate creates a club and makes the requester its owner via the
// owner preset role. New clubs start disabled until an admin enables
// them.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Logo        string   `json:"logo"`
		Theme       string   `json:"theme"`
		Tags        []string `json:"tags"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}

	name := htmlsanitize.Strip(req.Name)
	if name == "" {
		httpjson.BadRequest(w, "club name is required")
		return
	}
	for _, tag := range req.Tags {
		if !models.IsValidClubTag(tag) {
			httpjson.BadRequest(w, "unknown tag: "+tag)
			return
		}
	}

	club, err := h.Clubs.Create(r.Context(), models.Club{
		Name:        name,
		Description: htmlsanitize.Sanitize(req.Description),
		Logo:        req.Logo,
		Theme:       req.Theme,
		Tags:        req.Tags,
		IsEnabled:   false,
	})
	if err != nil {
		if errors.Is(err, clubstore.ErrDuplicateClubName) {
			httpjson.BadRequest(w, err.Error())
			return
		}
		httpjson.Internal(w, h.Log, "club create", err)
		return
	}

	owner, err := h.Roles.FindPreset(r.Context(), models.OwnerRoleName)
	if err != nil {
		httpjson.Internal(w, h.Log, "club create owner preset", err)
		return
	}
	if err := h.Members.AddDirect(r.Context(), club.ID, user.ID, owner.ID); err != nil {
		httpjson.Internal(w, h.Log, "club create owner membership", err)
		return
	}

	h.Log.Info("club created",
		zap.String("club_id", club.ID.Hex()),
		zap.String("owner_id", user.ID.Hex()))
	httpjson.Write(w, http.StatusCreated, viewOf(&club))
}

// ServeList handles the directory: live, enabled clubs with optional
// name and tag filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clubs, err := h.Clubs.List(r.Context(), q.Get("name"), q.Get("tag"), 100, 0)
	if err != nil {
		httpjson.Internal(w, h.Log, "club list", err)
		return
	}

	out := make([]clubView, 0, len(clubs))
	for i := range clubs {
		out = append(out, viewOf(&clubs[i]))
	}
	httpjson.OK(w, map[string]any{"clubs": out})
}

// ServeSearch is the name-only directory search.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.Clubs.List(r.Context(), r.URL.Query().Get("name"), "", 100, 0)
	if err != nil {
		httpjson.Internal(w, h.Log, "club search", err)
		return
	}
	out := make([]clubView, 0, len(clubs))
	for i := range clubs {
		out = append(out, viewOf(&clubs[i]))
	}
	httpjson.OK(w, map[string]any{"clubs": out})
}

// ServeTags returns the fixed tag vocabulary.
func (h *Handler) ServeTags(w http.ResponseWriter, r *http.Request) {
	httpjson.OK(w, map[string]any{"tags": models.ClubTags})
}

// ServeProfile returns one club's public profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	club, ok := h.loadLiveClub(w, r, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	httpjson.OK(w, viewOf(club))
}

// HandleUpdate rewrites the club's editable fields. Requires the manage
// permission.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req struct {
		ClubID      string   `json:"clubId"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Logo        string   `json:"logo"`
		Theme       string   `json:"theme"`
		Tags        []string `json:"tags"`
		Pictures    []string `json:"pictures"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	club, ok := h.loadLiveClub(w, r, req.ClubID)
	if !ok {
		return
	}
	if !h.requirePermission(w, r, club, user.ID, models.PermManageClub) {
		return
	}
	for _, tag := range req.Tags {
		if !models.IsValidClubTag(tag) {
			httpjson.BadRequest(w, "unknown tag: "+tag)
			return
		}
	}

	err := h.Clubs.UpdateInfo(r.Context(), club.ID,
		htmlsanitize.Strip(req.Name),
		htmlsanitize.Sanitize(req.Description),
		req.Logo, req.Theme, req.Tags, req.Pictures)
	if err != nil {
		if errors.Is(err, clubstore.ErrDuplicateClubName) {
			httpjson.BadRequest(w, err.Error())
			return
		}
		httpjson.Internal(w, h.Log, "club update", err)
		return
	}
	httpjson.Message(w, "club updated")
}

// HandleTheme updates just the theme. Requires the manage permission.
func (h *Handler) HandleTheme(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
		Theme  string `json:"theme"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	club, ok := h.loadLiveClub(w, r, req.ClubID)
	if !ok {
		return
	}
	if !h.requirePermission(w, r, club, user.ID, models.PermManageClub) {
		return
	}

	err := h.Clubs.UpdateInfo(r.Context(), club.ID, "", club.Description, club.Logo, req.Theme, nil, nil)
	if err != nil {
		httpjson.Internal(w, h.Log, "club theme", err)
		return
	}
	httpjson.Message(w, "theme updated")
}

// ServeGallery returns a club's picture gallery.
func (h *Handler) ServeGallery(w http.ResponseWriter, r *http.Request) {
	club, ok := h.loadLiveClub(w, r, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	httpjson.OK(w, map[string]any{"pictures": club.Pictures})
}

// HandleGallery replaces the picture gallery. Requires the manage
// permission.
func (h *Handler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req struct {
		ClubID   string   `json:"clubId"`
		Pictures []string `json:"pictures"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	club, ok := h.loadLiveClub(w, r, req.ClubID)
	if !ok {
		return
	}
	if !h.requirePermission(w, r, club, user.ID, models.PermManageClub) {
		return
	}
	if req.Pictures == nil {
		req.Pictures = []string{}
	}

	err := h.Clubs.UpdateInfo(r.Context(), club.ID, "", club.Description, club.Logo, club.Theme, nil, req.Pictures)
	if err != nil {
		httpjson.Internal(w, h.Log, "club gallery", err)
		return
	}
	httpjson.Message(w, "gallery updated")
}

// HandleDelete soft-deletes the club. Only an owner-equivalent member
// may do this; the name becomes reusable afterwards.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req struct {
		ClubID string `json:"clubId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	club, ok := h.loadLiveClub(w, r, req.ClubID)
	if !ok {
		return
	}

	isOwner, err := h.Policy.IsOwner(r.Context(), club, user.ID)
	if err != nil {
		httpjson.Internal(w, h.Log, "club delete owner check", err)
		return
	}
	if !isOwner {
		httpjson.Forbidden(w, "only an owner can delete the club")
		return
	}

	if err := h.Clubs.SoftDelete(r.Context(), club.ID); err != nil {
		httpjson.Internal(w, h.Log, "club delete", err)
		return
	}
	h.Log.Info("club deleted",
		zap.String("club_id", club.ID.Hex()),
		zap.String("by", user.ID.Hex()))
	httpjson.Message(w, "club deleted")
}

// helpers

func (h *Handler) loadLiveClub(w http.ResponseWriter, r *http.Request, idHex string) (*models.Club, bool) {
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return nil, false
	}
	club, err := h.Clubs.FindLiveByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, clubstore.ErrClubDeleted) {
			httpjson.NotFound(w, "club not found")
			return nil, false
		}
		httpjson.Internal(w, h.Log, "club load", err)
		return nil, false
	}
	return club, true
}

func (h *Handler) requirePermission(w http.ResponseWriter, r *http.Request, club *models.Club, userID primitive.ObjectID, perm string) bool {
	ok, err := h.Policy.HasPermission(r.Context(), club, userID, perm)
	if err != nil {
		httpjson.Internal(w, h.Log, "club permission check", err)
		return false
	}
	if !ok {
		httpjson.Forbidden(w, "missing permission: "+perm)
		return false
	}
	return true
}
