// internal/app/features/events/handler.go

// Package events manages club events and attendance. Event creation and
// edits need the manage-events permission; any member can RSVP. Edits to
// an event push a notification to everyone who already RSVPed.
package events

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/clubhub/internal/app/policy/clubpolicy"
	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	eventstore "github.com/dalemusser/clubhub/internal/app/store/events"
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

type Handler struct {
	DB       *mongo.Database
	Log      *zap.Logger
	Clubs    *clubstore.Store
	Events   *eventstore.Store
	Policy   *clubpolicy.Policy
	Notifier notify.Dispatcher
}

func NewHandler(db *mongo.Database, notifier notify.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      logger,
		Clubs:    clubstore.New(db),
		Events:   eventstore.New(db),
		Policy:   clubpolicy.New(rolestore.New(db)),
		Notifier: notifier,
	}
}

type eventPayload struct {
	ClubID        string    `json:"clubId"`
	EventID       string    `json:"eventId,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Longitude     float64   `json:"longitude"`
	Latitude      float64   `json:"latitude"`
	ShortLocation string    `json:"shortLocation"`
	Picture       string    `json:"picture"`
}

type eventView struct {
	ID            string    `json:"id"`
	ClubID        string    `json:"clubId"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Longitude     float64   `json:"longitude,omitempty"`
	Latitude      float64   `json:"latitude,omitempty"`
	ShortLocation string    `json:"shortLocation,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	RSVPCount     int       `json:"rsvpCount"`
	Attending     bool      `json:"attending"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func viewOf(e models.Event, viewerID primitive.ObjectID) eventView {
	attending := false
	for _, id := range e.RSVPs {
		if id == viewerID {
			attending = true
		}
	}
	return eventView{
		ID:            e.ID.Hex(),
		ClubID:        e.ClubID.Hex(),
		Name:          e.Name,
		Description:   e.Description,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Longitude:     e.Longitude,
		Latitude:      e.Latitude,
		ShortLocation: e.ShortLocation,
		Picture:       e.Picture,
		RSVPCount:     len(e.RSVPs),
		Attending:     attending,
		LastUpdated:   e.LastUpdated,
	}
}

func (p *eventPayload) toModel(clubID primitive.ObjectID) (models.Event, string) {
	name := htmlsanitize.Strip(p.Name)
	if name == "" {
		return models.Event{}, "event name is required"
	}
	if p.StartTime.IsZero() || p.EndTime.IsZero() {
		return models.Event{}, "startTime and endTime are required"
	}
	if !p.EndTime.After(p.StartTime) {
		return models.Event{}, "endTime must be after startTime"
	}
	return models.Event{
		ClubID:        clubID,
		Name:          name,
		Description:   htmlsanitize.Sanitize(p.Description),
		StartTime:     p.StartTime.UTC(),
		EndTime:       p.EndTime.UTC(),
		Longitude:     p.Longitude,
		Latitude:      p.Latitude,
		ShortLocation: htmlsanitize.Strip(p.ShortLocation),
		Picture:       p.Picture,
	}, ""
}

// HandleCreate adds an event to a club's calendar.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req eventPayload
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, err := primitive.ObjectIDFromHex(req.ClubID)
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return
	}
	if _, ok := h.requirePermission(w, r, clubID, actor.ID, models.PermManageEvents); !ok {
		return
	}

	event, problem := req.toModel(clubID)
	if problem != "" {
		httpjson.BadRequest(w, problem)
		return
	}
	created, err := h.Events.Create(r.Context(), event)
	if err != nil {
		httpjson.Internal(w, h.Log, "event create", err)
		return
	}
	httpjson.Write(w, http.StatusCreated, viewOf(created, actor.ID))
}

// HandleUpdate edits an event and notifies everyone who RSVPed.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req eventPayload
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, err := primitive.ObjectIDFromHex(req.ClubID)
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return
	}
	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		httpjson.BadRequest(w, "invalid event id")
		return
	}
	club, ok := h.requirePermission(w, r, clubID, actor.ID, models.PermManageEvents)
	if !ok {
		return
	}

	event, problem := req.toModel(clubID)
	if problem != "" {
		httpjson.BadRequest(w, problem)
		return
	}
	if err := h.Events.Update(r.Context(), clubID, eventID, event); err != nil {
		h.writeEventError(w, "event update", err)
		return
	}

	h.notifyRSVPs(r, club, eventID, actor.ID, event.Name+" was updated")
	httpjson.Message(w, "event updated")
}

// HandleDelete removes an event, telling the RSVP set it is gone.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		ClubID  string `json:"clubId"`
		EventID string `json:"eventId"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	clubID, err := primitive.ObjectIDFromHex(req.ClubID)
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return
	}
	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		httpjson.BadRequest(w, "invalid event id")
		return
	}
	club, ok := h.requirePermission(w, r, clubID, actor.ID, models.PermManageEvents)
	if !ok {
		return
	}

	// Snapshot the RSVP set before the delete wipes it.
	event, err := h.Events.FindByID(r.Context(), eventID)
	if err != nil {
		h.writeEventError(w, "event delete", err)
		return
	}
	if err := h.Events.Delete(r.Context(), clubID, eventID); err != nil {
		h.writeEventError(w, "event delete", err)
		return
	}

	if h.Notifier != nil {
		recipients := excluding(event.RSVPs, actor.ID)
		if len(recipients) > 0 {
			h.Notifier.Dispatch(r.Context(), notify.Notification{
				UserIDs: recipients,
				Title:   club.Name,
				Body:    event.Name + " was cancelled",
			})
		}
	}
	httpjson.Message(w, "event deleted")
}

// ServeProfile returns one event.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	eventID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("id"))
	if err != nil {
		httpjson.BadRequest(w, "invalid event id")
		return
	}
	event, err := h.Events.FindByID(r.Context(), eventID)
	if err != nil {
		h.writeEventError(w, "event profile", err)
		return
	}
	httpjson.OK(w, viewOf(*event, actor.ID))
}

// ServeList returns a club's events, soonest first. ?upcoming=true hides
// events that already ended.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	clubID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("id"))
	if err != nil {
		httpjson.BadRequest(w, "invalid club id")
		return
	}
	if _, err := h.Clubs.FindLiveByID(r.Context(), clubID); err != nil {
		h.writeClubError(w, "event list", err)
		return
	}

	var from time.Time
	if r.URL.Query().Get("upcoming") == "true" {
		from = time.Now().UTC()
	}
	list, err := h.Events.ListByClub(r.Context(), clubID, from)
	if err != nil {
		httpjson.Internal(w, h.Log, "event list", err)
		return
	}
	out := make([]eventView, 0, len(list))
	for _, e := range list {
		out = append(out, viewOf(e, actor.ID))
	}
	httpjson.OK(w, map[string]any{"events": out})
}

// HandleRSVP toggles the caller on an event's attendance list. Only club
// members may RSVP.
func (h *Handler) HandleRSVP(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)

	var req struct {
		EventID   string `json:"eventId"`
		Attending bool   `json:"attending"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}
	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		httpjson.BadRequest(w, "invalid event id")
		return
	}
	event, err := h.Events.FindByID(r.Context(), eventID)
	if err != nil {
		h.writeEventError(w, "event rsvp", err)
		return
	}
	club, err := h.Clubs.FindLiveByID(r.Context(), event.ClubID)
	if err != nil {
		h.writeClubError(w, "event rsvp", err)
		return
	}
	if club.MemberEntry(actor.ID) == nil {
		httpjson.Forbidden(w, "only members can rsvp")
		return
	}

	if err := h.Events.SetRSVP(r.Context(), eventID, actor.ID, req.Attending); err != nil {
		h.writeEventError(w, "event rsvp", err)
		return
	}
	httpjson.Message(w, "rsvp updated")
}

// helpers

func (h *Handler) requirePermission(w http.ResponseWriter, r *http.Request, clubID, userID primitive.ObjectID, perm string) (*models.Club, bool) {
	club, err := h.Clubs.FindLiveByID(r.Context(), clubID)
	if err != nil {
		h.writeClubError(w, "event permission check", err)
		return nil, false
	}
	ok, err := h.Policy.HasPermission(r.Context(), club, userID, perm)
	if err != nil {
		httpjson.Internal(w, h.Log, "event permission check", err)
		return nil, false
	}
	if !ok {
		httpjson.Forbidden(w, "missing permission: "+perm)
		return nil, false
	}
	return club, true
}

func (h *Handler) notifyRSVPs(r *http.Request, club *models.Club, eventID, actorID primitive.ObjectID, body string) {
	if h.Notifier == nil {
		return
	}
	event, err := h.Events.FindByID(r.Context(), eventID)
	if err != nil {
		return
	}
	recipients := excluding(event.RSVPs, actorID)
	if len(recipients) == 0 {
		return
	}
	h.Notifier.Dispatch(r.Context(), notify.Notification{
		UserIDs: recipients,
		Title:   club.Name,
		Body:    body,
		Data:    map[string]string{"eventId": eventID.Hex()},
	})
}

func excluding(ids []primitive.ObjectID, skip primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}

func (h *Handler) writeEventError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, eventstore.ErrEventNotFound) {
		httpjson.NotFound(w, "event not found")
		return
	}
	httpjson.Internal(w, h.Log, op, err)
}

func (h *Handler) writeClubError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, clubstore.ErrClubDeleted) {
		httpjson.NotFound(w, "club not found")
		return
	}
	httpjson.Internal(w, h.Log, op, err)
}
