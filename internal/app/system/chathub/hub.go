// internal/app/system/chathub/hub.go

// Package chathub runs the websocket side of club chat. Each connection
// logs in with a bearer token, joins a room per club the user belongs to,
// and may then send messages into those rooms. Delivery is at-most-once:
// a message is broadcast to the other room members first and persisted
// afterwards, so readers of history see exactly what was stored even if a
// slow client missed the live event.
package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/clubhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/clubhub/internal/app/system/identity"
	"github.com/dalemusser/clubhub/internal/app/system/metrics"
	"github.com/dalemusser/clubhub/internal/app/system/notify"
	"github.com/dalemusser/clubhub/internal/app/system/ratelimit"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"github.com/dalemusser/clubhub/internal/domain/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// sendBuffer is per client; when it fills, further events for that
	// client are dropped rather than stalling the room.
	sendBuffer = 32
)

// UserSource loads the user behind a login token.
type UserSource interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// MessageSink persists accepted chat messages.
type MessageSink interface {
	Insert(ctx context.Context, m *models.Message) error
}

// MemberSource lists a club's member ids for notification fan-out.
type MemberSource interface {
	MemberIDs(ctx context.Context, clubID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// Hub owns the rooms and the session registry.
type Hub struct {
	log      *zap.Logger
	verifier *identity.TokenVerifier
	users    UserSource
	messages MessageSink
	registry *Registry
	limiter  *ratelimit.Limiter

	// optional notification fan-out after persist
	members  MemberSource
	notifier notify.Dispatcher

	mu    sync.RWMutex
	rooms map[string]map[string]*client // club id hex -> conn id -> client
}

func NewHub(log *zap.Logger, verifier *identity.TokenVerifier, users UserSource, messages MessageSink, registry *Registry, limiter *ratelimit.Limiter) *Hub {
	return &Hub{
		log:      log,
		verifier: verifier,
		users:    users,
		messages: messages,
		registry: registry,
		limiter:  limiter,
		rooms:    make(map[string]map[string]*client),
	}
}

// WithNotifications enables best-effort push fan-out to club members
// after a message is persisted.
func (h *Hub) WithNotifications(members MemberSource, notifier notify.Dispatcher) *Hub {
	h.members = members
	h.notifier = notifier
	return h
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// clubs the connection joined at login; checked before every send.
	mu    sync.RWMutex
	clubs map[string]struct{}
}

func (c *client) inClub(clubID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.clubs[clubID]
	return ok
}

func (c *client) setClubs(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clubs = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.clubs[id] = struct{}{}
	}
}

// Wire events. Clients send login and sendMessage; the server emits
// message events into rooms.
type inboundEvent struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	ClubID string `json:"clubId,omitempty"`
	Body   string `json:"body,omitempty"`
}

type messageEvent struct {
	Type          string    `json:"type"`
	ClubID        string    `json:"clubId"`
	AuthorID      string    `json:"authorId"`
	AuthorName    string    `json:"authorName"`
	AuthorPicture string    `json:"authorPicture"`
	Body          string    `json:"body"`
	Timestamp     time.Time `json:"timestamp"`
	IsSelf        bool      `json:"isSelf"`
	IsDate        bool      `json:"isDate"`
}

// Serve takes over an upgraded websocket connection and runs it until the
// peer disconnects.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		clubs: make(map[string]struct{}),
	}
	metrics.ChatConnOpened()

	go c.writePump()
	c.readPump(h)
}

func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	for clubID, room := range h.rooms {
		if _, ok := room[c.id]; ok {
			delete(room, c.id)
			if len(room) == 0 {
				delete(h.rooms, clubID)
			}
		}
	}
	h.mu.Unlock()

	h.registry.Remove(c.id)
	if h.limiter != nil {
		// Connection ids never recur; drop the window now instead of
		// waiting for the cleanup loop.
		h.limiter.Reset(c.id)
	}
	close(c.send)
	metrics.ChatConnClosed()
}

func (h *Hub) join(c *client, clubID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[clubID]
	if !ok {
		room = make(map[string]*client)
		h.rooms[clubID] = room
	}
	room[c.id] = c
}

// broadcast pushes payload to every room member except exclude. Slow
// clients get the event dropped instead of blocking the sender.
func (h *Hub) broadcast(clubID string, payload []byte, exclude string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, member := range h.rooms[clubID] {
		if id == exclude {
			continue
		}
		select {
		case member.send <- payload:
		default:
			metrics.ChatEventDropped()
		}
	}
}

// handleLogin authenticates the connection and joins it to one room per
// club membership. A bad token is ignored silently so probing yields no
// signal; the connection simply stays unable to send.
func (h *Hub) handleLogin(ctx context.Context, c *client, token string) {
	userID, err := h.verifier.Verify(token)
	if err != nil {
		h.log.Debug("chat login rejected", zap.String("conn", c.id))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	user, err := h.users.FindByID(ctx, userID)
	if err != nil {
		h.log.Debug("chat login user load failed", zap.String("conn", c.id), zap.Error(err))
		return
	}
	if user.IsBanned || user.IsDisabled {
		return
	}

	clubIDs := make([]string, 0, len(user.Clubs))
	for _, m := range user.Clubs {
		clubIDs = append(clubIDs, m.ClubID.Hex())
	}
	c.setClubs(clubIDs)
	for _, id := range clubIDs {
		h.join(c, id)
	}

	h.registry.Put(c.id, Session{
		UserID:  user.ID,
		Name:    user.Name,
		Picture: user.ProfilePicture,
	})

	h.log.Info("chat login",
		zap.String("conn", c.id),
		zap.String("user_id", user.ID.Hex()),
		zap.Int("rooms", len(clubIDs)))
}

// handleSend validates, broadcasts, then persists one message. Connections
// that never logged in are ignored without a reply.
func (h *Hub) handleSend(ctx context.Context, c *client, clubIDHex, body string) {
	sess, ok := h.registry.Get(c.id)
	if !ok {
		return
	}
	if !c.inClub(clubIDHex) {
		return
	}
	// The send budget is per connection; a second device gets its own.
	if h.limiter != nil && !h.limiter.Allow(c.id) {
		h.log.Warn("chat send rate limited",
			zap.String("conn", c.id),
			zap.String("user_id", sess.UserID.Hex()))
		return
	}

	clubID, err := primitive.ObjectIDFromHex(clubIDHex)
	if err != nil {
		return
	}
	body = htmlsanitize.Strip(body)
	if body == "" {
		return
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(messageEvent{
		Type:          "message",
		ClubID:        clubIDHex,
		AuthorID:      sess.UserID.Hex(),
		AuthorName:    sess.Name,
		AuthorPicture: sess.Picture,
		Body:          body,
		Timestamp:     now,
	})
	if err != nil {
		h.log.Error("chat marshal", zap.Error(err))
		return
	}

	// Live delivery happens before the write; history catches anyone who
	// missed it.
	h.broadcast(clubIDHex, payload, c.id)
	metrics.ChatMessageSent()

	dbCtx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	msg := &models.Message{
		ClubID:     clubID,
		AuthorID:   sess.UserID,
		AuthorName: sess.Name,
		Body:       body,
		Timestamp:  now,
	}
	if err := h.messages.Insert(dbCtx, msg); err != nil {
		h.log.Error("chat persist",
			zap.String("club_id", clubIDHex),
			zap.String("author_id", sess.UserID.Hex()),
			zap.Error(err))
	}

	if h.members != nil && h.notifier != nil {
		go h.notifyClub(clubID, sess, body)
	}
}

// notifyClub pushes a best-effort notification to every club member
// except the author. Failures are logged by the dispatcher; nothing here
// blocks or fails the send path.
func (h *Hub) notifyClub(clubID primitive.ObjectID, sess Session, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Medium())
	defer cancel()

	ids, err := h.members.MemberIDs(ctx, clubID)
	if err != nil {
		h.log.Debug("chat notify member lookup failed",
			zap.String("club_id", clubID.Hex()), zap.Error(err))
		return
	}
	recipients := ids[:0]
	for _, id := range ids {
		if id != sess.UserID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	h.notifier.Dispatch(ctx, notify.Notification{
		UserIDs: recipients,
		Title:   sess.Name,
		Body:    body,
		Data:    map[string]string{"clubId": clubID.Hex()},
	})
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("chat read", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "login":
			h.handleLogin(context.Background(), c, ev.Token)
		case "sendMessage":
			h.handleSend(context.Background(), c, ev.ClubID, ev.Body)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
