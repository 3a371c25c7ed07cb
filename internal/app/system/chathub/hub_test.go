package chathub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/clubhub/internal/app/system/identity"
	"github.com/dalemusser/clubhub/internal/app/system/notify"
	"github.com/dalemusser/clubhub/internal/app/system/ratelimit"
	"github.com/dalemusser/clubhub/internal/domain/models"
)

type captureSink struct {
	messages []*models.Message
}

func (s *captureSink) Insert(_ context.Context, m *models.Message) error {
	s.messages = append(s.messages, m)
	return nil
}

func newTestHub(sink MessageSink, limiter *ratelimit.Limiter) *Hub {
	v := identity.NewTokenVerifier("test-secret", "clubhub")
	return NewHub(zap.NewNop(), v, nil, sink, NewRegistry(), limiter)
}

func newTestClient(clubIDs ...string) *client {
	c := &client{
		id:    primitive.NewObjectID().Hex(),
		send:  make(chan []byte, sendBuffer),
		clubs: make(map[string]struct{}),
	}
	c.setClubs(clubIDs)
	return c
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	sess := Session{UserID: primitive.NewObjectID(), Name: "Ada"}

	if _, ok := r.Get("c1"); ok {
		t.Fatal("empty registry should not resolve")
	}

	r.Put("c1", sess)
	got, ok := r.Get("c1")
	if !ok || got.Name != "Ada" {
		t.Errorf("Get = %+v, %v", got, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Remove("c1")
	if _, ok := r.Get("c1"); ok {
		t.Error("removed session should not resolve")
	}
}

func TestBroadcast_ExcludesSender(t *testing.T) {
	h := newTestHub(&captureSink{}, nil)
	clubID := primitive.NewObjectID().Hex()

	sender := newTestClient(clubID)
	other := newTestClient(clubID)
	h.join(sender, clubID)
	h.join(other, clubID)

	h.broadcast(clubID, []byte("hello"), sender.id)

	select {
	case got := <-other.send:
		if string(got) != "hello" {
			t.Errorf("other received %q", got)
		}
	default:
		t.Error("other client should have received the payload")
	}

	select {
	case <-sender.send:
		t.Error("sender should not receive its own broadcast")
	default:
	}
}

func TestBroadcast_DropsWhenBufferFull(t *testing.T) {
	h := newTestHub(&captureSink{}, nil)
	clubID := primitive.NewObjectID().Hex()

	slow := &client{id: "slow", send: make(chan []byte), clubs: map[string]struct{}{}}
	h.join(slow, clubID)

	// Nothing reads slow.send; broadcast must not block.
	h.broadcast(clubID, []byte("x"), "")
}

func TestHandleSend_RequiresLogin(t *testing.T) {
	sink := &captureSink{}
	h := newTestHub(sink, nil)
	clubID := primitive.NewObjectID().Hex()

	c := newTestClient(clubID)
	h.join(c, clubID)

	// No registry entry: silent no-op.
	h.handleSend(context.Background(), c, clubID, "hi")

	if len(sink.messages) != 0 {
		t.Error("message from unauthenticated connection should not persist")
	}
}

func TestHandleSend_RequiresRoomMembership(t *testing.T) {
	sink := &captureSink{}
	h := newTestHub(sink, nil)

	myClub := primitive.NewObjectID().Hex()
	otherClub := primitive.NewObjectID().Hex()

	c := newTestClient(myClub)
	h.join(c, myClub)
	h.registry.Put(c.id, Session{UserID: primitive.NewObjectID(), Name: "Ada"})

	h.handleSend(context.Background(), c, otherClub, "hi")

	if len(sink.messages) != 0 {
		t.Error("message to a non-joined club should not persist")
	}
}

func TestHandleSend_BroadcastsAndPersists(t *testing.T) {
	sink := &captureSink{}
	h := newTestHub(sink, nil)
	clubID := primitive.NewObjectID()
	authorID := primitive.NewObjectID()

	sender := newTestClient(clubID.Hex())
	listener := newTestClient(clubID.Hex())
	h.join(sender, clubID.Hex())
	h.join(listener, clubID.Hex())
	h.registry.Put(sender.id, Session{UserID: authorID, Name: "Ada", Picture: "p.png"})

	h.handleSend(context.Background(), sender, clubID.Hex(), "see you tonight")

	if len(sink.messages) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(sink.messages))
	}
	stored := sink.messages[0]
	if stored.ClubID != clubID || stored.AuthorID != authorID || stored.Body != "see you tonight" {
		t.Errorf("stored message = %+v", stored)
	}
	if stored.AuthorName != "Ada" {
		t.Errorf("author name snapshot = %q", stored.AuthorName)
	}

	var ev messageEvent
	select {
	case raw := <-listener.send:
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
	default:
		t.Fatal("listener should have received the broadcast")
	}
	if ev.Type != "message" || ev.Body != "see you tonight" || ev.AuthorName != "Ada" {
		t.Errorf("broadcast event = %+v", ev)
	}
	if ev.IsSelf || ev.IsDate {
		t.Error("broadcast events carry isSelf=false and isDate=false")
	}
}

func TestHandleSend_StripsMarkup(t *testing.T) {
	sink := &captureSink{}
	h := newTestHub(sink, nil)
	clubID := primitive.NewObjectID().Hex()

	c := newTestClient(clubID)
	h.join(c, clubID)
	h.registry.Put(c.id, Session{UserID: primitive.NewObjectID(), Name: "Ada"})

	h.handleSend(context.Background(), c, clubID, "<script>alert(1)</script>hello")

	if len(sink.messages) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(sink.messages))
	}
	if got := sink.messages[0].Body; got != "hello" {
		t.Errorf("body = %q, want markup stripped", got)
	}
}

func TestHandleSend_EmptyAfterStrip(t *testing.T) {
	sink := &captureSink{}
	h := newTestHub(sink, nil)
	clubID := primitive.NewObjectID().Hex()

	c := newTestClient(clubID)
	h.join(c, clubID)
	h.registry.Put(c.id, Session{UserID: primitive.NewObjectID(), Name: "Ada"})

	h.handleSend(context.Background(), c, clubID, "  <b></b>  ")

	if len(sink.messages) != 0 {
		t.Error("whitespace-only message should not persist")
	}
}

func TestHandleSend_RateLimited(t *testing.T) {
	sink := &captureSink{}
	h := newTestHub(sink, ratelimit.New(1, time.Minute))
	clubID := primitive.NewObjectID().Hex()

	c := newTestClient(clubID)
	h.join(c, clubID)
	h.registry.Put(c.id, Session{UserID: primitive.NewObjectID(), Name: "Ada"})

	h.handleSend(context.Background(), c, clubID, "one")
	h.handleSend(context.Background(), c, clubID, "two")

	if len(sink.messages) != 1 {
		t.Errorf("persisted %d messages, want 1 after rate limit", len(sink.messages))
	}
}

func TestHandleSend_RateLimitIsPerConnection(t *testing.T) {
	sink := &captureSink{}
	h := newTestHub(sink, ratelimit.New(1, time.Minute))
	clubID := primitive.NewObjectID().Hex()
	userID := primitive.NewObjectID()

	laptop := newTestClient(clubID)
	phone := newTestClient(clubID)
	h.join(laptop, clubID)
	h.join(phone, clubID)
	h.registry.Put(laptop.id, Session{UserID: userID, Name: "Ada"})
	h.registry.Put(phone.id, Session{UserID: userID, Name: "Ada"})

	h.handleSend(context.Background(), laptop, clubID, "from the laptop")
	h.handleSend(context.Background(), phone, clubID, "from the phone")

	if len(sink.messages) != 2 {
		t.Errorf("persisted %d messages, want 2; each connection carries its own budget", len(sink.messages))
	}
}

type fakeMembers struct {
	ids []primitive.ObjectID
}

func (f *fakeMembers) MemberIDs(context.Context, primitive.ObjectID) ([]primitive.ObjectID, error) {
	return f.ids, nil
}

type fakeRecipients struct {
	allowed map[primitive.ObjectID]bool
}

func (f *fakeRecipients) NotifiableIDs(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	var out []primitive.ObjectID
	for _, id := range ids {
		if f.allowed[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type captureDispatcher struct {
	sent []notify.Notification
}

func (d *captureDispatcher) Dispatch(_ context.Context, n notify.Notification) {
	d.sent = append(d.sent, n)
}

func TestNotifyClub_OnlyOptedInMembers(t *testing.T) {
	sender := primitive.NewObjectID()
	optedIn := primitive.NewObjectID()
	optedOut := primitive.NewObjectID()

	capture := &captureDispatcher{}
	h := newTestHub(&captureSink{}, nil).WithNotifications(
		&fakeMembers{ids: []primitive.ObjectID{sender, optedIn, optedOut}},
		notify.NewFiltered(
			&fakeRecipients{allowed: map[primitive.ObjectID]bool{sender: true, optedIn: true}},
			capture,
			zap.NewNop(),
		),
	)

	h.notifyClub(primitive.NewObjectID(), Session{UserID: sender, Name: "Ada"}, "meeting moved")

	if len(capture.sent) != 1 {
		t.Fatalf("dispatched %d notifications, want 1", len(capture.sent))
	}
	got := capture.sent[0].UserIDs
	if len(got) != 1 || got[0] != optedIn {
		t.Errorf("recipients = %v, want only the opted-in non-sender", got)
	}
}

func TestDisconnect_LeavesRoomsAndRegistry(t *testing.T) {
	h := newTestHub(&captureSink{}, nil)
	clubID := primitive.NewObjectID().Hex()

	c := newTestClient(clubID)
	h.join(c, clubID)
	h.registry.Put(c.id, Session{UserID: primitive.NewObjectID()})

	h.disconnect(c)

	if _, ok := h.registry.Get(c.id); ok {
		t.Error("registry entry should be removed on disconnect")
	}

	h.mu.RLock()
	_, roomExists := h.rooms[clubID]
	h.mu.RUnlock()
	if roomExists {
		t.Error("empty room should be dropped")
	}
}
