package notify

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeRecipients struct {
	allowed map[primitive.ObjectID]bool
	err     error
}

func (f *fakeRecipients) NotifiableIDs(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []primitive.ObjectID
	for _, id := range ids {
		if f.allowed[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type captureDispatcher struct {
	sent []Notification
}

func (d *captureDispatcher) Dispatch(_ context.Context, n Notification) {
	d.sent = append(d.sent, n)
}

func TestFilteredDispatcher_DropsOptedOut(t *testing.T) {
	optedIn := primitive.NewObjectID()
	optedOut := primitive.NewObjectID()

	capture := &captureDispatcher{}
	d := NewFiltered(&fakeRecipients{allowed: map[primitive.ObjectID]bool{optedIn: true}}, capture, zap.NewNop())

	d.Dispatch(context.Background(), Notification{
		UserIDs: []primitive.ObjectID{optedIn, optedOut},
		Body:    "hi",
	})

	if len(capture.sent) != 1 {
		t.Fatalf("dispatched %d notifications, want 1", len(capture.sent))
	}
	got := capture.sent[0].UserIDs
	if len(got) != 1 || got[0] != optedIn {
		t.Errorf("recipients = %v, want only the opted-in user", got)
	}
}

func TestFilteredDispatcher_NoRecipientsNoDispatch(t *testing.T) {
	capture := &captureDispatcher{}
	d := NewFiltered(&fakeRecipients{}, capture, zap.NewNop())

	d.Dispatch(context.Background(), Notification{
		UserIDs: []primitive.ObjectID{primitive.NewObjectID()},
		Body:    "hi",
	})

	if len(capture.sent) != 0 {
		t.Errorf("dispatched %d notifications, want none", len(capture.sent))
	}
}

func TestFilteredDispatcher_LookupFailureDrops(t *testing.T) {
	capture := &captureDispatcher{}
	d := NewFiltered(&fakeRecipients{err: errors.New("down")}, capture, zap.NewNop())

	d.Dispatch(context.Background(), Notification{
		UserIDs: []primitive.ObjectID{primitive.NewObjectID()},
		Body:    "hi",
	})

	if len(capture.sent) != 0 {
		t.Error("lookup failure should drop the notification, not pass it through")
	}
}
