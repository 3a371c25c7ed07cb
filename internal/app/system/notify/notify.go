// internal/app/system/notify/notify.go

// Package notify fans user-facing notifications (join request decisions,
// chat mentions, admin actions) out to a pluggable dispatcher. The push
// gateway itself lives outside this service; the default dispatcher just
// records what would have been sent.
package notify

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Notification is one message addressed to a set of users. Delivery is
// best effort; no operation fails because a notification could not be sent.
type Notification struct {
	UserIDs []primitive.ObjectID
	Title   string
	Body    string
	Data    map[string]string
}

// Dispatcher delivers notifications. Implementations must be safe for
// concurrent use and must not block the caller on slow I/O; anything
// that talks to a push gateway hands the work off internally.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

// RecipientSource resolves which of a set of users currently accept
// push notifications.
type RecipientSource interface {
	NotifiableIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error)
}

// FilteredDispatcher drops recipients who opted out of notifications,
// or whose accounts are banned or disabled, before handing the
// notification to the underlying dispatcher. Wrapping the dispatcher
// here keeps every fan-out site honest without each one re-checking
// settings.
type FilteredDispatcher struct {
	Users RecipientSource
	Next  Dispatcher
	Log   *zap.Logger
}

func NewFiltered(users RecipientSource, next Dispatcher, log *zap.Logger) *FilteredDispatcher {
	return &FilteredDispatcher{Users: users, Next: next, Log: log}
}

func (d *FilteredDispatcher) Dispatch(ctx context.Context, n Notification) {
	ids, err := d.Users.NotifiableIDs(ctx, n.UserIDs)
	if err != nil {
		d.Log.Debug("notification recipient filter failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	n.UserIDs = ids
	d.Next.Dispatch(ctx, n)
}

// LogDispatcher writes notifications to the log. Used in development and
// as the default when no push gateway is configured.
type LogDispatcher struct {
	Log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{Log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) {
	go func() {
		ids := make([]string, 0, len(n.UserIDs))
		for _, id := range n.UserIDs {
			ids = append(ids, id.Hex())
		}
		d.Log.Info("notification",
			zap.Strings("user_ids", ids),
			zap.String("title", n.Title),
			zap.String("body", n.Body))
	}()
}

// NopDispatcher discards notifications. Used in tests.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Notification) {}
