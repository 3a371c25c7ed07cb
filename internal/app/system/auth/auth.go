// internal/app/system/auth/auth.go

// Package auth resolves the Authorization header to a session user and
// injects it into the request context. Token verification is delegated to
// the identity package; the user record itself is loaded fresh on every
// request so bans and disables take effect immediately.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/dalemusser/clubhub/internal/app/system/httpjson"
	"github.com/dalemusser/clubhub/internal/app/system/identity"
	"github.com/dalemusser/clubhub/internal/domain/models"
)

// SessionUser is what gets injected into r.Context() for handlers.
type SessionUser struct {
	ID             primitive.ObjectID
	Name           string
	Email          string
	ProfilePicture string
	AppRole        string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// UserSource loads a user record by id. Implemented by the users store.
type UserSource interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Middleware holds the verifier and user source for LoadUser.
type Middleware struct {
	Verifier *identity.TokenVerifier
	Users    UserSource
	Log      *zap.Logger
}

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// LoadUser resolves Authorization: Bearer <token> into a context user.
// Requests without the header pass through anonymously; RequireSignedIn
// decides whether that matters. A header that is present but invalid is a
// hard 401, and a banned or disabled account is a hard 403.
func (m *Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.Verifier.Verify(raw)
		if err != nil {
			httpjson.Unauthorized(w, "invalid or expired token")
			return
		}

		user, err := m.Users.FindByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				httpjson.Unauthorized(w, "unknown account")
				return
			}
			httpjson.Internal(w, m.Log, "auth load user", err)
			return
		}
		if user.IsBanned {
			httpjson.Forbidden(w, "account is banned")
			return
		}
		if user.IsDisabled {
			httpjson.Forbidden(w, "account is disabled")
			return
		}

		next.ServeHTTP(w, withUser(r, &SessionUser{
			ID:             user.ID,
			Name:           user.Name,
			Email:          user.Email,
			ProfilePicture: user.ProfilePicture,
			AppRole:        user.AppRole,
		}))
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadUser).
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			httpjson.Unauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAppRole ensures the context user carries one of the allowed
// application roles (admin, moderator).
func RequireAppRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToUpper(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				httpjson.Unauthorized(w, "authentication required")
				return
			}
			if _, has := set[strings.ToUpper(u.AppRole)]; !has {
				httpjson.Forbidden(w, "insufficient privileges")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithTestUser injects a user into the request context for handler tests,
// bypassing token verification.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
