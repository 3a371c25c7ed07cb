// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	adminfeature "github.com/dalemusser/clubhub/internal/app/features/admin"
	announcementsfeature "github.com/dalemusser/clubhub/internal/app/features/announcements"
	chatfeature "github.com/dalemusser/clubhub/internal/app/features/chat"
	clubsfeature "github.com/dalemusser/clubhub/internal/app/features/clubs"
	eventsfeature "github.com/dalemusser/clubhub/internal/app/features/events"
	healthfeature "github.com/dalemusser/clubhub/internal/app/features/health"
	membershipfeature "github.com/dalemusser/clubhub/internal/app/features/membership"
	profilefeature "github.com/dalemusser/clubhub/internal/app/features/profile"
	rolesfeature "github.com/dalemusser/clubhub/internal/app/features/roles"
	clubstore "github.com/dalemusser/clubhub/internal/app/store/clubs"
	messagestore "github.com/dalemusser/clubhub/internal/app/store/messages"
	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/app/system/chathub"
	"github.com/dalemusser/clubhub/internal/app/system/identity"
	"github.com/dalemusser/clubhub/internal/app/system/metrics"
	"github.com/dalemusser/clubhub/internal/app/system/notify"
	"github.com/dalemusser/clubhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and the Startup hook have completed. All request handling: the REST
// surface, the chat websocket, health, and metrics, hangs off the router
// built here.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	verifier := identity.NewTokenVerifier(appCfg.TokenSecret, appCfg.TokenIssuer)

	// All fan-out goes through the recipient filter so only users who
	// still accept notifications are addressed.
	dispatcher := notify.NewFiltered(userstore.New(db), notify.NewLogDispatcher(logger), logger)

	// The chat hub is shared by every websocket connection in this
	// process; the registry and rate limiter live inside it.
	sendLimiter := ratelimit.New(appCfg.ChatSendLimit, appCfg.ChatSendWindow)
	hub := chathub.NewHub(
		logger,
		verifier,
		userstore.New(db),
		messagestore.New(db),
		chathub.NewRegistry(),
		sendLimiter,
	).WithNotifications(clubstore.New(db), dispatcher)

	authMW := &auth.Middleware{
		Verifier: verifier,
		Users:    userstore.New(db),
		Log:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)
	r.Use(authMW.LoadUser)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	// Club CRUD and membership transitions share the /clubs prefix;
	// roles get their own subtree.
	clubsHandler := clubsfeature.NewHandler(db, logger)
	membershipHandler := membershipfeature.NewHandler(db, dispatcher, logger)
	rolesHandler := rolesfeature.NewHandler(db, logger)
	r.Route("/clubs", func(r chi.Router) {
		clubsfeature.Register(r, clubsHandler)
		membershipfeature.Register(r, membershipHandler)
		r.Mount("/roles", rolesfeature.Routes(rolesHandler))
	})

	chatHandler := chatfeature.NewHandler(db, hub, logger)
	r.Mount("/chat", chatfeature.Routes(chatHandler))

	announcementsHandler := announcementsfeature.NewHandler(db, dispatcher, logger)
	r.Mount("/announcements", announcementsfeature.Routes(announcementsHandler))

	eventsHandler := eventsfeature.NewHandler(db, dispatcher, logger)
	r.Mount("/events", eventsfeature.Routes(eventsHandler))

	adminHandler := adminfeature.NewHandler(db, appCfg.BanRestoreWindow, dispatcher, logger)
	r.Mount("/admin", adminfeature.Routes(adminHandler))

	profileHandler := profilefeature.NewHandler(db, logger)
	r.Mount("/users", profilefeature.Routes(profileHandler))
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Post("/notifications/register", profileHandler.HandleRegisterPush)
	})

	return r, nil
}
