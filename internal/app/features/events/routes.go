// internal/app/features/events/routes.go
package events

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Get("/", h.ServeList)
		r.Post("/", h.HandleCreate)
		r.Put("/", h.HandleUpdate)
		r.Delete("/", h.HandleDelete)
		r.Get("/profile", h.ServeProfile)
		r.Post("/rsvp", h.HandleRSVP)
	})
	return r
}
