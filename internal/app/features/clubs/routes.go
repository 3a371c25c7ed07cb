// internal/app/features/clubs/routes.go
package clubs

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Register attaches the club lifecycle routes to the shared /clubs
// router. Membership and role routes live in their own features and are
// registered on the same router by the caller.
func Register(r chi.Router, h *Handler) {
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)
		pr.Put("/", h.HandleUpdate)
		pr.Delete("/", h.HandleDelete)

		pr.Get("/profile", h.ServeProfile)
		pr.Get("/search", h.ServeSearch)
		pr.Get("/tags", h.ServeTags)
		pr.Put("/theme", h.HandleTheme)
		pr.Get("/gallery", h.ServeGallery)
		pr.Post("/gallery", h.HandleGallery)
	})
}
