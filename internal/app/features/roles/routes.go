// internal/app/features/roles/routes.go
package roles

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the role registry endpoints. Mounted under /clubs/roles.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Get("/", h.ServeList)
		r.Post("/", h.HandleCreate)
		r.Put("/", h.HandleUpdate)
		r.Delete("/", h.HandleDelete)
		r.Post("/assign", h.HandleAssign)
	})
	return r
}
