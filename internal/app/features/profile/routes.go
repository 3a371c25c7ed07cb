// internal/app/features/profile/routes.go
package profile

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the /users surface. The push registration endpoint gets
// its own root-level mount in bootstrap.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Get("/profile", h.ServeOwn)
		r.Get("/profile/other", h.ServeOther)
		r.Put("/profile", h.HandleUpdate)
		r.Put("/settings", h.HandleSettings)
	})
	return r
}
