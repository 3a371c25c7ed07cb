// internal/app/features/announcements/routes.go
package announcements

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Get("/", h.ServeList)
		r.Post("/", h.HandlePost)
		r.Delete("/", h.HandleDelete)
	})
	return r
}
