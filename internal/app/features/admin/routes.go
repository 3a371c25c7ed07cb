// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Use(auth.RequireAppRole(models.AppRoleAdmin))
		r.Get("/users", h.ServeUsers)
		r.Post("/users/ban", h.HandleBan)
		r.Post("/users/unban", h.HandleUnban)
		r.Post("/users/delete", h.HandleDeleteUser)
		r.Post("/clubs/enable", h.HandleEnableClub)
	})
	return r
}
