// internal/app/features/membership/routes.go
package membership

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Register attaches the membership transition routes to the shared
// /clubs router.
func Register(r chi.Router, h *Handler) {
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Post("/join", h.HandleJoin)
		pr.Post("/approve", h.HandleApprove)
		pr.Post("/deny", h.HandleDeny)
		pr.Post("/kick", h.HandleKick)
		pr.Post("/leave", h.HandleLeave)

		pr.Get("/requests", h.ServeRequests)
		pr.Get("/members", h.ServeMembers)
	})
}
