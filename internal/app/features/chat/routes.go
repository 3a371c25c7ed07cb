// internal/app/features/chat/routes.go
package chat

import (
	"github.com/dalemusser/clubhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the chat endpoints. The websocket is open at the HTTP
// layer and authenticates in-band; the reads require a signed-in user.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.HandleSocket)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Get("/threads", h.ServeThreads)
		r.Get("/history", h.ServeHistory)
	})
	return r
}
