package signing

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes attaches the public quote surface. Rate limits are tighter
// here than on the operator API since these endpoints are reachable without
// a session.
func MountRoutes(r chi.Router, h *Handler, renderPDF http.HandlerFunc) {
	r.Route("/public/quotes/{quoteID}", func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/", h.View)
		if renderPDF != nil {
			r.Get("/pdf", renderPDF)
		}
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			r.Post("/accept", h.Accept)
			r.Post("/refuse", h.Refuse)
		})
	})
}
