package quotes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the operator quote API. The router passed in must
// already enforce an authenticated session. The extra handlers address a
// quote but belong to other packages; nil skips the route, so the API can
// run without a PDF backend in development.
func MountRoutes(r chi.Router, h *Handler, renderPDF, convertInvoice, invoiceByQuote http.HandlerFunc) {
	r.Route("/quotes", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{quoteID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Post("/duplicate", h.Duplicate)
			r.Post("/send", h.Send)
			r.Put("/status", h.OverrideStatus)
			r.Get("/history", h.History)
			if renderPDF != nil {
				r.Get("/pdf", renderPDF)
			}
			if convertInvoice != nil {
				r.Post("/convert", convertInvoice)
			}
			if invoiceByQuote != nil {
				r.Get("/invoice", invoiceByQuote)
			}
		})
	})
}
