package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagiste-app/garagiste/internal/invoices"
	"github.com/garagiste-app/garagiste/internal/observability"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/render"
	"github.com/garagiste-app/garagiste/internal/shared"
	"github.com/garagiste-app/garagiste/internal/signing"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	QuoteHandler   *quotes.Handler
	SigningHandler *signing.Handler
	InvoiceHandler *invoices.Handler
	RenderHandler  *render.Handler
	Pool           *pgxpool.Pool
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Pool.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Shared quote links use the front-door form /?view=public_quote&id=...
	// and land on the public API.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("view") == "public_quote" {
			if id := r.URL.Query().Get("id"); id != "" {
				http.Redirect(w, r, "/public/quotes/"+url.PathEscape(id), http.StatusSeeOther)
				return
			}
		}
		http.NotFound(w, r)
	})

	var publicPDF http.HandlerFunc
	if params.RenderHandler != nil {
		publicPDF = params.RenderHandler.PublicQuotePDF
	}
	signing.MountRoutes(r, params.SigningHandler, publicPDF)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession)

		var operatorPDF http.HandlerFunc
		if params.RenderHandler != nil {
			operatorPDF = params.RenderHandler.QuotePDF
		}
		quotes.MountRoutes(r, params.QuoteHandler, operatorPDF,
			params.InvoiceHandler.Convert, params.InvoiceHandler.GetByQuote)
		invoices.MountRoutes(r, params.InvoiceHandler)
	})

	return r
}
