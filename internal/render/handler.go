package render

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/garagiste-app/garagiste/internal/platform/httpx"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/shared"
)

// QuoteGetter scopes a quote to the acting operator's garage before a
// render is allowed.
type QuoteGetter interface {
	Get(ctx context.Context, id string, actor shared.Actor) (*quotes.Quote, error)
}

type Handler struct {
	svc    *Service
	quotes QuoteGetter
	logger *slog.Logger
}

func NewHandler(svc *Service, quoteGetter QuoteGetter, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, quotes: quoteGetter, logger: logger}
}

// QuotePDF handles GET /quotes/{quoteID}/pdf for operators.
func (h *Handler) QuotePDF(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteID")
	q, err := h.quotes.Get(r.Context(), quoteID, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	pdf, err := h.svc.QuotePDF(r.Context(), quoteID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	servePDF(w, q.Number, pdf)
}

// PublicQuotePDF handles GET /public/quotes/{quoteID}/pdf. No session; the
// link is the authorization and drafts stay invisible.
func (h *Handler) PublicQuotePDF(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteID")
	pdf, err := h.svc.PublicQuotePDF(r.Context(), quoteID)
	if err != nil {
		if errors.Is(err, quotes.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "this link is not valid or no longer available")
			return
		}
		h.respondError(w, err)
		return
	}
	servePDF(w, "devis", pdf)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quotes.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
	case errors.Is(err, httpx.ErrDependency):
		h.logger.Error("pdf render failed", "error", err)
		httpx.Problem(w, http.StatusBadGateway, "Upstream Failure", "the PDF service is unavailable, please retry")
	default:
		h.logger.Error("pdf request failed", "error", err)
		httpx.RespondError(w, err)
	}
}

func servePDF(w http.ResponseWriter, name string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
