package invoices

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/garagiste-app/garagiste/internal/platform/httpx"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/shared"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Convert handles POST /quotes/{quoteID}/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Convert(r.Context(), chi.URLParam(r, "quoteID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), chi.URLParam(r, "invoiceID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// GetByQuote handles GET /quotes/{quoteID}/invoice.
func (h *Handler) GetByQuote(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.GetByQuote(r.Context(), chi.URLParam(r, "quoteID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, quotes.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "document not found")
	case errors.Is(err, ErrAlreadyConverted):
		httpx.Problem(w, http.StatusConflict, "Already Converted", "this quote has already been converted to an invoice")
	case errors.Is(err, ErrNotAccepted):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", "only accepted quotes can be converted to invoices")
	case errors.Is(err, quotes.ErrMissingVehicle):
		httpx.FieldProblem(w, "vehicle_id", "the quote must reference a vehicle before conversion")
	default:
		h.logger.Error("invoice request failed", "error", err)
		httpx.RespondError(w, err)
	}
}

// MountRoutes attaches invoice read routes. Conversion is mounted under the
// quote routes since it addresses a quote.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/{invoiceID}", h.Get)
	})
}
