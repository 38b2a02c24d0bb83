package signing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/garagiste-app/garagiste/internal/observability"
	"github.com/garagiste-app/garagiste/internal/platform/httpx"
	"github.com/garagiste-app/garagiste/internal/quotes"
)

// Handler serves the public quote endpoints. No session, no tenant context:
// the quote ID in the URL is the whole authorization. Anything that is not a
// live, shareable quote answers with the same generic not-found so the
// surface leaks nothing about what exists.
type Handler struct {
	svc      *Service
	metrics  *observability.Metrics
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(svc *Service, metrics *observability.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteID")
	snap, err := h.svc.Snapshot(r.Context(), quoteID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteID")

	var req AcceptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.FieldProblem(w, "signed_by_name", "signer name is required")
		return
	}
	if !req.ConsentAccepted {
		httpx.FieldProblem(w, "consent_accepted", "explicit consent is required to sign")
		return
	}

	q, err := h.svc.Accept(r.Context(), quoteID, req.SignedByName, r.UserAgent())
	if err != nil {
		if errors.Is(err, quotes.ErrAlreadyProcessed) {
			h.metrics.CountSignatureEvent("conflict")
		}
		h.respondError(w, err)
		return
	}
	h.metrics.CountSignatureEvent("accepted")
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Refuse(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteID")

	q, err := h.svc.Refuse(r.Context(), quoteID, r.UserAgent())
	if err != nil {
		if errors.Is(err, quotes.ErrAlreadyProcessed) {
			h.metrics.CountSignatureEvent("conflict")
		}
		h.respondError(w, err)
		return
	}
	h.metrics.CountSignatureEvent("refused")
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if ve, ok := quotes.AsValidation(err); ok {
		httpx.FieldProblem(w, ve.Field, ve.Reason)
		return
	}
	switch {
	case errors.Is(err, quotes.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "this link is not valid or no longer available")
	case errors.Is(err, quotes.ErrAlreadyProcessed):
		httpx.Problem(w, http.StatusConflict, "Already Processed", "a decision has already been recorded for this quote")
	case errors.Is(err, quotes.ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", "this quote cannot be signed in its current state")
	default:
		h.logger.Error("public quote request failed", "error", err)
		httpx.Problem(w, http.StatusBadGateway, "Upstream Failure", "the document could not be loaded, please retry")
	}
}
