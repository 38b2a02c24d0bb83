package quotes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/garagiste-app/garagiste/internal/platform/httpx"
	"github.com/garagiste-app/garagiste/internal/shared"
)

// Handler exposes the operator quote API.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type listResponse struct {
	Items []Quote `json:"items"`
	Total int     `json:"total"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	q, err := h.svc.Create(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Get(r.Context(), chi.URLParam(r, "quoteID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, err := parseListQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	items, total, err := h.svc.List(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if items == nil {
		items = []Quote{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: total})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	q, err := h.svc.Update(r.Context(), chi.URLParam(r, "quoteID"), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Duplicate(r.Context(), chi.URLParam(r, "quoteID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Send(r.Context(), chi.URLParam(r, "quoteID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	var req OverrideStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	q, err := h.svc.OverrideStatus(r.Context(), chi.URLParam(r, "quoteID"), QuoteStatus(req.Status), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.History(r.Context(), chi.URLParam(r, "quoteID"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if ve, ok := AsValidation(err); ok {
		httpx.FieldProblem(w, ve.Field, ve.Reason)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
	case errors.Is(err, ErrLockedDocument):
		httpx.Problem(w, http.StatusLocked, "Locked Document", "the quote is final and cannot be edited")
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrAlreadyProcessed):
		httpx.Problem(w, http.StatusConflict, "Already Processed", "a client decision has already been recorded")
	case errors.Is(err, ErrMissingVehicle):
		httpx.FieldProblem(w, "vehicle_id", "a vehicle is required before sending a quote")
	default:
		h.logger.Error("quote request failed", "error", err)
		httpx.RespondError(w, err)
	}
}

func parseListQuery(r *http.Request) (ListQuotesRequest, error) {
	var req ListQuotesRequest
	q := r.URL.Query()

	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, errors.New("customer_id must be an integer")
		}
		req.CustomerID = &id
	}
	if v := q.Get("status"); v != "" {
		st := QuoteStatus(v)
		if !st.Valid() {
			return req, errors.New("status must be one of DRAFT, PENDING, ACCEPTED, REFUSED")
		}
		req.Status = &st
	}
	for param, dst := range map[string]**time.Time{"date_from": &req.DateFrom, "date_to": &req.DateTo} {
		if v := q.Get(param); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				return req, errors.New(param + " must be a YYYY-MM-DD date")
			}
			*dst = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 500 {
			return req, errors.New("limit must be between 0 and 500")
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, errors.New("offset must be a non-negative integer")
		}
		req.Offset = n
	}
	return req, nil
}
