package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagiste-app/garagiste/internal/observability"
	"github.com/garagiste-app/garagiste/internal/platform/httpx"
	"github.com/garagiste-app/garagiste/internal/quotes"
)

func newPublicServer(store *quoteStore) *httptest.Server {
	svc := newSigningService(store)
	h := NewHandler(svc, observability.NewMetrics(), svc.logger)
	r := chi.NewRouter()
	MountRoutes(r, h, nil)
	return httptest.NewServer(r)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeProblem(t *testing.T, resp *http.Response) httpx.ProblemDetail {
	t.Helper()
	defer resp.Body.Close()
	var pd httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}

func TestPublicView(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	srv := newPublicServer(store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/public/quotes/" + q.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap PublicSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, q.Number, snap.Quote.Number)
	assert.Equal(t, "Garage Central", snap.Company.Name)
}

func TestPublicViewUnknownID(t *testing.T) {
	store := newQuoteStore()
	draft := seedQuote(store, quotes.StatusDraft)
	srv := newPublicServer(store)
	defer srv.Close()

	// Unknown and draft IDs answer identically.
	for _, id := range []string{"0b0b0b0b-0000-0000-0000-000000000000", draft.ID} {
		resp, err := http.Get(srv.URL + "/public/quotes/" + id)
		require.NoError(t, err)
		pd := decodeProblem(t, resp)
		assert.Equal(t, http.StatusNotFound, pd.Status)
		assert.Contains(t, pd.Detail, "no longer available")
	}
}

func TestPublicAccept(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	srv := newPublicServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/public/quotes/"+q.ID+"/accept", AcceptRequest{
		SignedByName:    "Marie Dupont",
		ConsentAccepted: true,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var signed quotes.Quote
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&signed))
	assert.Equal(t, quotes.StatusAccepted, signed.Status)
	require.NotNil(t, signed.Signature)
	assert.Equal(t, "Marie Dupont", signed.Signature.SignedByName)
}

func TestPublicAcceptRequiresConsent(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	srv := newPublicServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/public/quotes/"+q.ID+"/accept", AcceptRequest{
		SignedByName: "Marie Dupont",
	})
	pd := decodeProblem(t, resp)
	assert.Equal(t, http.StatusBadRequest, pd.Status)
	assert.Equal(t, "consent_accepted", pd.Field)

	stored, err := store.Get(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, quotes.StatusPending, stored.Status)
}

func TestPublicAcceptConflict(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	srv := newPublicServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/public/quotes/"+q.ID+"/refuse", struct{}{})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/public/quotes/"+q.ID+"/accept", AcceptRequest{
		SignedByName:    "Marie Dupont",
		ConsentAccepted: true,
	})
	pd := decodeProblem(t, resp)
	assert.Equal(t, http.StatusConflict, pd.Status)
	assert.Equal(t, "Already Processed", pd.Title)
}

func TestPublicAcceptMalformedBody(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	srv := newPublicServer(store)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/public/quotes/"+q.ID+"/accept", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	pd := decodeProblem(t, resp)
	assert.Equal(t, http.StatusBadRequest, pd.Status)
}
