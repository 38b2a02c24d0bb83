package signing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/masterdata/customers"
	"github.com/garagiste-app/garagiste/internal/masterdata/vehicles"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/settings"
)

type memLedger struct {
	entries []history.Entry
}

func (l *memLedger) Append(ctx context.Context, e history.Entry) error {
	e.ID = int64(len(l.entries) + 1)
	e.OccurredAt = time.Now().UTC()
	l.entries = append(l.entries, e)
	return nil
}

// quoteStore is a minimal in-memory quotes.Repository for the signature flow.
type quoteStore struct {
	quotes map[string]*quotes.Quote
	lines  map[string][]quotes.QuoteLine
	ledger *memLedger

	// beforeRecord runs just before RecordSignature evaluates the guard,
	// simulating a concurrent request landing first.
	beforeRecord func()
}

func newQuoteStore() *quoteStore {
	return &quoteStore{
		quotes: make(map[string]*quotes.Quote),
		lines:  make(map[string][]quotes.QuoteLine),
		ledger: &memLedger{},
	}
}

func (s *quoteStore) WithTx(ctx context.Context, fn func(context.Context, quotes.Repository) error) error {
	return fn(ctx, s)
}

func (s *quoteStore) Ledger() history.Ledger { return s.ledger }

func (s *quoteStore) Get(ctx context.Context, id string) (*quotes.Quote, error) {
	q, ok := s.quotes[id]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	out := *q
	out.Lines = s.lines[id]
	return &out, nil
}

func (s *quoteStore) GetByNumber(ctx context.Context, garageID int64, number string) (*quotes.Quote, error) {
	return nil, quotes.ErrNotFound
}

func (s *quoteStore) List(ctx context.Context, req quotes.ListQuotesRequest) ([]quotes.Quote, int, error) {
	return nil, 0, nil
}

func (s *quoteStore) Insert(ctx context.Context, q quotes.Quote) error {
	s.quotes[q.ID] = &q
	return nil
}

func (s *quoteStore) InsertLine(ctx context.Context, line quotes.QuoteLine) (int64, error) {
	s.lines[line.QuoteID] = append(s.lines[line.QuoteID], line)
	return int64(len(s.lines[line.QuoteID])), nil
}

func (s *quoteStore) DeleteLines(ctx context.Context, quoteID string) error {
	delete(s.lines, quoteID)
	return nil
}

func (s *quoteStore) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) (bool, error) {
	return true, nil
}

func (s *quoteStore) SetStatus(ctx context.Context, id string, status quotes.QuoteStatus) error {
	q, ok := s.quotes[id]
	if !ok {
		return quotes.ErrNotFound
	}
	q.Status = status
	return nil
}

func (s *quoteStore) TransitionStatus(ctx context.Context, id string, from, to quotes.QuoteStatus) (bool, error) {
	q, ok := s.quotes[id]
	if !ok || q.Status != from {
		return false, nil
	}
	q.Status = to
	return true, nil
}

func (s *quoteStore) RecordSignature(ctx context.Context, id string, to quotes.QuoteStatus, sig quotes.Signature) (bool, error) {
	if s.beforeRecord != nil {
		s.beforeRecord()
	}
	q, ok := s.quotes[id]
	if !ok || q.Status != quotes.StatusPending {
		return false, nil
	}
	q.Status = to
	q.Signature = &sig
	return true, nil
}

func (s *quoteStore) GenerateNumber(ctx context.Context, garageID int64, date time.Time) (string, error) {
	return "DEV-20260115-0001", nil
}

type staticCustomers struct{}

func (staticCustomers) Get(ctx context.Context, garageID, id int64) (*customers.Customer, error) {
	return &customers.Customer{ID: id, GarageID: garageID, Name: "Marie Dupont", Email: "marie@example.com", Phone: "0601020304", Address: "12 rue des Lilas"}, nil
}

type staticVehicles struct{}

func (staticVehicles) Get(ctx context.Context, garageID, id int64) (*vehicles.Vehicle, error) {
	return &vehicles.Vehicle{ID: id, GarageID: garageID, Make: "Peugeot", Model: "208", Registration: "EF-456-GH", Year: 2021}, nil
}

type staticSettings struct{}

func (staticSettings) Get(ctx context.Context, garageID int64) (*settings.Settings, error) {
	return &settings.Settings{GarageID: garageID, CompanyName: "Garage Central", SIRET: "123 456 789 00012", VATRate: 20, QuoteValidityDays: 30}, nil
}

func newSigningService(store *quoteStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, staticCustomers{}, staticVehicles{}, staticSettings{}, logger)
}

func seedQuote(store *quoteStore, status quotes.QuoteStatus) *quotes.Quote {
	vehicleID := int64(1)
	q := &quotes.Quote{
		ID:           "2f1c9a74-5b1e-4c7c-9e37-0d6a3f4b8a21",
		Number:       "DEV-20260115-0001",
		GarageID:     1,
		CustomerID:   1,
		VehicleID:    &vehicleID,
		IssueDate:    time.Now().UTC(),
		ValidUntil:   time.Now().UTC().AddDate(0, 0, 30),
		Status:       status,
		VATRate:      20,
		TotalExclTax: 181,
		TotalInclTax: 217.20,
	}
	store.quotes[q.ID] = q
	store.lines[q.ID] = []quotes.QuoteLine{
		{ID: 1, QuoteID: q.ID, Description: "Plaquettes de frein", Quantity: 2, UnitPrice: 45.50, LineTotal: 91, LineOrder: 1},
	}
	return q
}

func countByAction(l *memLedger, action history.Action) int {
	n := 0
	for _, e := range l.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func TestSnapshot(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	svc := newSigningService(store)

	snap, err := svc.Snapshot(context.Background(), q.ID)
	require.NoError(t, err)

	assert.Equal(t, q.Number, snap.Quote.Number)
	assert.Equal(t, quotes.StatusPending, snap.Quote.Status)
	assert.Len(t, snap.Quote.Lines, 1)
	assert.Equal(t, "Marie Dupont", snap.Customer.Name)
	assert.Equal(t, "Garage Central", snap.Company.Name)
	require.NotNil(t, snap.Vehicle)
	assert.Equal(t, "Peugeot", snap.Vehicle.Make)
}

// A draft link must be indistinguishable from a nonexistent one.
func TestSnapshotHidesDrafts(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusDraft)
	svc := newSigningService(store)

	_, err := svc.Snapshot(context.Background(), q.ID)
	assert.True(t, errors.Is(err, quotes.ErrNotFound))

	_, err = svc.Snapshot(context.Background(), "no-such-id")
	assert.True(t, errors.Is(err, quotes.ErrNotFound))
}

func TestAcceptPendingQuote(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	svc := newSigningService(store)

	signed, err := svc.Accept(context.Background(), q.ID, "Marie Dupont", "Mozilla/5.0 (X11; Linux x86_64)")
	require.NoError(t, err)

	assert.Equal(t, quotes.StatusAccepted, signed.Status)
	require.NotNil(t, signed.Signature)
	assert.Equal(t, "Marie Dupont", signed.Signature.SignedByName)
	assert.Equal(t, ConsentText, signed.Signature.ConsentText)
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", signed.Signature.ClientFingerprint)
	assert.False(t, signed.Signature.SignedAt.IsZero())

	require.Len(t, store.ledger.entries, 1)
	entry := store.ledger.entries[0]
	assert.Equal(t, history.ActionSigned, entry.Action)
	assert.Equal(t, int64(0), entry.ActorID)
	assert.Contains(t, entry.Details, "Marie Dupont")
}

func TestRefusePendingQuote(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	svc := newSigningService(store)

	refused, err := svc.Refuse(context.Background(), q.ID, "Mozilla/5.0")
	require.NoError(t, err)

	assert.Equal(t, quotes.StatusRefused, refused.Status)
	require.NotNil(t, refused.Signature)
	assert.Equal(t, RefusalMarker, refused.Signature.SignedByName)
	assert.Equal(t, RefusalText, refused.Signature.ConsentText)
	assert.NotContains(t, refused.Signature.ConsentText, "Bon pour accord")

	require.Len(t, store.ledger.entries, 1)
	assert.Equal(t, history.ActionRefused, store.ledger.entries[0].Action)
}

func TestAcceptRequiresName(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	svc := newSigningService(store)

	_, err := svc.Accept(context.Background(), q.ID, "   ", "ua")
	ve, ok := quotes.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "signed_by_name", ve.Field)
}

func TestAcceptIsIdempotent(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	svc := newSigningService(store)

	first, err := svc.Accept(context.Background(), q.ID, "Marie Dupont", "ua-1")
	require.NoError(t, err)
	firstSignedAt := first.Signature.SignedAt

	_, err = svc.Accept(context.Background(), q.ID, "Quelqu'un d'autre", "ua-2")
	assert.True(t, errors.Is(err, quotes.ErrAlreadyProcessed))

	_, err = svc.Refuse(context.Background(), q.ID, "ua-3")
	assert.True(t, errors.Is(err, quotes.ErrAlreadyProcessed))

	// The original decision is untouched and journaled exactly once.
	after, err := store.Get(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, quotes.StatusAccepted, after.Status)
	assert.Equal(t, "Marie Dupont", after.Signature.SignedByName)
	assert.Equal(t, firstSignedAt, after.Signature.SignedAt)
	assert.Equal(t, 1, countByAction(store.ledger, history.ActionSigned))
	assert.Equal(t, 0, countByAction(store.ledger, history.ActionRefused))
}

// Two decisions race: the loser passed the pre-check but finds the row
// already terminal at write time.
func TestAcceptLosesRace(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	svc := newSigningService(store)

	flipped := false
	store.beforeRecord = func() {
		if !flipped {
			flipped = true
			now := time.Now().UTC()
			store.quotes[q.ID].Status = quotes.StatusRefused
			store.quotes[q.ID].Signature = &quotes.Signature{SignedByName: RefusalMarker, SignedAt: now}
		}
	}

	_, err := svc.Accept(context.Background(), q.ID, "Marie Dupont", "ua")
	assert.True(t, errors.Is(err, quotes.ErrAlreadyProcessed))

	after, err := store.Get(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, quotes.StatusRefused, after.Status)
	assert.Equal(t, RefusalMarker, after.Signature.SignedByName)
	assert.Empty(t, store.ledger.entries)
}

func TestAcceptDraftBehavesAsMissing(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusDraft)
	svc := newSigningService(store)

	_, err := svc.Accept(context.Background(), q.ID, "Marie Dupont", "ua")
	assert.True(t, errors.Is(err, quotes.ErrNotFound))
	assert.Equal(t, quotes.StatusDraft, store.quotes[q.ID].Status)
}

func TestFingerprintTruncated(t *testing.T) {
	store := newQuoteStore()
	q := seedQuote(store, quotes.StatusPending)
	svc := newSigningService(store)

	longUA := strings.Repeat("x", 2000)
	signed, err := svc.Accept(context.Background(), q.ID, "Marie Dupont", longUA)
	require.NoError(t, err)
	assert.Len(t, signed.Signature.ClientFingerprint, maxFingerprintLen)
}
