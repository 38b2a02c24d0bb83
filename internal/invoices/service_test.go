package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/shared"
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

// mockInvoiceRepo enforces source_quote_id uniqueness exactly like the
// database constraint does: at insert time, regardless of earlier reads.
type mockInvoiceRepo struct {
	invoices map[string]*Invoice
	bySource map[string]string
	nextLine int64
	seq      int64
	ledger   *memLedger

	// beforeInsert simulates a concurrent conversion committing between
	// the pre-check and the insert.
	beforeInsert func()
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{
		invoices: make(map[string]*Invoice),
		bySource: make(map[string]string),
		ledger:   &memLedger{},
	}
}

func (m *mockInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockInvoiceRepo) Ledger() history.Ledger { return m.ledger }

func (m *mockInvoiceRepo) Get(ctx context.Context, id string) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *inv
	return &out, nil
}

func (m *mockInvoiceRepo) GetBySourceQuote(ctx context.Context, quoteID string) (*Invoice, error) {
	id, ok := m.bySource[quoteID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *mockInvoiceRepo) Insert(ctx context.Context, inv Invoice) error {
	if m.beforeInsert != nil {
		m.beforeInsert()
		m.beforeInsert = nil
	}
	if _, exists := m.bySource[inv.SourceQuoteID]; exists {
		return ErrAlreadyConverted
	}
	inv.CreatedAt = time.Now().UTC()
	m.invoices[inv.ID] = &inv
	m.bySource[inv.SourceQuoteID] = inv.ID
	return nil
}

func (m *mockInvoiceRepo) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	m.nextLine++
	inv, ok := m.invoices[line.InvoiceID]
	if !ok {
		return 0, ErrNotFound
	}
	line.ID = m.nextLine
	inv.Lines = append(inv.Lines, line)
	return line.ID, nil
}

func (m *mockInvoiceRepo) GenerateNumber(ctx context.Context, garageID int64, date time.Time) (string, error) {
	m.seq++
	return fmt.Sprintf("FAC-%s-%04d", date.Format("20060102"), m.seq), nil
}

// quoteReader is the narrow slice of the quote store conversion needs.
type quoteReader struct {
	quotes map[string]*quotes.Quote
}

func (r *quoteReader) Get(ctx context.Context, id string) (*quotes.Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	out := *q
	return &out, nil
}

func (r *quoteReader) WithTx(ctx context.Context, fn func(context.Context, quotes.Repository) error) error {
	return fn(ctx, r)
}
func (r *quoteReader) GetByNumber(ctx context.Context, garageID int64, number string) (*quotes.Quote, error) {
	return nil, quotes.ErrNotFound
}
func (r *quoteReader) List(ctx context.Context, req quotes.ListQuotesRequest) ([]quotes.Quote, int, error) {
	return nil, 0, nil
}
func (r *quoteReader) Insert(ctx context.Context, q quotes.Quote) error { return nil }
func (r *quoteReader) InsertLine(ctx context.Context, line quotes.QuoteLine) (int64, error) {
	return 0, nil
}
func (r *quoteReader) DeleteLines(ctx context.Context, quoteID string) error { return nil }
func (r *quoteReader) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) (bool, error) {
	return true, nil
}
func (r *quoteReader) SetStatus(ctx context.Context, id string, status quotes.QuoteStatus) error {
	return nil
}
func (r *quoteReader) TransitionStatus(ctx context.Context, id string, from, to quotes.QuoteStatus) (bool, error) {
	return false, nil
}
func (r *quoteReader) RecordSignature(ctx context.Context, id string, to quotes.QuoteStatus, sig quotes.Signature) (bool, error) {
	return false, nil
}
func (r *quoteReader) GenerateNumber(ctx context.Context, garageID int64, date time.Time) (string, error) {
	return "", nil
}
func (r *quoteReader) Ledger() history.Ledger { return nil }

func seedAcceptedQuote() *quotes.Quote {
	vehicleID := int64(7)
	return &quotes.Quote{
		ID:         "9a3b2c1d-0e4f-4a5b-8c6d-7e8f9a0b1c2d",
		Number:     "DEV-20260115-0003",
		GarageID:   1,
		CustomerID: 4,
		VehicleID:  &vehicleID,
		IssueDate:  time.Now().UTC().AddDate(0, 0, -3),
		ValidUntil: time.Now().UTC().AddDate(0, 0, 27),
		Status:     quotes.StatusAccepted,
		VATRate:    20,
		Signature: &quotes.Signature{
			SignedByName: "Marie Dupont",
			SignedAt:     time.Now().UTC().Add(-time.Hour),
		},
		TotalExclTax: 181,
		TotalInclTax: 217.20,
		Lines: []quotes.QuoteLine{
			{ID: 1, Description: "Plaquettes de frein", Quantity: 2, UnitPrice: 45.50},
			{ID: 2, Description: "Main d'oeuvre", Quantity: 1.5, UnitPrice: 60},
		},
	}
}

func newConvertEnv(q *quotes.Quote) (*Service, *mockInvoiceRepo) {
	repo := newMockInvoiceRepo()
	reader := &quoteReader{quotes: map[string]*quotes.Quote{}}
	if q != nil {
		reader.quotes[q.ID] = q
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, reader, logger), repo
}

func TestConvertAcceptedQuote(t *testing.T) {
	q := seedAcceptedQuote()
	svc, repo := newConvertEnv(q)
	actor := shared.Actor{UserID: 100, GarageID: 1}

	inv, err := svc.Convert(context.Background(), q.ID, actor)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(inv.Number, "FAC-"), "number %s", inv.Number)
	assert.Equal(t, q.ID, inv.SourceQuoteID)
	assert.Equal(t, q.Number, inv.SourceQuoteNumber)
	assert.Equal(t, q.VATRate, inv.VATRate)
	assert.Equal(t, q.TotalExclTax, inv.TotalExclTax)
	assert.Equal(t, q.TotalInclTax, inv.TotalInclTax)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, "Plaquettes de frein", inv.Lines[0].Description)

	// The source quote is journaled, stays accepted and keeps its signature.
	require.Len(t, repo.ledger.entries, 1)
	entry := repo.ledger.entries[0]
	assert.Equal(t, history.ActionConverted, entry.Action)
	assert.Equal(t, q.ID, entry.QuoteID)
	assert.Contains(t, entry.Details, inv.Number)
	assert.Equal(t, quotes.StatusAccepted, q.Status)
	assert.NotNil(t, q.Signature)
}

func TestConvertTwice(t *testing.T) {
	q := seedAcceptedQuote()
	svc, repo := newConvertEnv(q)
	actor := shared.Actor{UserID: 100, GarageID: 1}

	first, err := svc.Convert(context.Background(), q.ID, actor)
	require.NoError(t, err)

	_, err = svc.Convert(context.Background(), q.ID, actor)
	assert.True(t, errors.Is(err, ErrAlreadyConverted))

	// Exactly one invoice and one journal entry exist.
	assert.Len(t, repo.invoices, 1)
	assert.Len(t, repo.ledger.entries, 1)

	existing, err := svc.GetByQuote(context.Background(), q.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, first.Number, existing.Number)
}

// The pre-check can pass on both sides of a race; the constraint at insert
// time still admits only one invoice.
func TestConvertConcurrent(t *testing.T) {
	q := seedAcceptedQuote()
	svc, repo := newConvertEnv(q)
	actor := shared.Actor{UserID: 100, GarageID: 1}

	repo.beforeInsert = func() {
		repo.bySource[q.ID] = "someone-elses-invoice"
		repo.invoices["someone-elses-invoice"] = &Invoice{ID: "someone-elses-invoice", GarageID: 1, SourceQuoteID: q.ID, Number: "FAC-20260115-0001"}
	}

	_, err := svc.Convert(context.Background(), q.ID, actor)
	assert.True(t, errors.Is(err, ErrAlreadyConverted))
	assert.Len(t, repo.ledger.entries, 0)
	assert.Len(t, repo.invoices, 1)
}

func TestConvertNonAcceptedQuote(t *testing.T) {
	for _, status := range []quotes.QuoteStatus{quotes.StatusDraft, quotes.StatusPending, quotes.StatusRefused} {
		q := seedAcceptedQuote()
		q.Status = status
		q.Signature = nil
		svc, repo := newConvertEnv(q)

		_, err := svc.Convert(context.Background(), q.ID, shared.Actor{UserID: 100, GarageID: 1})
		assert.True(t, errors.Is(err, ErrNotAccepted), "status %s", status)
		assert.Empty(t, repo.invoices)
	}
}

func TestConvertRequiresVehicle(t *testing.T) {
	q := seedAcceptedQuote()
	q.VehicleID = nil
	svc, _ := newConvertEnv(q)

	_, err := svc.Convert(context.Background(), q.ID, shared.Actor{UserID: 100, GarageID: 1})
	assert.True(t, errors.Is(err, quotes.ErrMissingVehicle))
}

func TestConvertTenantIsolation(t *testing.T) {
	q := seedAcceptedQuote()
	svc, _ := newConvertEnv(q)

	_, err := svc.Convert(context.Background(), q.ID, shared.Actor{UserID: 200, GarageID: 2})
	assert.True(t, errors.Is(err, quotes.ErrNotFound))
}

func TestConvertMissingQuote(t *testing.T) {
	svc, _ := newConvertEnv(nil)

	_, err := svc.Convert(context.Background(), "no-such-id", shared.Actor{UserID: 100, GarageID: 1})
	assert.True(t, errors.Is(err, quotes.ErrNotFound))
}

func TestGetInvoiceScoped(t *testing.T) {
	q := seedAcceptedQuote()
	svc, _ := newConvertEnv(q)
	actor := shared.Actor{UserID: 100, GarageID: 1}

	inv, err := svc.Convert(context.Background(), q.ID, actor)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), inv.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, got.Number)

	_, err = svc.Get(context.Background(), inv.ID, shared.Actor{UserID: 200, GarageID: 2})
	assert.True(t, errors.Is(err, ErrNotFound))
}
