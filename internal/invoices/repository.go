package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/platform/db"
	"github.com/garagiste-app/garagiste/internal/quotes"
)

var (
	ErrNotFound = errors.New("invoice not found")
	// ErrAlreadyConverted indicates the source quote already produced an
	// invoice. Backed by the unique constraint on source_quote_id, so it
	// holds even under concurrent conversion attempts.
	ErrAlreadyConverted = errors.New("quote already converted to an invoice")
	// ErrNotAccepted indicates a conversion attempt on a quote the client
	// has not accepted.
	ErrNotAccepted = errors.New("only accepted quotes can be converted")
)

type Repository interface {
	// WithTx runs fn against a transaction-scoped repository sharing one
	// transaction with the ledger returned by Ledger().
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id string) (*Invoice, error)
	GetBySourceQuote(ctx context.Context, quoteID string) (*Invoice, error)
	// Insert persists the invoice header. A unique violation on
	// source_quote_id surfaces as ErrAlreadyConverted.
	Insert(ctx context.Context, inv Invoice) error
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	GenerateNumber(ctx context.Context, garageID int64, date time.Time) (string, error)
	Ledger() history.Ledger
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Ledger() history.Ledger {
	return history.NewPG(r.db)
}

const invoiceColumns = `
	id, number, garage_id, customer_id, vehicle_id,
	source_quote_id, source_quote_number, issue_date,
	vat_rate, total_excl_tax, total_incl_tax, notes, created_by, created_at`

func (r *repository) Get(ctx context.Context, id string) (*Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return r.scanWithLines(ctx, row)
}

func (r *repository) GetBySourceQuote(ctx context.Context, quoteID string) (*Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE source_quote_id = $1`, quoteID)
	return r.scanWithLines(ctx, row)
}

func (r *repository) scanWithLines(ctx context.Context, row pgx.Row) (*Invoice, error) {
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, line_order
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY line_order ASC, id ASC
	`, inv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Quantity, &line.UnitPrice, &line.LineOrder); err != nil {
			return nil, err
		}
		line.LineTotal = quotes.LineTotal(line.Quantity, line.UnitPrice)
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func (r *repository) Insert(ctx context.Context, inv Invoice) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO invoices (
			id, number, garage_id, customer_id, vehicle_id,
			source_quote_id, source_quote_number, issue_date,
			vat_rate, total_excl_tax, total_incl_tax, notes, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	`,
		inv.ID, inv.Number, inv.GarageID, inv.CustomerID, inv.VehicleID,
		inv.SourceQuoteID, inv.SourceQuoteNumber, inv.IssueDate,
		inv.VATRate, inv.TotalExclTax, inv.TotalInclTax, inv.Notes, inv.CreatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "invoices_source_quote_id_key" {
			return ErrAlreadyConverted
		}
		return fmt.Errorf("invoices: insert %s: %w", inv.Number, err)
	}
	return nil
}

func (r *repository) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, line_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, line.InvoiceID, line.Description, line.Quantity, line.UnitPrice, line.LineOrder).Scan(&id)
	return id, err
}

// GenerateNumber produces a FAC-{date}-{seq} reference from the same
// per-garage, per-day sequence table quote numbering uses.
func (r *repository) GenerateNumber(ctx context.Context, garageID int64, date time.Time) (string, error) {
	var seq int64
	period := date.Format("20060102")
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (garage_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (garage_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, garageID, "FAC", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FAC-%s-%04d", period, seq), nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.GarageID, &inv.CustomerID, &inv.VehicleID,
		&inv.SourceQuoteID, &inv.SourceQuoteNumber, &inv.IssueDate,
		&inv.VATRate, &inv.TotalExclTax, &inv.TotalInclTax, &inv.Notes, &inv.CreatedBy, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
