package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/platform/db"
)

type Repository interface {
	// WithTx runs fn against a transaction-scoped repository. The ledger
	// returned by Ledger() inside fn is bound to the same transaction.
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id string) (*Quote, error)
	GetByNumber(ctx context.Context, garageID int64, number string) (*Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	Insert(ctx context.Context, q Quote) error
	InsertLine(ctx context.Context, line QuoteLine) (int64, error)
	DeleteLines(ctx context.Context, quoteID string) error
	// UpdateFields edits columns only while the quote is still editable
	// (draft or pending). Returns false when the row is terminal or
	// missing; callers surface ErrLockedDocument after their own
	// existence check.
	UpdateFields(ctx context.Context, id string, updates map[string]interface{}) (bool, error)
	// SetStatus updates the status unconditionally. Reserved for the
	// journaled operator override; lifecycle paths use the guarded calls.
	SetStatus(ctx context.Context, id string, status QuoteStatus) error
	// TransitionStatus flips from → to only when the row still holds
	// from. Returns false when another request won the race.
	TransitionStatus(ctx context.Context, id string, from, to QuoteStatus) (bool, error)
	// RecordSignature writes the signature block and the terminal status
	// in one guarded statement. Returns false when the quote is no longer
	// pending, which callers surface as ErrAlreadyProcessed.
	RecordSignature(ctx context.Context, id string, to QuoteStatus, sig Signature) (bool, error)
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

const quoteColumns = `
	id, number, garage_id, customer_id, vehicle_id, issue_date, valid_until,
	status, vat_rate, total_excl_tax, total_incl_tax,
	signed_by_name, signed_at, consent_text, client_fingerprint,
	notes, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id string) (*Quote, error) {
	row := r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) GetByNumber(ctx context.Context, garageID int64, number string) (*Quote, error) {
	row := r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE garage_id = $1 AND number = $2`, garageID, number)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) loadLines(ctx context.Context, q *Quote) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, quote_id, description, quantity, unit_price, line_order
		FROM quote_lines
		WHERE quote_id = $1
		ORDER BY line_order ASC, id ASC
	`, q.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line QuoteLine
		if err := rows.Scan(&line.ID, &line.QuoteID, &line.Description, &line.Quantity, &line.UnitPrice, &line.LineOrder); err != nil {
			return err
		}
		line.LineTotal = LineTotal(line.Quantity, line.UnitPrice)
		q.Lines = append(q.Lines, line)
	}
	return rows.Err()
}

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	conditions := []string{"garage_id = $1"}
	args := []interface{}{req.GarageID}
	argPos := 2

	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("issue_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("issue_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotes "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM quotes %s ORDER BY issue_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, total, rows.Err()
}

func (r *repository) Insert(ctx context.Context, q Quote) error {
	var sig Signature
	if q.Signature != nil {
		sig = *q.Signature
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO quotes (
			id, number, garage_id, customer_id, vehicle_id, issue_date, valid_until,
			status, vat_rate, total_excl_tax, total_incl_tax,
			signed_by_name, signed_at, consent_text, client_fingerprint,
			notes, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			NULLIF($12, ''), $13, NULLIF($14, ''), NULLIF($15, ''),
			$16, $17, NOW(), NOW()
		)
	`,
		q.ID, q.Number, q.GarageID, q.CustomerID, q.VehicleID, q.IssueDate, q.ValidUntil,
		string(q.Status), q.VATRate, q.TotalExclTax, q.TotalInclTax,
		sig.SignedByName, nullableTime(sig.SignedAt), sig.ConsentText, sig.ClientFingerprint,
		q.Notes, q.CreatedBy,
	)
	return err
}

func (r *repository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quote_lines (quote_id, description, quantity, unit_price, line_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, line.QuoteID, line.Description, line.Quantity, line.UnitPrice, line.LineOrder).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, quoteID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1`, quoteID)
	return err
}

func (r *repository) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) (bool, error) {
	query := "UPDATE quotes SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{"customer_id", "vehicle_id", "issue_date", "valid_until", "notes", "vat_rate", "total_excl_tax", "total_incl_tax"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	// The status guard closes the window between a pre-check read and the
	// edit: a signature landing in between leaves the row terminal and
	// this statement touches nothing.
	query += fmt.Sprintf(" WHERE id = $%d AND status IN ('DRAFT', 'PENDING')", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) SetStatus(ctx context.Context, id string, status QuoteStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) TransitionStatus(ctx context.Context, id string, from, to QuoteStatus) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) RecordSignature(ctx context.Context, id string, to QuoteStatus, sig Signature) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes SET
			status = $1,
			signed_by_name = $2,
			signed_at = $3,
			consent_text = $4,
			client_fingerprint = $5,
			updated_at = NOW()
		WHERE id = $6 AND status = $7
	`, string(to), sig.SignedByName, sig.SignedAt, sig.ConsentText, sig.ClientFingerprint, id, string(StatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GenerateNumber produces a DEV-{date}-{seq} reference. The per-garage,
// per-day sequence row is upserted atomically so rapid successive creations
// never collide; numbers sort chronologically and are never reused.
func (r *repository) GenerateNumber(ctx context.Context, garageID int64, date time.Time) (string, error) {
	var seq int64
	period := date.Format("20060102")
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (garage_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (garage_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, garageID, "DEV", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DEV-%s-%04d", period, seq), nil
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var status string
	var signedByName, consentText, clientFingerprint *string
	var signedAt *time.Time

	err := row.Scan(
		&q.ID, &q.Number, &q.GarageID, &q.CustomerID, &q.VehicleID, &q.IssueDate, &q.ValidUntil,
		&status, &q.VATRate, &q.TotalExclTax, &q.TotalInclTax,
		&signedByName, &signedAt, &consentText, &clientFingerprint,
		&q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.Status = QuoteStatus(status)
	if signedByName != nil && signedAt != nil {
		sig := Signature{
			SignedByName: *signedByName,
			SignedAt:     *signedAt,
		}
		if consentText != nil {
			sig.ConsentText = *consentText
		}
		if clientFingerprint != nil {
			sig.ClientFingerprint = *clientFingerprint
		}
		q.Signature = &sig
	}
	return &q, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
