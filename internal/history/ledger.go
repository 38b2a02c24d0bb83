package history

import (
	"context"
	"errors"

	"github.com/garagiste-app/garagiste/internal/platform/db"
)

// Ledger appends audit entries. Implementations must be bound to the same
// transaction as the quote mutation they describe, so a mutation and its
// audit record commit or roll back together.
type Ledger interface {
	Append(ctx context.Context, e Entry) error
}

// Reader lists the trail for a quote, oldest first.
type Reader interface {
	ListByQuote(ctx context.Context, quoteID string) ([]Entry, error)
}

// PG persists entries in the quote_history table.
type PG struct {
	db db.DBTX
}

// NewPG binds a ledger to a pool or transaction.
func NewPG(q db.DBTX) *PG {
	return &PG{db: q}
}

// Append inserts one entry. The table carries no update or delete statements
// anywhere in this codebase.
func (l *PG) Append(ctx context.Context, e Entry) error {
	if e.QuoteID == "" {
		return errors.New("history: entry requires quote_id")
	}
	if e.Action == "" {
		return errors.New("history: entry requires action")
	}
	_, err := l.db.Exec(ctx, `
		INSERT INTO quote_history (quote_id, actor_id, action, details, occurred_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, e.QuoteID, e.ActorID, string(e.Action), e.Details)
	return err
}

// ListByQuote returns the full trail for a quote in insertion order.
func (l *PG) ListByQuote(ctx context.Context, quoteID string) ([]Entry, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, quote_id, actor_id, action, details, occurred_at
		FROM quote_history
		WHERE quote_id = $1
		ORDER BY id ASC
	`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.QuoteID, &e.ActorID, &action, &e.Details, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
