package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/shared"
)

type Service struct {
	repo   Repository
	quotes quotes.Repository
	logger *slog.Logger
}

func NewService(repo Repository, quoteRepo quotes.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, quotes: quoteRepo, logger: logger}
}

// Convert turns an accepted quote into an invoice. Lines, totals and the
// snapshotted VAT rate are copied verbatim; the quote itself stays accepted
// and keeps its signature. Each quote converts at most once, enforced by
// the unique source_quote_id column rather than any lookup, so two
// concurrent conversions still yield exactly one invoice.
func (s *Service) Convert(ctx context.Context, quoteID string, actor shared.Actor) (*Invoice, error) {
	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if q.GarageID != actor.GarageID {
		return nil, quotes.ErrNotFound
	}
	if q.Status != quotes.StatusAccepted {
		return nil, ErrNotAccepted
	}
	if q.VehicleID == nil {
		return nil, quotes.ErrMissingVehicle
	}

	// Friendly pre-check; the constraint remains the real guarantee.
	if existing, err := s.repo.GetBySourceQuote(ctx, quoteID); err == nil {
		s.logger.Info("conversion skipped, invoice exists", "quote_id", quoteID, "invoice_number", existing.Number)
		return nil, ErrAlreadyConverted
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	inv := Invoice{
		ID:                uuid.NewString(),
		GarageID:          q.GarageID,
		CustomerID:        q.CustomerID,
		VehicleID:         *q.VehicleID,
		SourceQuoteID:     q.ID,
		SourceQuoteNumber: q.Number,
		IssueDate:         now,
		VATRate:           q.VATRate,
		TotalExclTax:      q.TotalExclTax,
		TotalInclTax:      q.TotalInclTax,
		Notes:             q.Notes,
		CreatedBy:         actor.UserID,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, txRepo Repository) error {
		number, err := txRepo.GenerateNumber(ctx, q.GarageID, now)
		if err != nil {
			return fmt.Errorf("invoices: generate number: %w", err)
		}
		inv.Number = number

		if err := txRepo.Insert(ctx, inv); err != nil {
			return err
		}
		for i, ql := range q.Lines {
			line := InvoiceLine{
				InvoiceID:   inv.ID,
				Description: ql.Description,
				Quantity:    ql.Quantity,
				UnitPrice:   ql.UnitPrice,
				LineOrder:   i,
			}
			id, err := txRepo.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = id
			line.LineTotal = quotes.LineTotal(line.Quantity, line.UnitPrice)
			inv.Lines = append(inv.Lines, line)
		}
		return txRepo.Ledger().Append(ctx, history.Entry{
			QuoteID: q.ID,
			ActorID: actor.UserID,
			Action:  history.ActionConverted,
			Details: fmt.Sprintf("converted to invoice %s", inv.Number),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quote converted", "quote_id", q.ID, "quote_number", q.Number, "invoice_number", inv.Number)
	inv.CreatedAt = now
	return &inv, nil
}

// Get returns an invoice scoped to the actor's garage.
func (s *Service) Get(ctx context.Context, id string, actor shared.Actor) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.GarageID != actor.GarageID {
		return nil, ErrNotFound
	}
	return inv, nil
}

// GetByQuote returns the invoice derived from a quote, if any.
func (s *Service) GetByQuote(ctx context.Context, quoteID string, actor shared.Actor) (*Invoice, error) {
	inv, err := s.repo.GetBySourceQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if inv.GarageID != actor.GarageID {
		return nil, ErrNotFound
	}
	return inv, nil
}
