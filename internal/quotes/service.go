package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/mail"
	"github.com/garagiste-app/garagiste/internal/masterdata/customers"
	"github.com/garagiste-app/garagiste/internal/masterdata/vehicles"
	"github.com/garagiste-app/garagiste/internal/platform/httpx"
	"github.com/garagiste-app/garagiste/internal/settings"
	"github.com/garagiste-app/garagiste/internal/shared"
)

// Enqueuer hands the quote notification to the background queue. The quote
// is already pending and journaled by the time the message is queued; an
// enqueue failure is reported to the caller but never rolls the send back.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, to, subject, body string) error
}

type Service struct {
	repo         Repository
	ledgerReader history.Reader
	customerRepo customers.Repository
	vehicleRepo  vehicles.Repository
	settingsRepo settings.Repository
	enqueuer     Enqueuer
	validate     *validator.Validate
	logger       *slog.Logger

	publicBaseURL string
}

func NewService(
	repo Repository,
	ledgerReader history.Reader,
	customerRepo customers.Repository,
	vehicleRepo vehicles.Repository,
	settingsRepo settings.Repository,
	enqueuer Enqueuer,
	logger *slog.Logger,
	publicBaseURL string,
) *Service {
	return &Service{
		repo:          repo,
		ledgerReader:  ledgerReader,
		customerRepo:  customerRepo,
		vehicleRepo:   vehicleRepo,
		settingsRepo:  settingsRepo,
		enqueuer:      enqueuer,
		validate:      validator.New(),
		logger:        logger,
		publicBaseURL: publicBaseURL,
	}
}

// Create opens a new draft quote. The VAT rate and validity window are
// snapshotted from the garage settings at this moment.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, actor shared.Actor) (*Quote, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	if _, err := s.customerRepo.Get(ctx, actor.GarageID, req.CustomerID); err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}
	if req.VehicleID != nil {
		if _, err := s.vehicleRepo.Get(ctx, actor.GarageID, *req.VehicleID); err != nil {
			return nil, fmt.Errorf("verify vehicle: %w", err)
		}
	}

	cfg, err := s.settingsRepo.Get(ctx, actor.GarageID)
	if err != nil {
		return nil, fmt.Errorf("read garage settings: %w", err)
	}

	lines := buildLines(req.Lines)
	totals, err := ComputeTotals(lines, cfg.VATRate)
	if err != nil {
		return nil, err
	}

	issueDate := time.Now().UTC()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	number, err := s.repo.GenerateNumber(ctx, actor.GarageID, issueDate)
	if err != nil {
		return nil, fmt.Errorf("generate quote number: %w", err)
	}

	quote := Quote{
		ID:           uuid.NewString(),
		Number:       number,
		GarageID:     actor.GarageID,
		CustomerID:   req.CustomerID,
		VehicleID:    req.VehicleID,
		IssueDate:    issueDate,
		ValidUntil:   issueDate.AddDate(0, 0, cfg.QuoteValidityDays),
		Status:       StatusDraft,
		VATRate:      cfg.VATRate,
		TotalExclTax: totals.TotalExclTax,
		TotalInclTax: totals.TotalInclTax,
		Notes:        req.Notes,
		CreatedBy:    actor.UserID,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Insert(ctx, quote); err != nil {
			return fmt.Errorf("insert quote: %w", err)
		}
		for i, line := range lines {
			line.QuoteID = quote.ID
			line.LineOrder = i + 1
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert quote line: %w", err)
			}
		}
		return repo.Ledger().Append(ctx, history.Entry{
			QuoteID: quote.ID,
			ActorID: actor.UserID,
			Action:  history.ActionCreated,
			Details: fmt.Sprintf("quote %s created (%d lines, %.2f € TTC)", quote.Number, len(lines), quote.TotalInclTax),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, quote.ID)
}

// Update edits a non-terminal quote. Signed or refused documents are final
// and reject every edit with ErrLockedDocument.
func (s *Service) Update(ctx context.Context, id string, req UpdateQuoteRequest, actor shared.Actor) (*Quote, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	existing, err := s.getScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: quote %s is %s", ErrLockedDocument, existing.Number, existing.Status)
	}

	updates := make(map[string]interface{})
	var changed []string

	if req.CustomerID != nil {
		if _, err := s.customerRepo.Get(ctx, actor.GarageID, *req.CustomerID); err != nil {
			return nil, fmt.Errorf("verify customer: %w", err)
		}
		updates["customer_id"] = *req.CustomerID
		changed = append(changed, "customer")
	}
	if req.VehicleID != nil {
		if _, err := s.vehicleRepo.Get(ctx, actor.GarageID, *req.VehicleID); err != nil {
			return nil, fmt.Errorf("verify vehicle: %w", err)
		}
		updates["vehicle_id"] = *req.VehicleID
		changed = append(changed, "vehicle")
	}
	var cfg *settings.Settings
	if req.IssueDate != nil || req.Lines != nil {
		cfg, err = s.settingsRepo.Get(ctx, actor.GarageID)
		if err != nil {
			return nil, fmt.Errorf("read garage settings: %w", err)
		}
	}

	if req.IssueDate != nil {
		updates["issue_date"] = *req.IssueDate
		// The validity window follows the issue date.
		updates["valid_until"] = req.IssueDate.AddDate(0, 0, cfg.QuoteValidityDays)
		changed = append(changed, "issue_date")
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
		changed = append(changed, "notes")
	}

	var lines []QuoteLine
	if req.Lines != nil {
		// Editing lines re-reads the current VAT rate; the snapshot moves
		// with the edit, never with a settings change alone.
		lines = buildLines(*req.Lines)
		totals, err := ComputeTotals(lines, cfg.VATRate)
		if err != nil {
			return nil, err
		}
		updates["vat_rate"] = cfg.VATRate
		updates["total_excl_tax"] = totals.TotalExclTax
		updates["total_incl_tax"] = totals.TotalInclTax
		changed = append(changed, fmt.Sprintf("lines (%d)", len(lines)))
	}

	if len(updates) == 0 {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		// The guarded update re-checks the status at write time; a client
		// signature committed since the pre-check read locks the document
		// and the whole edit rolls back.
		ok, err := repo.UpdateFields(ctx, id, updates)
		if err != nil {
			return fmt.Errorf("update quote: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: quote %s was signed in the meantime", ErrLockedDocument, existing.Number)
		}
		if req.Lines != nil {
			if err := repo.DeleteLines(ctx, id); err != nil {
				return err
			}
			for i, line := range lines {
				line.QuoteID = id
				line.LineOrder = i + 1
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return err
				}
			}
		}
		return repo.Ledger().Append(ctx, history.Entry{
			QuoteID: id,
			ActorID: actor.UserID,
			Action:  history.ActionEdited,
			Details: "updated " + strings.Join(changed, ", "),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

// Duplicate seeds a fresh draft from an existing quote: same customer,
// vehicle, lines and notes, but a new number, draft status and no
// signature. Totals are recomputed against the current VAT rate.
func (s *Service) Duplicate(ctx context.Context, id string, actor shared.Actor) (*Quote, error) {
	source, err := s.getScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	cfg, err := s.settingsRepo.Get(ctx, actor.GarageID)
	if err != nil {
		return nil, fmt.Errorf("read garage settings: %w", err)
	}

	lines := make([]QuoteLine, 0, len(source.Lines))
	for _, line := range source.Lines {
		lines = append(lines, QuoteLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	totals, err := ComputeTotals(lines, cfg.VATRate)
	if err != nil {
		return nil, err
	}

	issueDate := time.Now().UTC()
	number, err := s.repo.GenerateNumber(ctx, actor.GarageID, issueDate)
	if err != nil {
		return nil, fmt.Errorf("generate quote number: %w", err)
	}

	dup := Quote{
		ID:           uuid.NewString(),
		Number:       number,
		GarageID:     actor.GarageID,
		CustomerID:   source.CustomerID,
		VehicleID:    source.VehicleID,
		IssueDate:    issueDate,
		ValidUntil:   issueDate.AddDate(0, 0, cfg.QuoteValidityDays),
		Status:       StatusDraft,
		VATRate:      cfg.VATRate,
		TotalExclTax: totals.TotalExclTax,
		TotalInclTax: totals.TotalInclTax,
		Notes:        source.Notes,
		CreatedBy:    actor.UserID,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Insert(ctx, dup); err != nil {
			return fmt.Errorf("insert duplicate: %w", err)
		}
		for i, line := range lines {
			line.QuoteID = dup.ID
			line.LineOrder = i + 1
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		ledger := repo.Ledger()
		if err := ledger.Append(ctx, history.Entry{
			QuoteID: dup.ID,
			ActorID: actor.UserID,
			Action:  history.ActionCreated,
			Details: fmt.Sprintf("quote %s created as a copy of %s", dup.Number, source.Number),
		}); err != nil {
			return err
		}
		return ledger.Append(ctx, history.Entry{
			QuoteID: source.ID,
			ActorID: actor.UserID,
			Action:  history.ActionDuplicated,
			Details: fmt.Sprintf("duplicated into %s", dup.Number),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, dup.ID)
}

// Send moves a draft to pending and hands the notification email to the
// queue. The status flip and its history entry commit atomically; delivery
// itself is the queue's concern and never rolls the quote back.
func (s *Service) Send(ctx context.Context, id string, actor shared.Actor) (*Quote, error) {
	existing, err := s.getScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := EnsureTransition(existing.Status, StatusPending); err != nil {
		return nil, err
	}
	if existing.VehicleID == nil {
		return nil, fmt.Errorf("%w: quote %s cannot be sent", ErrMissingVehicle, existing.Number)
	}

	customer, err := s.customerRepo.Get(ctx, actor.GarageID, existing.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer: %w", err)
	}
	cfg, err := s.settingsRepo.Get(ctx, actor.GarageID)
	if err != nil {
		return nil, fmt.Errorf("read garage settings: %w", err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ok, err := repo.TransitionStatus(ctx, id, StatusDraft, StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: quote is no longer a draft", ErrInvalidTransition)
		}
		return repo.Ledger().Append(ctx, history.Entry{
			QuoteID: id,
			ActorID: actor.UserID,
			Action:  history.ActionEmailSent,
			Details: fmt.Sprintf("quote emailed to %s", customer.Email),
		})
	})
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	publicURL := mail.PublicQuoteURL(s.publicBaseURL, existing.ID)
	subject, body := mail.ComposeQuoteSent(mail.QuoteSentParams{
		QuoteNumber:  existing.Number,
		CustomerName: customer.Name,
		CompanyName:  cfg.CompanyName,
		TotalInclTax: existing.TotalInclTax,
		ValidUntil:   existing.ValidUntil,
		PublicURL:    publicURL,
	})
	if err := s.enqueuer.EnqueueSendEmail(ctx, customer.Email, subject, body); err != nil {
		// The quote stays pending and journaled; the caller learns the
		// notification is stuck and can retry the delivery.
		s.logger.Warn("enqueue quote email", slog.String("quote", existing.Number), slog.Any("error", err))
		return pending, fmt.Errorf("%w: queue quote email: %v", httpx.ErrDependency, err)
	}

	return pending, nil
}

// OverrideStatus is the manual status editor. It bypasses the lifecycle
// table on purpose (correcting mistakes before a document is legally
// signed) and journals the change so a manual flip is never mistaken for a
// client signature in the audit trail. The signature block, if any, is left
// untouched.
func (s *Service) OverrideStatus(ctx context.Context, id string, target QuoteStatus, actor shared.Actor) (*Quote, error) {
	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}

	existing, err := s.getScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if existing.Status == target {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.SetStatus(ctx, id, target); err != nil {
			return err
		}
		return repo.Ledger().Append(ctx, history.Entry{
			QuoteID: id,
			ActorID: actor.UserID,
			Action:  history.ActionStatusChanged,
			Details: fmt.Sprintf("manual status change %s -> %s (operator override, not a client signature)", existing.Status, target),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

// Get returns a quote scoped to the operator's garage.
func (s *Service) Get(ctx context.Context, id string, actor shared.Actor) (*Quote, error) {
	return s.getScoped(ctx, id, actor)
}

// List returns quotes for the operator's garage with optional filters.
func (s *Service) List(ctx context.Context, req ListQuotesRequest, actor shared.Actor) ([]Quote, int, error) {
	req.GarageID = actor.GarageID
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, &ValidationError{Reason: err.Error()}
	}
	return s.repo.List(ctx, req)
}

// History returns the full audit trail for a quote.
func (s *Service) History(ctx context.Context, id string, actor shared.Actor) ([]history.Entry, error) {
	if _, err := s.getScoped(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.ledgerReader.ListByQuote(ctx, id)
}

// getScoped fetches a quote and hides it when it belongs to another tenant.
func (s *Service) getScoped(ctx context.Context, id string, actor shared.Actor) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.GarageID != actor.GarageID {
		return nil, ErrNotFound
	}
	return q, nil
}

func buildLines(reqs []QuoteLineRequest) []QuoteLine {
	lines := make([]QuoteLine, 0, len(reqs))
	for _, lr := range reqs {
		lines = append(lines, QuoteLine{
			Description: lr.Description,
			Quantity:    lr.Quantity,
			UnitPrice:   lr.UnitPrice,
			LineTotal:   LineTotal(lr.Quantity, lr.UnitPrice),
		})
	}
	return lines
}
