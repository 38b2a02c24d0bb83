// Package signing is the public, unauthenticated signature surface. The
// quote ID is the bearer capability: anyone holding the link can view the
// document and record the client decision. Everything else on this surface
// is deliberately narrow.
package signing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garagiste-app/garagiste/internal/history"
	"github.com/garagiste-app/garagiste/internal/masterdata/customers"
	"github.com/garagiste-app/garagiste/internal/masterdata/vehicles"
	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/settings"
)

// ConsentText is the legal mention stored verbatim inside every acceptance
// signature. French law expects the "bon pour accord" wording on devis.
const ConsentText = "Bon pour accord. J'accepte ce devis et autorise les travaux décrits ci-dessus."

// RefusalMarker is stored as the signer name on a refusal, where no name is
// collected from the client.
const RefusalMarker = "Refusé par le client"

// RefusalText is the mention stored in the proof block of a refusal. The
// acceptance consent wording must never appear on a refused document.
const RefusalText = "Devis refusé par le client."

const maxFingerprintLen = 512

type Service struct {
	repo      quotes.Repository
	customers customers.Repository
	vehicles  vehicles.Repository
	settings  settings.Repository
	logger    *slog.Logger
}

func NewService(
	repo quotes.Repository,
	customerRepo customers.Repository,
	vehicleRepo vehicles.Repository,
	settingsRepo settings.Repository,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		customers: customerRepo,
		vehicles:  vehicleRepo,
		settings:  settingsRepo,
		logger:    logger,
	}
}

// Snapshot loads the denormalized public view of a quote. Drafts are not
// exposed: a draft has never been sent, so its link must behave as if it
// did not exist.
func (s *Service) Snapshot(ctx context.Context, quoteID string) (*PublicSnapshot, error) {
	snap, err := s.Load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if snap.Quote.Status == quotes.StatusDraft {
		return nil, quotes.ErrNotFound
	}
	return snap, nil
}

// Load assembles the snapshot without the draft restriction. Operator-side
// rendering goes through here after its own tenant check.
func (s *Service) Load(ctx context.Context, quoteID string) (*PublicSnapshot, error) {
	q, err := s.repo.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	cust, err := s.customers.Get(ctx, q.GarageID, q.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("signing: resolve customer %d: %w", q.CustomerID, err)
	}
	st, err := s.settings.Get(ctx, q.GarageID)
	if err != nil {
		return nil, fmt.Errorf("signing: resolve settings for garage %d: %w", q.GarageID, err)
	}

	snap := &PublicSnapshot{
		Quote: QuoteView{
			ID:           q.ID,
			Number:       q.Number,
			IssueDate:    q.IssueDate,
			ValidUntil:   q.ValidUntil,
			Status:       q.Status,
			VATRate:      q.VATRate,
			TotalExclTax: q.TotalExclTax,
			TotalInclTax: q.TotalInclTax,
			Lines:        q.Lines,
			Notes:        q.Notes,
			Signature:    q.Signature,
		},
		Customer: CustomerView{
			Name:    cust.Name,
			Email:   cust.Email,
			Phone:   cust.Phone,
			Address: cust.Address,
		},
		Company: CompanyView{
			Name:    st.CompanyName,
			Address: st.Address,
			Phone:   st.Phone,
			Email:   st.Email,
			SIRET:   st.SIRET,
		},
	}
	if q.VehicleID != nil {
		v, err := s.vehicles.Get(ctx, q.GarageID, *q.VehicleID)
		if err != nil {
			return nil, fmt.Errorf("signing: resolve vehicle %d: %w", *q.VehicleID, err)
		}
		snap.Vehicle = &VehicleView{
			Make:         v.Make,
			Model:        v.Model,
			Registration: v.Registration,
			Year:         v.Year,
		}
	}
	return snap, nil
}

// Accept records the client acceptance and freezes the document. The write
// is a guarded single-statement update; whichever request lands first wins
// and every later attempt gets ErrAlreadyProcessed.
func (s *Service) Accept(ctx context.Context, quoteID, signedByName, fingerprint string) (*quotes.Quote, error) {
	name := strings.TrimSpace(signedByName)
	if name == "" {
		return nil, &quotes.ValidationError{Field: "signed_by_name", Reason: "signer name is required"}
	}
	sig := quotes.Signature{
		SignedByName:      name,
		SignedAt:          time.Now().UTC(),
		ConsentText:       ConsentText,
		ClientFingerprint: truncate(fingerprint, maxFingerprintLen),
	}
	details := fmt.Sprintf("accepted and signed by %q", name)
	return s.finalize(ctx, quoteID, quotes.StatusAccepted, sig, history.ActionSigned, details)
}

// Refuse records the client refusal. Refusals carry the same proof block as
// acceptances, with a refusal mention in place of the consent wording.
func (s *Service) Refuse(ctx context.Context, quoteID, fingerprint string) (*quotes.Quote, error) {
	sig := quotes.Signature{
		SignedByName:      RefusalMarker,
		SignedAt:          time.Now().UTC(),
		ConsentText:       RefusalText,
		ClientFingerprint: truncate(fingerprint, maxFingerprintLen),
	}
	return s.finalize(ctx, quoteID, quotes.StatusRefused, sig, history.ActionRefused, "refused by the client")
}

func (s *Service) finalize(ctx context.Context, quoteID string, to quotes.QuoteStatus, sig quotes.Signature, action history.Action, details string) (*quotes.Quote, error) {
	q, err := s.repo.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	switch {
	case q.Status.Terminal():
		return nil, quotes.ErrAlreadyProcessed
	case q.Status != quotes.StatusPending:
		// Draft links are never handed out; behave as if absent.
		return nil, quotes.ErrNotFound
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, txRepo quotes.Repository) error {
		ok, err := txRepo.RecordSignature(ctx, quoteID, to, sig)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race: the row is no longer pending. Classify
			// against its current state.
			cur, err := txRepo.Get(ctx, quoteID)
			if err != nil {
				return err
			}
			if cur.Status.Terminal() {
				return quotes.ErrAlreadyProcessed
			}
			return quotes.ErrInvalidTransition
		}
		return txRepo.Ledger().Append(ctx, history.Entry{
			QuoteID: quoteID,
			ActorID: 0,
			Action:  action,
			Details: details,
		})
	})
	if err != nil {
		if !errors.Is(err, quotes.ErrAlreadyProcessed) {
			s.logger.Warn("signature capture failed", "quote_id", quoteID, "target", string(to), "error", err)
		}
		return nil, err
	}

	s.logger.Info("quote decision recorded", "quote_id", quoteID, "number", q.Number, "status", string(to))
	return s.repo.Get(ctx, quoteID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
