package signing

import (
	"time"

	"github.com/garagiste-app/garagiste/internal/quotes"
)

// PublicSnapshot carries everything the unauthenticated signature page needs
// to render a standalone document: no further authenticated calls happen
// from that page.
type PublicSnapshot struct {
	Quote    QuoteView     `json:"quote"`
	Customer CustomerView  `json:"customer"`
	Vehicle  *VehicleView  `json:"vehicle,omitempty"`
	Company  CompanyView   `json:"company"`
}

type QuoteView struct {
	ID           string             `json:"id"`
	Number       string             `json:"number"`
	IssueDate    time.Time          `json:"issue_date"`
	ValidUntil   time.Time          `json:"valid_until"`
	Status       quotes.QuoteStatus `json:"status"`
	VATRate      float64            `json:"vat_rate"`
	TotalExclTax float64            `json:"total_excl_tax"`
	TotalInclTax float64            `json:"total_incl_tax"`
	Lines        []quotes.QuoteLine `json:"lines"`
	Notes        *string            `json:"notes,omitempty"`
	Signature    *quotes.Signature  `json:"signature,omitempty"`
}

type CustomerView struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type VehicleView struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Registration string `json:"registration"`
	Year         int    `json:"year"`
}

type CompanyView struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	SIRET   string `json:"siret"`
}

// AcceptRequest is the client's acceptance. Consent must be explicit.
type AcceptRequest struct {
	SignedByName    string `json:"signed_by_name" validate:"required,min=2,max=120"`
	ConsentAccepted bool   `json:"consent_accepted"`
}
