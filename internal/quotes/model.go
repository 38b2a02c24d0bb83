package quotes

import "time"

// QuoteStatus is the lifecycle state of a devis.
type QuoteStatus string

const (
	StatusDraft    QuoteStatus = "DRAFT"
	StatusPending  QuoteStatus = "PENDING"
	StatusAccepted QuoteStatus = "ACCEPTED"
	StatusRefused  QuoteStatus = "REFUSED"
)

// Valid reports whether s is a known status value.
func (s QuoteStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusAccepted, StatusRefused:
		return true
	}
	return false
}

// Terminal reports whether the quote has received a client decision. Terminal
// quotes are read-only apart from PDF rendering and invoice conversion.
func (s QuoteStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRefused
}

// Signature is the client decision proof captured by the public flow.
// Written exactly once, never modified afterwards.
type Signature struct {
	SignedByName      string    `json:"signed_by_name"`
	SignedAt          time.Time `json:"signed_at_utc"`
	ConsentText       string    `json:"consent_text"`
	ClientFingerprint string    `json:"client_fingerprint"`
}

// Quote is a priced proposal for garage work on a vehicle.
//
// The VAT rate is snapshotted from the garage settings when the quote is
// created or its lines edited; later settings changes never touch existing
// quotes. The ID doubles as the bearer capability for the public signature
// link, hence a v4 UUID.
type Quote struct {
	ID           string      `json:"id"`
	Number       string      `json:"number"`
	GarageID     int64       `json:"garage_id"`
	CustomerID   int64       `json:"customer_id"`
	VehicleID    *int64      `json:"vehicle_id,omitempty"`
	IssueDate    time.Time   `json:"issue_date"`
	ValidUntil   time.Time   `json:"valid_until"`
	Status       QuoteStatus `json:"status"`
	VATRate      float64     `json:"vat_rate"`
	TotalExclTax float64     `json:"total_excl_tax"`
	TotalInclTax float64     `json:"total_incl_tax"`
	Signature    *Signature  `json:"signature,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	CreatedBy    int64       `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Lines        []QuoteLine `json:"lines"`
}

// QuoteLine is one itemized row. LineTotal is derived from quantity and unit
// price and is never persisted on its own.
type QuoteLine struct {
	ID          int64   `json:"id"`
	QuoteID     string  `json:"quote_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	LineOrder   int     `json:"line_order"`
}
