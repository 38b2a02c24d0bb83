package quotes

import "time"

// CreateQuoteRequest creates a draft. Lines may be empty (placeholder draft);
// a vehicle is optional until the quote is sent.
type CreateQuoteRequest struct {
	CustomerID int64              `json:"customer_id" validate:"required,gt=0"`
	VehicleID  *int64             `json:"vehicle_id,omitempty" validate:"omitempty,gt=0"`
	IssueDate  *time.Time         `json:"issue_date,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
	Lines      []QuoteLineRequest `json:"lines" validate:"dive"`
}

type QuoteLineRequest struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

// UpdateQuoteRequest edits a non-terminal quote. Replacing lines re-snapshots
// the VAT rate from the current garage settings and recomputes totals.
type UpdateQuoteRequest struct {
	CustomerID *int64              `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	VehicleID  *int64              `json:"vehicle_id,omitempty" validate:"omitempty,gt=0"`
	IssueDate  *time.Time          `json:"issue_date,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
	Lines      *[]QuoteLineRequest `json:"lines,omitempty" validate:"omitempty,dive"`
}

type ListQuotesRequest struct {
	GarageID   int64        `json:"garage_id" validate:"required,gt=0"`
	CustomerID *int64       `json:"customer_id,omitempty"`
	Status     *QuoteStatus `json:"status,omitempty"`
	DateFrom   *time.Time   `json:"date_from,omitempty"`
	DateTo     *time.Time   `json:"date_to,omitempty"`
	Limit      int          `json:"limit" validate:"gte=0,lte=500"`
	Offset     int          `json:"offset" validate:"gte=0"`
}

// OverrideStatusRequest is the manual status editor: an operator escape hatch
// for correcting mistakes, journaled distinctly from client signatures.
type OverrideStatusRequest struct {
	Status string `json:"status" validate:"required"`
}
