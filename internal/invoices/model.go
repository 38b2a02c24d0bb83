// Package invoices handles conversion of accepted quotes into invoices.
// Payment tracking and the invoice's own lifecycle live elsewhere; this
// package owns creation and read access only.
package invoices

import "time"

// Invoice is a billing document derived from exactly one accepted quote.
// The quote linkage is a first-class column with a uniqueness guarantee,
// so a quote can never be billed twice.
type Invoice struct {
	ID                string        `json:"id"`
	Number            string        `json:"number"`
	GarageID          int64         `json:"garage_id"`
	CustomerID        int64         `json:"customer_id"`
	VehicleID         int64         `json:"vehicle_id"`
	SourceQuoteID     string        `json:"source_quote_id"`
	SourceQuoteNumber string        `json:"source_quote_number"`
	IssueDate         time.Time     `json:"issue_date"`
	VATRate           float64       `json:"vat_rate"`
	TotalExclTax      float64       `json:"total_excl_tax"`
	TotalInclTax      float64       `json:"total_incl_tax"`
	Notes             *string       `json:"notes,omitempty"`
	CreatedBy         int64         `json:"created_by"`
	CreatedAt         time.Time     `json:"created_at"`
	Lines             []InvoiceLine `json:"lines"`
}

type InvoiceLine struct {
	ID          int64   `json:"id"`
	InvoiceID   string  `json:"invoice_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	LineOrder   int     `json:"line_order"`
}
