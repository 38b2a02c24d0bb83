package quotes

import (
	"fmt"
	"math"
)

// Totals are the document amounts derived from line items and the VAT rate.
type Totals struct {
	TotalExclTax float64 `json:"total_excl_tax"`
	TotalInclTax float64 `json:"total_incl_tax"`
}

// ComputeTotals derives HT and TTC amounts from line items.
//
// The HT sum is rounded once after accumulation, not per line, so a long
// list of lines cannot drift by accumulated cents. An empty line set is a
// valid draft placeholder and yields zero totals.
func ComputeTotals(lines []QuoteLine, vatRate float64) (Totals, error) {
	if vatRate < 0 {
		return Totals{}, &ValidationError{Field: "vat_rate", Reason: "must not be negative"}
	}
	var sum float64
	for i, line := range lines {
		if line.Quantity < 0 {
			return Totals{}, &ValidationError{Field: fmt.Sprintf("lines[%d].quantity", i), Reason: "must not be negative"}
		}
		if line.UnitPrice < 0 {
			return Totals{}, &ValidationError{Field: fmt.Sprintf("lines[%d].unit_price", i), Reason: "must not be negative"}
		}
		sum += line.Quantity * line.UnitPrice
	}
	totalHT := round2(sum)
	return Totals{
		TotalExclTax: totalHT,
		TotalInclTax: round2(totalHT * (1 + vatRate/100)),
	}, nil
}

// LineTotal derives the display amount for a single line.
func LineTotal(quantity, unitPrice float64) float64 {
	return round2(quantity * unitPrice)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
