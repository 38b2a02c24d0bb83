// Package mail composes and delivers transactional email. The quote core's
// responsibility ends at handing a composed message to the queue; delivery
// happens in the worker.
package mail

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Amounts in client-facing mail follow French typography.
var frPrinter = message.NewPrinter(language.French)

// QuoteSentParams feeds the quote notification template.
type QuoteSentParams struct {
	QuoteNumber  string
	CustomerName string
	CompanyName  string
	TotalInclTax float64
	ValidUntil   time.Time
	PublicURL    string
}

// ComposeQuoteSent builds the subject/body pair for the "quote sent to
// client" notification carrying the public signature link.
func ComposeQuoteSent(p QuoteSentParams) (subject, body string) {
	subject = fmt.Sprintf("Votre devis %s — %s", p.QuoteNumber, p.CompanyName)
	body = fmt.Sprintf(
		"Bonjour %s,\n\n"+
			"Veuillez trouver votre devis %s d'un montant de %s TTC.\n"+
			"Vous pouvez le consulter, l'accepter ou le refuser en ligne :\n\n"+
			"%s\n\n"+
			"Ce devis est valable jusqu'au %s.\n\n"+
			"Cordialement,\n%s\n",
		p.CustomerName,
		p.QuoteNumber,
		frPrinter.Sprintf("%.2f €", p.TotalInclTax),
		p.PublicURL,
		p.ValidUntil.Format("02/01/2006"),
		p.CompanyName,
	)
	return subject, body
}

// PublicQuoteURL builds the public signature link for a quote. Knowledge of
// the quote ID is the only authorization on this surface.
func PublicQuoteURL(baseURL, quoteID string) string {
	return fmt.Sprintf("%s/?view=public_quote&id=%s", baseURL, quoteID)
}
