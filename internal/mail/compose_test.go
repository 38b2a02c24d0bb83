package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublicQuoteURL(t *testing.T) {
	url := PublicQuoteURL("https://app.garagiste.example", "2f1c9a74-5b1e-4c7c-9e37-0d6a3f4b8a21")
	assert.Equal(t, "https://app.garagiste.example/?view=public_quote&id=2f1c9a74-5b1e-4c7c-9e37-0d6a3f4b8a21", url)
}

func TestComposeQuoteSent(t *testing.T) {
	subject, body := ComposeQuoteSent(QuoteSentParams{
		QuoteNumber:  "DEV-20260115-0001",
		CustomerName: "Marie Dupont",
		CompanyName:  "Garage Central",
		TotalInclTax: 217.20,
		ValidUntil:   time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		PublicURL:    "https://app.garagiste.example/?view=public_quote&id=abc",
	})

	assert.Contains(t, subject, "DEV-20260115-0001")
	assert.Contains(t, subject, "Garage Central")
	assert.Contains(t, body, "Marie Dupont")
	assert.Contains(t, body, "217,20 € TTC")
	assert.Contains(t, body, "https://app.garagiste.example/?view=public_quote&id=abc")
	assert.Contains(t, body, "14/02/2026")
}
