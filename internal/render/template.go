package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/garagiste-app/garagiste/internal/quotes"
	"github.com/garagiste-app/garagiste/internal/signing"
)

//go:embed templates/*.html
var templateFS embed.FS

// French locale: decimal comma on every amount and quantity.
var frPrinter = message.NewPrinter(language.French)

var quoteTmpl = template.Must(template.New("quote.html").Funcs(template.FuncMap{
	"euro": func(v float64) string {
		return frPrinter.Sprintf("%.2f €", v)
	},
	"qty": func(v float64) string {
		return frPrinter.Sprintf("%v", v)
	},
	"sub": func(a, b float64) float64 {
		return a - b
	},
	"frdate": func(t time.Time) string {
		return t.Format("02/01/2006")
	},
	"frdatetime": func(t time.Time) string {
		return t.Format("02/01/2006 à 15:04")
	},
	"string": func(s quotes.QuoteStatus) string {
		return string(s)
	},
	// Full user agents are stored for the audit trail but only a short
	// prefix is printed on the document.
	"shortprint": func(s string) string {
		if len(s) > 24 {
			return s[:24] + "…"
		}
		return s
	},
}).ParseFS(templateFS, "templates/quote.html"))

// QuoteHTML renders the printable HTML for a quote snapshot.
func QuoteHTML(snap *signing.PublicSnapshot) (string, error) {
	var buf bytes.Buffer
	if err := quoteTmpl.Execute(&buf, snap); err != nil {
		return "", fmt.Errorf("render: execute quote template: %w", err)
	}
	return buf.String(), nil
}
