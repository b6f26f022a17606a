package listing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealflow/pkg/models"
)

// =============================================================================
// LISTING INTAKE
// Prefills a deal's raw inputs from a saved property-listing HTML page so an
// investor does not retype numbers the listing already shows. Extraction is
// tolerant: any field the page does not expose is simply left zero for the
// investor to fill in.
// =============================================================================

// Intake is the partial deal prefilled from a listing page.
type Intake struct {
	Address       string
	City          string
	State         string
	PurchasePrice float64
	MonthlyRent   float64
}

// ParseListingHTML extracts address and asking-price data from listing HTML.
// Selectors cover the microdata/OpenGraph conventions most listing sites use.
func ParseListingHTML(html string) (*Intake, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	intake := &Intake{}

	// Address: schema.org microdata first, then common fallbacks.
	intake.Address = firstText(doc,
		"[itemprop=streetAddress]",
		".listing-address",
		"h1.address",
		"h1",
	)
	intake.City = firstText(doc, "[itemprop=addressLocality]", ".listing-city")
	intake.State = firstText(doc, "[itemprop=addressRegion]", ".listing-state")

	// Price: microdata content attribute, OpenGraph meta, visible price node.
	if content, ok := doc.Find("[itemprop=price]").Attr("content"); ok {
		intake.PurchasePrice = parseCurrency(content)
	}
	if intake.PurchasePrice == 0 {
		if content, ok := doc.Find(`meta[property="product:price:amount"]`).Attr("content"); ok {
			intake.PurchasePrice = parseCurrency(content)
		}
	}
	if intake.PurchasePrice == 0 {
		intake.PurchasePrice = parseCurrency(firstText(doc, ".listing-price", ".price", "span.price"))
	}

	// Rent estimate, when the listing carries one.
	intake.MonthlyRent = parseCurrency(firstText(doc, ".rent-estimate", "[data-rent-estimate]"))

	if intake.Address == "" && intake.PurchasePrice == 0 {
		return nil, fmt.Errorf("listing page contains no recognizable address or price")
	}
	return intake, nil
}

// ApplyTo copies the prefilled fields onto a deal, leaving anything the
// listing did not provide untouched.
func (i *Intake) ApplyTo(deal *models.Deal) {
	if i.Address != "" {
		deal.Address = i.Address
	}
	if i.City != "" {
		deal.City = i.City
	}
	if i.State != "" {
		deal.State = i.State
	}
	if i.PurchasePrice > 0 {
		deal.PurchasePrice = i.PurchasePrice
	}
	if i.MonthlyRent > 0 {
		deal.MonthlyRent = i.MonthlyRent
	}
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// parseCurrency strips currency punctuation ("$425,000" -> 425000).
func parseCurrency(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if fields := strings.Fields(cleaned); len(fields) > 0 {
		cleaned = fields[0]
	}
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
