package listing

import (
	"testing"

	"dealflow/pkg/models"
)

const microdataListing = `
<html><body>
  <div itemscope itemtype="https://schema.org/SingleFamilyResidence">
    <span itemprop="streetAddress">412 Cedar Court</span>
    <span itemprop="addressLocality">Memphis</span>
    <span itemprop="addressRegion">TN</span>
    <span itemprop="price" content="185000">$185,000</span>
  </div>
  <div class="rent-estimate">$1,650 /mo</div>
</body></html>`

const bareListing = `
<html><body>
  <h1>77 Elm Street</h1>
  <span class="price">$425,000</span>
</body></html>`

func TestParseListingHTML_Microdata(t *testing.T) {
	intake, err := ParseListingHTML(microdataListing)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if intake.Address != "412 Cedar Court" {
		t.Errorf("Expected address, got %q", intake.Address)
	}
	if intake.City != "Memphis" || intake.State != "TN" {
		t.Errorf("Expected Memphis TN, got %q %q", intake.City, intake.State)
	}
	if intake.PurchasePrice != 185000 {
		t.Errorf("Expected price 185000, got %f", intake.PurchasePrice)
	}
	if intake.MonthlyRent != 1650 {
		t.Errorf("Expected rent 1650, got %f", intake.MonthlyRent)
	}
}

func TestParseListingHTML_Fallbacks(t *testing.T) {
	intake, err := ParseListingHTML(bareListing)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if intake.Address != "77 Elm Street" {
		t.Errorf("Expected h1 fallback address, got %q", intake.Address)
	}
	if intake.PurchasePrice != 425000 {
		t.Errorf("Expected price 425000, got %f", intake.PurchasePrice)
	}
	if intake.MonthlyRent != 0 {
		t.Errorf("Expected no rent estimate, got %f", intake.MonthlyRent)
	}
}

func TestParseListingHTML_Unrecognizable(t *testing.T) {
	if _, err := ParseListingHTML("<html><body><p>404</p></body></html>"); err == nil {
		t.Error("Expected error for page with no address or price")
	}
}

func TestIntakeApplyTo(t *testing.T) {
	deal := &models.Deal{MonthlyRent: 2000, RepairCosts: 10000}
	intake := &Intake{Address: "9 Pine Rd", PurchasePrice: 150000}
	intake.ApplyTo(deal)

	if deal.Address != "9 Pine Rd" || deal.PurchasePrice != 150000 {
		t.Errorf("Prefill not applied: %+v", deal)
	}
	// Fields the listing did not provide stay untouched.
	if deal.MonthlyRent != 2000 || deal.RepairCosts != 10000 {
		t.Errorf("Existing fields clobbered: %+v", deal)
	}
}
