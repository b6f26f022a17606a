package matching

import (
	"fmt"
	"strings"

	"dealflow/pkg/models"
)

// =============================================================================
// BUY-BOX MATCHER
// Pairs a scored deal with the investors whose standing criteria it meets.
// All hard criteria are AND-ed; location matching is advisory only, since
// free-text address comparison carries no correctness guarantee.
// =============================================================================

// Matches reports whether the deal satisfies every hard criterion.
func Matches(deal *models.Deal, criteria *models.BuyBoxCriteria) bool {
	ok, _ := Evaluate(deal, criteria)
	return ok
}

// Evaluate returns the match decision plus per-criterion reasons, for
// explainability in notifications and the API.
func Evaluate(deal *models.Deal, criteria *models.BuyBoxCriteria) (bool, []string) {
	var reasons []string
	ok := true

	if deal.PurchasePrice > criteria.MaxPurchasePrice {
		ok = false
		reasons = append(reasons, fmt.Sprintf("purchase price $%.0f exceeds max $%.0f", deal.PurchasePrice, criteria.MaxPurchasePrice))
	} else {
		reasons = append(reasons, fmt.Sprintf("purchase price $%.0f within budget", deal.PurchasePrice))
	}

	if deal.ROI < criteria.MinROI {
		ok = false
		reasons = append(reasons, fmt.Sprintf("ROI %.1f%% below minimum %.1f%%", deal.ROI, criteria.MinROI))
	} else {
		reasons = append(reasons, fmt.Sprintf("ROI %.1f%% meets minimum", deal.ROI))
	}

	// Cap rate only constrains income-producing strategies.
	if criteria.MinCapRate != nil && deal.Type.IsIncomeProducing() {
		if deal.CapRate < *criteria.MinCapRate {
			ok = false
			reasons = append(reasons, fmt.Sprintf("cap rate %.1f%% below minimum %.1f%%", deal.CapRate, *criteria.MinCapRate))
		} else {
			reasons = append(reasons, fmt.Sprintf("cap rate %.1f%% meets minimum", deal.CapRate))
		}
	}

	if criteria.MinCashFlow != nil && deal.Type.IsIncomeProducing() {
		cashFlow := deal.MonthlyRent - deal.MonthlyExpenses
		if cashFlow < *criteria.MinCashFlow {
			ok = false
			reasons = append(reasons, fmt.Sprintf("monthly cash flow $%.0f below minimum $%.0f", cashFlow, *criteria.MinCashFlow))
		}
	}

	if deal.RepairCosts > criteria.MaxRepairCosts {
		ok = false
		reasons = append(reasons, fmt.Sprintf("repair costs $%.0f exceed max $%.0f", deal.RepairCosts, criteria.MaxRepairCosts))
	}

	if !criteria.AcceptsType(deal.Type) {
		ok = false
		reasons = append(reasons, fmt.Sprintf("deal type %s not in accepted set", deal.Type))
	}

	// Advisory only: a location miss never fails the match on its own.
	if len(criteria.PreferredLocations) > 0 {
		if locationMatch(deal, criteria.PreferredLocations) {
			reasons = append(reasons, "address matches a preferred location")
		} else {
			reasons = append(reasons, "address outside preferred locations (advisory)")
		}
	}

	return ok, reasons
}

// locationMatch does case-folded substring comparison of the deal's address
// fields against preferred locations. Free-text matching is inherently
// approximate; see Evaluate.
func locationMatch(deal *models.Deal, locations []string) bool {
	haystack := strings.ToLower(deal.Address + " " + deal.City + " " + deal.State)
	for _, loc := range locations {
		needle := strings.ToLower(strings.TrimSpace(loc))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// FindMatchingInvestors filters to investors with notifications enabled whose
// criteria the deal satisfies. Input order is preserved; ties are not broken.
func FindMatchingInvestors(deal *models.Deal, investors []models.Investor) []models.Investor {
	var matched []models.Investor
	for _, inv := range investors {
		if !inv.NotificationsEnabled {
			continue
		}
		if Matches(deal, &inv.Criteria) {
			matched = append(matched, inv)
		}
	}
	return matched
}
