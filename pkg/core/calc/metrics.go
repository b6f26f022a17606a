package calc

import (
	"fmt"

	"dealflow/pkg/models"
)

// =============================================================================
// FINANCIAL CALCULATOR
// Pure, stateless functions over a deal's raw inputs. Zero or negative
// denominators yield 0 rather than NaN/Inf, except cash-on-cash which
// requires an explicit positive denominator from the caller.
// =============================================================================

// InvalidInputError marks malformed or out-of-range financial inputs.
// It is fatal for the deal being processed, never recovered into a fallback.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// ROI returns the return on investment as a percentage.
// Flip/wholesale: profit over total cash in.
// Rental/BRRRR: annualized net rent over total cash in.
func ROI(deal *models.Deal) float64 {
	totalIn := deal.PurchasePrice + deal.RepairCosts
	if deal.Type.IsIncomeProducing() {
		annualNet := (deal.MonthlyRent - deal.MonthlyExpenses) * 12
		return safeDiv(annualNet, totalIn) * 100
	}
	profit := deal.AfterRepairValue - deal.PurchasePrice - deal.RepairCosts
	return safeDiv(profit, totalIn) * 100
}

// CapRate returns annualized net operating income over ARV, as a percentage.
// Defined as 0 when ARV is 0.
func CapRate(deal *models.Deal) float64 {
	annualNet := (deal.MonthlyRent - deal.MonthlyExpenses) * 12
	return safeDiv(annualNet, deal.AfterRepairValue) * 100
}

// CashOnCashReturn returns annual cash flow over the cash actually invested.
// The down payment cannot be inferred from the deal, so the caller must
// supply a positive one.
func CashOnCashReturn(deal *models.Deal, downPayment float64) (float64, error) {
	if downPayment <= 0 {
		return 0, &InvalidInputError{Field: "down_payment", Reason: "must be positive"}
	}
	annualNet := (deal.MonthlyRent - deal.MonthlyExpenses) * 12
	return annualNet / downPayment * 100, nil
}

// ProfitPotential is the gross spread between ARV and total cash in.
func ProfitPotential(deal *models.Deal) float64 {
	return deal.AfterRepairValue - deal.PurchasePrice - deal.RepairCosts
}

// ValidateInputs checks the raw financial inputs before any ratio is computed.
func ValidateInputs(deal *models.Deal) error {
	if !deal.Type.IsValid() {
		return &InvalidInputError{Field: "deal_type", Reason: fmt.Sprintf("unknown type %q", deal.Type)}
	}
	if deal.PurchasePrice <= 0 {
		return &InvalidInputError{Field: "purchase_price", Reason: "must be positive"}
	}
	if deal.AfterRepairValue < 0 {
		return &InvalidInputError{Field: "after_repair_value", Reason: "must not be negative"}
	}
	if deal.RepairCosts < 0 {
		return &InvalidInputError{Field: "repair_costs", Reason: "must not be negative"}
	}
	if deal.MonthlyRent < 0 || deal.MonthlyExpenses < 0 {
		return &InvalidInputError{Field: "monthly_rent/monthly_expenses", Reason: "must not be negative"}
	}
	return nil
}

// ComputeMetrics validates the deal and fills its derived fields in place.
// Missing optional inputs (e.g. no rent on a flip) are treated as 0.
func ComputeMetrics(deal *models.Deal) error {
	if err := ValidateInputs(deal); err != nil {
		return err
	}
	deal.ROI = ROI(deal)
	deal.CapRate = CapRate(deal)
	deal.ProfitPotential = ProfitPotential(deal)
	// Conventional 20% down as the cash-on-cash basis when none is supplied.
	if down := deal.PurchasePrice * 0.20; down > 0 {
		coc, err := CashOnCashReturn(deal, down)
		if err == nil {
			deal.CashOnCashReturn = coc
		}
	}
	return nil
}

func safeDiv(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator
}
