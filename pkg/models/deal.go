package models

import "time"

// =============================================================================
// DEAL DOMAIN MODEL
// Shared types for the analysis engine. These mirror the persisted records;
// persistence itself lives in pkg/core/store.
// =============================================================================

// DealType classifies the investment strategy behind a deal.
type DealType string

const (
	DealTypeFlip      DealType = "flip"
	DealTypeRental    DealType = "rental"
	DealTypeWholesale DealType = "wholesale"
	DealTypeBRRRR     DealType = "brrrr"
)

// ValidDealTypes is the set of recognized deal types.
var ValidDealTypes = []DealType{DealTypeFlip, DealTypeRental, DealTypeWholesale, DealTypeBRRRR}

// IsValid reports whether the deal type is one of the recognized strategies.
func (t DealType) IsValid() bool {
	for _, v := range ValidDealTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsIncomeProducing reports whether the strategy is held for rental income
// (rental and BRRRR deals), which changes how ROI is computed.
func (t DealType) IsIncomeProducing() bool {
	return t == DealTypeRental || t == DealTypeBRRRR
}

// Deal is a candidate property transaction.
// Raw financial inputs are supplied at creation; the derived fields are filled
// by calc.ComputeMetrics and DealScore by the most recent scoring pass.
type Deal struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Type    DealType `json:"deal_type"`

	// Raw inputs (currency, >= 0). MonthlyRent/MonthlyExpenses may be zero
	// for non-rental strategies.
	PurchasePrice    float64 `json:"purchase_price"`
	AfterRepairValue float64 `json:"after_repair_value"`
	RepairCosts      float64 `json:"repair_costs"`
	MonthlyRent      float64 `json:"monthly_rent"`
	MonthlyExpenses  float64 `json:"monthly_expenses"`

	// Derived metrics.
	ROI              float64 `json:"roi"`
	CapRate          float64 `json:"cap_rate"`
	CashOnCashReturn float64 `json:"cash_on_cash_return"`
	ProfitPotential  float64 `json:"profit_potential"`

	// DealScore is the last known overall score (0-100).
	DealScore float64 `json:"deal_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoreFactor is one named contributor to a composite score.
// Factors are created fresh on every scoring pass and never mutated after.
type ScoreFactor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"` // 0-1; weights of a composite sum to 1
	Score       float64 `json:"score"`  // 0-100
	Explanation string  `json:"explanation"`
}

// ScoreSource identifies which path produced a DealScore.
type ScoreSource string

const (
	ScoreSourceDeterministic ScoreSource = "deterministic"
	ScoreSourceAI            ScoreSource = "ai"
)

// DealScore is the immutable output of one scoring pass. Multiple DealScores
// may exist per deal (history); Deal.DealScore always reflects the latest.
type DealScore struct {
	ID     string `json:"id"`
	DealID string `json:"deal_id"`

	OverallScore         float64 `json:"overall_score"`
	FinancialScore       float64 `json:"financial_score"`
	MarketScore          float64 `json:"market_score"`
	RiskScore            float64 `json:"risk_score"`
	TimeSensitivityScore float64 `json:"time_sensitivity_score"`

	Factors []ScoreFactor `json:"factors"`

	// Confidence is only meaningful for AI-assisted scores (0-100).
	Confidence      float64     `json:"confidence"`
	Recommendations []string    `json:"recommendations"`
	Reasoning       string      `json:"reasoning"`
	Source          ScoreSource `json:"source"`

	CreatedAt time.Time `json:"created_at"`
}

// BuyBoxCriteria is an investor's standing acceptance rule for deals.
type BuyBoxCriteria struct {
	MaxPurchasePrice   float64    `json:"max_purchase_price"`
	MinROI             float64    `json:"min_roi"`
	MinCapRate         *float64   `json:"min_cap_rate,omitempty"`
	MinCashFlow        *float64   `json:"min_cash_flow,omitempty"`
	MaxRepairCosts     float64    `json:"max_repair_costs"`
	DealTypes          []DealType `json:"deal_types"`
	PreferredLocations []string   `json:"preferred_locations"`
}

// AcceptsType reports whether the criteria's deal-type set contains t.
func (c *BuyBoxCriteria) AcceptsType(t DealType) bool {
	for _, dt := range c.DealTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// ContactMethod is an investor's preferred notification channel.
type ContactMethod string

const (
	ContactEmail ContactMethod = "email"
	ContactSMS   ContactMethod = "sms"
)

// Investor holds the matching-relevant slice of an investor account.
// The engine reads investors; it never creates or mutates them.
type Investor struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	NotificationsEnabled bool           `json:"notifications_enabled"`
	PreferredContact     ContactMethod  `json:"preferred_contact_method"`
	Criteria             BuyBoxCriteria `json:"criteria"`
}

// AnalysisRecord is the observability side-effect of one AI analysis call:
// inputs, outcome and token/cost metadata. Persisted best-effort.
type AnalysisRecord struct {
	ID             string    `json:"id"`
	DealID         string    `json:"deal_id"`
	Model          string    `json:"model"`
	PromptTokens   int       `json:"prompt_tokens"`
	ResponseTokens int       `json:"response_tokens"`
	CostEstimate   float64   `json:"cost_estimate"` // USD
	Fallback       bool      `json:"fallback"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
