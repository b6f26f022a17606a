package scoring

import (
	"fmt"
	"math"
	"time"

	"dealflow/pkg/core/calc"
	"dealflow/pkg/models"

	"github.com/google/uuid"
)

// =============================================================================
// DETERMINISTIC SCORING ENGINE
// Produces a DealScore purely from calculator outputs and deal attributes.
// No network calls, no randomness, no time-dependence in the numeric fields.
// Used as the primary scorer and as the fallback when AI analysis fails.
// =============================================================================

// Weights is the named weight table for the overall composite. Externalized
// so tuning does not require code changes; LoadWeightsFile reads it from YAML.
type Weights struct {
	FinancialROI    float64 `yaml:"financial_roi"`
	ProfitPotential float64 `yaml:"profit_potential"`
	Market          float64 `yaml:"market"`
	Risk            float64 `yaml:"risk"`
	TimeSensitivity float64 `yaml:"time_sensitivity"`

	// Financial sub-blend: ROI sub-score vs profit sub-score.
	ROIBlend    float64 `yaml:"roi_blend"`
	ProfitBlend float64 `yaml:"profit_blend"`
}

// DefaultWeights returns the production weight table.
func DefaultWeights() Weights {
	return Weights{
		FinancialROI:    0.25,
		ProfitPotential: 0.15,
		Market:          0.30,
		Risk:            0.20,
		TimeSensitivity: 0.10,
		ROIBlend:        0.625,
		ProfitBlend:     0.375,
	}
}

// Validate checks that the composite weights sum to 1 within tolerance.
func (w Weights) Validate() error {
	sum := w.FinancialROI + w.ProfitPotential + w.Market + w.Risk + w.TimeSensitivity
	if math.Abs(sum-1.0) > 0.0001 {
		return fmt.Errorf("composite weights sum to %f, want 1.0", sum)
	}
	blend := w.ROIBlend + w.ProfitBlend
	if math.Abs(blend-1.0) > 0.0001 {
		return fmt.Errorf("financial blend weights sum to %f, want 1.0", blend)
	}
	return nil
}

// MarketStrategy and TimeSensitivityStrategy are injectable so richer data
// sources (comps, market velocity) can replace the baseline heuristics later
// without touching the composition logic.
type MarketStrategy func(deal *models.Deal) (score float64, explanation string)
type TimeSensitivityStrategy func(deal *models.Deal) (score float64, explanation string)

// BaselineMarket is the placeholder market heuristic: base 70, with a cap-rate
// bonus for income-producing strategies. Intended extension point, not a bug.
func BaselineMarket(deal *models.Deal) (float64, string) {
	score := 70.0
	explanation := "Baseline market assessment (no market feed wired)"
	if deal.Type.IsIncomeProducing() {
		switch {
		case deal.CapRate > 8:
			score += 20
			explanation = fmt.Sprintf("Strong cap rate of %.1f%% for an income property", deal.CapRate)
		case deal.CapRate > 6:
			score += 10
			explanation = fmt.Sprintf("Solid cap rate of %.1f%% for an income property", deal.CapRate)
		}
	}
	return clamp(score), explanation
}

// BaselineTimeSensitivity is the placeholder pending competition/velocity data.
func BaselineTimeSensitivity(deal *models.Deal) (float64, string) {
	return 75.0, "Baseline urgency (no market-velocity feed wired)"
}

// Engine composes the factor scores into a DealScore.
type Engine struct {
	weights         Weights
	market          MarketStrategy
	timeSensitivity TimeSensitivityStrategy
}

// NewEngine creates an engine with the given weight table and baseline
// strategies for the placeholder factors.
func NewEngine(w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		weights:         w,
		market:          BaselineMarket,
		timeSensitivity: BaselineTimeSensitivity,
	}, nil
}

// SetMarketStrategy replaces the market placeholder heuristic.
func (e *Engine) SetMarketStrategy(s MarketStrategy) { e.market = s }

// SetTimeSensitivityStrategy replaces the urgency placeholder heuristic.
func (e *Engine) SetTimeSensitivityStrategy(s TimeSensitivityStrategy) { e.timeSensitivity = s }

// Score produces a deterministic DealScore for the deal. The deal's derived
// metrics must already be filled (calc.ComputeMetrics); Score re-validates the
// raw inputs and fails with an InvalidInputError on malformed deals.
func (e *Engine) Score(deal *models.Deal) (*models.DealScore, error) {
	if err := calc.ValidateInputs(deal); err != nil {
		return nil, err
	}

	// Financial: ROI sub-score saturates at 20% ROI, profit at $50k.
	roiScore := clamp(deal.ROI / 20.0 * 100)
	profitScore := clamp(deal.ProfitPotential / 50000.0 * 100)
	financial := clamp(roiScore*e.weights.ROIBlend + profitScore*e.weights.ProfitBlend)

	market, marketWhy := e.market(deal)
	market = clamp(market)

	risk, riskWhy := riskScore(deal)

	timeSens, timeWhy := e.timeSensitivity(deal)
	timeSens = clamp(timeSens)

	factors := []models.ScoreFactor{
		{
			Name:        "Financial Returns",
			Weight:      e.weights.FinancialROI,
			Score:       roiScore,
			Explanation: fmt.Sprintf("ROI of %.1f%% (100 at 20%%+)", deal.ROI),
		},
		{
			Name:        "Profit Potential",
			Weight:      e.weights.ProfitPotential,
			Score:       profitScore,
			Explanation: fmt.Sprintf("Projected profit of $%.0f (100 at $50k+)", deal.ProfitPotential),
		},
		{
			Name:        "Market Conditions",
			Weight:      e.weights.Market,
			Score:       market,
			Explanation: marketWhy,
		},
		{
			Name:        "Risk Assessment",
			Weight:      e.weights.Risk,
			Score:       risk,
			Explanation: riskWhy,
		},
		{
			Name:        "Time Sensitivity",
			Weight:      e.weights.TimeSensitivity,
			Score:       timeSens,
			Explanation: timeWhy,
		},
	}

	overall := 0.0
	for _, f := range factors {
		overall += f.Score * f.Weight
	}
	overall = clamp(overall)

	return &models.DealScore{
		ID:                   uuid.NewString(),
		DealID:               deal.ID,
		OverallScore:         overall,
		FinancialScore:       financial,
		MarketScore:          market,
		RiskScore:            risk,
		TimeSensitivityScore: timeSens,
		Factors:              factors,
		Confidence:           0, // only AI-assisted passes carry confidence
		Recommendations:      recommendations(deal, overall, risk),
		Reasoning:            fmt.Sprintf("Algorithmic assessment of %s deal: ROI %.1f%%, projected profit $%.0f.", deal.Type, deal.ROI, deal.ProfitPotential),
		Source:               models.ScoreSourceDeterministic,
		CreatedAt:            time.Now().UTC(),
	}, nil
}

// riskScore starts at 80 (lower is riskier) and penalizes heavy repair
// exposure relative to purchase price.
func riskScore(deal *models.Deal) (float64, string) {
	score := 80.0
	ratio := 0.0
	if deal.PurchasePrice > 0 {
		ratio = deal.RepairCosts / deal.PurchasePrice
	}
	switch {
	case ratio > 0.3:
		score -= 30
	case ratio > 0.2:
		score -= 20
	case ratio > 0.1:
		score -= 10
	}
	return clamp(score), fmt.Sprintf("Repair costs are %.0f%% of purchase price", ratio*100)
}

func recommendations(deal *models.Deal, overall, risk float64) []string {
	var recs []string
	switch {
	case overall >= 80:
		recs = append(recs, "Strong candidate: move quickly on due diligence.")
	case overall >= 60:
		recs = append(recs, "Worth pursuing: verify repair estimates and comps before offering.")
	default:
		recs = append(recs, "Marginal numbers: renegotiate price or pass.")
	}
	if risk < 60 {
		recs = append(recs, "High repair exposure: get a contractor walkthrough before committing.")
	}
	if deal.Type.IsIncomeProducing() && deal.CapRate < 5 {
		recs = append(recs, "Cap rate is thin for a hold strategy: re-check rent and expense assumptions.")
	}
	return recs
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
