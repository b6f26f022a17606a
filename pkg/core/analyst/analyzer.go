package analyst

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dealflow/pkg/core/llm"
	"dealflow/pkg/core/scoring"
	"dealflow/pkg/core/utils"
	"dealflow/pkg/models"

	"github.com/google/uuid"
)

// =============================================================================
// AI ANALYSIS ADAPTER
// Wraps the LLM completion service behind the same DealScore shape as the
// deterministic scorer. Any failure (timeout, provider error, malformed or
// out-of-range response) degrades to the deterministic score for the same
// deal; the caller never sees a different return shape on failure.
// =============================================================================

// callTimeout is the fixed upper bound for a single model call. Timeouts
// resolve to the fallback path, never to a hanging analysis.
const callTimeout = 8 * time.Second

// ProviderSource resolves a task name to an LLM provider. Satisfied by
// agent.Manager; redefined here so tests can inject stubs.
type ProviderSource interface {
	GetProvider(task string) llm.Provider
	ModelOverride(task string) string
}

// UsageRecorder receives token/cost observability events. Failures recording
// usage are swallowed; they must never affect the returned score.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, model string, promptTokens, responseTokens int, cost float64, at time.Time) error
}

// RecordWriter persists the per-call analysis record (inputs, outcome, cost
// metadata). Best-effort: a failed write is logged, not returned.
type RecordWriter interface {
	SaveAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error
}

// Result is the tagged outcome of one analysis attempt: either a genuine AI
// score or the deterministic fallback with the reason it was taken.
type Result struct {
	Score          *models.DealScore
	Fallback       bool
	FallbackReason string
}

// Analyzer is the AI analysis adapter.
type Analyzer struct {
	providers ProviderSource
	fallback  *scoring.Engine
	usage     UsageRecorder
	records   RecordWriter
	enabled   bool
}

// NewAnalyzer builds an adapter. usage and records may be nil (no-op).
// When enabled is false every call goes straight to the fallback scorer.
func NewAnalyzer(providers ProviderSource, fallback *scoring.Engine, usage UsageRecorder, records RecordWriter, enabled bool) *Analyzer {
	return &Analyzer{
		providers: providers,
		fallback:  fallback,
		usage:     usage,
		records:   records,
		enabled:   enabled,
	}
}

// scorePayload is the schema the model must satisfy. The response is an
// untrusted external payload: parsed leniently, then validated strictly.
type scorePayload struct {
	OverallScore         float64  `json:"overall_score"`
	FinancialScore       float64  `json:"financial_score"`
	MarketScore          float64  `json:"market_score"`
	RiskScore            float64  `json:"risk_score"`
	TimeSensitivityScore float64  `json:"time_sensitivity_score"`
	Confidence           float64  `json:"confidence"`
	Recommendations      []string `json:"recommendations"`
	Reasoning            string   `json:"reasoning"`
}

func (p *scorePayload) validate() error {
	for name, v := range map[string]float64{
		"overall_score":          p.OverallScore,
		"financial_score":        p.FinancialScore,
		"market_score":           p.MarketScore,
		"risk_score":             p.RiskScore,
		"time_sensitivity_score": p.TimeSensitivityScore,
		"confidence":             p.Confidence,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("field %s out of range: %f", name, v)
		}
	}
	if p.Reasoning == "" {
		return fmt.Errorf("field reasoning is empty")
	}
	return nil
}

// Analyze scores a deal with the full-analysis model tier. The deal's derived
// metrics must already be computed.
func (a *Analyzer) Analyze(ctx context.Context, deal *models.Deal) (*Result, error) {
	if !a.enabled {
		return a.fallbackResult(ctx, deal, "ai analysis disabled")
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	provider := a.providers.GetProvider("analysis")
	options := map[string]interface{}{"json": true}
	if model := a.providers.ModelOverride("analysis"); model != "" {
		options["model"] = model
	}

	completion, err := provider.GenerateResponse(callCtx, buildAnalysisPrompt(deal), analysisSystemPrompt, options)
	if err != nil {
		return a.fallbackResult(ctx, deal, fmt.Sprintf("provider error: %v", err))
	}

	var payload scorePayload
	if _, err := utils.SmartParse(completion.Text, &payload); err != nil {
		a.record(ctx, deal, completion, true, "malformed response")
		return a.fallbackResult(ctx, deal, fmt.Sprintf("malformed response: %v", err))
	}
	if err := payload.validate(); err != nil {
		a.record(ctx, deal, completion, true, "schema violation")
		return a.fallbackResult(ctx, deal, fmt.Sprintf("schema violation: %v", err))
	}

	score := a.buildScore(deal, &payload)
	a.record(ctx, deal, completion, false, "")
	return &Result{Score: score}, nil
}

// QuickScore returns a bare 0-100 score from the cheap tier, for bulk scans.
// Failure or an out-of-range response falls back to the deterministic
// overall score. The result is always clamped to [0, 100].
func (a *Analyzer) QuickScore(ctx context.Context, deal *models.Deal) float64 {
	deterministic := func() float64 {
		score, err := a.fallback.Score(deal)
		if err != nil {
			return 0
		}
		return score.OverallScore
	}

	if !a.enabled {
		return deterministic()
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	provider := a.providers.GetProvider("quick_score")
	options := map[string]interface{}{}
	if model := a.providers.ModelOverride("quick_score"); model != "" {
		options["model"] = model
	}

	completion, err := provider.GenerateResponse(callCtx, buildQuickScorePrompt(deal), quickScoreSystemPrompt, options)
	if err != nil {
		return deterministic()
	}

	raw := strings.TrimSpace(completion.Text)
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || value > 100 {
		return deterministic()
	}

	a.record(ctx, deal, completion, false, "")
	return clamp(value)
}

// buildScore maps a validated payload into an immutable DealScore. Factor
// weights come from the deterministic weight table so the sum-to-one
// invariant holds regardless of what the model returns.
func (a *Analyzer) buildScore(deal *models.Deal, payload *scorePayload) *models.DealScore {
	weights := scoring.DefaultWeights()
	factors := []models.ScoreFactor{
		{Name: "Financial Returns", Weight: weights.FinancialROI, Score: clamp(payload.FinancialScore), Explanation: "AI assessment of return profile"},
		{Name: "Profit Potential", Weight: weights.ProfitPotential, Score: clamp(payload.FinancialScore), Explanation: "AI assessment of profit headroom"},
		{Name: "Market Conditions", Weight: weights.Market, Score: clamp(payload.MarketScore), Explanation: "AI assessment of local market"},
		{Name: "Risk Assessment", Weight: weights.Risk, Score: clamp(payload.RiskScore), Explanation: "AI assessment of execution risk"},
		{Name: "Time Sensitivity", Weight: weights.TimeSensitivity, Score: clamp(payload.TimeSensitivityScore), Explanation: "AI assessment of urgency"},
	}

	return &models.DealScore{
		ID:                   uuid.NewString(),
		DealID:               deal.ID,
		OverallScore:         clamp(payload.OverallScore),
		FinancialScore:       clamp(payload.FinancialScore),
		MarketScore:          clamp(payload.MarketScore),
		RiskScore:            clamp(payload.RiskScore),
		TimeSensitivityScore: clamp(payload.TimeSensitivityScore),
		Factors:              factors,
		Confidence:           clamp(payload.Confidence),
		Recommendations:      payload.Recommendations,
		Reasoning:            utils.CleanMarkdown(payload.Reasoning),
		Source:               models.ScoreSourceAI,
		CreatedAt:            time.Now().UTC(),
	}
}

// fallbackResult produces the deterministic score tagged with the reason the
// AI path was not taken. Calculator errors remain fatal here: a deal the
// deterministic scorer rejects has no valid score of any kind.
func (a *Analyzer) fallbackResult(ctx context.Context, deal *models.Deal, reason string) (*Result, error) {
	score, err := a.fallback.Score(deal)
	if err != nil {
		return nil, err
	}
	if a.records != nil {
		rec := &models.AnalysisRecord{
			ID:             uuid.NewString(),
			DealID:         deal.ID,
			Fallback:       true,
			FallbackReason: reason,
			CreatedAt:      time.Now().UTC(),
		}
		if err := a.records.SaveAnalysisRecord(ctx, rec); err != nil {
			fmt.Printf("[WARNING] Failed to persist analysis record for %s: %v\n", deal.ID, err)
		}
	}
	return &Result{Score: score, Fallback: true, FallbackReason: reason}, nil
}

// record emits the usage event and analysis record for a completed call.
// Both writes are best-effort.
func (a *Analyzer) record(ctx context.Context, deal *models.Deal, completion *llm.Completion, fallback bool, reason string) {
	cost := llm.CostEstimate(completion.Model, completion.PromptTokens, completion.ResponseTokens)

	if a.usage != nil {
		if err := a.usage.RecordUsage(ctx, completion.Model, completion.PromptTokens, completion.ResponseTokens, cost, time.Now().UTC()); err != nil {
			fmt.Printf("[WARNING] Failed to record usage for %s: %v\n", deal.ID, err)
		}
	}
	if a.records != nil {
		rec := &models.AnalysisRecord{
			ID:             uuid.NewString(),
			DealID:         deal.ID,
			Model:          completion.Model,
			PromptTokens:   completion.PromptTokens,
			ResponseTokens: completion.ResponseTokens,
			CostEstimate:   cost,
			Fallback:       fallback,
			FallbackReason: reason,
			CreatedAt:      time.Now().UTC(),
		}
		if err := a.records.SaveAnalysisRecord(ctx, rec); err != nil {
			fmt.Printf("[WARNING] Failed to persist analysis record for %s: %v\n", deal.ID, err)
		}
	}
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
