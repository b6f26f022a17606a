package analyst

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dealflow/pkg/core/calc"
	"dealflow/pkg/core/llm"
	"dealflow/pkg/core/scoring"
	"dealflow/pkg/models"
)

// --- Mocks ---

type MockProvider struct {
	GenerateFunc func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error)
}

func (m *MockProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, systemPrompt, options)
	}
	return &llm.Completion{Text: "{}", Model: "mock"}, nil
}

type MockProviderSource struct {
	provider llm.Provider
}

func (m *MockProviderSource) GetProvider(task string) llm.Provider { return m.provider }
func (m *MockProviderSource) ModelOverride(task string) string     { return "" }

type MockUsageRecorder struct {
	Calls      int
	LastModel  string
	LastCost   float64
	RecordFunc func() error
}

func (m *MockUsageRecorder) RecordUsage(ctx context.Context, model string, promptTokens, responseTokens int, cost float64, at time.Time) error {
	m.Calls++
	m.LastModel = model
	m.LastCost = cost
	if m.RecordFunc != nil {
		return m.RecordFunc()
	}
	return nil
}

type MockRecordWriter struct {
	Records  []*models.AnalysisRecord
	SaveFunc func(rec *models.AnalysisRecord) error
}

func (m *MockRecordWriter) SaveAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error {
	m.Records = append(m.Records, rec)
	if m.SaveFunc != nil {
		return m.SaveFunc(rec)
	}
	return nil
}

// --- Helpers ---

func testDeal(t *testing.T) *models.Deal {
	t.Helper()
	deal := &models.Deal{
		ID:               "deal-1",
		Address:          "12 Oak St",
		Type:             models.DealTypeRental,
		PurchasePrice:    200000,
		RepairCosts:      25000,
		AfterRepairValue: 300000,
		MonthlyRent:      2500,
		MonthlyExpenses:  500,
	}
	if err := calc.ComputeMetrics(deal); err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	return deal
}

func newAnalyzer(t *testing.T, provider llm.Provider, usage *MockUsageRecorder, records *MockRecordWriter, enabled bool) *Analyzer {
	t.Helper()
	engine, err := scoring.NewEngine(scoring.DefaultWeights())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	var u UsageRecorder
	if usage != nil {
		u = usage
	}
	var r RecordWriter
	if records != nil {
		r = records
	}
	return NewAnalyzer(&MockProviderSource{provider: provider}, engine, u, r, enabled)
}

const goodResponse = `{
	"overall_score": 78,
	"financial_score": 72,
	"market_score": 85,
	"risk_score": 70,
	"time_sensitivity_score": 75,
	"confidence": 82,
	"recommendations": ["Verify rent comps", "Inspect roof"],
	"reasoning": "Solid cap rate with moderate repair exposure."
}`

// --- Tests ---

func TestAnalyze_Success(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
			return &llm.Completion{Text: goodResponse, Model: "gemini-2.0-flash", PromptTokens: 400, ResponseTokens: 120}, nil
		},
	}
	usage := &MockUsageRecorder{}
	records := &MockRecordWriter{}
	analyzer := newAnalyzer(t, provider, usage, records, true)

	res, err := analyzer.Analyze(context.Background(), testDeal(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Fallback {
		t.Fatalf("Expected AI result, got fallback: %s", res.FallbackReason)
	}
	if res.Score.OverallScore != 78 || res.Score.Confidence != 82 {
		t.Errorf("Bad score mapping: %+v", res.Score)
	}
	if res.Score.Source != models.ScoreSourceAI {
		t.Errorf("Expected AI source, got %s", res.Score.Source)
	}
	if len(res.Score.Recommendations) != 2 {
		t.Errorf("Expected 2 recommendations, got %d", len(res.Score.Recommendations))
	}

	// Factor weights still sum to 1 regardless of model output.
	sum := 0.0
	for _, f := range res.Score.Factors {
		sum += f.Weight
	}
	if sum < 0.9999 || sum > 1.0001 {
		t.Errorf("Factor weights sum to %f", sum)
	}

	if usage.Calls != 1 {
		t.Errorf("Expected 1 usage record, got %d", usage.Calls)
	}
	if usage.LastCost <= 0 {
		t.Errorf("Expected positive cost estimate, got %f", usage.LastCost)
	}
	if len(records.Records) != 1 || records.Records[0].Fallback {
		t.Errorf("Expected one non-fallback analysis record")
	}
}

func TestAnalyze_ProviderErrorFallsBack(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
			return nil, fmt.Errorf("connection timed out")
		},
	}
	analyzer := newAnalyzer(t, provider, nil, nil, true)
	deal := testDeal(t)

	res, err := analyzer.Analyze(context.Background(), deal)
	if err != nil {
		t.Fatalf("Fallback must not surface provider errors, got: %v", err)
	}
	if !res.Fallback {
		t.Fatal("Expected fallback result")
	}

	// Numeric fields must equal the deterministic scorer's direct output.
	engine, _ := scoring.NewEngine(scoring.DefaultWeights())
	direct, _ := engine.Score(deal)
	if res.Score.OverallScore != direct.OverallScore ||
		res.Score.FinancialScore != direct.FinancialScore ||
		res.Score.MarketScore != direct.MarketScore ||
		res.Score.RiskScore != direct.RiskScore {
		t.Errorf("Fallback score differs from deterministic output")
	}
	if res.Score.Confidence != 0 {
		t.Errorf("Fallback must not carry AI confidence, got %f", res.Score.Confidence)
	}
}

func TestAnalyze_MalformedResponseFallsBack(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
			return &llm.Completion{Text: "I would rate this deal quite highly!", Model: "mock"}, nil
		},
	}
	analyzer := newAnalyzer(t, provider, nil, nil, true)

	res, err := analyzer.Analyze(context.Background(), testDeal(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.Fallback {
		t.Fatal("Expected fallback for malformed response")
	}
}

func TestAnalyze_OutOfRangeScoreFallsBack(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
			return &llm.Completion{Text: `{"overall_score": 940, "financial_score": 70, "market_score": 70, "risk_score": 70, "time_sensitivity_score": 70, "confidence": 80, "reasoning": "x"}`, Model: "mock"}, nil
		},
	}
	analyzer := newAnalyzer(t, provider, nil, nil, true)

	res, err := analyzer.Analyze(context.Background(), testDeal(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.Fallback {
		t.Fatal("Expected fallback for out-of-range score")
	}
}

func TestAnalyze_Disabled(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
			t.Fatal("Provider must not be called when disabled")
			return nil, nil
		},
	}
	analyzer := newAnalyzer(t, provider, nil, nil, false)

	res, err := analyzer.Analyze(context.Background(), testDeal(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.Fallback || res.FallbackReason != "ai analysis disabled" {
		t.Errorf("Expected disabled fallback, got %+v", res)
	}
}

func TestAnalyze_RecordingFailuresAreSwallowed(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
			return &llm.Completion{Text: goodResponse, Model: "mock", PromptTokens: 10, ResponseTokens: 10}, nil
		},
	}
	usage := &MockUsageRecorder{RecordFunc: func() error { return fmt.Errorf("metrics db down") }}
	records := &MockRecordWriter{SaveFunc: func(rec *models.AnalysisRecord) error { return fmt.Errorf("disk full") }}
	analyzer := newAnalyzer(t, provider, usage, records, true)

	res, err := analyzer.Analyze(context.Background(), testDeal(t))
	if err != nil {
		t.Fatalf("Recording failure must not fail analysis: %v", err)
	}
	if res.Fallback {
		t.Error("Recording failure must not force a fallback")
	}
}

func TestAnalyze_InvalidDealIsFatal(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
			return nil, fmt.Errorf("boom")
		},
	}
	analyzer := newAnalyzer(t, provider, nil, nil, true)

	bad := &models.Deal{Type: models.DealTypeFlip, PurchasePrice: 0}
	if _, err := analyzer.Analyze(context.Background(), bad); err == nil {
		t.Error("Expected error for invalid deal inputs")
	}
}

func TestQuickScore(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		wantAI   bool
	}{
		{"clean number", "87", nil, true},
		{"number with whitespace", "  64.5\n", nil, true},
		{"out of range high", "140", nil, false},
		{"negative", "-3", nil, false},
		{"not a number", "around 80", nil, false},
		{"provider error", "", fmt.Errorf("rate limited"), false},
	}

	deal := testDeal(t)
	engine, _ := scoring.NewEngine(scoring.DefaultWeights())
	direct, _ := engine.Score(deal)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &MockProvider{
				GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (*llm.Completion, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return &llm.Completion{Text: tc.response, Model: "gemini-1.5-flash-8b"}, nil
				},
			}
			analyzer := newAnalyzer(t, provider, nil, nil, true)

			got := analyzer.QuickScore(context.Background(), deal)
			if got < 0 || got > 100 {
				t.Errorf("QuickScore %f out of [0,100]", got)
			}
			if !tc.wantAI && got != direct.OverallScore {
				t.Errorf("Expected deterministic fallback %f, got %f", direct.OverallScore, got)
			}
		})
	}
}
