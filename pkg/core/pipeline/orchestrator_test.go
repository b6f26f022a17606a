package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"dealflow/pkg/core/analyst"
	"dealflow/pkg/core/notify"
	"dealflow/pkg/core/scoring"
	"dealflow/pkg/core/store"
	"dealflow/pkg/models"
)

// =============================================================================
// MOCKS
// =============================================================================

type MockAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, deal *models.Deal) (*analyst.Result, error)
	calls       int32
}

func (m *MockAnalyzer) Analyze(ctx context.Context, deal *models.Deal) (*analyst.Result, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.AnalyzeFunc(ctx, deal)
}

func (m *MockAnalyzer) Calls() int { return int(atomic.LoadInt32(&m.calls)) }

type MockInvestorSource struct {
	ListFunc func(ctx context.Context) ([]models.Investor, error)
}

func (m *MockInvestorSource) ListInvestors(ctx context.Context) ([]models.Investor, error) {
	return m.ListFunc(ctx)
}

type MockNotifier struct {
	mu       sync.Mutex
	Notified [][]models.Investor
}

func (m *MockNotifier) NotifyMatches(ctx context.Context, deal *models.Deal, score *models.DealScore, investors []models.Investor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified = append(m.Notified, investors)
	return nil
}

// FailingRepo wraps MemoryRepo and fails selected operations.
type FailingRepo struct {
	*store.MemoryRepo
	FailSaveDeal bool
}

func (r *FailingRepo) SaveDeal(ctx context.Context, deal *models.Deal) error {
	if r.FailSaveDeal {
		return errors.New("connection refused")
	}
	return r.MemoryRepo.SaveDeal(ctx, deal)
}

var _ store.Repository = (*FailingRepo)(nil)
var _ notify.Notifier = (*MockNotifier)(nil)

// =============================================================================
// HELPERS
// =============================================================================

func newScorer(t *testing.T) *scoring.Engine {
	t.Helper()
	eng, err := scoring.NewEngine(scoring.DefaultWeights())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return eng
}

func testDeal(id string) *models.Deal {
	return &models.Deal{
		ID:               id,
		Address:          "123 Main St",
		City:             "Austin",
		State:            "TX",
		Type:             models.DealTypeFlip,
		PurchasePrice:    200000,
		RepairCosts:      0,
		AfterRepairValue: 250000,
	}
}

func aiScore(overall float64) *models.DealScore {
	return &models.DealScore{
		OverallScore:         overall,
		FinancialScore:       overall,
		MarketScore:          overall,
		RiskScore:            overall,
		TimeSensitivityScore: overall,
		Confidence:           0.9,
		Reasoning:            "model reasoning",
		Source:               models.ScoreSourceAI,
	}
}

func aiAnalyzer(overall float64) *MockAnalyzer {
	return &MockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, deal *models.Deal) (*analyst.Result, error) {
			return &analyst.Result{Score: aiScore(overall)}, nil
		},
	}
}

// =============================================================================
// CREATE DEAL
// =============================================================================

func TestCreateDealBaselineBeforeAI(t *testing.T) {
	repo := store.NewMemoryRepo()
	scorer := newScorer(t)
	analyzer := aiAnalyzer(91)

	orch := NewOrchestrator(repo, scorer, analyzer, nil, nil, true)

	deal := testDeal("deal-1")
	baseline, err := orch.CreateDeal(context.Background(), deal)
	if err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}
	if baseline == nil || baseline.Source != models.ScoreSourceDeterministic {
		t.Fatalf("Expected synchronous deterministic baseline, got %+v", baseline)
	}
	if deal.ROI != 25.0 {
		t.Errorf("Expected metrics computed at creation, ROI = %.2f", deal.ROI)
	}

	orch.Wait()

	scores, err := repo.ListScores(context.Background(), "deal-1")
	if err != nil {
		t.Fatalf("ListScores failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("Expected baseline + AI score in history, got %d", len(scores))
	}
	if scores[0].Source != models.ScoreSourceDeterministic || scores[1].Source != models.ScoreSourceAI {
		t.Errorf("Expected deterministic then AI in history, got %s then %s", scores[0].Source, scores[1].Source)
	}

	saved, err := repo.LoadDeal(context.Background(), "deal-1")
	if err != nil {
		t.Fatalf("LoadDeal failed: %v", err)
	}
	if saved.DealScore != 91 {
		t.Errorf("Expected AI score to overwrite headline score, got %.2f", saved.DealScore)
	}
}

func TestCreateDealInvalidInput(t *testing.T) {
	repo := store.NewMemoryRepo()
	orch := NewOrchestrator(repo, newScorer(t), nil, nil, nil, false)

	deal := testDeal("deal-bad")
	deal.PurchasePrice = -5

	if _, err := orch.CreateDeal(context.Background(), deal); err == nil {
		t.Fatal("Expected validation error for negative purchase price")
	}
	if _, err := repo.LoadDeal(context.Background(), "deal-bad"); err == nil {
		t.Error("Invalid deal must not be persisted")
	}
}

func TestCreateDealPersistenceFailureSurfaces(t *testing.T) {
	repo := &FailingRepo{MemoryRepo: store.NewMemoryRepo(), FailSaveDeal: true}
	orch := NewOrchestrator(repo, newScorer(t), nil, nil, nil, false)

	_, err := orch.CreateDeal(context.Background(), testDeal("deal-2"))
	if err == nil {
		t.Fatal("Expected persistence error to surface")
	}
	if !strings.Contains(err.Error(), "persist deal") {
		t.Errorf("Expected wrapped persistence error, got: %v", err)
	}
}

func TestCreateDealAIFailureKeepsBaseline(t *testing.T) {
	repo := store.NewMemoryRepo()
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, deal *models.Deal) (*analyst.Result, error) {
			return nil, errors.New("provider unreachable")
		},
	}
	orch := NewOrchestrator(repo, newScorer(t), analyzer, nil, nil, true)

	deal := testDeal("deal-3")
	baseline, err := orch.CreateDeal(context.Background(), deal)
	if err != nil {
		t.Fatalf("AI failure must not fail creation: %v", err)
	}
	orch.Wait()

	scores, _ := repo.ListScores(context.Background(), "deal-3")
	if len(scores) != 1 {
		t.Fatalf("Expected only the baseline score in history, got %d", len(scores))
	}
	saved, _ := repo.LoadDeal(context.Background(), "deal-3")
	if saved.DealScore != baseline.OverallScore {
		t.Errorf("Headline score changed despite AI failure: %.2f vs %.2f", saved.DealScore, baseline.OverallScore)
	}
}

func TestCreateDealDisabledAISkipsAnalyzer(t *testing.T) {
	repo := store.NewMemoryRepo()
	analyzer := aiAnalyzer(95)
	orch := NewOrchestrator(repo, newScorer(t), analyzer, nil, nil, false)

	if _, err := orch.CreateDeal(context.Background(), testDeal("deal-4")); err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}
	orch.Wait()
	if analyzer.Calls() != 0 {
		t.Errorf("Analyzer must not run when AI is disabled, got %d calls", analyzer.Calls())
	}
}

// =============================================================================
// MATCHING
// =============================================================================

func TestCreateDealNotifiesMatchingInvestors(t *testing.T) {
	repo := store.NewMemoryRepo()
	investors := &MockInvestorSource{
		ListFunc: func(ctx context.Context) ([]models.Investor, error) {
			return []models.Investor{
				{
					ID: "inv-1", Name: "Fits", NotificationsEnabled: true,
					Criteria: models.BuyBoxCriteria{
						MaxPurchasePrice: 300000,
						MinROI:           10,
						MaxRepairCosts:   50000,
						DealTypes:        []models.DealType{models.DealTypeFlip},
					},
				},
				{
					ID: "inv-2", Name: "TooExpensive", NotificationsEnabled: true,
					Criteria: models.BuyBoxCriteria{
						MaxPurchasePrice: 100000,
						MaxRepairCosts:   50000,
						DealTypes:        []models.DealType{models.DealTypeFlip},
					},
				},
			}, nil
		},
	}
	notifier := &MockNotifier{}
	orch := NewOrchestrator(repo, newScorer(t), nil, investors, notifier, false)

	if _, err := orch.CreateDeal(context.Background(), testDeal("deal-5")); err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}
	orch.Wait()

	if len(notifier.Notified) != 1 {
		t.Fatalf("Expected one notification batch, got %d", len(notifier.Notified))
	}
	if len(notifier.Notified[0]) != 1 || notifier.Notified[0][0].ID != "inv-1" {
		t.Errorf("Expected only inv-1 to match, got %+v", notifier.Notified[0])
	}
}

// =============================================================================
// RE-ANALYZE
// =============================================================================

func TestReAnalyzeAppendsToHistory(t *testing.T) {
	repo := store.NewMemoryRepo()
	orch := NewOrchestrator(repo, newScorer(t), nil, nil, nil, false)

	ctx := context.Background()
	if _, err := orch.CreateDeal(ctx, testDeal("deal-6")); err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}

	second, err := orch.ReAnalyze(ctx, "deal-6")
	if err != nil {
		t.Fatalf("ReAnalyze failed: %v", err)
	}

	scores, _ := repo.ListScores(ctx, "deal-6")
	if len(scores) != 2 {
		t.Fatalf("Expected two history records, got %d", len(scores))
	}
	// Deterministic scoring of unchanged inputs is reproducible.
	if scores[0].OverallScore != second.OverallScore {
		t.Errorf("Repeat deterministic score differs: %.4f vs %.4f", scores[0].OverallScore, second.OverallScore)
	}
}

func TestReAnalyzeUnknownDeal(t *testing.T) {
	orch := NewOrchestrator(store.NewMemoryRepo(), newScorer(t), nil, nil, nil, false)
	if _, err := orch.ReAnalyze(context.Background(), "ghost"); err == nil {
		t.Fatal("Expected error for unknown deal")
	}
}

func TestReAnalyzeUsesAIWhenEnabled(t *testing.T) {
	repo := store.NewMemoryRepo()
	analyzer := aiAnalyzer(88)
	orch := NewOrchestrator(repo, newScorer(t), analyzer, nil, nil, true)

	ctx := context.Background()
	if _, err := orch.CreateDeal(ctx, testDeal("deal-7")); err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}
	orch.Wait()

	score, err := orch.ReAnalyze(ctx, "deal-7")
	if err != nil {
		t.Fatalf("ReAnalyze failed: %v", err)
	}
	if score.Source != models.ScoreSourceAI || score.OverallScore != 88 {
		t.Errorf("Expected AI score from re-analysis, got %+v", score)
	}
}

// =============================================================================
// BULK ANALYZE
// =============================================================================

func TestBulkAnalyzePartialFailure(t *testing.T) {
	repo := store.NewMemoryRepo()
	orch := NewOrchestrator(repo, newScorer(t), nil, nil, nil, false)

	ctx := context.Background()
	for _, id := range []string{"d1", "d3"} {
		if _, err := orch.CreateDeal(ctx, testDeal(id)); err != nil {
			t.Fatalf("CreateDeal(%s) failed: %v", id, err)
		}
	}

	results := orch.BulkAnalyze(ctx, []string{"d1", "d2", "d3"})
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	// Input order preserved.
	for i, want := range []string{"d1", "d2", "d3"} {
		if results[i].DealID != want {
			t.Errorf("Result %d: expected %s, got %s", i, want, results[i].DealID)
		}
	}
	if !results[0].Succeeded() || !results[2].Succeeded() {
		t.Errorf("d1/d3 should succeed: %+v", results)
	}
	if results[1].Succeeded() {
		t.Error("d2 does not exist and must be reported as failed")
	}
	if results[0].Score == nil || results[2].Score == nil {
		t.Error("Successful entries must carry scores")
	}
}

func TestBulkAnalyzeBoundsConcurrency(t *testing.T) {
	repo := store.NewMemoryRepo()

	var active, peak int32
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, deal *models.Deal) (*analyst.Result, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			defer atomic.AddInt32(&active, -1)
			return &analyst.Result{Score: aiScore(80)}, nil
		},
	}
	orch := NewOrchestrator(repo, newScorer(t), analyzer, nil, nil, true)
	orch.SetBulkConcurrency(2)

	ctx := context.Background()
	ids := make([]string, 8)
	for i := range ids {
		id := "bulk-" + string(rune('a'+i))
		ids[i] = id
		if err := repo.SaveDeal(ctx, testDeal(id)); err != nil {
			t.Fatalf("SaveDeal failed: %v", err)
		}
	}

	results := orch.BulkAnalyze(ctx, ids)
	for _, r := range results {
		if !r.Succeeded() {
			t.Fatalf("Unexpected failure: %+v", r)
		}
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("Concurrency bound exceeded: peak %d workers", p)
	}
}

func TestBulkAnalyzeCancellation(t *testing.T) {
	repo := store.NewMemoryRepo()
	orch := NewOrchestrator(repo, newScorer(t), nil, nil, nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := orch.BulkAnalyze(ctx, []string{"x", "y"})
	if len(results) != 2 {
		t.Fatalf("Cancelled batch must still report every deal, got %d results", len(results))
	}
	for _, r := range results {
		if r.Succeeded() {
			t.Errorf("Expected cancellation failure for %s", r.DealID)
		}
	}
}
