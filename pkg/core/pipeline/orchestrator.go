package pipeline

import (
	"context"
	"fmt"
	"sync"

	"dealflow/pkg/core/analyst"
	"dealflow/pkg/core/calc"
	"dealflow/pkg/core/matching"
	"dealflow/pkg/core/notify"
	"dealflow/pkg/core/scoring"
	"dealflow/pkg/core/store"
	"dealflow/pkg/models"
)

// defaultBulkConcurrency bounds concurrent AI calls during bulk re-analysis
// so provider rate limits are respected.
const defaultBulkConcurrency = 4

// DealAnalyzer is the AI analysis adapter contract the orchestrator drives.
// Satisfied by analyst.Analyzer; redefined here so tests can inject stubs.
type DealAnalyzer interface {
	Analyze(ctx context.Context, deal *models.Deal) (*analyst.Result, error)
}

// InvestorSource supplies the investors whose buy boxes are evaluated after
// each scoring pass. May be nil when matching is not wired (CLI runs).
type InvestorSource interface {
	ListInvestors(ctx context.Context) ([]models.Investor, error)
}

// Orchestrator coordinates deal-creation-time scoring:
// deterministic metrics synchronously, persistence, then best-effort AI
// enrichment that never blocks or fails the caller.
type Orchestrator struct {
	repo      store.Repository
	scorer    *scoring.Engine
	analyzer  DealAnalyzer
	investors InvestorSource
	notifier  notify.Notifier

	aiEnabled   bool
	concurrency int

	// asyncWG tracks in-flight fire-and-forget AI passes so shutdown and
	// tests can join them.
	asyncWG sync.WaitGroup
}

// NewOrchestrator wires the engine together. investors and notifier may be
// nil; matching is then skipped.
func NewOrchestrator(repo store.Repository, scorer *scoring.Engine, analyzer DealAnalyzer, investors InvestorSource, notifier notify.Notifier, aiEnabled bool) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		scorer:      scorer,
		analyzer:    analyzer,
		investors:   investors,
		notifier:    notifier,
		aiEnabled:   aiEnabled,
		concurrency: defaultBulkConcurrency,
	}
}

// SetBulkConcurrency overrides the bulk AI parallelism bound.
func (o *Orchestrator) SetBulkConcurrency(n int) {
	if n > 0 {
		o.concurrency = n
	}
}

// Wait joins any in-flight asynchronous AI passes.
func (o *Orchestrator) Wait() {
	o.asyncWG.Wait()
}

// CreateDeal validates and scores a new deal. The deterministic path runs
// synchronously; the deal is immediately usable with its baseline score.
// When AI analysis is enabled the enrichment pass is dispatched without
// blocking, and its result overwrites deal_score and appends to history.
func (o *Orchestrator) CreateDeal(ctx context.Context, deal *models.Deal) (*models.DealScore, error) {
	if err := calc.ComputeMetrics(deal); err != nil {
		return nil, err
	}

	baseline, err := o.scorer.Score(deal)
	if err != nil {
		return nil, err
	}
	deal.DealScore = baseline.OverallScore

	// A deal that cannot be saved has no meaningful downstream state:
	// persistence failures surface to the caller.
	if err := o.repo.SaveDeal(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to persist deal: %w", err)
	}
	baseline.DealID = deal.ID
	if err := o.repo.AppendScore(ctx, baseline); err != nil {
		return nil, fmt.Errorf("failed to persist baseline score: %w", err)
	}

	if o.aiEnabled && o.analyzer != nil {
		snapshot := *deal
		o.asyncWG.Add(1)
		go func() {
			defer o.asyncWG.Done()
			// Detached from the caller's request context: creation never
			// blocks on AI latency, and the adapter enforces its own timeout.
			o.enrich(context.Background(), &snapshot)
		}()
		return baseline, nil
	}

	o.matchAndNotify(ctx, deal, baseline)
	return baseline, nil
}

// enrich runs one AI pass for a persisted deal and merges the result.
// Errors here are logged, never surfaced: the baseline score already stands.
func (o *Orchestrator) enrich(ctx context.Context, deal *models.Deal) {
	result, err := o.analyzer.Analyze(ctx, deal)
	if err != nil {
		fmt.Printf("[WARNING] AI enrichment failed for deal %s: %v\n", deal.ID, err)
		return
	}
	if result.Fallback {
		// The baseline deterministic score is already persisted; appending
		// the fallback again would only duplicate history.
		fmt.Printf("[AI] Deal %s kept deterministic score (%s)\n", deal.ID, result.FallbackReason)
		o.matchAndNotify(ctx, deal, nil)
		return
	}

	if err := o.mergeScore(ctx, deal, result.Score); err != nil {
		fmt.Printf("[WARNING] Failed to merge AI score for deal %s: %v\n", deal.ID, err)
		return
	}
	o.matchAndNotify(ctx, deal, result.Score)
}

// mergeScore appends a scoring pass and updates the deal's headline score.
func (o *Orchestrator) mergeScore(ctx context.Context, deal *models.Deal, score *models.DealScore) error {
	score.DealID = deal.ID
	if err := o.repo.AppendScore(ctx, score); err != nil {
		return fmt.Errorf("failed to append score: %w", err)
	}
	deal.DealScore = score.OverallScore
	if err := o.repo.SaveDeal(ctx, deal); err != nil {
		return fmt.Errorf("failed to update deal score: %w", err)
	}
	return nil
}

// ReAnalyze loads the current deal, runs a full analysis pass and appends a
// new score. Prior scores remain in history.
func (o *Orchestrator) ReAnalyze(ctx context.Context, dealID string) (*models.DealScore, error) {
	deal, err := o.repo.LoadDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal: %w", err)
	}
	if err := calc.ComputeMetrics(deal); err != nil {
		return nil, err
	}

	var score *models.DealScore
	if o.analyzer != nil && o.aiEnabled {
		result, err := o.analyzer.Analyze(ctx, deal)
		if err != nil {
			return nil, err
		}
		score = result.Score
	} else {
		score, err = o.scorer.Score(deal)
		if err != nil {
			return nil, err
		}
	}

	if err := o.mergeScore(ctx, deal, score); err != nil {
		return nil, err
	}
	o.matchAndNotify(ctx, deal, score)
	return score, nil
}

// BulkResult is the per-deal outcome of a bulk pass.
type BulkResult struct {
	DealID string            `json:"deal_id"`
	Score  *models.DealScore `json:"score,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// Succeeded reports whether this deal's pass completed.
func (r BulkResult) Succeeded() bool { return r.Err == "" }

// BulkAnalyze re-analyzes each deal independently with fire-and-collect
// semantics: one deal's failure is recorded and skipped, never aborts the
// batch. Results are returned in input order. Cancellation is honored
// between individual deal calls; an in-flight call runs to its own timeout.
func (o *Orchestrator) BulkAnalyze(ctx context.Context, dealIDs []string) []BulkResult {
	results := make([]BulkResult, len(dealIDs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)

	for i, id := range dealIDs {
		if err := ctx.Err(); err != nil {
			// Batch cancelled: remaining deals are reported, not dropped.
			results[i] = BulkResult{DealID: id, Err: fmt.Sprintf("batch cancelled: %v", err)}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()

			score, err := o.ReAnalyze(ctx, id)
			if err != nil {
				results[i] = BulkResult{DealID: id, Err: err.Error()}
				return
			}
			results[i] = BulkResult{DealID: id, Score: score}
		}(i, id)
	}

	wg.Wait()
	return results
}

// matchAndNotify evaluates investor buy boxes for the deal's current score
// and hands the match list to the notification collaborator. Best-effort:
// matching problems never fail a scoring operation.
func (o *Orchestrator) matchAndNotify(ctx context.Context, deal *models.Deal, score *models.DealScore) {
	if o.investors == nil || o.notifier == nil {
		return
	}

	investors, err := o.investors.ListInvestors(ctx)
	if err != nil {
		fmt.Printf("[WARNING] Failed to load investors for matching: %v\n", err)
		return
	}
	matched := matching.FindMatchingInvestors(deal, investors)
	if len(matched) == 0 {
		return
	}

	if score == nil {
		score, err = o.repo.LoadLatestScore(ctx, deal.ID)
		if err != nil {
			fmt.Printf("[WARNING] No score available for match notification of deal %s: %v\n", deal.ID, err)
			return
		}
	}
	if err := o.notifier.NotifyMatches(ctx, deal, score, matched); err != nil {
		fmt.Printf("[WARNING] Match notification failed for deal %s: %v\n", deal.ID, err)
	}
}
