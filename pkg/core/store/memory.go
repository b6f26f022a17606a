package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dealflow/pkg/models"

	"github.com/google/uuid"
)

// =============================================================================
// IN-MEMORY REPOSITORY (for development/testing)
// Production uses the pgx-backed DealRepo.
// =============================================================================

// MemoryRepo implements Repository with in-memory storage.
type MemoryRepo struct {
	mu      sync.RWMutex
	deals   map[string]models.Deal
	scores  map[string][]models.DealScore // dealID -> history, append order
	records []models.AnalysisRecord
	usage   []UsageRow

	investors     map[string]models.Investor
	investorOrder []string // insertion order
}

// UsageRow is one recorded usage event.
type UsageRow struct {
	Model          string
	PromptTokens   int
	ResponseTokens int
	Cost           float64
	At             time.Time
}

var _ Repository = (*MemoryRepo)(nil)

// NewMemoryRepo creates an empty in-memory repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		deals:     make(map[string]models.Deal),
		scores:    make(map[string][]models.DealScore),
		investors: make(map[string]models.Investor),
	}
}

func (m *MemoryRepo) SaveDeal(ctx context.Context, deal *models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}
	deal.UpdatedAt = now
	m.deals[deal.ID] = *deal
	return nil
}

func (m *MemoryRepo) LoadDeal(ctx context.Context, id string) (*models.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	deal, ok := m.deals[id]
	if !ok {
		return nil, fmt.Errorf("no deal found for id %s", id)
	}
	return &deal, nil
}

func (m *MemoryRepo) AppendScore(ctx context.Context, score *models.DealScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = time.Now().UTC()
	}
	m.scores[score.DealID] = append(m.scores[score.DealID], *score)
	return nil
}

func (m *MemoryRepo) LoadLatestScore(ctx context.Context, dealID string) (*models.DealScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.scores[dealID]
	if len(history) == 0 {
		return nil, fmt.Errorf("no scores found for deal %s", dealID)
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (m *MemoryRepo) ListScores(ctx context.Context, dealID string) ([]models.DealScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.scores[dealID]
	out := make([]models.DealScore, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) SaveAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *MemoryRepo) RecordUsage(ctx context.Context, model string, promptTokens, responseTokens int, cost float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage = append(m.usage, UsageRow{Model: model, PromptTokens: promptTokens, ResponseTokens: responseTokens, Cost: cost, At: at})
	return nil
}

func (m *MemoryRepo) SaveInvestor(ctx context.Context, inv *models.Investor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if _, exists := m.investors[inv.ID]; !exists {
		m.investorOrder = append(m.investorOrder, inv.ID)
	}
	m.investors[inv.ID] = *inv
	return nil
}

func (m *MemoryRepo) ListInvestors(ctx context.Context) ([]models.Investor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Investor, 0, len(m.investorOrder))
	for _, id := range m.investorOrder {
		out = append(out, m.investors[id])
	}
	return out, nil
}

// AnalysisRecords returns a copy of the stored analysis records, for tests.
func (m *MemoryRepo) AnalysisRecords() []models.AnalysisRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AnalysisRecord, len(m.records))
	copy(out, m.records)
	return out
}

// UsageRows returns a copy of the recorded usage events, for tests.
func (m *MemoryRepo) UsageRows() []UsageRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]UsageRow, len(m.usage))
	copy(out, m.usage)
	return out
}
