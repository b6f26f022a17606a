package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealflow/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is the persistence collaborator contract the engine depends on.
// The engine treats it as an opaque record store; schema and indexing belong
// to whoever operates the database.
type Repository interface {
	SaveDeal(ctx context.Context, deal *models.Deal) error
	LoadDeal(ctx context.Context, id string) (*models.Deal, error)
	AppendScore(ctx context.Context, score *models.DealScore) error
	LoadLatestScore(ctx context.Context, dealID string) (*models.DealScore, error)
	ListScores(ctx context.Context, dealID string) ([]models.DealScore, error)
	SaveAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error
	RecordUsage(ctx context.Context, model string, promptTokens, responseTokens int, cost float64, at time.Time) error
	SaveInvestor(ctx context.Context, inv *models.Investor) error
	ListInvestors(ctx context.Context) ([]models.Investor, error)
}

// DealRepo is the pgx-backed Repository.
//
// Schema assumption (managed by migrations, not this package):
//
//	CREATE TABLE IF NOT EXISTS deals (
//	  id TEXT PRIMARY KEY,
//	  deal_json JSONB,
//	  updated_at TIMESTAMPTZ
//	);
//	CREATE TABLE IF NOT EXISTS deal_scores (
//	  id TEXT PRIMARY KEY,
//	  deal_id TEXT,
//	  score_json JSONB,
//	  created_at TIMESTAMPTZ
//	);
//	CREATE TABLE IF NOT EXISTS analysis_records (
//	  id TEXT PRIMARY KEY,
//	  deal_id TEXT,
//	  record_json JSONB,
//	  created_at TIMESTAMPTZ
//	);
//	CREATE TABLE IF NOT EXISTS investors (
//	  id TEXT PRIMARY KEY,
//	  investor_json JSONB,
//	  updated_at TIMESTAMPTZ
//	);
//	CREATE TABLE IF NOT EXISTS llm_usage (
//	  model TEXT,
//	  prompt_tokens INT,
//	  response_tokens INT,
//	  cost_estimate DOUBLE PRECISION,
//	  recorded_at TIMESTAMPTZ
//	);
type DealRepo struct{}

var _ Repository = (*DealRepo)(nil)

// NewDealRepo creates a new repository instance. InitDB must have run.
func NewDealRepo() *DealRepo {
	return &DealRepo{}
}

// SaveDeal upserts the deal, assigning an ID when absent.
func (r *DealRepo) SaveDeal(ctx context.Context, deal *models.Deal) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}
	deal.UpdatedAt = now

	jsonData, err := json.Marshal(deal)
	if err != nil {
		return fmt.Errorf("failed to marshal deal: %w", err)
	}

	query := `
		INSERT INTO deals (id, deal_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET
			deal_json = EXCLUDED.deal_json,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := pool.Exec(ctx, query, deal.ID, jsonData, deal.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save deal: %w", err)
	}
	return nil
}

// LoadDeal retrieves one deal by ID.
func (r *DealRepo) LoadDeal(ctx context.Context, id string) (*models.Deal, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var jsonData []byte
	err := pool.QueryRow(ctx, `SELECT deal_json FROM deals WHERE id = $1`, id).Scan(&jsonData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no deal found for id %s", id)
		}
		return nil, fmt.Errorf("failed to load deal: %w", err)
	}

	var deal models.Deal
	if err := json.Unmarshal(jsonData, &deal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deal: %w", err)
	}
	return &deal, nil
}

// AppendScore adds one scoring pass to the deal's history.
func (r *DealRepo) AppendScore(ctx context.Context, score *models.DealScore) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = time.Now().UTC()
	}

	jsonData, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	query := `INSERT INTO deal_scores (id, deal_id, score_json, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := pool.Exec(ctx, query, score.ID, score.DealID, jsonData, score.CreatedAt); err != nil {
		return fmt.Errorf("failed to append score: %w", err)
	}
	return nil
}

// LoadLatestScore returns the most recent scoring pass for a deal.
func (r *DealRepo) LoadLatestScore(ctx context.Context, dealID string) (*models.DealScore, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var jsonData []byte
	query := `SELECT score_json FROM deal_scores WHERE deal_id = $1 ORDER BY created_at DESC LIMIT 1`
	err := pool.QueryRow(ctx, query, dealID).Scan(&jsonData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no scores found for deal %s", dealID)
		}
		return nil, fmt.Errorf("failed to load latest score: %w", err)
	}

	var score models.DealScore
	if err := json.Unmarshal(jsonData, &score); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score: %w", err)
	}
	return &score, nil
}

// ListScores returns the full score history, oldest first.
func (r *DealRepo) ListScores(ctx context.Context, dealID string) ([]models.DealScore, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	rows, err := pool.Query(ctx, `SELECT score_json FROM deal_scores WHERE deal_id = $1 ORDER BY created_at ASC`, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []models.DealScore
	for rows.Next() {
		var jsonData []byte
		if err := rows.Scan(&jsonData); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		var score models.DealScore
		if err := json.Unmarshal(jsonData, &score); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// SaveAnalysisRecord persists AI call observability metadata.
func (r *DealRepo) SaveAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis record: %w", err)
	}

	query := `INSERT INTO analysis_records (id, deal_id, record_json, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := pool.Exec(ctx, query, rec.ID, rec.DealID, jsonData, rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to save analysis record: %w", err)
	}
	return nil
}

// SaveInvestor upserts an investor profile with its buy-box criteria.
func (r *DealRepo) SaveInvestor(ctx context.Context, inv *models.Investor) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	jsonData, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal investor: %w", err)
	}

	query := `
		INSERT INTO investors (id, investor_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET
			investor_json = EXCLUDED.investor_json,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := pool.Exec(ctx, query, inv.ID, jsonData, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save investor: %w", err)
	}
	return nil
}

// ListInvestors returns every investor profile in stable ID order.
func (r *DealRepo) ListInvestors(ctx context.Context) ([]models.Investor, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	rows, err := pool.Query(ctx, `SELECT investor_json FROM investors ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list investors: %w", err)
	}
	defer rows.Close()

	var investors []models.Investor
	for rows.Next() {
		var jsonData []byte
		if err := rows.Scan(&jsonData); err != nil {
			return nil, fmt.Errorf("failed to scan investor row: %w", err)
		}
		var inv models.Investor
		if err := json.Unmarshal(jsonData, &inv); err != nil {
			return nil, fmt.Errorf("failed to unmarshal investor: %w", err)
		}
		investors = append(investors, inv)
	}
	return investors, rows.Err()
}

// RecordUsage appends one token/cost usage row.
func (r *DealRepo) RecordUsage(ctx context.Context, model string, promptTokens, responseTokens int, cost float64, at time.Time) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	query := `INSERT INTO llm_usage (model, prompt_tokens, response_tokens, cost_estimate, recorded_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := pool.Exec(ctx, query, model, promptTokens, responseTokens, cost, at); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}
