package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"dealflow/pkg/core/agent"
	"dealflow/pkg/core/analyst"
	"dealflow/pkg/core/pipeline"
	"dealflow/pkg/core/scoring"
	"dealflow/pkg/core/store"
	"dealflow/pkg/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Batch-scores a JSON file of deals from the command line:
//
//	bulkscore deals.json
//
// Deterministic scoring always runs; AI analysis requires a model API key.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}
	if len(os.Args) < 2 {
		log.Fatal("Usage: bulkscore <deals.json>")
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read deals file: %v", err)
	}
	var dealList []models.Deal
	if err := json.Unmarshal(data, &dealList); err != nil {
		log.Fatalf("Failed to parse deals file: %v", err)
	}

	fmt.Printf("🚀 Bulk scoring %d deals...\n", len(dealList))

	configData, _ := os.ReadFile("config/models.yaml")
	var agentCfg agent.Config
	yaml.Unmarshal(configData, &agentCfg)
	agentMgr := agent.NewManager(agentCfg)

	weights, err := scoring.LoadWeightsFile("config/weights.yaml")
	if err != nil {
		log.Fatalf("Invalid scoring weights: %v", err)
	}
	scorer, err := scoring.NewEngine(weights)
	if err != nil {
		log.Fatalf("Failed to build scoring engine: %v", err)
	}

	repo := store.NewMemoryRepo()
	aiEnabled := os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("DEEPSEEK_API_KEY") != ""
	analyzer := analyst.NewAnalyzer(agentMgr, scorer, repo, repo, aiEnabled)
	orch := pipeline.NewOrchestrator(repo, scorer, analyzer, nil, nil, false)

	ctx := context.Background()
	ids := make([]string, 0, len(dealList))
	for i := range dealList {
		deal := &dealList[i]
		if _, err := orch.CreateDeal(ctx, deal); err != nil {
			fmt.Printf("  ✗ %s: %v\n", deal.Address, err)
			continue
		}
		ids = append(ids, deal.ID)
	}

	if aiEnabled {
		fmt.Println("🤖 Running AI analysis pass...")
		orchAI := pipeline.NewOrchestrator(repo, scorer, analyzer, nil, nil, true)
		results := orchAI.BulkAnalyze(ctx, ids)
		for _, res := range results {
			if !res.Succeeded() {
				fmt.Printf("  ✗ %s: %s\n", res.DealID, res.Err)
			}
		}
	}

	fmt.Println("\nScore\tROI\tCap\tSource\tAddress")
	for _, id := range ids {
		deal, err := repo.LoadDeal(ctx, id)
		if err != nil {
			continue
		}
		score, err := repo.LoadLatestScore(ctx, id)
		if err != nil {
			continue
		}
		fmt.Printf("%.0f\t%.1f%%\t%.1f%%\t%s\t%s\n", score.OverallScore, deal.ROI, deal.CapRate, score.Source, deal.Address)
	}
}
