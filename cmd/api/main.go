package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"dealflow/pkg/api/config"
	"dealflow/pkg/api/deals"
	"dealflow/pkg/api/investors"
	"dealflow/pkg/core/agent"
	"dealflow/pkg/core/analyst"
	"dealflow/pkg/core/notify"
	"dealflow/pkg/core/pipeline"
	"dealflow/pkg/core/scoring"
	"dealflow/pkg/core/store"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize manager from config
	configData, _ := os.ReadFile("config/models.yaml")
	var agentCfg agent.Config
	yaml.Unmarshal(configData, &agentCfg)
	agentMgr := agent.NewManager(agentCfg)

	// Scoring weights (optional override file, defaults otherwise)
	weights, err := scoring.LoadWeightsFile("config/weights.yaml")
	if err != nil {
		fmt.Printf("[FATAL] Invalid scoring weights: %v\n", err)
		os.Exit(1)
	}
	scorer, err := scoring.NewEngine(weights)
	if err != nil {
		fmt.Printf("[FATAL] Failed to build scoring engine: %v\n", err)
		os.Exit(1)
	}

	// Storage: Postgres when DATABASE_URL is set, in-memory otherwise
	var repo store.Repository
	if os.Getenv("DATABASE_URL") != "" {
		if err := store.InitDB(context.Background()); err != nil {
			fmt.Printf("[FATAL] Database init failed: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		repo = store.NewDealRepo()
		fmt.Println("[STORE] Using Postgres repository")
	} else {
		repo = store.NewMemoryRepo()
		fmt.Println("[WARNING] DATABASE_URL not set, using in-memory storage")
	}

	// AI analysis runs only when a model key is configured
	aiEnabled := os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("DEEPSEEK_API_KEY") != ""
	if !aiEnabled {
		fmt.Println("[WARNING] No model API key set, AI analysis disabled (deterministic scoring only)")
	}
	analyzer := analyst.NewAnalyzer(agentMgr, scorer, repo, repo, aiEnabled)

	orch := pipeline.NewOrchestrator(repo, scorer, analyzer, repo, &notify.LogNotifier{}, aiEnabled)
	defer orch.Wait()

	// Config endpoints
	configHandler := config.NewHandler(agentMgr)
	http.HandleFunc("/api/config", configHandler.HandleConfig)
	http.HandleFunc("/api/config/switch", configHandler.HandleSwitch)

	// Deal endpoints
	dealsHandler := deals.NewHandler(orch, repo, analyzer, repo)
	http.HandleFunc("/api/deals/create", dealsHandler.HandleCreate)
	http.HandleFunc("/api/deals/get", dealsHandler.HandleGet)
	http.HandleFunc("/api/deals/scores", dealsHandler.HandleScores)
	http.HandleFunc("/api/deals/reanalyze", dealsHandler.HandleReAnalyze)
	http.HandleFunc("/api/deals/bulk", dealsHandler.HandleBulk)
	http.HandleFunc("/api/deals/quick-score", dealsHandler.HandleQuickScore)
	http.HandleFunc("/api/deals/matches", dealsHandler.HandleMatches)
	http.HandleFunc("/api/deals/report", dealsHandler.HandleReport)
	http.HandleFunc("/api/deals/intake", dealsHandler.HandleIntake)

	// Investor endpoints
	investorsHandler := investors.NewHandler(repo)
	http.HandleFunc("/api/investors", investorsHandler.HandleList)
	http.HandleFunc("/api/investors/save", investorsHandler.HandleSave)

	fmt.Println("API server starting on :8080...")
	fmt.Println("  - GET  /api/config")
	fmt.Println("  - POST /api/config/switch")
	fmt.Println("  - POST /api/deals/create")
	fmt.Println("  - GET  /api/deals/get?id=")
	fmt.Println("  - GET  /api/deals/scores?id=")
	fmt.Println("  - POST /api/deals/reanalyze")
	fmt.Println("  - POST /api/deals/bulk")
	fmt.Println("  - GET  /api/deals/quick-score?id=")
	fmt.Println("  - GET  /api/deals/matches?id=")
	fmt.Println("  - GET  /api/deals/report?id=")
	fmt.Println("  - POST /api/deals/intake")
	fmt.Println("  - GET  /api/investors")
	fmt.Println("  - POST /api/investors/save")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
