package deals

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dealflow/pkg/core/analyst"
	"dealflow/pkg/core/listing"
	"dealflow/pkg/core/matching"
	"dealflow/pkg/core/notify"
	"dealflow/pkg/core/pipeline"
	"dealflow/pkg/core/store"
	"dealflow/pkg/models"
)

// Handler holds dependencies for deal endpoints
type Handler struct {
	Orch      *pipeline.Orchestrator
	Repo      store.Repository
	Analyzer  *analyst.Analyzer
	Investors pipeline.InvestorSource
}

// NewHandler creates a new deals handler
func NewHandler(orch *pipeline.Orchestrator, repo store.Repository, analyzer *analyst.Analyzer, investors pipeline.InvestorSource) *Handler {
	return &Handler{
		Orch:      orch,
		Repo:      repo,
		Analyzer:  analyzer,
		Investors: investors,
	}
}

type CreateResponse struct {
	Deal  *models.Deal      `json:"deal"`
	Score *models.DealScore `json:"score"`
}

type ReAnalyzeRequest struct {
	DealID string `json:"deal_id"`
}

type BulkRequest struct {
	DealIDs []string `json:"deal_ids"`
}

type MatchEntry struct {
	Investor models.Investor `json:"investor"`
	Matched  bool            `json:"matched"`
	Reasons  []string        `json:"reasons"`
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// HandleCreate accepts a raw deal, scores it deterministically and returns
// it immediately. AI enrichment runs in the background.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var deal models.Deal
	if err := json.NewDecoder(r.Body).Decode(&deal); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	score, err := h.Orch.CreateDeal(r.Context(), &deal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fmt.Printf("[DEALS] Created deal %s (%s) score %.0f\n", deal.ID, deal.Address, score.OverallScore)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateResponse{Deal: &deal, Score: score})
}

// HandleGet returns a deal with its latest score.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cors(w)
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	deal, err := h.Repo.LoadDeal(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Deal not found: %s", id), http.StatusNotFound)
		return
	}
	score, err := h.Repo.LoadLatestScore(r.Context(), id)
	if err != nil {
		// A deal always has at least its creation-time score; missing
		// history is a data problem, not a 404.
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateResponse{Deal: deal, Score: score})
}

// HandleScores returns the full scoring history for a deal, oldest first.
func (h *Handler) HandleScores(w http.ResponseWriter, r *http.Request) {
	cors(w)
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	scores, err := h.Repo.ListScores(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scores)
}

// HandleReAnalyze runs a fresh synchronous analysis pass for one deal.
func (h *Handler) HandleReAnalyze(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DealID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	score, err := h.Orch.ReAnalyze(r.Context(), req.DealID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(score)
}

// HandleBulk re-analyzes a set of deals. Always returns 200 with per-deal
// outcomes; individual failures are entries, not an aborted batch.
func (h *Handler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fmt.Printf("[DEALS] Bulk analysis of %d deals\n", len(req.DealIDs))

	results := h.Orch.BulkAnalyze(r.Context(), req.DealIDs)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// HandleQuickScore returns the cheap single-number score for a deal without
// persisting anything.
func (h *Handler) HandleQuickScore(w http.ResponseWriter, r *http.Request) {
	cors(w)
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}
	deal, err := h.Repo.LoadDeal(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Deal not found: %s", id), http.StatusNotFound)
		return
	}

	score := h.Analyzer.QuickScore(r.Context(), deal)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"quick_score": score})
}

// HandleMatches evaluates every investor's buy box against a deal and
// returns the per-criterion reasons, matched or not.
func (h *Handler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	cors(w)
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}
	deal, err := h.Repo.LoadDeal(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Deal not found: %s", id), http.StatusNotFound)
		return
	}
	investors, err := h.Investors.ListInvestors(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	entries := make([]MatchEntry, 0, len(investors))
	for _, inv := range investors {
		ok, reasons := matching.Evaluate(deal, &inv.Criteria)
		entries = append(entries, MatchEntry{Investor: inv, Matched: ok, Reasons: reasons})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// HandleReport renders the HTML deal report for the deal's latest score.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	cors(w)
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}
	deal, err := h.Repo.LoadDeal(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Deal not found: %s", id), http.StatusNotFound)
		return
	}
	score, err := h.Repo.LoadLatestScore(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	html, err := notify.RenderReport(deal, score)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

// HandleIntake parses a saved listing page (raw HTML body) into a prefilled
// deal skeleton. Nothing is persisted; the client reviews and submits via
// the create endpoint.
func (h *Handler) HandleIntake(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	intake, err := listing.ParseListingHTML(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var deal models.Deal
	intake.ApplyTo(&deal)
	fmt.Printf("[DEALS] Listing intake: %s, %s ($%.0f)\n", deal.Address, deal.City, deal.PurchasePrice)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&deal)
}
