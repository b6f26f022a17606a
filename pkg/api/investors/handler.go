package investors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"dealflow/pkg/core/store"
	"dealflow/pkg/models"
)

// Handler holds dependencies for investor endpoints
type Handler struct {
	Repo store.Repository
}

// NewHandler creates a new investors handler
func NewHandler(repo store.Repository) *Handler {
	return &Handler{Repo: repo}
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// HandleList returns every investor profile.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	cors(w)
	investors, err := h.Repo.ListInvestors(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(investors)
}

// HandleSave upserts an investor profile with its buy-box criteria.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var inv models.Investor
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for _, t := range inv.Criteria.DealTypes {
		if !t.IsValid() {
			http.Error(w, fmt.Sprintf("Unknown deal type: %s", t), http.StatusBadRequest)
			return
		}
	}

	if err := h.Repo.SaveInvestor(r.Context(), &inv); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fmt.Printf("[INVESTORS] Saved investor %s (%s)\n", inv.ID, inv.Name)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&inv)
}
