package config

import (
	"encoding/json"
	"net/http"

	coreConfig "github.com/Reggles44/sec-map/pkg/core/config"
	"github.com/Reggles44/sec-map/pkg/core/index"
	"github.com/Reggles44/sec-map/pkg/core/progress"
)

// Response describes the effective settings and index state.
type Response struct {
	UserAgent       string   `json:"user_agent"`
	RateLimit       int      `json:"rate_limit"`
	StartDate       string   `json:"start_date"`
	PreferredForms  []string `json:"preferred_forms"`
	Companies       int      `json:"companies"`
	WithoutTicker   int      `json:"without_ticker"`
	QuartersIndexed []string `json:"quarters_indexed"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Config *coreConfig.Config
	Index  *index.Store
	Ledger *progress.Ledger
}

// NewHandler creates a new config handler
func NewHandler(cfg *coreConfig.Config, idx *index.Store, ledger *progress.Ledger) *Handler {
	return &Handler{
		Config: cfg,
		Index:  idx,
		Ledger: ledger,
	}
}

// Register mounts GET /api/config on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.HandleConfig)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		UserAgent:       h.Config.UserAgent,
		RateLimit:       h.Config.RateLimit,
		StartDate:       h.Config.StartDate,
		PreferredForms:  h.Config.PreferredForms,
		Companies:       h.Index.Len(),
		WithoutTicker:   len(h.Index.WithoutTicker()),
		QuartersIndexed: h.Ledger.Keys(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
