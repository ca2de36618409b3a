// Package assemble provides the HTTP handler that assembles the filings of
// one company and form type.
package assemble

import (
	"log/slog"
	"net/http"

	"github.com/Reggles44/sec-map/pkg/api/lookup"
	"github.com/Reggles44/sec-map/pkg/api/query"
	coreAssemble "github.com/Reggles44/sec-map/pkg/core/assemble"
	"github.com/Reggles44/sec-map/pkg/core/index"
)

// Handler serves GET /assemble.
type Handler struct {
	Index     *index.Store
	Assembler coreAssemble.Assembler
	Logger    *slog.Logger
}

// NewHandler creates an assemble handler.
func NewHandler(idx *index.Store, a coreAssemble.Assembler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Index: idx, Assembler: a, Logger: logger.With("component", "api")}
}

// Register mounts the route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /assemble", h.HandleAssemble)
}

// Response is the body of a successful assemble call. Statements from a
// date range are returned side by side, oldest first; combining them is
// the consumer's decision.
type Response struct {
	CIK        string                    `json:"cik"`
	FormType   string                    `json:"form_type"`
	Statements []*coreAssemble.Statement `json:"statements"`
}

// HandleAssemble handles GET /assemble?ticker=V&form_type=10-K[&start_date=..&end_date=..].
func (h *Handler) HandleAssemble(w http.ResponseWriter, r *http.Request) {
	p, err := query.Parse(r.URL.Query(), true)
	if err != nil {
		lookup.WriteError(w, err)
		return
	}

	cik, company, ok := h.Index.Lookup(p.Company)
	if !ok {
		http.Error(w, "Could not find company from cik, ticker or company_name", http.StatusNotFound)
		return
	}

	dated := index.FilterForms(company, p.FormType, p.Start, p.End)
	if len(dated) == 0 {
		http.Error(w, "No "+p.FormType+" filings in range", http.StatusNotFound)
		return
	}

	statements := coreAssemble.All(r.Context(), h.Assembler, cik, dated)
	h.Logger.Info("assembled", "cik", cik, "form_type", p.FormType, "filings", len(dated), "statements", len(statements))
	if len(statements) == 0 {
		http.Error(w, "Could not assemble any filing", http.StatusNotFound)
		return
	}

	lookup.WriteJSON(w, http.StatusOK, Response{CIK: cik, FormType: p.FormType, Statements: statements})
}
