// Package lookup provides the HTTP handlers that read the filing index.
package lookup

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Reggles44/sec-map/pkg/api/query"
	"github.com/Reggles44/sec-map/pkg/core/index"
)

// Handler serves index reads.
type Handler struct {
	Index  *index.Store
	Logger *slog.Logger
}

// NewHandler creates a lookup handler over idx.
func NewHandler(idx *index.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Index: idx, Logger: logger.With("component", "api")}
}

// Register mounts the lookup routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("GET /lookup/company", h.HandleCompany)
}

// HandleIndex handles GET / and returns the whole index.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Index.Snapshot())
}

// HandleCompany handles GET /lookup/company.
//
//	/lookup/company?ticker=V&form_type=10-Q&start_date=2018-04-17&end_date=2021-09-09
//
// With form_type the response's forms hold only that form, filtered to
// dates strictly between the bounds.
func (h *Handler) HandleCompany(w http.ResponseWriter, r *http.Request) {
	p, err := query.Parse(r.URL.Query(), false)
	if err != nil {
		WriteError(w, err)
		return
	}

	cik, company, ok := h.Index.Lookup(p.Company)
	if !ok {
		http.Error(w, fmt.Sprintf("Could not find company from cik, ticker or company_name %+v", p.Company), http.StatusNotFound)
		return
	}

	if p.FormType != "" {
		company.Forms = map[string]map[string]string{
			p.FormType: index.FilterForms(company, p.FormType, p.Start, p.End),
		}
	}
	h.Logger.Debug("lookup", "cik", cik, "form_type", p.FormType)
	WriteJSON(w, http.StatusOK, company)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps a query error to a 400 response, with the per-field
// messages as the body when available.
func WriteError(w http.ResponseWriter, err error) {
	var verr query.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, verr)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
