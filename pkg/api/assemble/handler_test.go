package assemble

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	coreAssemble "github.com/Reggles44/sec-map/pkg/core/assemble"
	"github.com/Reggles44/sec-map/pkg/core/edgar"
	"github.com/Reggles44/sec-map/pkg/core/index"
)

// mockAssembler assembles any accession id not listed in fail.
type mockAssembler struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (m *mockAssembler) Assemble(ctx context.Context, cik, accessionID string) (*coreAssemble.Statement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, accessionID)
	if m.fail[accessionID] {
		return nil, false
	}
	return &coreAssemble.Statement{CIK: cik, AccessionID: accessionID}, true
}

func setup(m *mockAssembler) *http.ServeMux {
	idx := index.New()
	for _, r := range []edgar.FilingRecord{
		{CompanyID: "1403161", CompanyName: "VISA INC.", FormType: "10-K", DateFiled: "2020-11-01", AccessionID: "K20"},
		{CompanyID: "1403161", CompanyName: "VISA INC.", FormType: "10-K", DateFiled: "2021-11-01", AccessionID: "K21"},
		{CompanyID: "1403161", CompanyName: "VISA INC.", FormType: "10-Q", DateFiled: "2021-07-01", AccessionID: "Q"},
	} {
		idx.Merge(r)
	}
	idx.SetTicker("1403161", "V")

	mux := http.NewServeMux()
	NewHandler(idx, m, nil).Register(mux)
	return mux
}

func get(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleAssemble(t *testing.T) {
	m := &mockAssembler{}
	rec := get(setup(m), "/assemble?ticker=V&form_type=10-K")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.CIK != "1403161" || len(resp.Statements) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Statements[0].AccessionID != "K20" || resp.Statements[1].DateFiled != "2021-11-01" {
		t.Errorf("statements out of order: %+v %+v", resp.Statements[0], resp.Statements[1])
	}
	if len(m.calls) != 2 {
		t.Errorf("expected only 10-K filings assembled, got %v", m.calls)
	}
}

func TestHandleAssembleErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		fail   map[string]bool
		status int
	}{
		{"form required", "/assemble?ticker=V", nil, http.StatusBadRequest},
		{"unknown company", "/assemble?ticker=NOPE&form_type=10-K", nil, http.StatusNotFound},
		{"empty range", "/assemble?ticker=V&form_type=10-K&start_date=2022-01-01", nil, http.StatusNotFound},
		{"nothing assembled", "/assemble?ticker=V&form_type=10-Q", map[string]bool{"Q": true}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(setup(&mockAssembler{fail: tt.fail}), tt.target)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}
