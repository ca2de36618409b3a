package query

import (
	"errors"
	"net/url"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		requireForm bool
		wantFields  []string
	}{
		{name: "ticker only", query: "ticker=V"},
		{name: "cik with range", query: "cik=1403161&form_type=10-Q&start_date=2018-04-17&end_date=2021-09-09"},
		{name: "rfc3339 date", query: "cik=1&form_type=10-Q&start_date=2018-04-17T00:00:00Z"},
		{name: "no identifier", query: "form_type=10-Q", wantFields: []string{"cik", "ticker", "company_name"}},
		{name: "date without form", query: "ticker=V&start_date=2018-04-17", wantFields: []string{"form_type"}},
		{name: "bad date", query: "ticker=V&form_type=10-K&end_date=yesterday", wantFields: []string{"end_date"}},
		{name: "form required", query: "ticker=V", requireForm: true, wantFields: []string{"form_type"}},
		{name: "form given", query: "ticker=V&form_type=10-K", requireForm: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := url.ParseQuery(tt.query)
			_, err := Parse(v, tt.requireForm)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr) != len(tt.wantFields) {
				t.Errorf("fields = %v, want %v", verr, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if len(verr[f]) == 0 {
					t.Errorf("missing message for %s in %v", f, verr)
				}
			}
		})
	}
}

func TestParseValues(t *testing.T) {
	v, _ := url.ParseQuery("company_name=VISA+INC.&form_type=10-Q&start_date=2018-04-17")
	p, err := Parse(v, false)
	if err != nil {
		t.Fatal(err)
	}
	if p.Company.CompanyName != "VISA INC." || p.FormType != "10-Q" {
		t.Errorf("unexpected params: %+v", p)
	}
	if p.Start == nil || p.Start.Format("2006-01-02") != "2018-04-17" || p.End != nil {
		t.Errorf("unexpected bounds: start=%v end=%v", p.Start, p.End)
	}
}
