// Package query parses and validates the company selection parameters
// shared by the lookup and assemble endpoints.
package query

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Reggles44/sec-map/pkg/core/index"
)

// Params is a validated request.
type Params struct {
	Company  index.Query
	FormType string
	Start    *time.Time
	End      *time.Time
}

// ValidationError maps a parameter name to its problems; it is encoded as
// the 400 response body.
type ValidationError map[string][]string

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("invalid query: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f + ": " + strings.Join(e[f], ", "))
	}
	return b.String()
}

func (e ValidationError) add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Parse validates v. One of cik, ticker or company_name is required. A date
// bound requires form_type; requireForm makes form_type mandatory outright.
func Parse(v url.Values, requireForm bool) (Params, error) {
	p := Params{
		Company: index.Query{
			CIK:         strings.TrimSpace(v.Get("cik")),
			Ticker:      strings.TrimSpace(v.Get("ticker")),
			CompanyName: strings.TrimSpace(v.Get("company_name")),
		},
		FormType: strings.TrimSpace(v.Get("form_type")),
	}
	errs := ValidationError{}

	if p.Company.CIK == "" && p.Company.Ticker == "" && p.Company.CompanyName == "" {
		errs.add("cik", "required if ticker or company_name is not present")
		errs.add("ticker", "required if cik or company_name is not present")
		errs.add("company_name", "required if cik or ticker is not present")
	}

	var err error
	if p.Start, err = parseDate(v.Get("start_date")); err != nil {
		errs.add("start_date", "not a valid date, expected YYYY-MM-DD")
	}
	if p.End, err = parseDate(v.Get("end_date")); err != nil {
		errs.add("end_date", "not a valid date, expected YYYY-MM-DD")
	}

	switch {
	case p.FormType == "" && requireForm:
		errs.add("form_type", "missing data for required field")
	case p.FormType == "" && (p.Start != nil || p.End != nil):
		errs.add("form_type", "required if either start_date or end_date is present")
	}

	if len(errs) > 0 {
		return Params{}, errs
	}
	return p, nil
}

// parseDate accepts YYYY-MM-DD, optionally followed by a time, which the
// exclusive bound comparison ignores.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s) > len(index.DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}
	t, err := time.Parse(index.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
