// Package assemble turns a filing reference (CIK, accession id) into the
// set of XBRL documents a statement parser consumes. Parsing the XBRL
// itself is left to the Assembler implementation.
package assemble

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Reggles44/sec-map/pkg/core/edgar"
)

// Assembler produces a statement for one filing. ok is false when the
// filing has nothing to assemble or could not be fetched.
type Assembler interface {
	Assemble(ctx context.Context, cik, accessionID string) (*Statement, bool)
}

// Document is one XBRL file of a filing.
type Document struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Size        string `json:"size,omitempty"`
	URL         string `json:"url"`
}

// Statement is the assembled form of a filing.
type Statement struct {
	CIK         string                      `json:"cik"`
	AccessionID string                      `json:"accession_id"`
	DateFiled   string                      `json:"date_filed,omitempty"`
	DetailURL   string                      `json:"detail_url"`
	Ticker      string                      `json:"ticker,omitempty"`
	Documents   map[edgar.XBRLType]Document `json:"documents"`
}

// Source fetches detail pages. *edgar.Fetcher implements it.
type Source interface {
	edgar.Getter
	DetailURL(cik, accessionID string) string
	BaseURL() string
}

// DocumentAssembler reads a filing's detail page and collects its XBRL
// documents by type.
type DocumentAssembler struct {
	source Source
	logger *slog.Logger
}

// NewDocumentAssembler creates a DocumentAssembler.
func NewDocumentAssembler(source Source, logger *slog.Logger) *DocumentAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentAssembler{source: source, logger: logger.With("component", "assemble")}
}

// Assemble implements Assembler.
func (a *DocumentAssembler) Assemble(ctx context.Context, cik, accessionID string) (*Statement, bool) {
	url := a.source.DetailURL(cik, accessionID)
	body, ok := a.source.Fetch(ctx, url)
	if !ok {
		return nil, false
	}

	files, ok := edgar.ParseDataFiles(body, a.source.BaseURL())
	if !ok {
		a.logger.Debug("filing has no data files", "cik", cik, "accession", accessionID)
		return nil, false
	}

	st := &Statement{
		CIK:         cik,
		AccessionID: accessionID,
		DetailURL:   url,
		Documents:   make(map[edgar.XBRLType]Document),
	}
	if t, ok := edgar.TickerFromDataFiles(files); ok {
		st.Ticker = t
	}
	for kind, f := range edgar.ClassifyDataFiles(files) {
		st.Documents[kind] = Document{Name: f.Name, Description: f.Description, Size: f.Size, URL: f.URL}
	}
	if len(st.Documents) == 0 {
		return nil, false
	}
	return st, true
}

// All assembles every dated accession id concurrently and returns the
// statements that could be assembled, oldest filing first.
func All(ctx context.Context, a Assembler, cik string, dated map[string]string) []*Statement {
	dates := make([]string, 0, len(dated))
	for d := range dated {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	results := make([]*Statement, len(dates))
	var g errgroup.Group
	for i, date := range dates {
		g.Go(func() error {
			if st, ok := a.Assemble(ctx, cik, dated[date]); ok {
				cp := *st
				cp.DateFiled = date
				results[i] = &cp
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Statement, 0, len(results))
	for _, st := range results {
		if st != nil {
			out = append(out, st)
		}
	}
	return out
}
