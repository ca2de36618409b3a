// Package index holds the per-company filing index: CIK -> company name,
// ticker and the accession id of every (form type, filing date) pair.
package index

import (
	"hash/fnv"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/Reggles44/sec-map/pkg/core/edgar"
	"github.com/Reggles44/sec-map/pkg/core/store"
)

// DateLayout is the filing date format used throughout the index.
const DateLayout = "2006-01-02"

const shardCount = 64

// Company is one index entry.
//
//	"1403161": {"ticker": "V", "company_name": "VISA INC.",
//	            "forms": {"10-Q": {"2022-01-27": "0001403161-22-000007"}}}
type Company struct {
	Ticker      *string                      `json:"ticker"`
	CompanyName string                       `json:"company_name"`
	Forms       map[string]map[string]string `json:"forms"`
}

// HasTicker reports whether a ticker has been resolved.
func (c Company) HasTicker() bool {
	return c.Ticker != nil && *c.Ticker != ""
}

// TickerOrEmpty returns the ticker or "".
func (c Company) TickerOrEmpty() string {
	if c.Ticker == nil {
		return ""
	}
	return *c.Ticker
}

func (c Company) clone() Company {
	out := Company{CompanyName: c.CompanyName, Forms: make(map[string]map[string]string, len(c.Forms))}
	if c.Ticker != nil {
		t := *c.Ticker
		out.Ticker = &t
	}
	for form, dates := range c.Forms {
		out.Forms[form] = maps.Clone(dates)
	}
	return out
}

// Store is the in-memory index. The company map is guarded by mu; the
// contents of each company are guarded by the shard lock its CIK hashes
// to, so merges for the same CIK are serialized while different companies
// proceed independently.
type Store struct {
	mu        sync.RWMutex
	companies map[string]*Company
	shards    [shardCount]sync.Mutex

	// salvaged is set when Load had to repair the file.
	salvaged bool
}

// New returns an empty index.
func New() *Store {
	return &Store{companies: make(map[string]*Company)}
}

func (s *Store) shard(cik string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(cik))
	return &s.shards[h.Sum32()%shardCount]
}

// entry returns the company for cik, creating it with name if absent.
// Callers hold the cik's shard lock.
func (s *Store) entry(cik, name string) *Company {
	s.mu.RLock()
	c, ok := s.companies[cik]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.companies[cik]; ok {
		return c
	}
	c = &Company{CompanyName: name, Forms: make(map[string]map[string]string)}
	s.companies[cik] = c
	return c
}

// Merge inserts one filing. The first name seen for a CIK is kept for good;
// EDGAR capitalizes names inconsistently across filings. A repeated
// (cik, form, date) overwrites the accession id.
func (s *Store) Merge(rec edgar.FilingRecord) {
	lock := s.shard(rec.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	c := s.entry(rec.CompanyID, rec.CompanyName)
	dates, ok := c.Forms[rec.FormType]
	if !ok {
		dates = make(map[string]string)
		c.Forms[rec.FormType] = dates
	}
	dates[rec.DateFiled] = rec.AccessionID
}

// MergeAll merges records in order, so the last duplicate wins.
func (s *Store) MergeAll(records []edgar.FilingRecord) {
	for _, rec := range records {
		s.Merge(rec)
	}
}

// SetTicker records a resolved ticker. It returns false if the CIK is
// unknown or already has one; a ticker is assigned at most once.
func (s *Store) SetTicker(cik, ticker string) bool {
	if ticker == "" {
		return false
	}
	lock := s.shard(cik)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	c, ok := s.companies[cik]
	s.mu.RUnlock()
	if !ok || c.HasTicker() {
		return false
	}
	c.Ticker = &ticker
	return true
}

// Get returns a copy of one company.
func (s *Store) Get(cik string) (Company, bool) {
	s.mu.RLock()
	c, ok := s.companies[cik]
	s.mu.RUnlock()
	if !ok {
		return Company{}, false
	}

	lock := s.shard(cik)
	lock.Lock()
	defer lock.Unlock()
	return c.clone(), true
}

// Len returns the number of companies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.companies)
}

// CIKs returns every CIK in ascending order.
func (s *Store) CIKs() []string {
	s.mu.RLock()
	ciks := make([]string, 0, len(s.companies))
	for cik := range s.companies {
		ciks = append(ciks, cik)
	}
	s.mu.RUnlock()
	sort.Strings(ciks)
	return ciks
}

// WithoutTicker returns the CIKs still lacking a ticker, ascending.
func (s *Store) WithoutTicker() []string {
	var out []string
	for _, cik := range s.CIKs() {
		if c, ok := s.Get(cik); ok && !c.HasTicker() {
			out = append(out, cik)
		}
	}
	return out
}

// Snapshot returns a deep copy of the whole index.
func (s *Store) Snapshot() map[string]Company {
	ciks := s.CIKs()
	out := make(map[string]Company, len(ciks))
	for _, cik := range ciks {
		if c, ok := s.Get(cik); ok {
			out[cik] = c
		}
	}
	return out
}

// Query selects a company by any of its identifiers. Empty fields are
// ignored; matching is exact.
type Query struct {
	CIK         string
	Ticker      string
	CompanyName string
}

// Lookup returns the company matching q. CIK is tried first, then ticker,
// then name; within ticker and name the lowest CIK wins.
func (s *Store) Lookup(q Query) (string, Company, bool) {
	if q.CIK != "" {
		if c, ok := s.Get(q.CIK); ok {
			return q.CIK, c, true
		}
	}
	if q.Ticker == "" && q.CompanyName == "" {
		return "", Company{}, false
	}

	snapshot := s.Snapshot()
	ciks := make([]string, 0, len(snapshot))
	for cik := range snapshot {
		ciks = append(ciks, cik)
	}
	sort.Strings(ciks)

	if q.Ticker != "" {
		for _, cik := range ciks {
			if snapshot[cik].TickerOrEmpty() == q.Ticker {
				return cik, snapshot[cik], true
			}
		}
	}
	if q.CompanyName != "" {
		for _, cik := range ciks {
			if snapshot[cik].CompanyName == q.CompanyName {
				return cik, snapshot[cik], true
			}
		}
	}
	return "", Company{}, false
}

// FilterForms returns the filings of one form type whose date lies strictly
// after start and strictly before end. A nil bound is open. Both bounds are
// exclusive: a filing dated exactly on a bound is left out.
func FilterForms(c Company, formType string, start, end *time.Time) map[string]string {
	out := make(map[string]string)
	for date, accession := range c.Forms[formType] {
		if start != nil || end != nil {
			filed, err := time.Parse(DateLayout, date)
			if err != nil {
				continue
			}
			if start != nil && !filed.After(*start) {
				continue
			}
			if end != nil && !filed.Before(*end) {
				continue
			}
		}
		out[date] = accession
	}
	return out
}

// SortedDates returns the keys of a date -> accession map, oldest first.
func SortedDates(dates map[string]string) []string {
	keys := make([]string, 0, len(dates))
	for d := range dates {
		keys = append(keys, d)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the index to path atomically.
func (s *Store) Save(path string) error {
	return store.WriteJSON(path, s.Snapshot())
}

// Load reads an index from path. A missing file yields an empty index.
// A damaged file is salvaged as far as possible; see Salvaged.
func Load(path string) (*Store, error) {
	var raw map[string]*Company
	_, repaired, err := store.ReadJSON(path, &raw)
	if err != nil {
		return nil, err
	}

	s := New()
	s.salvaged = repaired
	for cik, c := range raw {
		if c == nil {
			continue
		}
		if c.Forms == nil {
			c.Forms = make(map[string]map[string]string)
		}
		for form, dates := range c.Forms {
			if dates == nil {
				c.Forms[form] = make(map[string]string)
			}
		}
		if c.Ticker != nil && *c.Ticker == "" {
			c.Ticker = nil
		}
		s.companies[cik] = c
	}
	return s, nil
}

// Salvaged reports whether Load recovered the index from a damaged file.
// Such an index may be missing filings of quarters the progress ledger
// still lists as complete.
func (s *Store) Salvaged() bool {
	return s.salvaged
}

// Rows flattens the index for the SQL mirror.
func (s *Store) Rows() []store.CompanyRow {
	snapshot := s.Snapshot()
	rows := make([]store.CompanyRow, 0, len(snapshot))
	for _, cik := range s.CIKs() {
		c, ok := snapshot[cik]
		if !ok {
			continue
		}
		row := store.CompanyRow{CIK: cik, CompanyName: c.CompanyName, Ticker: c.Ticker}
		forms := make([]string, 0, len(c.Forms))
		for form := range c.Forms {
			forms = append(forms, form)
		}
		sort.Strings(forms)
		for _, form := range forms {
			for _, date := range SortedDates(c.Forms[form]) {
				row.Filings = append(row.Filings, store.FilingRow{
					FormType:    form,
					DateFiled:   date,
					AccessionID: c.Forms[form][date],
				})
			}
		}
		rows = append(rows, row)
	}
	return rows
}
