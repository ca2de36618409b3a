package ticker

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Reggles44/sec-map/pkg/core/index"
)

func company(forms map[string]map[string]string) index.Company {
	return index.Company{CompanyName: "TEST CO", Forms: forms}
}

func TestCandidates(t *testing.T) {
	r := NewResolver(&fakeSource{}, NewCache(), nil, nil)

	tests := []struct {
		name  string
		forms map[string]map[string]string
		want  []string
	}{
		{
			name: "preferred forms newest first",
			forms: map[string]map[string]string{
				"10-Q": {"2021-05-01": "q1", "2021-08-01": "q2"},
				"10-K": {"2021-02-01": "k1"},
				"8-K":  {"2022-01-01": "e1"},
			},
			want: []string{"q2", "q1", "k1"},
		},
		{
			name: "falls back to any form",
			forms: map[string]map[string]string{
				"8-K": {"2020-01-01": "e1"},
				"S-1": {"2019-01-01": "s1"},
			},
			want: []string{"e1", "s1"},
		},
		{
			name: "duplicate accession listed once",
			forms: map[string]map[string]string{
				"10-Q": {"2021-05-01": "same"},
				"10-K": {"2021-05-01": "same"},
			},
			want: []string{"same"},
		},
		{
			name:  "no filings",
			forms: map[string]map[string]string{},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Candidates(company(tt.forms)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	forms := map[string]map[string]string{
		"10-Q": {"2022-05-01": "newest", "2022-02-01": "older"},
	}
	schema := dataFilesPage("abc-20220331.xsd", "abc-20220331_htm.xml")
	noSchema := dataFilesPage("Financial_Report.xlsx")

	tests := []struct {
		name         string
		pages        map[string]string
		want         Outcome
		wantTicker   string
		wantAttempts int
		wantState    State
	}{
		{
			name:         "first candidate names ticker",
			pages:        map[string]string{"newest": schema},
			want:         Resolved,
			wantTicker:   "ABC",
			wantAttempts: 1,
			wantState:    Known,
		},
		{
			name:         "falls through to older filing",
			pages:        map[string]string{"newest": noSchema, "older": schema},
			want:         Resolved,
			wantTicker:   "ABC",
			wantAttempts: 2,
			wantState:    Known,
		},
		{
			name:         "fetched but nothing found",
			pages:        map[string]string{"newest": noSchema},
			want:         NotFound,
			wantAttempts: 2,
			wantState:    Missing,
		},
		{
			name:         "every fetch failed",
			pages:        map[string]string{},
			want:         FetchFailed,
			wantAttempts: 2,
			wantState:    Unknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCache()
			src := &fakeSource{pages: tt.pages}
			r := NewResolver(src, cache, nil, nil)

			res := r.Resolve(context.Background(), "42", company(forms))
			if res.Outcome != tt.want || res.Ticker != tt.wantTicker || res.Attempts != tt.wantAttempts {
				t.Errorf("Resolve() = %+v, want outcome=%v ticker=%q attempts=%d", res, tt.want, tt.wantTicker, tt.wantAttempts)
			}
			if _, state := cache.Get("42"); state != tt.wantState {
				t.Errorf("cache state = %v, want %v", state, tt.wantState)
			}
		})
	}
}

func TestResolveNoCandidatesRecordsMiss(t *testing.T) {
	cache := NewCache()
	src := &fakeSource{}
	res := NewResolver(src, cache, nil, nil).Resolve(context.Background(), "1", company(nil))

	if res.Outcome != NotFound || src.count() != 0 {
		t.Errorf("Resolve() = %+v with %d fetches", res, src.count())
	}
	if _, state := cache.Get("1"); state != Missing {
		t.Errorf("cache state = %v, want missing", state)
	}
}

func TestResolveUsesCacheWithoutFetching(t *testing.T) {
	forms := map[string]map[string]string{"10-K": {"2022-01-01": "acc"}}

	cache := NewCache()
	cache.Put("1", "HIT")
	cache.PutNotFound("2")
	src := &fakeSource{pages: map[string]string{"acc": dataFilesPage("zzz-1.xsd")}}
	r := NewResolver(src, cache, nil, nil)

	if res := r.Resolve(context.Background(), "1", company(forms)); res.Outcome != Resolved || res.Ticker != "HIT" {
		t.Errorf("cached hit: %+v", res)
	}
	if res := r.Resolve(context.Background(), "2", company(forms)); res.Outcome != Skipped {
		t.Errorf("cached miss: %+v", res)
	}
	known := "KNOWN"
	c := company(forms)
	c.Ticker = &known
	if res := r.Resolve(context.Background(), "3", c); res.Outcome != Skipped || res.Ticker != "KNOWN" {
		t.Errorf("company with ticker: %+v", res)
	}
	if n := src.count(); n != 0 {
		t.Errorf("expected zero fetches, got %d", n)
	}
}

func TestResolveCancelledRecordsNothing(t *testing.T) {
	forms := map[string]map[string]string{"10-K": {"2022-01-01": "a", "2021-01-01": "b"}}
	cache := NewCache()
	src := &fakeSource{pages: map[string]string{"a": dataFilesPage("none.txt")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewResolver(src, cache, nil, nil).Resolve(ctx, "1", company(forms))
	if res.Outcome != FetchFailed {
		t.Errorf("Resolve() = %+v, want fetch_failed", res)
	}
	if _, state := cache.Get("1"); state != Unknown {
		t.Errorf("cache state = %v, want unknown", state)
	}
}

func TestCacheSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.json")

	c := NewCache()
	c.Put("1403161", "V")
	c.PutNotFound("99")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadCache(path)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if tk, state := loaded.Get("1403161"); state != Known || tk != "V" {
		t.Errorf("Get(1403161) = (%q, %v)", tk, state)
	}
	if _, state := loaded.Get("99"); state != Missing {
		t.Errorf("Get(99) state = %v, want missing", state)
	}
	if _, state := loaded.Get("7"); state != Unknown {
		t.Errorf("Get(7) state = %v, want unknown", state)
	}
	if loaded.Len() != 2 {
		t.Errorf("Len() = %d, want 2", loaded.Len())
	}
}

func TestStateAndOutcomeNames(t *testing.T) {
	if Missing.String() != "missing" || Unknown.String() != "unknown" || Known.String() != "known" {
		t.Errorf("state names: %v %v %v", Unknown, Known, Missing)
	}
	if NotFound.String() != "not_found" || FetchFailed.String() != "fetch_failed" {
		t.Errorf("outcome names: %v %v", NotFound, FetchFailed)
	}
}
