package ticker

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// fakeSource serves canned detail pages keyed by accession id. Accession
// ids without a page fail to fetch.
type fakeSource struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeSource) DetailURL(cik, accessionID string) string {
	return fmt.Sprintf("detail/%s/%s", cik, accessionID)
}

func (f *fakeSource) Fetch(ctx context.Context, url string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	page, ok := f.pages[url[strings.LastIndex(url, "/")+1:]]
	if !ok {
		return nil, false
	}
	return []byte(page), true
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func dataFilesPage(names ...string) string {
	rows := ""
	for i, n := range names {
		rows += fmt.Sprintf("<tr><td>%d</td><td>doc</td><td><a href=\"/x/%s\">%s</a></td><td>EX</td><td>1</td></tr>", i+1, n, n)
	}
	return `<html><table summary="Data Files"><tr><th>Seq</th></tr>` + rows + `</table></html>`
}
