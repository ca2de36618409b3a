package build

import (
	"time"

	"github.com/Reggles44/sec-map/pkg/core/progress"
)

// Quarter is one calendar quarter of EDGAR's full index.
type Quarter struct {
	Year    int
	Quarter int // 1-4
}

// QuarterOf returns the quarter containing t.
func QuarterOf(t time.Time) Quarter {
	return Quarter{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// Key is the progress ledger key, "{year}-{quarter}".
func (q Quarter) Key() string {
	return progress.Key(q.Year, q.Quarter)
}

// Next returns the following quarter.
func (q Quarter) Next() Quarter {
	if q.Quarter == 4 {
		return Quarter{Year: q.Year + 1, Quarter: 1}
	}
	return Quarter{Year: q.Year, Quarter: q.Quarter + 1}
}

// Before reports whether q is earlier than other.
func (q Quarter) Before(other Quarter) bool {
	if q.Year != other.Year {
		return q.Year < other.Year
	}
	return q.Quarter < other.Quarter
}

// Quarters returns every quarter from the one containing start through the
// one containing end, oldest first. It is empty when end precedes start.
func Quarters(start, end time.Time) []Quarter {
	first, last := QuarterOf(start), QuarterOf(end)
	var out []Quarter
	for q := first; !last.Before(q); q = q.Next() {
		out = append(out, q)
	}
	return out
}
