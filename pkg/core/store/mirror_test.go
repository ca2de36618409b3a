package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real database: DATABASE_URL=postgres://... go test ./pkg/core/store
func TestMirrorExport(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping mirror test: DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := OpenPool(ctx, dbURL)
	require.NoError(t, err)
	m := NewMirror(pool)
	defer m.Close()
	require.NoError(t, m.EnsureSchema(ctx))

	ticker := "ZZTEST"
	rows := []CompanyRow{{
		CIK:         "999999901",
		CompanyName: "MIRROR TEST CO",
		Ticker:      &ticker,
		Filings: []FilingRow{
			{FormType: "10-Q", DateFiled: "2022-01-27", AccessionID: "0000000000-22-000001"},
		},
	}}
	require.NoError(t, m.Export(ctx, rows))

	// Re-export with a new accession id; the upsert overwrites it.
	rows[0].Filings[0].AccessionID = "0000000000-22-000002"
	rows[0].Ticker = nil
	require.NoError(t, m.Export(ctx, rows))

	var acc string
	var gotTicker *string
	err = pool.QueryRow(ctx,
		`SELECT f.accession_id, c.ticker FROM filings f JOIN companies c USING (cik)
		 WHERE f.cik = $1 AND f.form_type = $2 AND f.date_filed = $3`,
		"999999901", "10-Q", "2022-01-27").Scan(&acc, &gotTicker)
	require.NoError(t, err)
	assert.Equal(t, "0000000000-22-000002", acc)
	require.NotNil(t, gotTicker, "a nil ticker must not erase a known one")
	assert.Equal(t, "ZZTEST", *gotTicker)

	_, err = pool.Exec(ctx, `DELETE FROM filings WHERE cik = $1`, "999999901")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM companies WHERE cik = $1`, "999999901")
	require.NoError(t, err)
}
