package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CompanyRow is one company flattened for the SQL mirror.
type CompanyRow struct {
	CIK         string
	CompanyName string
	Ticker      *string
	Filings     []FilingRow
}

// FilingRow is one (form, date) -> accession entry of a company.
type FilingRow struct {
	FormType    string
	DateFiled   string
	AccessionID string
}

const mirrorSchema = `
CREATE TABLE IF NOT EXISTS companies (
	cik          TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	ticker       TEXT,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS filings (
	cik          TEXT NOT NULL REFERENCES companies (cik),
	form_type    TEXT NOT NULL,
	date_filed   TEXT NOT NULL,
	accession_id TEXT NOT NULL,
	PRIMARY KEY (cik, form_type, date_filed)
);
CREATE INDEX IF NOT EXISTS companies_ticker_idx ON companies (ticker);
`

const upsertCompany = `
INSERT INTO companies (cik, company_name, ticker)
VALUES ($1, $2, $3)
ON CONFLICT (cik)
DO UPDATE SET
	ticker = COALESCE(companies.ticker, EXCLUDED.ticker),
	updated_at = NOW()
`

const upsertFiling = `
INSERT INTO filings (cik, form_type, date_filed, accession_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cik, form_type, date_filed)
DO UPDATE SET accession_id = EXCLUDED.accession_id
`

// mirrorBatchSize bounds the statements queued per round trip.
const mirrorBatchSize = 2000

// Mirror copies the index into Postgres for consumers that prefer SQL.
// The JSON files stay the source of truth; the mirror is upsert-only and
// never deletes, matching the merge-only index.
type Mirror struct {
	pool *pgxpool.Pool
}

// NewMirror wraps an open pool.
func NewMirror(pool *pgxpool.Pool) *Mirror {
	return &Mirror{pool: pool}
}

// EnsureSchema creates the mirror tables if they do not exist.
func (m *Mirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, mirrorSchema); err != nil {
		return fmt.Errorf("failed to create mirror schema: %w", err)
	}
	return nil
}

// Export upserts every row in a single transaction.
func (m *Mirror) Export(ctx context.Context, rows []CompanyRow) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin mirror export: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to export mirror batch: %w", err)
		}
		batch = &pgx.Batch{}
		return nil
	}

	// Companies first so filings never reference a missing row.
	for _, c := range rows {
		batch.Queue(upsertCompany, c.CIK, c.CompanyName, c.Ticker)
		if batch.Len() >= mirrorBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	for _, c := range rows {
		for _, f := range c.Filings {
			batch.Queue(upsertFiling, c.CIK, f.FormType, f.DateFiled, f.AccessionID)
			if batch.Len() >= mirrorBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mirror export: %w", err)
	}
	return nil
}

// Close releases the pool.
func (m *Mirror) Close() {
	if m.pool != nil {
		m.pool.Close()
	}
}
