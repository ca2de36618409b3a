// Package edgar provides functionality for fetching and parsing SEC EDGAR
// archive documents: quarterly crawler.idx manifests and filing detail pages.
package edgar

// FilingRecord is one manifest line: a single submission by one company.
// (CompanyID, FormType, DateFiled) identifies it; re-ingesting the same key
// overwrites the accession id.
type FilingRecord struct {
	CompanyID   string // CIK as printed in the manifest, e.g. "1403161"
	CompanyName string
	FormType    string // "10-K", "10-Q", "8-K", ...
	DateFiled   string // YYYY-MM-DD
	AccessionID string // NNNNNNNNNN-YY-NNNNNN, kept byte-for-byte
}

// Manifest is the parsed content of one quarterly crawler.idx.
type Manifest struct {
	Records []FilingRecord
	Skipped int // lines after the separator that did not parse
}

// DataFile is a row of the "Data Files" table on a filing detail page.
type DataFile struct {
	Sequence    string
	Description string
	Name        string
	Type        string
	Size        string
	URL         string
}
