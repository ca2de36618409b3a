package edgar

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// schemaFile matches the XBRL taxonomy schema filename, which filers name
// after their ticker: "aapl-20220924.xsd".
var schemaFile = regexp.MustCompile(`^(\w+)-\d+\.xsd$`)

// ParseDataFiles reads the "Data Files" table of a filing detail page.
// Relative document links are resolved against baseURL. ok is false when
// the page has no such table (older filings, non-XBRL forms).
func ParseDataFiles(body []byte, baseURL string) ([]DataFile, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	table := doc.Find(`table[summary="Data Files"]`).First()
	if table.Length() == 0 {
		return nil, false
	}

	baseURL = strings.TrimRight(baseURL, "/")
	files := make([]DataFile, 0)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return // header row uses <th>
		}

		cell := func(n int) string {
			return strings.TrimSpace(cells.Eq(n).Text())
		}

		f := DataFile{
			Sequence:    cell(0),
			Description: cell(1),
			Name:        cell(2),
		}
		if cells.Length() > 3 {
			f.Type = cell(3)
		}
		if cells.Length() > 4 {
			f.Size = cell(4)
		}

		if href, ok := cells.Eq(2).Find("a").Attr("href"); ok {
			if strings.HasPrefix(href, "/") {
				f.URL = baseURL + href
			} else {
				f.URL = href
			}
			// Inline XBRL documents link through the viewer: "/ix?doc=/Archives/...".
			if i := strings.Index(f.URL, "/ix?doc="); i >= 0 {
				f.URL = baseURL + f.URL[i+len("/ix?doc="):]
			}
			if name := f.URL[strings.LastIndex(f.URL, "/")+1:]; name != "" && f.Name == "" {
				f.Name = name
			}
		}
		files = append(files, f)
	})

	return files, true
}

// FindTicker extracts the ticker from a detail page's schema filename.
// The token is uppercased. ok is false if no data file follows the
// <TICKER>-<digits>.xsd convention.
func FindTicker(body []byte) (string, bool) {
	files, ok := ParseDataFiles(body, "")
	if !ok {
		return "", false
	}
	return TickerFromDataFiles(files)
}

// TickerFromDataFiles returns the ticker token of the first schema file.
func TickerFromDataFiles(files []DataFile) (string, bool) {
	for _, f := range files {
		if m := schemaFile.FindStringSubmatch(f.Name); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// XBRLType classifies a data file by the XBRL role its name implies.
type XBRLType string

const (
	XBRLSchema       XBRLType = "schema"
	XBRLCalculation  XBRLType = "calculation"
	XBRLDefinition   XBRLType = "definition"
	XBRLLabel        XBRLType = "label"
	XBRLPresentation XBRLType = "presentation"
	XBRLInstance     XBRLType = "instance"
)

// ClassifyDataFile maps a filename to its XBRL type. ok is false for files
// that play no part in statement assembly (exhibits, images, R pages,
// FilingSummary.xml). Only the inline XBRL instance ("_htm.xml") can be
// recognised by name alone; see ClassifyDataFiles for older filings.
func ClassifyDataFile(name string) (XBRLType, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".xsd"):
		return XBRLSchema, true
	case strings.HasSuffix(lower, "_cal.xml"):
		return XBRLCalculation, true
	case strings.HasSuffix(lower, "_def.xml"):
		return XBRLDefinition, true
	case strings.HasSuffix(lower, "_lab.xml"):
		return XBRLLabel, true
	case strings.HasSuffix(lower, "_pre.xml"):
		return XBRLPresentation, true
	case strings.HasSuffix(lower, "_htm.xml"):
		return XBRLInstance, true
	}
	return "", false
}

// ClassifyDataFiles picks at most one file per XBRL type, first match
// wins. Filings before inline XBRL name the instance after the schema stem
// ("aapl-20180929.xsd" and "aapl-20180929.xml"), which is matched here.
func ClassifyDataFiles(files []DataFile) map[XBRLType]DataFile {
	out := make(map[XBRLType]DataFile)
	for _, f := range files {
		kind, ok := ClassifyDataFile(f.Name)
		if !ok {
			continue
		}
		if _, dup := out[kind]; !dup {
			out[kind] = f
		}
	}

	if schema, ok := out[XBRLSchema]; ok {
		if _, ok := out[XBRLInstance]; !ok {
			stem := strings.TrimSuffix(strings.ToLower(schema.Name), ".xsd")
			for _, f := range files {
				if strings.ToLower(f.Name) == stem+".xml" {
					out[XBRLInstance] = f
					break
				}
			}
		}
	}
	return out
}
