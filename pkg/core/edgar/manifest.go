package edgar

import (
	"bufio"
	"bytes"
	"log/slog"
	"regexp"
	"strings"
)

// crawlerLine matches one crawler.idx row:
//
//	VISA INC.   10-Q   1403161   2022-01-27   https://www.sec.gov/Archives/edgar/data/1403161/0001403161-22-000007-index.htm
var crawlerLine = regexp.MustCompile(`^(.+)\s+([\dA-Z\-/]+)\s+(\d+)\s+(\d{4}-\d{2}-\d{2}).*/([\d\-]+)-index\.html?\s*$`)

// ParseManifest parses a crawler.idx document. Everything up to and
// including the first all-dash line is header. Lines that do not match are
// logged at debug and counted, never fatal: the format drifts between years.
// ok is false when the separator is missing, meaning body is not a manifest
// (an error page, a truncated download), or when scanning stopped before the
// end of body, so the records are incomplete.
func ParseManifest(body []byte, logger *slog.Logger) (Manifest, bool) {
	if logger == nil {
		logger = slog.Default()
	}

	var m Manifest
	inBody := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if !inBody {
			if isSeparator(line) {
				inBody = true
			}
			continue
		}
		if line == "" {
			continue
		}

		rec, ok := parseCrawlerLine(line)
		if !ok {
			m.Skipped++
			logger.Debug("skipping malformed manifest line", "line", lineNo, "text", line)
			continue
		}
		m.Records = append(m.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("manifest scan stopped early", "line", lineNo, "error", err)
		return m, false
	}

	return m, inBody
}

func parseCrawlerLine(line string) (FilingRecord, bool) {
	match := crawlerLine.FindStringSubmatch(line)
	if match == nil {
		return FilingRecord{}, false
	}
	name := strings.TrimSpace(match[1])
	if name == "" {
		return FilingRecord{}, false
	}
	return FilingRecord{
		CompanyName: name,
		FormType:    match[2],
		CompanyID:   match[3],
		DateFiled:   match[4],
		AccessionID: match[5],
	}, true
}

func isSeparator(line string) bool {
	if line == "" {
		return false
	}
	for _, c := range line {
		if c != '-' {
			return false
		}
	}
	return true
}
