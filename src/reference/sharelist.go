// src/reference/sharelist.go
package reference

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/ledongthuc/pdf"
)

// View selects which representation the share-list table exposes.
type View string

const (
	// ViewTicker exposes the broker's internal ticker codes (MSCI.N, 888L).
	ViewTicker View = "ticker"
	// ViewSymbol exposes exchange symbols, suffix-applied by region (FDS, SDR.L).
	ViewSymbol View = "symbol"
)

// Each usable share-list line encodes, left to right: instrument name, the
// broker's internal ticker, a forward slash, the market symbol, a region
// code, then the ISA and SIPP eligibility flags.
var shareListLineRe = regexp.MustCompile(`^(?P<name>.*)\s(?P<ticker>\w+.\w+)\s/\s(?P<symbol>\w+)\s(?P<region>\w+).*\s(?P<isa>\w)\s(?P<sipp>\w)$`)

// Lowercase letters in the internal ticker mark secondary/duplicate listings
// (SDRt.L) that would collide with the canonical entry case-insensitively.
var lowercaseRe = regexp.MustCompile(`[a-z]`)

// Broker region codes mapped to the exchange suffix convention used by the
// downstream price lookups. The domestic (US) region stays bare.
var regionSuffixes = map[string]string{
	"AU": "AX", "AV": "VI", "BB": "BR", "GY": "DE", "TH": "DE",
	"ID": "I", "NA": "AS", "LN": "L", "PZ": "NXX", "LI": "L", "EF": "E",
}

const domesticRegion = "US"

type shareListRow struct {
	Name   string
	Ticker string
	Symbol string
	Region string
}

// ShareListAdapter extracts a name→ticker table from the broker's
// multi-page share-list document. The document is noisy; lines that do not
// match the expected shape are dropped without comment, and any failure to
// read the document yields an empty table rather than an error the cascade
// would have to care about.
type ShareListAdapter struct {
	path string
}

func NewShareListAdapter(path string) *ShareListAdapter {
	return &ShareListAdapter{path: path}
}

// Extract parses the share list and returns it under the requested view.
func (a *ShareListAdapter) Extract(view View) (Table, error) {
	empty := Table{Entries: map[string]string{}, Source: "sharelist"}

	if view != ViewTicker && view != ViewSymbol {
		return empty, fmt.Errorf("share list view must be %q or %q, got %q", ViewTicker, ViewSymbol, view)
	}

	start := time.Now()
	text, pages, err := a.readText()
	if err != nil {
		logger.L.Warn("Share list unreadable", "path", a.path, "error", err)
		return empty, err
	}

	lines := strings.Split(text, "\n")

	// Cheap pre-filter: only lines carrying both eligibility flags can be
	// mapping rows, and those always end in Y or N.
	var candidates []string
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.HasSuffix(line, "Y") || strings.HasSuffix(line, "N") {
			candidates = append(candidates, line)
		}
	}

	var rows []shareListRow
	for _, line := range candidates {
		m := shareListLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		row := shareListRow{
			Name:   m[shareListLineRe.SubexpIndex("name")],
			Ticker: m[shareListLineRe.SubexpIndex("ticker")],
			Symbol: m[shareListLineRe.SubexpIndex("symbol")],
			Region: m[shareListLineRe.SubexpIndex("region")],
		}
		if lowercaseRe.MatchString(row.Ticker) {
			continue
		}
		rows = append(rows, row)
	}

	lowConfidence := a.checkMatchRate(len(lines), len(candidates), len(rows))

	logger.L.Info("Share list extracted",
		"path", a.path, "pages", pages, "lines", len(lines),
		"candidates", len(candidates), "rows", len(rows),
		"duration", time.Since(start))

	entries := make(map[string]string, len(rows))
	switch view {
	case ViewTicker:
		for _, row := range rows {
			entries[row.Name] = row.Ticker
		}
	case ViewSymbol:
		for _, row := range rows {
			if row.Region == domesticRegion {
				continue
			}
			if suffix, ok := regionSuffixes[row.Region]; ok {
				entries[row.Name] = row.Symbol + "." + suffix
			} else {
				entries[row.Name] = row.Symbol
			}
		}
		// Domestic entries win over any same-named foreign listing.
		for _, row := range rows {
			if row.Region == domesticRegion {
				entries[row.Name] = row.Symbol
			}
		}
	}

	return Table{Entries: entries, Source: "sharelist", LowConfidence: lowConfidence}, nil
}

// checkMatchRate flags extractions where the fixed layout assumption looks
// broken: a changed document silently yields near-zero matches otherwise.
func (a *ShareListAdapter) checkMatchRate(lines, candidates, rows int) bool {
	if lines == 0 {
		return true
	}
	if candidates == 0 || rows == 0 {
		logger.L.Warn("Share list layout yielded no usable rows; document format may have changed",
			"path", a.path, "lines", lines, "candidates", candidates, "rows", rows)
		return true
	}
	// Under 2% candidate lines across the whole document is far below what
	// any known edition of the share list produces.
	if candidates*50 < lines {
		logger.L.Warn("Share list candidate-line rate suspiciously low; document format may have changed",
			"path", a.path, "lines", lines, "candidates", candidates)
		return true
	}
	return false
}

// readText returns the document's plain text and its page count. PDF input
// goes through text extraction; anything else is read as-is (pre-extracted
// text is handy in tests and for manual fixes).
func (a *ShareListAdapter) readText() (string, int, error) {
	if strings.EqualFold(filepath.Ext(a.path), ".pdf") {
		f, reader, err := pdf.Open(a.path)
		if err != nil {
			return "", 0, fmt.Errorf("opening share list pdf '%s': %w", a.path, err)
		}
		defer f.Close()

		plain, err := reader.GetPlainText()
		if err != nil {
			return "", 0, fmt.Errorf("extracting text from share list pdf '%s': %w", a.path, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(plain); err != nil {
			return "", 0, fmt.Errorf("reading extracted share list text: %w", err)
		}
		return buf.String(), reader.NumPage(), nil
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return "", 0, fmt.Errorf("reading share list '%s': %w", a.path, err)
	}
	return string(data), 1, nil
}
