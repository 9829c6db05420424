// src/parsers/generic/parser.go
package generic

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/kaizhangyahoo/st-my-investment/src/models"
	"github.com/kaizhangyahoo/st-my-investment/src/security/validation"
)

// Header names, in preference order, that can carry the instrument display
// name in exports we have seen.
var nameColumns = []string{"market", "name", "product", "instrument", "company"}

// Columns that may already carry a canonical ticker. Rows with one bypass
// resolution entirely.
var tickerColumns = []string{"ticker", "symbol"}

// GenericParser handles tabular exports whose exact column set is unknown:
// it sniffs the header for the instrument-name column and for common
// passthrough fields. Anything it cannot place is simply ignored.
type GenericParser struct{}

func NewParser() *GenericParser {
	return &GenericParser{}
}

func (p *GenericParser) Parse(file io.Reader) ([]models.InstrumentRecord, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	nameIdx := -1
	for _, candidate := range nameColumns {
		if idx, ok := col[candidate]; ok {
			nameIdx = idx
			break
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("no instrument-name column found in header %v (looked for %v)", header, nameColumns)
	}

	tickerIdx := -1
	for _, candidate := range tickerColumns {
		if idx, ok := col[candidate]; ok {
			tickerIdx = idx
			break
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var records []models.InstrumentRecord
	for _, row := range rows {
		if nameIdx >= len(row) || strings.TrimSpace(row[nameIdx]) == "" {
			logger.L.Debug("Skipping row without an instrument name")
			continue
		}

		rec := models.InstrumentRecord{
			Source:      "generic",
			DisplayName: validation.StripUnprintable(strings.TrimSpace(row[nameIdx])),
			Date:        pick(row, col, "date", "order date", "trade date"),
			Direction:   pick(row, col, "direction", "buy/sell", "side"),
			Currency:    pick(row, col, "currency", "ccy"),
			Quantity:    pickFloat(row, col, "quantity", "size", "shares"),
			Price:       pickFloat(row, col, "price"),
			Amount:      pickFloat(row, col, "consideration", "amount", "value"),
		}
		if tickerIdx >= 0 && tickerIdx < len(row) {
			rec.Ticker = strings.TrimSpace(row[tickerIdx])
		}
		rec.HashId = hashRecord(rec)
		records = append(records, rec)
	}

	return records, nil
}

func pick(row []string, col map[string]int, names ...string) string {
	for _, name := range names {
		if idx, ok := col[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
	}
	return ""
}

func pickFloat(row []string, col map[string]int, names ...string) float64 {
	raw := pick(row, col, names...)
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}

func hashRecord(rec models.InstrumentRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%g|%g|%s|%g",
		rec.Source, rec.Date, rec.DisplayName, rec.Direction,
		rec.Quantity, rec.Price, rec.Currency, rec.Amount)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
