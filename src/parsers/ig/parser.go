// src/parsers/ig/parser.go
package ig

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

// IGParser reads IG trade-history CSV exports. The Market column carries the
// free-text instrument name the resolver keys on; IG exports never include a
// ticker of their own.
type IGParser struct{}

func NewParser() *IGParser {
	return &IGParser{}
}

func (p *IGParser) Parse(file io.Reader) ([]models.InstrumentRecord, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := indexColumns(header)
	marketIdx, ok := col["market"]
	if !ok {
		return nil, fmt.Errorf("not an IG trade-history export: no Market column in header %v", header)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var records []models.InstrumentRecord
	for _, row := range rows {
		if marketIdx >= len(row) || strings.TrimSpace(row[marketIdx]) == "" {
			logger.L.Debug("Skipping IG row without a market name")
			continue
		}

		rec := models.InstrumentRecord{
			Source:      "ig",
			DisplayName: validation.StripUnprintable(strings.TrimSpace(row[marketIdx])),
			Date:        field(row, col, "date"),
			Direction:   field(row, col, "direction"),
			Currency:    field(row, col, "currency"),
			Quantity:    floatField(row, col, "quantity", "size"),
			Price:       floatField(row, col, "price", "open level"),
			Amount:      floatField(row, col, "consideration", "amount"),
		}
		rec.HashId = hashRecord(rec)
		records = append(records, rec)
	}

	return records, nil
}

func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return col
}

func field(row []string, col map[string]int, names ...string) string {
	for _, name := range names {
		if idx, ok := col[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
	}
	return ""
}

func floatField(row []string, col map[string]int, names ...string) float64 {
	raw := field(row, col, names...)
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
