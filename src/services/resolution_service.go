// src/services/resolution_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kaizhangyahoo/st-my-investment/src/database"
	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/kaizhangyahoo/st-my-investment/src/mappings"
	"github.com/kaizhangyahoo/st-my-investment/src/models"
	"github.com/kaizhangyahoo/st-my-investment/src/parsers"
	"github.com/kaizhangyahoo/st-my-investment/src/resolver"
	"github.com/patrickmn/go-cache"
)

const (
	ckLatestReport = "agg_latest_resolution_report"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type resolutionServiceImpl struct {
	resolver    *resolver.Resolver
	store       *mappings.Store
	reportCache *cache.Cache
}

func NewResolutionService(res *resolver.Resolver, store *mappings.Store, reportCache *cache.Cache) ResolutionService {
	return &resolutionServiceImpl{
		resolver:    res,
		store:       store,
		reportCache: reportCache,
	}
}

func (s *resolutionServiceImpl) ProcessUpload(ctx context.Context, fileReader io.Reader, source string) (*models.ResolutionReport, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "source", source)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	records, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	report, err := s.resolver.Resolve(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	s.persistRecords(report.Records)
	s.persistAudit(report.Resolutions)

	s.reportCache.Set(ckLatestReport, report, DefaultCacheExpiration)

	logger.L.Info("ProcessUpload END",
		"source", source, "records", len(report.Records),
		"unresolved", len(report.Unresolved), "duration", time.Since(overallStartTime))
	return report, nil
}

func (s *resolutionServiceImpl) ResolveNames(ctx context.Context, names []string) (*models.ResolutionReport, error) {
	records := make([]models.InstrumentRecord, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		records = append(records, models.InstrumentRecord{Source: "api", DisplayName: strings.TrimSpace(name)})
	}

	report, err := s.resolver.Resolve(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	s.persistAudit(report.Resolutions)
	s.reportCache.Set(ckLatestReport, report, DefaultCacheExpiration)
	return report, nil
}

func (s *resolutionServiceImpl) GetLatestReport() (*models.ResolutionReport, bool) {
	if cached, found := s.reportCache.Get(ckLatestReport); found {
		return cached.(*models.ResolutionReport), true
	}
	return nil, false
}

func (s *resolutionServiceImpl) GetMappings() map[string]string {
	return s.store.Snapshot()
}

func (s *resolutionServiceImpl) GetRecords() ([]models.InstrumentRecord, error) {
	if database.DB == nil {
		return nil, fmt.Errorf("record store not initialized")
	}

	rows, err := database.DB.Query(`SELECT id, source, date, display_name, ticker, direction, quantity, price, currency, amount, hash_id FROM instrument_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying instrument records: %w", err)
	}
	defer rows.Close()

	var records []models.InstrumentRecord
	for rows.Next() {
		var rec models.InstrumentRecord
		var ticker, date, direction, currency, hashID *string
		var quantity, price, amount *float64
		if err := rows.Scan(&rec.ID, &rec.Source, &date, &rec.DisplayName, &ticker, &direction, &quantity, &price, &currency, &amount, &hashID); err != nil {
			return nil, fmt.Errorf("error scanning instrument record: %w", err)
		}
		if date != nil {
			rec.Date = *date
		}
		if ticker != nil {
			rec.Ticker = *ticker
		}
		if direction != nil {
			rec.Direction = *direction
		}
		if currency != nil {
			rec.Currency = *currency
		}
		if hashID != nil {
			rec.HashId = *hashID
		}
		if quantity != nil {
			rec.Quantity = *quantity
		}
		if price != nil {
			rec.Price = *price
		}
		if amount != nil {
			rec.Amount = *amount
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// persistRecords inserts the run's records, skipping duplicates by hash.
// A missing database is logged and skipped; resolution results stay valid
// in memory either way.
func (s *resolutionServiceImpl) persistRecords(records []models.InstrumentRecord) {
	if database.DB == nil {
		logger.L.Warn("Record store not initialized, skipping record persistence")
		return
	}
	if len(records) == 0 {
		return
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		logger.L.Error("Error beginning database transaction for records", "error", err)
		return
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO instrument_records (source, date, display_name, ticker, direction, quantity, price, currency, amount, hash_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		logger.L.Error("Error preparing record insert statement", "error", err)
		return
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		_, err := stmt.Exec(rec.Source, rec.Date, rec.DisplayName, rec.Ticker, rec.Direction, rec.Quantity, rec.Price, rec.Currency, rec.Amount, rec.HashId)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate record on upload", "hash_id", rec.HashId)
				continue
			}
			logger.L.Error("Error inserting instrument record", "displayName", rec.DisplayName, "error", err)
			return
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		logger.L.Error("Error committing instrument records", "error", err)
		return
	}
	logger.L.Info("Instrument records persisted", "inserted", inserted, "total", len(records))
}

func (s *resolutionServiceImpl) persistAudit(resolutions []models.ResolvedName) {
	if database.DB == nil || len(resolutions) == 0 {
		return
	}

	stmt, err := database.DB.Prepare(`INSERT INTO resolution_audit (display_name, ticker, stage) VALUES (?, ?, ?)`)
	if err != nil {
		logger.L.Error("Error preparing audit insert statement", "error", err)
		return
	}
	defer stmt.Close()

	for _, res := range resolutions {
		if _, err := stmt.Exec(res.DisplayName, res.Ticker, res.Stage); err != nil {
			logger.L.Error("Error inserting resolution audit row", "displayName", res.DisplayName, "error", err)
			return
		}
	}
	logger.L.Debug("Resolution audit rows persisted", "count", len(resolutions))
}
