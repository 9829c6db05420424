package services

import (
	"context"
	"errors"
	"io"

	"github.com/kaizhangyahoo/st-my-investment/src/models"
)

var (
	ErrParsingFailed    = errors.New("error parsing trade history file")
	ErrResolutionFailed = errors.New("error resolving tickers")
)

// ResolutionService is the core pipeline: parse an uploaded trade-history
// export, run the ticker-resolution cascade over it, persist the records and
// the audit trail, and serve the latest report back out.
type ResolutionService interface {
	ProcessUpload(ctx context.Context, fileReader io.Reader, source string) (*models.ResolutionReport, error)
	ResolveNames(ctx context.Context, names []string) (*models.ResolutionReport, error)
	GetLatestReport() (*models.ResolutionReport, bool)
	GetMappings() map[string]string
	GetRecords() ([]models.InstrumentRecord, error)
}
