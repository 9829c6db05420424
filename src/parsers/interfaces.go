package parsers

import (
	"io"

	"github.com/kaizhangyahoo/st-my-investment/src/models"
)

// Parser turns one broker's trade-history export into instrument records.
// Parsers only read the file; resolution happens downstream.
type Parser interface {
	Parse(file io.Reader) ([]models.InstrumentRecord, error)
}
