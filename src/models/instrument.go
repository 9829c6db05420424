// src/models/instrument.go
package models

// InstrumentRecord is one row of trade history as seen by the resolver.
// DisplayName is the resolution key; Ticker stays empty until some stage
// resolves it. The remaining fields pass through untouched.
type InstrumentRecord struct {
	ID          int64   `json:"id,omitempty"`
	Source      string  `json:"source"`
	Date        string  `json:"date"`
	DisplayName string  `json:"display_name"`
	Ticker      string  `json:"ticker,omitempty"`
	Direction   string  `json:"direction,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	HashId      string  `json:"hash_id,omitempty"`
}

// Resolved reports whether the record has been assigned a ticker.
func (r InstrumentRecord) Resolved() bool { return r.Ticker != "" }
