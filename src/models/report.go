// src/models/report.go
package models

// StageOutcome records how many names one cascade stage resolved.
type StageOutcome struct {
	Stage    string `json:"stage"`
	Resolved int    `json:"resolved"`
}

// ResolvedName is one confirmed name→ticker mapping and the stage that made
// it, kept for the audit trail.
type ResolvedName struct {
	DisplayName string `json:"display_name"`
	Ticker      string `json:"ticker"`
	Stage       string `json:"stage"`
}

// ResolutionReport is the full output of one resolution run.
//
// Records carries every input record, with tickers filled in where a stage
// found one. EnrichedRecords is the subset callers that need a ticker for
// every row should use. Unresolved is the residual for manual follow-up.
type ResolutionReport struct {
	Records         []InstrumentRecord `json:"records"`
	EnrichedRecords []InstrumentRecord `json:"enriched_records"`
	Unresolved      []string           `json:"unresolved"`
	Stages          []StageOutcome     `json:"stages"`
	Resolutions     []ResolvedName     `json:"resolutions,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	TotalNames      int                `json:"total_names"`
	ResolvedNames   int                `json:"resolved_names"`
}
