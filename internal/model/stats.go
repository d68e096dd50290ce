package model

import "time"

// RunStats reports what happened to every address during a fusion run, so
// precision regressions are observable without re-deriving them from raw
// output.
type RunStats struct {
	RecordsIn           int           `json:"records_in"`
	AddressesEvaluated  int           `json:"addresses_evaluated"`
	OperationalFiltered int           `json:"operational_filtered"`
	RuleUnmatched       int           `json:"rule_unmatched"`
	Errored             int           `json:"errored"`
	EventsEmitted       int           `json:"events_emitted"`
	LeadsProduced       int           `json:"leads_produced"`
	LeadsDeduped        int           `json:"leads_deduped"`
	OracleFallbacks     int           `json:"oracle_fallbacks"`
	Duration            time.Duration `json:"duration"`
}
