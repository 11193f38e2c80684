// Package screening implements the entity risk-screening engine: concurrent
// fan-out over independent data sources, name and wallet-address matching
// against cached reference lists, and deterministic aggregation of findings
// into a bounded risk assessment.
package screening

import (
	"time"
)

// Severity represents the severity of a risk finding or alert.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// severityRank orders severities for sorting; lower rank sorts first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank returns the sort rank of the severity. Unknown severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// EntityKind classifies the subject of a screening or a reference record.
type EntityKind string

const (
	KindIndividual   EntityKind = "individual"
	KindOrganization EntityKind = "organization"
	KindVessel       EntityKind = "vessel"
	KindAircraft     EntityKind = "aircraft"
	KindWallet       EntityKind = "wallet"
	KindUnknown      EntityKind = "unknown"
)

// MatchType classifies how a subject matched a reference record.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchAlias        MatchType = "alias"
	MatchSubstring    MatchType = "substring"
	MatchFuzzy        MatchType = "fuzzy"
	MatchAddressExact MatchType = "address-exact"
)

// FlagCategory tags a risk flag with the finding class that produced it.
type FlagCategory string

const (
	CategorySDNMatch         FlagCategory = "OFAC_SDN_MATCH"
	CategorySanctionedWallet FlagCategory = "SANCTIONED_WALLET_MATCH"
	CategoryWalletRemarks    FlagCategory = "WALLET_REMARKS_MENTION"
	CategoryConsolidated     FlagCategory = "CONSOLIDATED_SANCTIONS_MATCH"
	CategoryPEPMatch         FlagCategory = "PEP_MATCH"
	CategoryCourtRecords     FlagCategory = "COURT_RECORDS"
	CategoryLeakDatabase     FlagCategory = "LEAK_DATABASE_MATCH"
	CategoryWatchlist        FlagCategory = "WATCHLIST_HIT"
)

// ReferenceRecord is a single sanctioned or watchlisted entity loaded from a
// reference list. Records are immutable once loaded; a cache refresh replaces
// the whole slice rather than mutating records in place.
type ReferenceRecord struct {
	ID          string     `json:"id"`
	PrimaryName string     `json:"primary_name"`
	Aliases     []string   `json:"aliases,omitempty"`
	Kind        EntityKind `json:"kind"`
	Programs    []string   `json:"programs,omitempty"`
	Remarks     string     `json:"remarks,omitempty"`

	// Derived from free-text remarks during parsing.
	DateOfBirth string   `json:"date_of_birth,omitempty"`
	Nationality string   `json:"nationality,omitempty"`
	Addresses   []string `json:"addresses,omitempty"`
}

// Query is the caller input for one screening request.
type Query struct {
	Subject string     `json:"subject"`
	Kind    EntityKind `json:"kind"`
	Country string     `json:"country,omitempty"`
}

// MatchCandidate is a scored match between a query subject and a reference
// record. Candidates below a source-specific confidence floor are discarded
// before they reach the aggregator.
type MatchCandidate struct {
	RecordID   string    `json:"record_id"`
	Type       MatchType `json:"type"`
	Confidence float64   `json:"confidence"`
}

// SourceMatch pairs a match candidate with the record it matched, so the
// aggregator can build flag messages without a second lookup.
type SourceMatch struct {
	Record    ReferenceRecord `json:"record"`
	Candidate MatchCandidate  `json:"candidate"`
	Detail    string          `json:"detail,omitempty"`
}

// SourceResult is the uniform outcome of one adapter. Adapters always return
// a SourceResult: failures populate Err and leave Matches empty, they never
// panic or propagate across the adapter boundary.
type SourceResult struct {
	SourceID     string        `json:"source_id"`
	Matches      []SourceMatch `json:"matches,omitempty"`
	TotalResults int           `json:"total_results"`
	Err          error         `json:"-"`
}

// Errored reports whether the adapter failed to produce data.
func (r SourceResult) Errored() bool { return r.Err != nil }

// RiskFlag is one categorized finding. Flags are additive inputs to the
// score and are never removed once emitted.
type RiskFlag struct {
	Severity Severity     `json:"severity"`
	Category FlagCategory `json:"category"`
	Message  string       `json:"message"`
	Points   int          `json:"points,omitempty"`
}

// RiskAssessment is the immutable result of one screening. Score is always
// within [0,100] and Level is derived from Score via the profile thresholds.
// Diagnostics carries per-source error strings for observability; sources
// absent from Diagnostics completed cleanly.
type RiskAssessment struct {
	Score       int               `json:"score"`
	Level       Severity          `json:"level"`
	Flags       []RiskFlag        `json:"flags"`
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
	ScreenedAt  time.Time         `json:"screened_at"`
}
