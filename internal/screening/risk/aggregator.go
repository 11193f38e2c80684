// Package risk maps adapter outputs into typed risk flags and folds them
// into a single deterministic, bounded risk assessment.
package risk

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/sources"
)

// Profile holds the scoring constants for one screening type. The exact
// numbers are tuned empirically; what the engine preserves is the relative
// ordering (stronger evidence scores higher) and the per-category caps.
type Profile struct {
	CriticalThreshold int `json:"critical_threshold" mapstructure:"critical_threshold"`
	HighThreshold     int `json:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold   int `json:"medium_threshold" mapstructure:"medium_threshold"`

	SanctionsExactPoints int `json:"sanctions_exact_points" mapstructure:"sanctions_exact_points"`
	SanctionsFuzzyPoints int `json:"sanctions_fuzzy_points" mapstructure:"sanctions_fuzzy_points"`
	SanctionsExtraPoints int `json:"sanctions_extra_points" mapstructure:"sanctions_extra_points"`
	SanctionsCap         int `json:"sanctions_cap" mapstructure:"sanctions_cap"`

	ConsolidatedPoints int `json:"consolidated_points" mapstructure:"consolidated_points"`
	ConsolidatedCap    int `json:"consolidated_cap" mapstructure:"consolidated_cap"`

	PEPPoints int `json:"pep_points" mapstructure:"pep_points"`
	PEPCap    int `json:"pep_cap" mapstructure:"pep_cap"`

	CourtRecordPoints int `json:"court_record_points" mapstructure:"court_record_points"`
	CourtRecordsCap   int `json:"court_records_cap" mapstructure:"court_records_cap"`

	LeakMatchPoints int `json:"leak_match_points" mapstructure:"leak_match_points"`
	LeakCap         int `json:"leak_cap" mapstructure:"leak_cap"`

	WalletRemarksPoints int `json:"wallet_remarks_points" mapstructure:"wallet_remarks_points"`
}

// DefaultProfile returns the standard entity-screening profile.
func DefaultProfile() Profile {
	return Profile{
		CriticalThreshold:    80,
		HighThreshold:        50,
		MediumThreshold:      25,
		SanctionsExactPoints: 80,
		SanctionsFuzzyPoints: 45,
		SanctionsExtraPoints: 5,
		SanctionsCap:         90,
		ConsolidatedPoints:   30,
		ConsolidatedCap:      45,
		PEPPoints:            25,
		PEPCap:               30,
		CourtRecordPoints:    4,
		CourtRecordsCap:      20,
		LeakMatchPoints:      12,
		LeakCap:              24,
		WalletRemarksPoints:  85,
	}
}

// Level derives the risk level from a final score.
func (p Profile) Level(score int) screening.Severity {
	switch {
	case score >= p.CriticalThreshold:
		return screening.SeverityCritical
	case score >= p.HighThreshold:
		return screening.SeverityHigh
	case score >= p.MediumThreshold:
		return screening.SeverityMedium
	default:
		return screening.SeverityLow
	}
}

// Aggregator folds source results into risk assessments.
type Aggregator struct {
	profile Profile
	logger  *zap.SugaredLogger
}

// NewAggregator creates an aggregator with the given scoring profile.
func NewAggregator(profile Profile, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{profile: profile, logger: logger}
}

// Aggregate produces one assessment from the keyed source results. order
// fixes the iteration sequence so flag emission is deterministic regardless
// of adapter completion order. Scoring is purely additive with per-category
// caps; deterministic overrides (an exact sanctioned-wallet hit) are applied
// as score floors after the additive pass, so every flag is still collected
// and reported. The final score is clamped to [0,100] at the very end.
func (a *Aggregator) Aggregate(q screening.Query, order []string, results map[string]screening.SourceResult) screening.RiskAssessment {
	assessment := screening.RiskAssessment{
		Flags:      []screening.RiskFlag{},
		ScreenedAt: time.Now().UTC(),
	}

	categoryUsed := make(map[screening.FlagCategory]int)
	score := 0
	forceCritical := false

	addFlag := func(severity screening.Severity, category screening.FlagCategory, message string, points, cap int) {
		if cap > 0 {
			remaining := cap - categoryUsed[category]
			if remaining <= 0 {
				points = 0
			} else if points > remaining {
				points = remaining
			}
		}
		categoryUsed[category] += points
		score += points
		assessment.Flags = append(assessment.Flags, screening.RiskFlag{
			Severity: severity,
			Category: category,
			Message:  message,
			Points:   points,
		})
	}

	for _, sourceID := range order {
		result, ok := results[sourceID]
		if !ok {
			continue
		}
		if result.Errored() {
			if assessment.Diagnostics == nil {
				assessment.Diagnostics = make(map[string]string)
			}
			assessment.Diagnostics[sourceID] = result.Err.Error()
			continue
		}

		switch sourceID {
		case sources.SourceSDN:
			forceCritical = a.scoreSDN(q.Kind == screening.KindWallet, result, addFlag) || forceCritical
		case sources.SourceSanctionedWallets:
			forceCritical = a.scoreWallets(result, addFlag) || forceCritical
		case sources.SourceOpenSanctions:
			a.scoreConsolidated(result, addFlag)
		case sources.SourceCourtRecords:
			a.scoreCourtRecords(result, addFlag)
		case sources.SourceOffshoreLeaks:
			a.scoreLeaks(result, addFlag)
		}
	}

	if forceCritical && score < 100 {
		score = 100
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	assessment.Score = score
	assessment.Level = a.profile.Level(score)

	// Stable: flags of equal severity keep their discovery order.
	sort.SliceStable(assessment.Flags, func(i, j int) bool {
		return assessment.Flags[i].Severity.Rank() < assessment.Flags[j].Severity.Rank()
	})

	a.logger.Infow("Screening aggregated",
		"subject_kind", q.Kind,
		"score", assessment.Score,
		"level", assessment.Level,
		"flags", len(assessment.Flags),
		"errored_sources", len(assessment.Diagnostics))
	return assessment
}

type flagFunc func(severity screening.Severity, category screening.FlagCategory, message string, points, cap int)

// scoreSDN emits flags for SDN list matches. For wallet queries the only
// match types the matcher produces are address-exact and remarks mention.
// Returns true when an exact address was hit, which forces the score to 100.
func (a *Aggregator) scoreSDN(walletQuery bool, result screening.SourceResult, addFlag flagFunc) bool {
	force := false
	first := true
	for _, m := range result.Matches {
		switch {
		case m.Candidate.Type == screening.MatchAddressExact:
			force = true
			addFlag(screening.SeverityCritical, screening.CategorySanctionedWallet,
				fmt.Sprintf("address listed on SDN entry %s (%s)", m.Record.ID, m.Record.PrimaryName),
				a.profile.SanctionsExactPoints, a.profile.SanctionsCap)
		case walletQuery:
			addFlag(screening.SeverityHigh, screening.CategoryWalletRemarks,
				fmt.Sprintf("address mentioned on SDN entry %s (%s)", m.Record.ID, m.Record.PrimaryName),
				a.profile.WalletRemarksPoints, 0)
		case m.Candidate.Confidence >= 0.95:
			points := a.profile.SanctionsExactPoints
			if !first {
				points = a.profile.SanctionsExtraPoints
			}
			addFlag(screening.SeverityCritical, screening.CategorySDNMatch,
				fmt.Sprintf("%s match against SDN entry %s (%s), programs %v",
					m.Candidate.Type, m.Record.ID, m.Record.PrimaryName, m.Record.Programs),
				points, a.profile.SanctionsCap)
			first = false
		default:
			points := a.profile.SanctionsFuzzyPoints
			if !first {
				points = a.profile.SanctionsExtraPoints
			}
			addFlag(screening.SeverityHigh, screening.CategorySDNMatch,
				fmt.Sprintf("%s match (%.2f) against SDN entry %s (%s)",
					m.Candidate.Type, m.Candidate.Confidence, m.Record.ID, m.Record.PrimaryName),
				points, a.profile.SanctionsCap)
			first = false
		}
	}
	return force
}

// scoreWallets emits flags for sanctioned-address list hits. An exact hit
// forces the score to 100; a remarks mention scores high without forcing.
func (a *Aggregator) scoreWallets(result screening.SourceResult, addFlag flagFunc) bool {
	force := false
	for _, m := range result.Matches {
		if m.Candidate.Type == screening.MatchAddressExact {
			force = true
			addFlag(screening.SeverityCritical, screening.CategorySanctionedWallet,
				fmt.Sprintf("address present on sanctioned list (%s)", m.Detail),
				a.profile.SanctionsExactPoints, 0)
		} else {
			addFlag(screening.SeverityHigh, screening.CategoryWalletRemarks,
				fmt.Sprintf("address mentioned in sanctions remarks (%s)", m.Detail),
				a.profile.WalletRemarksPoints, 0)
		}
	}
	return force
}

// scoreConsolidated routes consolidated-dataset matches into sanctions or
// PEP flags based on the entity's topics.
func (a *Aggregator) scoreConsolidated(result screening.SourceResult, addFlag flagFunc) {
	for _, m := range result.Matches {
		sanctioned, pep := false, false
		for _, topic := range m.Record.Programs {
			switch topic {
			case "sanction", "sanction.linked":
				sanctioned = true
			case "role.pep", "role.rca":
				pep = true
			}
		}

		if sanctioned {
			severity := screening.SeverityHigh
			if m.Candidate.Confidence >= 0.95 {
				severity = screening.SeverityCritical
			}
			addFlag(severity, screening.CategoryConsolidated,
				fmt.Sprintf("consolidated sanctions match %s (%s)", m.Record.ID, m.Record.PrimaryName),
				a.profile.ConsolidatedPoints, a.profile.ConsolidatedCap)
		}
		if pep {
			severity := screening.SeverityMedium
			if m.Candidate.Confidence >= 0.95 {
				severity = screening.SeverityHigh
			}
			addFlag(severity, screening.CategoryPEPMatch,
				fmt.Sprintf("politically exposed person match %s (%s)", m.Record.ID, m.Record.PrimaryName),
				a.profile.PEPPoints, a.profile.PEPCap)
		}
	}
}

// scoreCourtRecords emits one flag covering all court findings; each case
// contributes a small capped amount.
func (a *Aggregator) scoreCourtRecords(result screening.SourceResult, addFlag flagFunc) {
	if result.TotalResults == 0 {
		return
	}
	points := result.TotalResults * a.profile.CourtRecordPoints
	severity := screening.SeverityLow
	if result.TotalResults >= 3 {
		severity = screening.SeverityMedium
	}
	addFlag(severity, screening.CategoryCourtRecords,
		fmt.Sprintf("%d court record(s) naming subject", result.TotalResults),
		points, a.profile.CourtRecordsCap)
}

// scoreLeaks emits one flag per leak-database hit.
func (a *Aggregator) scoreLeaks(result screening.SourceResult, addFlag flagFunc) {
	for _, m := range result.Matches {
		addFlag(screening.SeverityMedium, screening.CategoryLeakDatabase,
			fmt.Sprintf("leak database hit %s (%s): %s", m.Record.ID, m.Record.PrimaryName, m.Detail),
			a.profile.LeakMatchPoints, a.profile.LeakCap)
	}
}
