package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/sources"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(DefaultProfile(), zap.NewNop().Sugar())
}

var screenOrder = []string{
	sources.SourceSDN,
	sources.SourceSanctionedWallets,
	sources.SourceOpenSanctions,
	sources.SourceCourtRecords,
	sources.SourceOffshoreLeaks,
}

func sdnExactMatch(id, name string, programs ...string) screening.SourceMatch {
	return screening.SourceMatch{
		Record: screening.ReferenceRecord{
			ID:          id,
			PrimaryName: name,
			Kind:        screening.KindIndividual,
			Programs:    programs,
		},
		Candidate: screening.MatchCandidate{RecordID: id, Type: screening.MatchExact, Confidence: 1.0},
	}
}

func TestAggregate_SanctionedIndividual(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Oleg Deripaska", Kind: screening.KindIndividual}

	results := map[string]screening.SourceResult{
		sources.SourceSDN: {
			SourceID: sources.SourceSDN,
			Matches:  []screening.SourceMatch{sdnExactMatch("36", "DERIPASKA, Oleg", "RUSSIA-EO14024")},
		},
	}

	out := agg.Aggregate(q, screenOrder, results)
	assert.GreaterOrEqual(t, out.Score, 80)
	assert.Equal(t, screening.SeverityCritical, out.Level)
	require.Len(t, out.Flags, 1)
	assert.Equal(t, screening.CategorySDNMatch, out.Flags[0].Category)
	assert.Equal(t, screening.SeverityCritical, out.Flags[0].Severity)
}

func TestAggregate_CleanSubject(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "John Smith", Kind: screening.KindIndividual}

	results := map[string]screening.SourceResult{
		sources.SourceSDN:           {SourceID: sources.SourceSDN},
		sources.SourceOpenSanctions: {SourceID: sources.SourceOpenSanctions},
		sources.SourceCourtRecords:  {SourceID: sources.SourceCourtRecords},
	}

	out := agg.Aggregate(q, screenOrder, results)
	assert.Equal(t, 0, out.Score)
	assert.Equal(t, screening.SeverityLow, out.Level)
	assert.Empty(t, out.Flags)
	assert.Empty(t, out.Diagnostics)
}

func TestAggregate_WalletExactForcesMaxScore(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "bc1qexampleaddr00000000000000000000", Kind: screening.KindWallet}

	results := map[string]screening.SourceResult{
		sources.SourceSanctionedWallets: {
			SourceID: sources.SourceSanctionedWallets,
			Matches: []screening.SourceMatch{{
				Record: screening.ReferenceRecord{
					ID:          "addr-7",
					PrimaryName: "bc1qexampleaddr00000000000000000000",
					Kind:        screening.KindWallet,
				},
				Candidate: screening.MatchCandidate{RecordID: "addr-7", Type: screening.MatchAddressExact, Confidence: 1.0},
				Detail:    "sdn_crypto_addresses",
			}},
		},
	}

	out := agg.Aggregate(q, screenOrder, results)
	assert.Equal(t, 100, out.Score)
	assert.Equal(t, screening.SeverityCritical, out.Level)
	require.Len(t, out.Flags, 1)
	assert.Equal(t, screening.CategorySanctionedWallet, out.Flags[0].Category)
}

func TestAggregate_WalletRemarksMentionDoesNotForce(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "0xabcdef0123456789abcdef0123456789", Kind: screening.KindWallet}

	results := map[string]screening.SourceResult{
		sources.SourceSDN: {
			SourceID: sources.SourceSDN,
			Matches: []screening.SourceMatch{{
				Record: screening.ReferenceRecord{ID: "901", PrimaryName: "LAZARUS GROUP", Kind: screening.KindOrganization},
				Candidate: screening.MatchCandidate{
					RecordID: "901", Type: screening.MatchSubstring, Confidence: 0.95,
				},
			}},
		},
	}

	out := agg.Aggregate(q, screenOrder, results)
	assert.Equal(t, DefaultProfile().WalletRemarksPoints, out.Score)
	assert.Less(t, out.Score, 100)
	require.Len(t, out.Flags, 1)
	assert.Equal(t, screening.CategoryWalletRemarks, out.Flags[0].Category)
}

func TestAggregate_CategoryCaps(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Acme Trading FZE", Kind: screening.KindOrganization}

	// Eight leak hits; uncapped that would be 96 points.
	var leakMatches []screening.SourceMatch
	for i := 0; i < 8; i++ {
		leakMatches = append(leakMatches, screening.SourceMatch{
			Record:    screening.ReferenceRecord{ID: "n1", PrimaryName: "ACME TRADING FZE"},
			Candidate: screening.MatchCandidate{RecordID: "n1", Type: screening.MatchExact, Confidence: 1.0},
			Detail:    "Panama Papers",
		})
	}

	results := map[string]screening.SourceResult{
		sources.SourceOffshoreLeaks: {SourceID: sources.SourceOffshoreLeaks, Matches: leakMatches},
	}

	out := agg.Aggregate(q, screenOrder, results)
	assert.Equal(t, DefaultProfile().LeakCap, out.Score)
	assert.Len(t, out.Flags, 8, "flags are never dropped, only their points are capped")
}

func TestAggregate_AdditionalSDNMatchesCapped(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Some Name", Kind: screening.KindIndividual}

	matches := []screening.SourceMatch{
		sdnExactMatch("1", "SOME NAME", "SDGT"),
		sdnExactMatch("2", "SOME NAME JR", "SDGT"),
		sdnExactMatch("3", "SOME OTHER NAME", "SDGT"),
	}
	results := map[string]screening.SourceResult{
		sources.SourceSDN: {SourceID: sources.SourceSDN, Matches: matches},
	}

	out := agg.Aggregate(q, screenOrder, results)
	p := DefaultProfile()
	want := p.SanctionsExactPoints + 2*p.SanctionsExtraPoints
	if want > p.SanctionsCap {
		want = p.SanctionsCap
	}
	assert.Equal(t, want, out.Score)
	assert.Len(t, out.Flags, 3)
}

func TestAggregate_ConsolidatedAndPEPTopics(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Example Person", Kind: screening.KindIndividual}

	results := map[string]screening.SourceResult{
		sources.SourceOpenSanctions: {
			SourceID: sources.SourceOpenSanctions,
			Matches: []screening.SourceMatch{{
				Record: screening.ReferenceRecord{
					ID:          "Q123",
					PrimaryName: "EXAMPLE PERSON",
					Programs:    []string{"sanction", "role.pep"},
				},
				Candidate: screening.MatchCandidate{RecordID: "Q123", Type: screening.MatchExact, Confidence: 1.0},
			}},
		},
	}

	out := agg.Aggregate(q, screenOrder, results)
	p := DefaultProfile()
	assert.Equal(t, p.ConsolidatedPoints+p.PEPPoints, out.Score)
	require.Len(t, out.Flags, 2)
	assert.Equal(t, screening.CategoryConsolidated, out.Flags[0].Category)
	assert.Equal(t, screening.CategoryPEPMatch, out.Flags[1].Category)
}

func TestAggregate_CourtRecordsCapped(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Litigious Holdings", Kind: screening.KindOrganization}

	results := map[string]screening.SourceResult{
		sources.SourceCourtRecords: {SourceID: sources.SourceCourtRecords, TotalResults: 40},
	}

	out := agg.Aggregate(q, screenOrder, results)
	assert.Equal(t, DefaultProfile().CourtRecordsCap, out.Score)
	require.Len(t, out.Flags, 1)
	assert.Equal(t, screening.SeverityMedium, out.Flags[0].Severity)
}

func TestAggregate_ErroredSourceGoesToDiagnostics(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Anyone", Kind: screening.KindIndividual}

	results := map[string]screening.SourceResult{
		sources.SourceSDN: {
			SourceID: sources.SourceSDN,
			Matches:  []screening.SourceMatch{sdnExactMatch("5", "ANYONE")},
		},
		sources.SourceOpenSanctions: {
			SourceID: sources.SourceOpenSanctions,
			Err:      assert.AnError,
		},
	}

	out := agg.Aggregate(q, screenOrder, results)
	assert.GreaterOrEqual(t, out.Score, 80)
	require.Contains(t, out.Diagnostics, sources.SourceOpenSanctions)
	assert.NotEmpty(t, out.Diagnostics[sources.SourceOpenSanctions])
}

func TestAggregate_FlagsSortedBySeverity(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Mixed Case", Kind: screening.KindIndividual}

	results := map[string]screening.SourceResult{
		sources.SourceCourtRecords: {SourceID: sources.SourceCourtRecords, TotalResults: 1},
		sources.SourceSDN: {
			SourceID: sources.SourceSDN,
			Matches:  []screening.SourceMatch{sdnExactMatch("9", "MIXED CASE")},
		},
	}

	out := agg.Aggregate(q, screenOrder, results)
	require.Len(t, out.Flags, 2)
	assert.Equal(t, screening.SeverityCritical, out.Flags[0].Severity)
	assert.Equal(t, screening.SeverityLow, out.Flags[1].Severity)
}

func TestAggregate_Deterministic(t *testing.T) {
	agg := newTestAggregator()
	q := screening.Query{Subject: "Repeat Subject", Kind: screening.KindIndividual}

	results := map[string]screening.SourceResult{
		sources.SourceSDN: {
			SourceID: sources.SourceSDN,
			Matches: []screening.SourceMatch{
				sdnExactMatch("1", "REPEAT SUBJECT"),
				sdnExactMatch("2", "REPEAT SUBJECT LTD"),
			},
		},
		sources.SourceCourtRecords: {SourceID: sources.SourceCourtRecords, TotalResults: 2},
	}

	first := agg.Aggregate(q, screenOrder, results)
	for i := 0; i < 5; i++ {
		again := agg.Aggregate(q, screenOrder, results)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.Level, again.Level)
		require.Equal(t, len(first.Flags), len(again.Flags))
		for j := range first.Flags {
			assert.Equal(t, first.Flags[j].Category, again.Flags[j].Category)
			assert.Equal(t, first.Flags[j].Points, again.Flags[j].Points)
		}
	}
}
