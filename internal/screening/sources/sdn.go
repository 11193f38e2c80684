package sources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/match"
	"github.com/sentinelrisk/screening/internal/screening/refcache"
)

// SourceSDN identifies the OFAC SDN list adapter.
const SourceSDN = "ofac_sdn"

// SDNAdapter screens names against the cached OFAC SDN list.
type SDNAdapter struct {
	cache   *refcache.ListCache
	matcher *match.Matcher
	logger  *zap.SugaredLogger
}

// NewSDNAdapter creates the SDN adapter over a shared list cache.
func NewSDNAdapter(cache *refcache.ListCache, matcher *match.Matcher, logger *zap.SugaredLogger) *SDNAdapter {
	return &SDNAdapter{cache: cache, matcher: matcher, logger: logger}
}

// ID implements Adapter.
func (a *SDNAdapter) ID() string { return SourceSDN }

// Screen implements Adapter. Wallet subjects are matched address-exact
// against the digital-currency addresses parsed from SDN remarks; every
// other subject goes through name matching.
func (a *SDNAdapter) Screen(ctx context.Context, q screening.Query) screening.SourceResult {
	records, err := a.cache.Get(ctx)
	if err != nil {
		return errResult(SourceSDN, fmt.Errorf("sdn list unavailable: %w", err))
	}

	result := screening.SourceResult{SourceID: SourceSDN}
	for _, rec := range records {
		var cand screening.MatchCandidate
		var ok bool
		if q.Kind == screening.KindWallet {
			cand, ok = a.matcher.MatchWallet(q.Subject, rec)
		} else {
			cand, ok = a.matcher.Match(q.Subject, rec)
		}
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, screening.SourceMatch{
			Record:    rec,
			Candidate: cand,
			Detail:    fmt.Sprintf("SDN entry %s (%s)", rec.ID, rec.PrimaryName),
		})
	}
	result.TotalResults = len(result.Matches)

	a.logger.Debugw("SDN screening completed",
		"subject_kind", q.Kind,
		"matches", result.TotalResults)
	return result
}
