package sources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/match"
	"github.com/sentinelrisk/screening/internal/screening/refcache"
)

// SourceSanctionedWallets identifies the sanctioned-wallet-list adapter.
const SourceSanctionedWallets = "sanctioned_wallets"

// WalletAdapter screens wallet addresses against one or more cached
// sanctioned-address lists.
type WalletAdapter struct {
	caches  []*refcache.ListCache
	matcher *match.Matcher
	logger  *zap.SugaredLogger
}

// NewWalletAdapter creates the wallet adapter over the given address-list
// caches.
func NewWalletAdapter(caches []*refcache.ListCache, matcher *match.Matcher, logger *zap.SugaredLogger) *WalletAdapter {
	return &WalletAdapter{caches: caches, matcher: matcher, logger: logger}
}

// ID implements Adapter.
func (a *WalletAdapter) ID() string { return SourceSanctionedWallets }

// Screen implements Adapter. Non-wallet subjects yield an empty neutral
// result. When some lists are unavailable the remaining lists are still
// screened; the error is reported only if every list failed.
func (a *WalletAdapter) Screen(ctx context.Context, q screening.Query) screening.SourceResult {
	if q.Kind != screening.KindWallet {
		return screening.SourceResult{SourceID: SourceSanctionedWallets}
	}

	result := screening.SourceResult{SourceID: SourceSanctionedWallets}
	var lastErr error
	loaded := 0
	for _, cache := range a.caches {
		records, err := cache.Get(ctx)
		if err != nil {
			lastErr = err
			a.logger.Warnw("Sanctioned-address list unavailable",
				"list", cache.Name(),
				"error", err)
			continue
		}
		loaded++
		for _, rec := range records {
			cand, ok := a.matcher.MatchWallet(q.Subject, rec)
			if !ok {
				continue
			}
			result.Matches = append(result.Matches, screening.SourceMatch{
				Record:    rec,
				Candidate: cand,
				Detail:    fmt.Sprintf("sanctioned address list %s", cache.Name()),
			})
		}
	}
	result.TotalResults = len(result.Matches)

	if loaded == 0 && lastErr != nil {
		return errResult(SourceSanctionedWallets, fmt.Errorf("no address lists loaded: %w", lastErr))
	}
	return result
}
