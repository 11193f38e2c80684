package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/match"
)

// SourceOffshoreLeaks identifies the leak-database adapter.
const SourceOffshoreLeaks = "offshore_leaks"

// offshoreLeaksTimeout bounds each API call; the upstream graph search can
// be slow on broad names.
const offshoreLeaksTimeout = 20 * time.Second

// OffshoreLeaksAdapter searches a leaked offshore-entity database (Panama
// Papers, Paradise Papers and successors) for the subject.
type OffshoreLeaksAdapter struct {
	baseURL string
	client  *http.Client
	matcher *match.Matcher
	logger  *zap.SugaredLogger
}

// NewOffshoreLeaksAdapter creates the adapter. The upstream is public; no
// key is needed.
func NewOffshoreLeaksAdapter(baseURL string, matcher *match.Matcher, logger *zap.SugaredLogger) *OffshoreLeaksAdapter {
	return &OffshoreLeaksAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: offshoreLeaksTimeout},
		matcher: matcher,
		logger:  logger,
	}
}

// ID implements Adapter.
func (a *OffshoreLeaksAdapter) ID() string { return SourceOffshoreLeaks }

type leaksResponse struct {
	Total int `json:"total"`
	Nodes []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Type      string `json:"type"`
		Countries string `json:"countries"`
		Source    string `json:"source"`
	} `json:"nodes"`
}

// Screen implements Adapter. Wallet subjects are skipped: the leak graph is
// keyed by entity and officer names.
func (a *OffshoreLeaksAdapter) Screen(ctx context.Context, q screening.Query) screening.SourceResult {
	if q.Kind == screening.KindWallet {
		return screening.SourceResult{SourceID: SourceOffshoreLeaks}
	}

	endpoint := fmt.Sprintf("%s/search?q=%s", a.baseURL, url.QueryEscape(q.Subject))
	var payload leaksResponse
	err := getJSON(ctx, a.client, endpoint, nil, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
		return nil
	})
	if err != nil {
		return errResult(SourceOffshoreLeaks, err)
	}

	result := screening.SourceResult{SourceID: SourceOffshoreLeaks, TotalResults: payload.Total}
	for _, node := range payload.Nodes {
		rec := screening.ReferenceRecord{
			ID:          node.ID,
			PrimaryName: node.Name,
			Kind:        leakKind(node.Type),
		}
		cand, ok := a.matcher.Match(q.Subject, rec)
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, screening.SourceMatch{
			Record:    rec,
			Candidate: cand,
			Detail:    fmt.Sprintf("%s (%s)", node.Source, node.Countries),
		})
	}
	return result
}

func leakKind(nodeType string) screening.EntityKind {
	switch strings.ToLower(nodeType) {
	case "officer", "intermediary":
		return screening.KindIndividual
	case "entity":
		return screening.KindOrganization
	default:
		return screening.KindUnknown
	}
}
