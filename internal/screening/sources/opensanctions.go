package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/match"
)

// SourceOpenSanctions identifies the consolidated sanctions/PEP API adapter.
const SourceOpenSanctions = "opensanctions"

// openSanctionsTimeout bounds each API call.
const openSanctionsTimeout = 10 * time.Second

// OpenSanctionsAdapter queries a consolidated sanctions and PEP dataset API.
// The upstream aggregates dozens of national lists and tags each entity with
// topics such as "sanction" and "role.pep"; those topics are carried into
// the record's Programs so the aggregator can route them.
type OpenSanctionsAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	matcher *match.Matcher
	logger  *zap.SugaredLogger
}

// NewOpenSanctionsAdapter creates the adapter. An empty API key is allowed;
// Screen then degrades to an empty neutral result instead of blocking the
// fan-out.
func NewOpenSanctionsAdapter(baseURL, apiKey string, matcher *match.Matcher, logger *zap.SugaredLogger) *OpenSanctionsAdapter {
	return &OpenSanctionsAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: openSanctionsTimeout},
		matcher: matcher,
		logger:  logger,
	}
}

// ID implements Adapter.
func (a *OpenSanctionsAdapter) ID() string { return SourceOpenSanctions }

type openSanctionsResponse struct {
	Results []struct {
		ID         string  `json:"id"`
		Caption    string  `json:"caption"`
		Schema     string  `json:"schema"`
		Score      float64 `json:"score"`
		Datasets   []string `json:"datasets"`
		Properties struct {
			Alias   []string `json:"alias"`
			Topics  []string `json:"topics"`
			Country []string `json:"country"`
		} `json:"properties"`
	} `json:"results"`
	Total struct {
		Value int `json:"value"`
	} `json:"total"`
}

// Screen implements Adapter.
func (a *OpenSanctionsAdapter) Screen(ctx context.Context, q screening.Query) screening.SourceResult {
	if a.apiKey == "" {
		a.logger.Debugw("OpenSanctions API key absent, skipping source")
		return screening.SourceResult{SourceID: SourceOpenSanctions}
	}

	endpoint := fmt.Sprintf("%s/search/default?q=%s&limit=10", a.baseURL, url.QueryEscape(q.Subject))
	if q.Country != "" {
		endpoint += "&countries=" + url.QueryEscape(q.Country)
	}

	var payload openSanctionsResponse
	err := getJSON(ctx, a.client, endpoint, map[string]string{
		"Authorization": "ApiKey " + a.apiKey,
	}, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
		return nil
	})
	if err != nil {
		return errResult(SourceOpenSanctions, err)
	}

	result := screening.SourceResult{SourceID: SourceOpenSanctions, TotalResults: payload.Total.Value}
	for _, hit := range payload.Results {
		rec := screening.ReferenceRecord{
			ID:          hit.ID,
			PrimaryName: hit.Caption,
			Aliases:     hit.Properties.Alias,
			Kind:        schemaKind(hit.Schema),
			Programs:    hit.Properties.Topics,
		}

		// Score locally so confidence semantics stay uniform across
		// sources; fall back to the upstream score when our matcher finds
		// nothing but the API is confident.
		cand, ok := a.matcher.Match(q.Subject, rec)
		if !ok && hit.Score >= 0.75 {
			cand = screening.MatchCandidate{RecordID: hit.ID, Type: screening.MatchFuzzy, Confidence: hit.Score}
			ok = true
		}
		if !ok {
			continue
		}

		result.Matches = append(result.Matches, screening.SourceMatch{
			Record:    rec,
			Candidate: cand,
			Detail:    fmt.Sprintf("datasets: %v", hit.Datasets),
		})
	}
	return result
}

func schemaKind(schema string) screening.EntityKind {
	switch schema {
	case "Person":
		return screening.KindIndividual
	case "Organization", "Company", "LegalEntity":
		return screening.KindOrganization
	case "Vessel":
		return screening.KindVessel
	case "Airplane":
		return screening.KindAircraft
	case "CryptoWallet":
		return screening.KindWallet
	default:
		return screening.KindUnknown
	}
}
