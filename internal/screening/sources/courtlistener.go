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
)

// SourceCourtRecords identifies the court-records API adapter.
const SourceCourtRecords = "court_records"

// courtRecordsTimeout is generous: the upstream search index is slow.
const courtRecordsTimeout = 15 * time.Second

// maxCourtMatches caps how many individual case records are carried into the
// result; the total count is reported separately.
const maxCourtMatches = 10

// CourtRecordsAdapter searches a federal court-records index for civil and
// administrative proceedings naming the subject.
type CourtRecordsAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.SugaredLogger
}

// NewCourtRecordsAdapter creates the adapter. The API key is optional: the
// upstream serves unauthenticated requests at a reduced rate, so an absent
// key degrades throughput, not correctness.
func NewCourtRecordsAdapter(baseURL, apiKey string, logger *zap.SugaredLogger) *CourtRecordsAdapter {
	return &CourtRecordsAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: courtRecordsTimeout},
		logger:  logger,
	}
}

// ID implements Adapter.
func (a *CourtRecordsAdapter) ID() string { return SourceCourtRecords }

type courtSearchResponse struct {
	Count   int `json:"count"`
	Results []struct {
		CaseName  string `json:"caseName"`
		Court     string `json:"court"`
		DateFiled string `json:"dateFiled"`
		DocketID  int    `json:"docket_id"`
	} `json:"results"`
}

// Screen implements Adapter. Wallet subjects are skipped: court records are
// keyed by party names, not addresses.
func (a *CourtRecordsAdapter) Screen(ctx context.Context, q screening.Query) screening.SourceResult {
	if q.Kind == screening.KindWallet {
		return screening.SourceResult{SourceID: SourceCourtRecords}
	}

	endpoint := fmt.Sprintf("%s/search/?q=%s&type=o", a.baseURL, url.QueryEscape(fmt.Sprintf("%q", q.Subject)))
	headers := map[string]string{}
	if a.apiKey != "" {
		headers["Authorization"] = "Token " + a.apiKey
	}

	var payload courtSearchResponse
	err := getJSON(ctx, a.client, endpoint, headers, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
		return nil
	})
	if err != nil {
		return errResult(SourceCourtRecords, err)
	}

	result := screening.SourceResult{SourceID: SourceCourtRecords, TotalResults: payload.Count}
	for i, hit := range payload.Results {
		if i >= maxCourtMatches {
			break
		}
		result.Matches = append(result.Matches, screening.SourceMatch{
			Record: screening.ReferenceRecord{
				ID:          fmt.Sprintf("docket-%d", hit.DocketID),
				PrimaryName: hit.CaseName,
				Kind:        screening.KindUnknown,
			},
			Candidate: screening.MatchCandidate{
				RecordID:   fmt.Sprintf("docket-%d", hit.DocketID),
				Type:       screening.MatchSubstring,
				Confidence: 0.80,
			},
			Detail: fmt.Sprintf("%s, filed %s", hit.Court, hit.DateFiled),
		})
	}
	return result
}
