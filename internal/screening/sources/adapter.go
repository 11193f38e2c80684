// Package sources contains one adapter per external screening data source.
// Adapters normalize a query into the source's request shape, execute it
// under a fixed deadline, and always return a SourceResult: upstream
// failures populate the result's error, they never cross the adapter
// boundary as a panic.
package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sentinelrisk/screening/internal/screening"
)

var sourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "screening_source_errors_total",
	Help: "Adapter failures by source.",
}, []string{"source"})

// Every adapter satisfies screening.Adapter; the orchestrator depends only
// on that interface, never on source-specific payload shapes.
var (
	_ screening.Adapter = (*SDNAdapter)(nil)
	_ screening.Adapter = (*WalletAdapter)(nil)
	_ screening.Adapter = (*OpenSanctionsAdapter)(nil)
	_ screening.Adapter = (*CourtRecordsAdapter)(nil)
	_ screening.Adapter = (*OffshoreLeaksAdapter)(nil)
)

// errResult builds a failed SourceResult and counts the failure.
func errResult(sourceID string, err error) screening.SourceResult {
	sourceErrors.WithLabelValues(sourceID).Inc()
	return screening.SourceResult{SourceID: sourceID, Err: err}
}

// getJSON issues a GET with the adapter's client (whose timeout bounds the
// call) and decodes a 2xx JSON body into out.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, decode func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return decode(resp)
}
