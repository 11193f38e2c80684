package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/engine"
	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/risk"
	"github.com/sentinelrisk/screening/internal/screening/sources"
	"github.com/sentinelrisk/screening/internal/watcher"
)

type listAdapter struct {
	id      string
	records []screening.ReferenceRecord
}

func (a *listAdapter) ID() string { return a.id }

func (a *listAdapter) Screen(_ context.Context, q screening.Query) screening.SourceResult {
	result := screening.SourceResult{SourceID: a.id}
	for _, rec := range a.records {
		if strings.EqualFold(rec.PrimaryName, q.Subject) {
			matchType := screening.MatchExact
			if q.Kind == screening.KindWallet {
				matchType = screening.MatchAddressExact
			}
			result.Matches = append(result.Matches, screening.SourceMatch{
				Record:    rec,
				Candidate: screening.MatchCandidate{RecordID: rec.ID, Type: matchType, Confidence: 1.0},
			})
		}
	}
	result.TotalResults = len(result.Matches)
	return result
}

func newTestServer(t *testing.T) (*Server, *watcher.Watcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	sugar := logger.Sugar()

	adapters := []screening.Adapter{
		&listAdapter{id: sources.SourceSDN, records: []screening.ReferenceRecord{
			{ID: "36", PrimaryName: "OLEG DERIPASKA", Kind: screening.KindIndividual, Programs: []string{"RUSSIA"}},
		}},
		&listAdapter{id: sources.SourceSanctionedWallets, records: []screening.ReferenceRecord{
			{ID: "addr-1", PrimaryName: "bc1qsanctionedaddr0000000000000000000", Kind: screening.KindWallet},
		}},
	}
	svc := engine.NewService(adapters, risk.NewAggregator(risk.DefaultProfile(), sugar), time.Second, sugar)
	w := watcher.New(watcher.Options{Logger: sugar})
	return NewServer(logger, svc, w, []string{"*"}), w
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestScreenEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/screen", `{"subject":"Oleg Deripaska","kind":"individual"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out screening.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.GreaterOrEqual(t, out.Score, 80)
	assert.Equal(t, screening.SeverityCritical, out.Level)
	require.NotEmpty(t, out.Flags)
	assert.Equal(t, screening.CategorySDNMatch, out.Flags[0].Category)
}

func TestScreenEndpoint_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, s, http.MethodPost, "/v1/screen", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, s, http.MethodPost, "/v1/screen", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, s, http.MethodPost, "/v1/screen", `{"subject":"x","kind":"martian"}`).Code)
}

func TestScreenWalletEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/screen/wallet",
		`{"address":"bc1qsanctionedaddr0000000000000000000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out screening.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 100, out.Score)
	assert.Equal(t, screening.SeverityCritical, out.Level)
}

func TestWatchlistEndpoints(t *testing.T) {
	s, w := newTestServer(t)

	assert.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/v1/watchlist/01234567", "").Code)

	rec := doJSON(t, s, http.MethodGet, "/v1/watchlist/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st watcher.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.WatchlistSize)
	assert.False(t, st.Configured)

	assert.Equal(t, http.StatusOK, doJSON(t, s, http.MethodDelete, "/v1/watchlist/01234567", "").Code)
	size, err := w.Watchlist().Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestAlertEndpoints(t *testing.T) {
	s, w := newTestServer(t)

	a := watcher.NewAlert("01234567", watcher.FeedFilings, watcher.EventInsolvency, screening.SeverityHigh, "insolvency filing")
	w.Alerts().Add(a)
	w.Alerts().Add(watcher.NewAlert("other", watcher.FeedFilings, watcher.EventFiling, screening.SeverityLow, "accounts filed"))

	rec := doJSON(t, s, http.MethodGet, "/v1/alerts?severity=HIGH", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Alerts []watcher.Alert `json:"alerts"`
		Count  int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "01234567", out.Alerts[0].Subject)

	assert.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/v1/alerts/"+a.ID+"/ack", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, s, http.MethodPost, "/v1/alerts/nope/ack", "").Code)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sources.SourceSDN)
}
