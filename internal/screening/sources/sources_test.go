package sources_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/match"
	"github.com/sentinelrisk/screening/internal/screening/refcache"
	"github.com/sentinelrisk/screening/internal/screening/sources"
)

func testMatcher() *match.Matcher { return match.NewMatcher(match.DefaultConfig()) }

func nameQuery(subject string) screening.Query {
	return screening.Query{Subject: subject, Kind: screening.KindIndividual}
}

func sdnCache(t *testing.T, csv string) *refcache.ListCache {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	t.Cleanup(srv.Close)
	return refcache.NewListCache("ofac_sdn", []string{srv.URL}, time.Hour, srv.Client(), refcache.ParseSDN, zap.NewNop().Sugar())
}

func TestSDNAdapter_NameMatch(t *testing.T) {
	cache := sdnCache(t, `36,"DERIPASKA, OLEG","individual","RUSSIA",-0-,-0-,-0-,-0-,-0-,-0-,-0-,-0-`)
	adapter := sources.NewSDNAdapter(cache, testMatcher(), zap.NewNop().Sugar())

	result := adapter.Screen(context.Background(), nameQuery("OLEG DERIPASKA"))
	require.NoError(t, result.Err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, screening.MatchExact, result.Matches[0].Candidate.Type)
	assert.Equal(t, 1.0, result.Matches[0].Candidate.Confidence)
	assert.Equal(t, []string{"RUSSIA"}, result.Matches[0].Record.Programs)
}

func TestSDNAdapter_ListUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	cache := refcache.NewListCache("ofac_sdn", []string{srv.URL}, time.Hour, srv.Client(), refcache.ParseSDN, zap.NewNop().Sugar())
	adapter := sources.NewSDNAdapter(cache, testMatcher(), zap.NewNop().Sugar())

	result := adapter.Screen(context.Background(), nameQuery("anyone"))
	assert.True(t, result.Errored())
	assert.Empty(t, result.Matches)
}

func TestWalletAdapter_ExactMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0x7F367cC41522cE07553e823bf3be79A889DEbe1B\n"))
	}))
	defer srv.Close()
	cache := refcache.NewListCache("eth_sanctions", []string{srv.URL}, time.Hour, srv.Client(), refcache.ParseAddressList, zap.NewNop().Sugar())
	adapter := sources.NewWalletAdapter([]*refcache.ListCache{cache}, testMatcher(), zap.NewNop().Sugar())

	result := adapter.Screen(context.Background(), screening.Query{
		Subject: "0x7f367cc41522ce07553e823bf3be79a889debe1b",
		Kind:    screening.KindWallet,
	})
	require.NoError(t, result.Err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, screening.MatchAddressExact, result.Matches[0].Candidate.Type)
	assert.Equal(t, 1.0, result.Matches[0].Candidate.Confidence)
}

func TestWalletAdapter_NonWalletSubjectNeutral(t *testing.T) {
	adapter := sources.NewWalletAdapter(nil, testMatcher(), zap.NewNop().Sugar())
	result := adapter.Screen(context.Background(), nameQuery("John Smith"))
	assert.NoError(t, result.Err)
	assert.Empty(t, result.Matches)
}

func TestOpenSanctionsAdapter_SkipsWithoutKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	adapter := sources.NewOpenSanctionsAdapter(srv.URL, "", testMatcher(), zap.NewNop().Sugar())
	result := adapter.Screen(context.Background(), nameQuery("John Smith"))

	assert.NoError(t, result.Err)
	assert.Empty(t, result.Matches)
	assert.False(t, called, "absent API key must skip the call entirely")
}

func TestOpenSanctionsAdapter_NormalizesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ApiKey secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"results": [{
				"id": "Q123",
				"caption": "OLEG DERIPASKA",
				"schema": "Person",
				"score": 0.97,
				"datasets": ["us_ofac_sdn", "eu_fsf"],
				"properties": {"topics": ["sanction"], "alias": ["DERIPASKA, OLEG"]}
			}],
			"total": {"value": 1}
		}`))
	}))
	defer srv.Close()

	adapter := sources.NewOpenSanctionsAdapter(srv.URL, "secret", testMatcher(), zap.NewNop().Sugar())
	result := adapter.Screen(context.Background(), nameQuery("Oleg Deripaska"))

	require.NoError(t, result.Err)
	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, screening.KindIndividual, m.Record.Kind)
	assert.Contains(t, m.Record.Programs, "sanction")
	assert.Equal(t, 1.0, m.Candidate.Confidence, "local exact match wins over upstream score")
	assert.Equal(t, 1, result.TotalResults)
}

func TestOpenSanctionsAdapter_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [`))
	}))
	defer srv.Close()

	adapter := sources.NewOpenSanctionsAdapter(srv.URL, "secret", testMatcher(), zap.NewNop().Sugar())
	result := adapter.Screen(context.Background(), nameQuery("John Smith"))
	assert.True(t, result.Errored())
}

func TestCourtRecordsAdapter_CountAndMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"count": 42,
			"results": [
				{"caseName": "SEC v. Smith", "court": "S.D.N.Y.", "dateFiled": "2021-03-04", "docket_id": 7}
			]
		}`))
	}))
	defer srv.Close()

	adapter := sources.NewCourtRecordsAdapter(srv.URL, "", zap.NewNop().Sugar())
	result := adapter.Screen(context.Background(), nameQuery("John Smith"))

	require.NoError(t, result.Err)
	assert.Equal(t, 42, result.TotalResults)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "docket-7", result.Matches[0].Record.ID)
}

func TestCourtRecordsAdapter_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := sources.NewCourtRecordsAdapter(srv.URL, "", zap.NewNop().Sugar())
	result := adapter.Screen(context.Background(), nameQuery("John Smith"))
	assert.True(t, result.Errored())
}

func TestOffshoreLeaksAdapter_AppliesLocalMatching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"total": 2,
			"nodes": [
				{"id": "n1", "name": "JOHN SMITH", "type": "Officer", "countries": "PAN", "source": "Panama Papers"},
				{"id": "n2", "name": "COMPLETELY UNRELATED SA", "type": "Entity", "countries": "BVI", "source": "Paradise Papers"}
			]
		}`))
	}))
	defer srv.Close()

	adapter := sources.NewOffshoreLeaksAdapter(srv.URL, testMatcher(), zap.NewNop().Sugar())
	result := adapter.Screen(context.Background(), nameQuery("John Smith"))

	require.NoError(t, result.Err)
	require.Len(t, result.Matches, 1, "non-matching hits are filtered locally")
	assert.Equal(t, "n1", result.Matches[0].Record.ID)
	assert.Equal(t, screening.KindIndividual, result.Matches[0].Record.Kind)
}

func TestAdapterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	adapter := sources.NewCourtRecordsAdapter(srv.URL, "", zap.NewNop().Sugar())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := adapter.Screen(ctx, nameQuery("John Smith"))
	assert.True(t, result.Errored(), "deadline expiry is a normal failure, not a crash")
}
