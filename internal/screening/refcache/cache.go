// Package refcache caches large remote reference lists (sanctions lists,
// sanctioned-address lists) in memory with a TTL, single-flight refresh and
// a stale-but-available fallback policy.
package refcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sentinelrisk/screening/internal/screening"
)

var refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "screening_list_refresh_total",
	Help: "Reference list refresh attempts by list and outcome.",
}, []string{"list", "outcome"})

// ErrNotLoaded is returned by Get when no dataset has ever been loaded and
// the refresh failed on every configured URL.
var ErrNotLoaded = errors.New("reference list not loaded")

// Parser turns a raw downloaded payload into reference records. Parsers must
// skip malformed individual lines rather than failing the whole load.
type Parser func(data []byte) ([]screening.ReferenceRecord, error)

// ListCache holds one reference list. Readers always see a complete dataset:
// a refresh parses into a fresh slice and swaps it in under the lock, never
// mutating the served slice.
type ListCache struct {
	name   string
	urls   []string
	ttl    time.Duration
	client *http.Client
	parse  Parser
	logger *zap.SugaredLogger

	group singleflight.Group

	mu       sync.RWMutex
	records  []screening.ReferenceRecord
	loadedAt time.Time
}

// NewListCache creates a cache for one list. urls is the primary URL followed
// by ordered fallbacks. The client's timeout bounds each download.
func NewListCache(name string, urls []string, ttl time.Duration, client *http.Client, parse Parser, logger *zap.SugaredLogger) *ListCache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ListCache{
		name:   name,
		urls:   urls,
		ttl:    ttl,
		client: client,
		parse:  parse,
		logger: logger,
	}
}

// Name returns the list identifier.
func (c *ListCache) Name() string { return c.name }

// Loaded reports whether any dataset has ever been loaded.
func (c *ListCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.loadedAt.IsZero()
}

// Get returns the cached records, refreshing first when stale. Concurrent
// callers arriving during a refresh share the same in-flight download. A
// failed refresh keeps serving the previous dataset; Get only errors when no
// dataset was ever loaded.
func (c *ListCache) Get(ctx context.Context) ([]screening.ReferenceRecord, error) {
	c.mu.RLock()
	fresh := !c.loadedAt.IsZero() && time.Since(c.loadedAt) < c.ttl
	records := c.records
	c.mu.RUnlock()

	if fresh {
		return records, nil
	}

	// Single-flight key is constant per cache: every stale caller awaits the
	// same refresh rather than issuing duplicate downloads.
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return nil, c.refresh(ctx)
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loadedAt.IsZero() {
		if err == nil {
			err = ErrNotLoaded
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotLoaded, c.name, err)
	}
	if err != nil {
		// Stale but available: log happened in refresh, serve old data.
		return c.records, nil
	}
	return c.records, nil
}

// refresh downloads from the primary URL and falls back through the
// remaining URLs in order, stopping at the first success.
func (c *ListCache) refresh(ctx context.Context) error {
	var lastErr error
	for _, url := range c.urls {
		data, err := c.download(ctx, url)
		if err != nil {
			lastErr = err
			c.logger.Warnw("Reference list download failed",
				"list", c.name,
				"url", url,
				"error", err)
			continue
		}

		records, err := c.parse(data)
		if err != nil {
			lastErr = err
			c.logger.Warnw("Reference list parse failed",
				"list", c.name,
				"url", url,
				"error", err)
			continue
		}

		c.mu.Lock()
		c.records = records
		c.loadedAt = time.Now()
		c.mu.Unlock()

		refreshTotal.WithLabelValues(c.name, "success").Inc()
		c.logger.Infow("Reference list loaded",
			"list", c.name,
			"url", url,
			"records", len(records))
		return nil
	}

	refreshTotal.WithLabelValues(c.name, "failure").Inc()
	if lastErr == nil {
		lastErr = errors.New("no URLs configured")
	}
	return fmt.Errorf("all sources failed for list %s: %w", c.name, lastErr)
}

func (c *ListCache) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "sentinelrisk-screening/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
