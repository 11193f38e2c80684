// Package engine ties the source adapters and the risk aggregator together
// into the screening service used by the API layer.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sentinelrisk/screening/internal/screening"
	"github.com/sentinelrisk/screening/internal/screening/risk"
)

// ErrEmptySubject is returned when a screening request carries no subject.
// It is the only condition that rejects a request outright; source failures
// degrade the assessment instead.
var ErrEmptySubject = errors.New("screening subject must not be empty")

const defaultFanOutTimeout = 30 * time.Second

var (
	screeningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screening_requests_total",
		Help: "Screening requests by subject kind and resulting risk level",
	}, []string{"kind", "level"})
	screeningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "screening_duration_seconds",
		Help:    "End-to-end screening latency including all source fan-out",
		Buckets: prometheus.DefBuckets,
	})
)

// Service screens entities against every registered source and aggregates
// the results into one risk assessment.
type Service struct {
	adapters   []screening.Adapter
	order      []string
	aggregator *risk.Aggregator
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

// NewService builds a screening service over the given adapters. The adapter
// slice fixes the evaluation order used for deterministic flag emission.
func NewService(adapters []screening.Adapter, aggregator *risk.Aggregator, timeout time.Duration, logger *zap.SugaredLogger) *Service {
	if timeout <= 0 {
		timeout = defaultFanOutTimeout
	}
	order := make([]string, 0, len(adapters))
	for _, a := range adapters {
		order = append(order, a.ID())
	}
	return &Service{
		adapters:   adapters,
		order:      order,
		aggregator: aggregator,
		timeout:    timeout,
		logger:     logger,
	}
}

// Sources returns the registered source IDs in evaluation order.
func (s *Service) Sources() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Screen runs the query against all sources concurrently and aggregates the
// results. Individual source failures are carried on the assessment's
// diagnostics map; the call itself fails only on invalid input.
func (s *Service) Screen(ctx context.Context, q screening.Query) (screening.RiskAssessment, error) {
	q.Subject = strings.TrimSpace(q.Subject)
	if q.Subject == "" {
		return screening.RiskAssessment{}, ErrEmptySubject
	}
	if q.Kind == "" {
		q.Kind = screening.KindUnknown
	}

	start := time.Now()
	results := screening.FanOut(ctx, s.adapters, q, s.timeout, s.logger)
	assessment := s.aggregator.Aggregate(q, s.order, results)
	screeningDuration.Observe(time.Since(start).Seconds())
	screeningsTotal.WithLabelValues(string(q.Kind), string(assessment.Level)).Inc()

	s.logger.Infow("Screening complete",
		"kind", q.Kind,
		"score", assessment.Score,
		"level", assessment.Level,
		"duration_ms", time.Since(start).Milliseconds())
	return assessment, nil
}

// ScreenWallet screens a blockchain address. Address matching is exact-only,
// so the query is tagged as a wallet to suppress fuzzy name tiers.
func (s *Service) ScreenWallet(ctx context.Context, address string) (screening.RiskAssessment, error) {
	return s.Screen(ctx, screening.Query{Subject: address, Kind: screening.KindWallet})
}
