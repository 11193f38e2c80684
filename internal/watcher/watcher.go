// Package watcher maintains persistent subscriptions to external change
// feeds, classifies inbound events into typed alerts, and filters them
// against a watchlist.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// SubscriptionState is the lifecycle state of one feed subscription.
type SubscriptionState string

const (
	StateDisconnected SubscriptionState = "DISCONNECTED"
	StateConnecting   SubscriptionState = "CONNECTING"
	StateConnected    SubscriptionState = "CONNECTED"
)

const defaultBackoff = 5 * time.Second

var (
	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_reconnects_total",
		Help: "Feed reconnect attempts by feed kind",
	}, []string{"feed"})
	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_alerts_total",
		Help: "Alerts emitted by severity",
	}, []string{"severity"})
)

// Clock abstracts backoff timing so tests can drive reconnects.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures a Watcher. Zero-valued fields get defaults.
type Options struct {
	Feeds     []FeedConfig
	Transport FeedTransport
	Store     WatchlistStore
	Alerts    *AlertBuffer
	Publisher AlertPublisher
	Backoff   time.Duration
	Clock     Clock
	Logger    *zap.SugaredLogger
}

// Status is a point-in-time snapshot of the watcher.
type Status struct {
	Configured    bool                           `json:"configured"`
	Subscriptions map[FeedKind]SubscriptionState `json:"subscriptions"`
	WatchlistSize int                            `json:"watchlist_size"`
	AlertCount    int                            `json:"alert_count"`
}

// Watcher runs one reconnecting subscription loop per configured feed.
type Watcher struct {
	feeds     []FeedConfig
	transport FeedTransport
	store     WatchlistStore
	alerts    *AlertBuffer
	publisher AlertPublisher
	backoff   time.Duration
	clock     Clock
	logger    *zap.SugaredLogger

	mu        sync.RWMutex
	states    map[FeedKind]SubscriptionState
	findings  map[string][]EventType
	listeners []func(Alert)

	wg sync.WaitGroup
}

// New creates a watcher. Feeds may be empty, in which case Start is a no-op
// and Status reports the watcher as unconfigured.
func New(opts Options) *Watcher {
	if opts.Transport == nil {
		opts.Transport = NewWebsocketTransport()
	}
	if opts.Store == nil {
		opts.Store = NewMemoryWatchlist()
	}
	if opts.Alerts == nil {
		opts.Alerts = NewAlertBuffer(defaultAlertCapacity)
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	states := make(map[FeedKind]SubscriptionState, len(opts.Feeds))
	for _, f := range opts.Feeds {
		states[f.Kind] = StateDisconnected
	}
	return &Watcher{
		feeds:     opts.Feeds,
		transport: opts.Transport,
		store:     opts.Store,
		alerts:    opts.Alerts,
		publisher: opts.Publisher,
		backoff:   opts.Backoff,
		clock:     opts.Clock,
		logger:    opts.Logger,
		states:    states,
		findings:  make(map[string][]EventType),
	}
}

// OnAlert registers a listener invoked for every emitted alert. Must be
// called before Start.
func (w *Watcher) OnAlert(fn func(Alert)) {
	w.listeners = append(w.listeners, fn)
}

// Start launches one subscription loop per feed. The loops run until ctx is
// cancelled; Wait blocks until they have all stopped.
func (w *Watcher) Start(ctx context.Context) {
	for _, feed := range w.feeds {
		w.wg.Add(1)
		go func(f FeedConfig) {
			defer w.wg.Done()
			w.runFeed(ctx, f)
		}(feed)
	}
}

// Wait blocks until all subscription loops have exited.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// runFeed is the per-feed state machine: DISCONNECTED -> CONNECTING ->
// CONNECTED, back to DISCONNECTED on any error, then reconnect after the
// backoff. The loop is unbounded; the feed is expected to be long-lived.
func (w *Watcher) runFeed(ctx context.Context, feed FeedConfig) {
	for {
		w.setState(feed.Kind, StateConnecting)
		reconnectsTotal.WithLabelValues(string(feed.Kind)).Inc()

		conn, err := w.transport.Connect(ctx, feed)
		if err != nil {
			w.setState(feed.Kind, StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			w.logger.Warnw("Feed connect failed", "feed", feed.Kind, "error", err)
			if !w.sleep(ctx) {
				return
			}
			continue
		}

		w.setState(feed.Kind, StateConnected)
		w.logger.Infow("Feed connected", "feed", feed.Kind)
		err = w.readLoop(ctx, feed, conn)
		conn.Close()
		w.setState(feed.Kind, StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		w.logger.Warnw("Feed disconnected", "feed", feed.Kind, "error", err)
		if !w.sleep(ctx) {
			return
		}
	}
}

func (w *Watcher) readLoop(ctx context.Context, feed FeedConfig, conn FeedConn) error {
	// Unblock ReadEvent when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		payload, err := conn.ReadEvent()
		if err != nil {
			return err
		}
		w.handleEvent(ctx, feed.Kind, payload)
	}
}

// sleep waits one backoff interval; returns false when ctx was cancelled.
func (w *Watcher) sleep(ctx context.Context) bool {
	select {
	case <-w.clock.After(w.backoff):
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Watcher) handleEvent(ctx context.Context, feed FeedKind, payload []byte) {
	c, err := classify(feed, payload)
	if err != nil {
		w.logger.Warnw("Dropping unclassifiable event", "feed", feed, "error", err)
		return
	}
	if c.Subject == "" {
		w.logger.Debugw("Dropping event without subject key", "feed", feed)
		return
	}

	if globallyTracked[c.EventType] {
		w.recordFinding(c.Subject, c.EventType)
	}

	watched, err := w.store.Contains(ctx, c.Subject)
	if err != nil {
		w.logger.Errorw("Watchlist lookup failed", "subject", c.Subject, "error", err)
		return
	}
	if !watched {
		return
	}

	alert := NewAlert(c.Subject, feed, c.EventType, c.Severity, c.Message)
	w.alerts.Add(alert)
	alertsTotal.WithLabelValues(string(alert.Severity)).Inc()
	w.logger.Infow("Alert emitted",
		"subject", alert.Subject, "event_type", alert.EventType, "severity", alert.Severity)

	if err := w.publisher.Publish(ctx, alert); err != nil {
		w.logger.Errorw("Alert publish failed", "alert_id", alert.ID, "error", err)
	}
	for _, fn := range w.listeners {
		fn(alert)
	}
}

func (w *Watcher) recordFinding(subject string, eventType EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.findings[subject] {
		if t == eventType {
			return
		}
	}
	w.findings[subject] = append(w.findings[subject], eventType)
}

// Findings returns the globally tracked event types recorded for a subject,
// regardless of watchlist membership.
func (w *Watcher) Findings(subject string) []EventType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]EventType, len(w.findings[subject]))
	copy(out, w.findings[subject])
	return out
}

func (w *Watcher) setState(feed FeedKind, state SubscriptionState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.states[feed] = state
}

// State returns the current subscription state for one feed.
func (w *Watcher) State(feed FeedKind) SubscriptionState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.states[feed]
}

// Status reports the watcher configuration and current subscription states.
func (w *Watcher) Status(ctx context.Context) Status {
	w.mu.RLock()
	subs := make(map[FeedKind]SubscriptionState, len(w.states))
	for k, v := range w.states {
		subs[k] = v
	}
	w.mu.RUnlock()

	size, err := w.store.Size(ctx)
	if err != nil {
		w.logger.Warnw("Watchlist size lookup failed", "error", err)
	}
	return Status{
		Configured:    len(w.feeds) > 0,
		Subscriptions: subs,
		WatchlistSize: size,
		AlertCount:    w.alerts.Len(),
	}
}

// Watchlist exposes the underlying store for the API layer.
func (w *Watcher) Watchlist() WatchlistStore { return w.store }

// Alerts exposes the alert buffer for the API layer.
func (w *Watcher) Alerts() *AlertBuffer { return w.alerts }
