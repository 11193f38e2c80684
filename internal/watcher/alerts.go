package watcher

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelrisk/screening/internal/screening"
)

// Alert is one classified feed event that matched the watchlist.
type Alert struct {
	ID           string              `json:"id"`
	Subject      string              `json:"subject"`
	Feed         FeedKind            `json:"feed"`
	EventType    EventType           `json:"event_type"`
	Severity     screening.Severity  `json:"severity"`
	Message      string              `json:"message"`
	CreatedAt    time.Time           `json:"created_at"`
	Acknowledged bool                `json:"acknowledged"`
}

// AlertFilter selects alerts on read. Zero values match everything; Limit 0
// means no limit.
type AlertFilter struct {
	Severity screening.Severity
	Subject  string
	Offset   int
	Limit    int
}

// NewAlert builds an alert with a fresh ID and timestamp.
func NewAlert(subject string, feed FeedKind, eventType EventType, severity screening.Severity, message string) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Subject:   subject,
		Feed:      feed,
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// AlertBuffer holds the last N alerts, evicting the oldest once full.
type AlertBuffer struct {
	mu    sync.RWMutex
	buf   []Alert
	size  int
	start int
	count int
}

// NewAlertBuffer creates a buffer with the given capacity.
func NewAlertBuffer(size int) *AlertBuffer {
	if size <= 0 {
		size = defaultAlertCapacity
	}
	return &AlertBuffer{buf: make([]Alert, size), size: size}
}

const defaultAlertCapacity = 10000

// Add appends an alert, overwriting the oldest entry when full.
func (b *AlertBuffer) Add(a Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := (b.start + b.count) % b.size
	if b.count == b.size {
		b.start = (b.start + 1) % b.size
		b.count--
	}
	b.buf[idx] = a
	b.count++
}

// Len returns the number of alerts currently held.
func (b *AlertBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// List returns alerts matching the filter, most recent first, after applying
// offset/limit pagination.
func (b *AlertBuffer) List(f AlertFilter) []Alert {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := []Alert{}
	skipped := 0
	for i := b.count - 1; i >= 0; i-- {
		a := b.buf[(b.start+i)%b.size]
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Subject != "" && a.Subject != f.Subject {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Acknowledge marks the alert with the given ID. Returns false if the alert
// is not in the buffer (it may have been evicted).
func (b *AlertBuffer) Acknowledge(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < b.count; i++ {
		idx := (b.start + i) % b.size
		if b.buf[idx].ID == id {
			b.buf[idx].Acknowledged = true
			return true
		}
	}
	return false
}
