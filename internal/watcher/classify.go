package watcher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sentinelrisk/screening/internal/screening"
)

// FeedKind identifies one upstream change-stream feed.
type FeedKind string

const (
	FeedFilings           FeedKind = "filings"
	FeedCompanyProfile    FeedKind = "company_profile"
	FeedInsolvency        FeedKind = "insolvency"
	FeedDisqualifications FeedKind = "disqualifications"
)

// EventType is the classified kind of an inbound feed event.
type EventType string

const (
	EventFiling           EventType = "filing"
	EventProfileChange    EventType = "profile_change"
	EventInsolvency       EventType = "insolvency"
	EventDisqualification EventType = "disqualification"
	EventDissolution      EventType = "dissolution"
	EventUnknown          EventType = "unknown"
)

// severityTable maps event types to alert severities.
var severityTable = map[EventType]screening.Severity{
	EventInsolvency:       screening.SeverityHigh,
	EventDisqualification: screening.SeverityHigh,
	EventDissolution:      screening.SeverityMedium,
	EventFiling:           screening.SeverityLow,
	EventProfileChange:    screening.SeverityLow,
	EventUnknown:          screening.SeverityLow,
}

// globallyTracked event types are recorded for every subject, not only
// watchlisted ones, so later screenings can cross-reference them.
var globallyTracked = map[EventType]bool{
	EventInsolvency:       true,
	EventDisqualification: true,
}

// feedEvent is the wire shape shared by the company-data streams.
type feedEvent struct {
	ResourceURI  string         `json:"resource_uri"`
	ResourceKind string         `json:"resource_kind"`
	Data         map[string]any `json:"data"`
}

// classified is the outcome of classifying one raw feed payload.
type classified struct {
	Subject   string
	EventType EventType
	Severity  screening.Severity
	Message   string
}

// classify extracts the subject key and event type from a raw feed payload
// using per-feed rules. A missing subject key means the event cannot be
// attributed and is dropped by the caller.
func classify(feed FeedKind, payload []byte) (classified, error) {
	var ev feedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return classified{}, fmt.Errorf("malformed feed event: %w", err)
	}

	subject := subjectKey(feed, ev)
	eventType := eventType(feed, ev)
	return classified{
		Subject:   subject,
		EventType: eventType,
		Severity:  severityTable[eventType],
		Message:   fmt.Sprintf("%s event on %s feed for %s", eventType, feed, subject),
	}, nil
}

// subjectKey extracts the company number (or officer ID for officer feeds)
// from the event, falling back to the resource URI path.
func subjectKey(feed FeedKind, ev feedEvent) string {
	if s, ok := ev.Data["company_number"].(string); ok && s != "" {
		return s
	}
	if feed == FeedDisqualifications {
		if s, ok := ev.Data["officer_id"].(string); ok && s != "" {
			return s
		}
	}
	// resource_uri is /company/<number>/... on the company streams.
	parts := strings.Split(strings.Trim(ev.ResourceURI, "/"), "/")
	if len(parts) >= 2 && parts[0] == "company" {
		return parts[1]
	}
	if len(parts) >= 2 && parts[0] == "disqualified-officers" {
		return parts[len(parts)-1]
	}
	return ""
}

func eventType(feed FeedKind, ev feedEvent) EventType {
	switch feed {
	case FeedInsolvency:
		return EventInsolvency
	case FeedDisqualifications:
		return EventDisqualification
	case FeedCompanyProfile:
		status, _ := ev.Data["company_status"].(string)
		switch strings.ToLower(status) {
		case "dissolved":
			return EventDissolution
		case "liquidation", "insolvency-proceedings", "administration":
			return EventInsolvency
		}
		return EventProfileChange
	case FeedFilings:
		category, _ := ev.Data["category"].(string)
		switch strings.ToLower(category) {
		case "insolvency":
			return EventInsolvency
		case "gazette", "dissolution":
			return EventDissolution
		}
		return EventFiling
	}
	return EventUnknown
}
