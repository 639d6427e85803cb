package model

import "time"

// Freshness describes how trustworthy the currently served snapshot is.
type Freshness string

const (
	// FreshnessOK means the snapshot comes from the last completed refresh.
	FreshnessOK Freshness = "ok"
	// FreshnessStale means the last refresh attempt failed and the snapshot
	// predates it.
	FreshnessStale Freshness = "stale"
	// FreshnessNeverPopulated means no refresh has ever succeeded.
	FreshnessNeverPopulated Freshness = "never-populated"
)

// Category tags a record as a gacha banner or a mission event.
type Category string

const (
	CategoryBanner Category = "banner"
	CategoryEvent  Category = "event"
)

// RawRecord is a single banner or event as scraped from the upstream site.
// Records are handed from the fetcher to the transformer and discarded;
// nothing downstream of the transformer sees them.
type RawRecord struct {
	ID       string
	Title    string
	Start    time.Time
	End      time.Time
	Category Category

	// Source metadata carried through to the slide unmodified.
	Image string
	Link  string
}

// Slide is one dashboard-ready schedule entry.
type Slide struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Category Category  `json:"category"`
	Image    string    `json:"image,omitempty"`
	Link     string    `json:"link,omitempty"`
}

// Snapshot is the published cache payload: the full slide schedule produced
// by one completed refresh. A Snapshot is immutable once published; readers
// share it and must not modify it.
type Snapshot struct {
	Slides      []Slide
	GeneratedAt time.Time
	Freshness   Freshness
}

// EmptySnapshot returns the snapshot served before any refresh has
// succeeded.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Slides:    []Slide{},
		Freshness: FreshnessNeverPopulated,
	}
}

// DashboardPayload is the wire format returned by GET /api/events.
type DashboardPayload struct {
	GeneratedAt time.Time `json:"generated_at"`
	Freshness   Freshness `json:"freshness"`
	Slides      []Slide   `json:"slides"`
}

// RefreshResult is published over NATS after a message-triggered refresh
// completes.
type RefreshResult struct {
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	SlideCount  int       `json:"slideCount"`
	Dropped     int       `json:"dropped"`
	Expired     int       `json:"expired"`
	GeneratedAt time.Time `json:"generatedAt,omitempty"`
	ProcessedAt time.Time `json:"processedAt"`
}
