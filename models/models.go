package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Source represents one configured feed endpoint
type Source struct {
	URL          string  `json:"url" yaml:"url"`
	Name         string  `json:"name" yaml:"name"`
	Weight       float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Category     string  `json:"category,omitempty" yaml:"category,omitempty"`
	DefaultImage string  `json:"default_image,omitempty" yaml:"default_image,omitempty"`
}

// NormalizedItem is one feed entry after normalization. Instances are
// read-only after the parser emits them; the extractor appends topic
// tags through the aggregation phase only.
type NormalizedItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Link            string    `json:"link"`
	PublishedAt     time.Time `json:"published"`
	Content         string    `json:"content,omitempty"`
	Summary         string    `json:"summary"`
	Creator         string    `json:"creator,omitempty"`
	Categories      []string  `json:"categories,omitempty"`
	Topics          []string  `json:"topics,omitempty"`
	MediaURL        string    `json:"image,omitempty"`
	SourceName      string    `json:"source"`
	SectionCategory string    `json:"section,omitempty"`
	DramaScore      float64   `json:"drama_score,omitempty"` // auxiliary per-item score, carried by URL across cleanup passes
	IsFallback      bool      `json:"is_fallback,omitempty"`
}

// FeedResult is the normalized output of fetching a single source
type FeedResult struct {
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Link        string           `json:"link,omitempty"`
	SourceName  string           `json:"source"`
	SourceURL   string           `json:"source_url,omitempty"`
	Items       []NormalizedItem `json:"items"`
	LastFetched time.Time        `json:"last_fetched"`
	FromCache   bool             `json:"-"`
}

// TierEntry pairs an entity name with its mention count for one run.
// It marshals as a two-element JSON array, the layout the renderer reads.
type TierEntry struct {
	Name  string
	Count int
}

// MarshalJSON encodes the entry as ["name", count]
func (e TierEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Name, e.Count})
}

// UnmarshalJSON decodes ["name", count] pairs. Bare name strings are
// also accepted: older stores wrote not_this_week as names only.
func (e *TierEntry) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		e.Count = 0
		return json.Unmarshal(data, &e.Name)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("tier entry must contain at least a name")
	}
	if err := json.Unmarshal(raw[0], &e.Name); err != nil {
		return fmt.Errorf("tier entry name: %w", err)
	}
	e.Count = 0
	if len(raw) > 1 {
		if err := json.Unmarshal(raw[1], &e.Count); err != nil {
			return fmt.Errorf("tier entry count: %w", err)
		}
	}
	return nil
}

// AggregateStore is the cumulative trend store persisted between runs
type AggregateStore struct {
	Entries          []NormalizedItem    `json:"entries"`
	FallbackEntries  []NormalizedItem    `json:"fallback_entries"`
	HourlyTopics     map[string][]string `json:"hourly_topics"`
	WeeklyPopularity []TierEntry         `json:"weekly_popularity"`
	HotThisWeek      []TierEntry         `json:"hot_this_week"`
	NotThisWeek      []TierEntry         `json:"not_this_week"`
	UpcomingNewNames []TierEntry         `json:"upcoming_new_names"`
}

// NewAggregateStore returns an empty store with every canonical key
// present, including the ten hourly buckets
func NewAggregateStore() *AggregateStore {
	hourly := make(map[string][]string, 10)
	for i := 1; i <= 10; i++ {
		hourly[strconv.Itoa(i)] = []string{}
	}
	return &AggregateStore{
		Entries:          []NormalizedItem{},
		FallbackEntries:  []NormalizedItem{},
		HourlyTopics:     hourly,
		WeeklyPopularity: []TierEntry{},
		HotThisWeek:      []TierEntry{},
		NotThisWeek:      []TierEntry{},
		UpcomingNewNames: []TierEntry{},
	}
}
