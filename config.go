package trendwire

import "time"

// Config contains engine configuration. The constants reconcile the
// divergent values seen across historical cleanup runs into one
// explicit policy; see DESIGN.md for the choices.
type Config struct {
	HTTPTimeout        time.Duration // Per-request fetch timeout
	CacheTTL           time.Duration // Feed cache freshness window
	MaxConcurrent      int           // Sources fetched in parallel per chunk
	MaxRetries         int           // Extra fetch attempts after the first
	MaxFeedBytes       int64         // Upper bound on a feed document
	RetentionWindow    time.Duration // Entries older than this are purged
	HotThreshold       int           // Mention count at which an entity is hot
	PromotionThreshold int           // Candidate frequency for registry promotion
	WeeklyTopN         int           // Entries kept in weekly_popularity
	FallbackPerTopic   int           // Fallback entries kept per popular topic
	DefaultImage       string        // Global placeholder when no media resolves
	Filters            FilterConfig
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:        10 * time.Second,
		CacheTTL:           30 * time.Minute,
		MaxConcurrent:      10,
		MaxRetries:         2,
		MaxFeedBytes:       5 * 1024 * 1024, // 5MB max feed document
		RetentionWindow:    7 * 24 * time.Hour,
		HotThreshold:       5,
		PromotionThreshold: 3,
		WeeklyTopN:         20,
		FallbackPerTopic:   5,
		DefaultImage:       "/assets/images/default-article.jpg",
		Filters: FilterConfig{
			MinWordCount: 10,
		},
	}
}
