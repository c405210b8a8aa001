package trendwire

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zombar/trendwire/models"
	"github.com/zombar/trendwire/slug"
)

// Aggregator merges windowed items into the cumulative trend store.
// It runs single-threaded after all fetches settle; nothing here is
// safe for concurrent use and nothing needs to be.
type Aggregator struct {
	config    Config
	extractor *Extractor
}

func NewAggregator(config Config) *Aggregator {
	return &Aggregator{
		config:    config,
		extractor: NewExtractor(config),
	}
}

// WindowEntries merges incoming items with the previous run's entries,
// newest first, deduplicated by link with the first occurrence winning,
// and drops everything outside the retention window. Auxiliary drama
// scores attached to a previous entry survive by URL lookup; they are
// carried, never recomputed.
func (a *Aggregator) WindowEntries(previous, incoming []models.NormalizedItem, now time.Time) []models.NormalizedItem {
	scores := make(map[string]float64)
	for _, item := range previous {
		if item.DramaScore != 0 {
			scores[item.Link] = item.DramaScore
		}
	}

	merged := make([]models.NormalizedItem, 0, len(previous)+len(incoming))
	merged = append(merged, incoming...)
	merged = append(merged, previous...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})

	cutoff := now.Add(-a.config.RetentionWindow)
	seen := make(map[string]bool, len(merged))
	kept := make([]models.NormalizedItem, 0, len(merged))
	for _, item := range merged {
		key := item.Link
		if key == "" {
			key = item.ID
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if !item.PublishedAt.After(cutoff) {
			itemsProcessedTotal.WithLabelValues("expired").Inc()
			continue
		}
		if item.DramaScore == 0 {
			if score, ok := scores[item.Link]; ok {
				item.DramaScore = score
			}
		}
		kept = append(kept, item)
	}
	return kept
}

// Aggregate recomputes every derived view of the store from the
// windowed item set and the entity registry: hourly topic buckets,
// the three weekly tiers, and top-N weekly popularity. Counts are
// rebuilt from scratch each run; the window is the only memory.
func (a *Aggregator) Aggregate(store *models.AggregateStore, items []models.NormalizedItem, registry []string, now time.Time) {
	counts := a.extractor.CountMentions(items, registry)

	store.Entries = items
	store.HourlyTopics = a.bucketHourly(items, registry, now)
	store.HotThisWeek, store.UpcomingNewNames, store.NotThisWeek = tierEntities(counts, a.config.HotThreshold)
	store.WeeklyPopularity = topN(counts, a.config.WeeklyTopN)
	store.FallbackEntries = a.refreshFallbacks(store.FallbackEntries, items, now)
}

// bucketHourly assigns each entity mentioned in the last ten hours to
// the bucket for its item's age. Buckets hold an ordered set of names;
// keys "1" through "10" are always present, empty or not.
func (a *Aggregator) bucketHourly(items []models.NormalizedItem, registry []string, now time.Time) map[string][]string {
	buckets := make(map[string][]string, 10)
	inBucket := make(map[string]map[string]bool, 10)
	for i := 1; i <= 10; i++ {
		key := bucketKey(i)
		buckets[key] = []string{}
		inBucket[key] = make(map[string]bool)
	}

	needles := make(map[string]string, len(registry))
	for _, name := range registry {
		needles[name] = strings.ToLower(slug.Display(name))
	}

	for _, item := range items {
		age := now.Sub(item.PublishedAt)
		if age < 0 || age > 10*time.Hour {
			continue
		}
		bucket := int(age.Hours()) + 1
		if bucket < 1 {
			bucket = 1
		}
		if bucket > 10 {
			bucket = 10
		}
		key := bucketKey(bucket)

		haystack := strings.ToLower(item.Title + " " + item.Content)
		for name, needle := range needles {
			if inBucket[key][name] {
				continue
			}
			if strings.Contains(haystack, needle) {
				inBucket[key][name] = true
				buckets[key] = append(buckets[key], name)
			}
		}
	}
	return buckets
}

// tierEntities partitions the registry into the three weekly tiers.
// Every counted entity lands in exactly one tier.
func tierEntities(counts map[string]int, hotThreshold int) (hot, upcoming, not []models.TierEntry) {
	hot = []models.TierEntry{}
	upcoming = []models.TierEntry{}
	not = []models.TierEntry{}
	for name, count := range counts {
		entry := models.TierEntry{Name: name, Count: count}
		switch {
		case count >= hotThreshold:
			hot = append(hot, entry)
		case count >= 1:
			upcoming = append(upcoming, entry)
		default:
			not = append(not, entry)
		}
	}
	sortTier(hot)
	sortTier(upcoming)
	sortTier(not)
	return hot, upcoming, not
}

func sortTier(entries []models.TierEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
}

// topN returns the n highest-counted entities across all tiers.
func topN(counts map[string]int, n int) []models.TierEntry {
	all := make([]models.TierEntry, 0, len(counts))
	for name, count := range counts {
		all = append(all, models.TierEntry{Name: name, Count: count})
	}
	sortTier(all)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// refreshFallbacks maintains the per-topic reserve shown when a later
// run comes up empty. While live items exist, each tagged topic keeps
// its newest few as fallbacks; existing fallbacks survive until they
// age out of the retention window.
func (a *Aggregator) refreshFallbacks(previous, items []models.NormalizedItem, now time.Time) []models.NormalizedItem {
	cutoff := now.Add(-a.config.RetentionWindow)

	perTopic := make(map[string]int)
	seen := make(map[string]bool)
	fallbacks := []models.NormalizedItem{}

	for _, item := range items {
		for _, topic := range item.Topics {
			if perTopic[topic] >= a.config.FallbackPerTopic {
				continue
			}
			if seen[item.Link] {
				break
			}
			perTopic[topic]++
			seen[item.Link] = true
			copied := item
			copied.IsFallback = true
			fallbacks = append(fallbacks, copied)
			break
		}
	}

	for _, item := range previous {
		if seen[item.Link] || !item.PublishedAt.After(cutoff) {
			continue
		}
		seen[item.Link] = true
		fallbacks = append(fallbacks, item)
	}
	return fallbacks
}

func bucketKey(i int) string {
	return strconv.Itoa(i)
}
