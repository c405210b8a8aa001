package trendwire

import (
	"strings"

	"github.com/zombar/trendwire/models"
)

// FilterConfig gates which normalized items survive into aggregation.
// Zero-valued rules admit everything.
type FilterConfig struct {
	MinWordCount    int
	ExcludeKeywords []string
	RequireImage    bool
}

// Include reports whether an item passes every configured rule.
func (r FilterConfig) Include(item models.NormalizedItem) bool {
	if r.MinWordCount > 0 {
		words := len(strings.Fields(item.Content))
		if words < r.MinWordCount {
			return false
		}
	}
	if len(r.ExcludeKeywords) > 0 {
		haystack := strings.ToLower(item.Title + " " + item.Content)
		for _, kw := range r.ExcludeKeywords {
			if kw == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return false
			}
		}
	}
	if r.RequireImage && item.MediaURL == "" {
		return false
	}
	return true
}

// FilterItems applies the rules to a batch, reporting dispositions to
// the processed-items counter.
func FilterItems(items []models.NormalizedItem, rules FilterConfig) []models.NormalizedItem {
	kept := make([]models.NormalizedItem, 0, len(items))
	for _, item := range items {
		if !rules.Include(item) {
			itemsProcessedTotal.WithLabelValues("filtered").Inc()
			continue
		}
		itemsProcessedTotal.WithLabelValues("kept").Inc()
		kept = append(kept, item)
	}
	return kept
}
