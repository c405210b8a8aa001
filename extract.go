package trendwire

import (
	"regexp"
	"sort"
	"strings"

	"github.com/zombar/trendwire/models"
	"github.com/zombar/trendwire/slug"
)

// properNamePattern matches runs of capitalized words, the candidate
// shape for person and franchise names in feed text.
var properNamePattern = regexp.MustCompile(`[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`)

// commonWords are capitalized-word sequences that look like proper
// names but never are. Lookups are against the lowercased candidate.
var commonWords = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"a": true, "an": true, "and": true, "but": true, "for": true,
	"with": true, "from": true, "after": true, "before": true, "during": true,
	"his": true, "her": true, "their": true, "its": true, "our": true,
	"new": true, "first": true, "last": true, "next": true, "best": true,
	"how": true, "why": true, "what": true, "when": true, "where": true, "who": true,
	"here": true, "there": true, "now": true, "then": true, "today": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true, "september": true,
	"october": true, "november": true, "december": true,
	"watch": true, "video": true, "photos": true, "exclusive": true,
	"breaking": true, "report": true, "update": true, "inside": true,
	"see": true, "says": true, "reveals": true, "shares": true,
}

// Extractor finds tracked-entity mentions and discovers new candidate
// entities from item text. It carries no run-to-run state; the entity
// registry persisted by the store is the only memory.
type Extractor struct {
	config Config
}

func NewExtractor(config Config) *Extractor {
	return &Extractor{config: config}
}

// CountMentions tallies, per registry entity, how many items mention
// it in title or content, and records each matched name in the item's
// Topics so downstream consumers (fallback selection, section feeds)
// know which entities an item is about. Matching is case-insensitive
// substring on the entity's display form.
func (e *Extractor) CountMentions(items []models.NormalizedItem, registry []string) map[string]int {
	counts := make(map[string]int, len(registry))
	needles := make(map[string]string, len(registry))
	for _, name := range registry {
		counts[name] = 0
		needles[name] = strings.ToLower(slug.Display(name))
	}

	for i := range items {
		haystack := strings.ToLower(items[i].Title + " " + items[i].Content)
		for _, name := range registry {
			if strings.Contains(haystack, needles[name]) {
				counts[name]++
				if !hasTopic(items[i].Topics, name) {
					items[i].Topics = append(items[i].Topics, name)
				}
			}
		}
	}
	return counts
}

func hasTopic(topics []string, name string) bool {
	for _, t := range topics {
		if t == name {
			return true
		}
	}
	return false
}

// DiscoverCandidates scans item titles for proper-name sequences not
// already tracked, returning each candidate's frequency across the
// batch. Candidates are keyed in registry form (lowercase, spaced), so
// promotion writes the same shape a hand-curated registry uses. Single
// common words and single-word candidates are rejected; a lone surname
// is too ambiguous to track.
func (e *Extractor) DiscoverCandidates(items []models.NormalizedItem, registry []string) map[string]int {
	tracked := make(map[string]bool, len(registry))
	for _, name := range registry {
		tracked[slug.Generate(name)] = true
	}

	freq := make(map[string]int)
	for _, item := range items {
		seen := make(map[string]bool)
		for _, match := range properNamePattern.FindAllString(item.Title, -1) {
			words := strings.Fields(match)
			if len(words) < 2 {
				continue
			}
			if commonWords[strings.ToLower(words[0])] {
				words = words[1:]
				if len(words) < 2 {
					continue
				}
			}
			match = strings.Join(words, " ")
			key := slug.Generate(match)
			if tracked[key] || seen[key] {
				continue
			}
			seen[key] = true
			freq[slug.Normalize(match)]++
		}
	}
	return freq
}

// Promote appends candidates meeting the promotion threshold to the
// registry, returning the updated registry and the promoted names in
// deterministic order.
func (e *Extractor) Promote(registry []string, candidates map[string]int) ([]string, []string) {
	var promoted []string
	for name, count := range candidates {
		if count >= e.config.PromotionThreshold {
			promoted = append(promoted, name)
		}
	}
	sort.Strings(promoted)

	if len(promoted) == 0 {
		return registry, nil
	}

	updated := make([]string, 0, len(registry)+len(promoted))
	updated = append(updated, registry...)
	updated = append(updated, promoted...)
	entitiesPromotedTotal.Add(float64(len(promoted)))
	return updated, promoted
}

// TagTopics annotates each item with the section topics its text
// mentions. Topics are stored in slug form; matching uses the display
// form, case-insensitively.
func TagTopics(items []models.NormalizedItem, topics []string) {
	type needle struct {
		slug string
		text string
	}
	needles := make([]needle, 0, len(topics))
	for _, t := range topics {
		s := slug.Generate(t)
		needles = append(needles, needle{slug: s, text: strings.ToLower(slug.Display(s))})
	}

	for i := range items {
		haystack := strings.ToLower(items[i].Title + " " + items[i].Content)
		for _, n := range needles {
			if strings.Contains(haystack, n.text) {
				items[i].Topics = append(items[i].Topics, n.slug)
			}
		}
	}
}
