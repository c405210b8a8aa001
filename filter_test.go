package trendwire

import (
	"strings"
	"testing"

	"github.com/zombar/trendwire/models"
)

func TestFilterInclude(t *testing.T) {
	longBody := strings.Repeat("word ", 20)

	tests := []struct {
		name     string
		rules    FilterConfig
		item     models.NormalizedItem
		expected bool
	}{
		{
			name:     "passes all rules",
			rules:    FilterConfig{MinWordCount: 10},
			item:     models.NormalizedItem{Title: "Story", Content: longBody},
			expected: true,
		},
		{
			name:     "too short",
			rules:    FilterConfig{MinWordCount: 10},
			item:     models.NormalizedItem{Title: "Story", Content: "just a few words"},
			expected: false,
		},
		{
			name:     "excluded keyword in title",
			rules:    FilterConfig{ExcludeKeywords: []string{"sponsored"}},
			item:     models.NormalizedItem{Title: "SPONSORED: Buy Now", Content: longBody},
			expected: false,
		},
		{
			name:     "excluded keyword in body",
			rules:    FilterConfig{ExcludeKeywords: []string{"giveaway"}},
			item:     models.NormalizedItem{Title: "Story", Content: longBody + " enter our Giveaway today"},
			expected: false,
		},
		{
			name:     "image required and missing",
			rules:    FilterConfig{RequireImage: true},
			item:     models.NormalizedItem{Title: "Story", Content: longBody},
			expected: false,
		},
		{
			name:     "image required and present",
			rules:    FilterConfig{RequireImage: true},
			item:     models.NormalizedItem{Title: "Story", Content: longBody, MediaURL: "https://example.com/img.jpg"},
			expected: true,
		},
		{
			name:     "zero rules admit everything",
			rules:    FilterConfig{},
			item:     models.NormalizedItem{Title: "Tiny"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rules.Include(tt.item); got != tt.expected {
				t.Errorf("Include() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestFilterItemsEmptyResult(t *testing.T) {
	items := []models.NormalizedItem{
		{Title: "A", Content: "short"},
		{Title: "B", Content: "also short"},
	}

	kept := FilterItems(items, FilterConfig{MinWordCount: 50})
	if len(kept) != 0 {
		t.Errorf("Expected all items filtered, got %d", len(kept))
	}
}
