package models

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

// TestTierEntryJSONSerialization verifies tier entries marshal as [name, count] pairs
func TestTierEntryJSONSerialization(t *testing.T) {
	entry := TierEntry{Name: "taylor swift", Count: 7}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Failed to marshal tier entry: %v", err)
	}

	if string(jsonBytes) != `["taylor swift",7]` {
		t.Errorf("Unexpected tier entry JSON: %s", jsonBytes)
	}

	var decoded TierEntry
	if err := json.Unmarshal(jsonBytes, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal tier entry: %v", err)
	}

	if decoded != entry {
		t.Errorf("Round trip mismatch: got %+v, want %+v", decoded, entry)
	}
}

// TestTierEntryLegacyNameOnly verifies bare name strings from older stores decode with a zero count
func TestTierEntryLegacyNameOnly(t *testing.T) {
	var entry TierEntry
	if err := json.Unmarshal([]byte(`"rihanna"`), &entry); err != nil {
		t.Fatalf("Failed to unmarshal legacy name: %v", err)
	}

	if entry.Name != "rihanna" {
		t.Errorf("Expected name 'rihanna', got %q", entry.Name)
	}
	if entry.Count != 0 {
		t.Errorf("Expected zero count for legacy name, got %d", entry.Count)
	}
}

// TestTierEntryRejectsEmptyArray verifies an empty pair is an error, not a silent zero value
func TestTierEntryRejectsEmptyArray(t *testing.T) {
	var entry TierEntry
	if err := json.Unmarshal([]byte(`[]`), &entry); err == nil {
		t.Error("Expected error for empty tier entry array, got nil")
	}
}

// TestNormalizedItemJSONSerialization verifies optional fields are omitted when unset
func TestNormalizedItemJSONSerialization(t *testing.T) {
	item := NormalizedItem{
		ID:          "abc123",
		Title:       "Test headline",
		Link:        "https://example.com/story",
		PublishedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Summary:     "A short summary",
		SourceName:  "example",
	}

	jsonBytes, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Failed to marshal item: %v", err)
	}

	var unmarshaled map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	for _, field := range []string{"drama_score", "is_fallback", "image", "topics", "creator"} {
		if _, exists := unmarshaled[field]; exists {
			t.Errorf("%s field should be omitted when unset", field)
		}
	}

	item.DramaScore = 7.2
	item.IsFallback = true

	jsonBytes, err = json.Marshal(item)
	if err != nil {
		t.Fatalf("Failed to marshal item with score: %v", err)
	}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	if unmarshaled["drama_score"] != 7.2 {
		t.Errorf("Expected drama_score 7.2, got %v", unmarshaled["drama_score"])
	}
}

// TestNewAggregateStoreCanonicalKeys verifies an empty store carries every canonical key
func TestNewAggregateStoreCanonicalKeys(t *testing.T) {
	store := NewAggregateStore()

	jsonBytes, err := json.Marshal(store)
	if err != nil {
		t.Fatalf("Failed to marshal empty store: %v", err)
	}

	var unmarshaled map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	for _, key := range []string{
		"entries", "fallback_entries", "hourly_topics",
		"weekly_popularity", "hot_this_week", "not_this_week", "upcoming_new_names",
	} {
		if _, exists := unmarshaled[key]; !exists {
			t.Errorf("canonical key %q is missing from empty store JSON", key)
		}
	}

	if len(store.HourlyTopics) != 10 {
		t.Errorf("Expected 10 hourly buckets, got %d", len(store.HourlyTopics))
	}
	for i := 1; i <= 10; i++ {
		key := strconv.Itoa(i)
		if _, ok := store.HourlyTopics[key]; !ok {
			t.Errorf("hourly bucket %q missing", key)
		}
	}
}
