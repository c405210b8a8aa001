package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/zombar/trendwire/models"
)

// setupTestDB connects to the database named by TRENDWIRE_TEST_DSN,
// skipping the test when no database is available
func setupTestDB(t *testing.T) *Archive {
	t.Helper()

	dsn := os.Getenv("TRENDWIRE_TEST_DSN")
	if dsn == "" {
		t.Skip("TRENDWIRE_TEST_DSN not set, skipping database integration test")
	}

	archive, err := New(Config{DSN: dsn})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		archive.conn.Exec("DELETE FROM feed_items")
		archive.Close()
	})
	return archive
}

func TestSaveItemsUpsert(t *testing.T) {
	archive := setupTestDB(t)
	ctx := context.Background()

	item := models.NormalizedItem{
		ID:          "upsert-test",
		Title:       "Original Title",
		Link:        "https://example.com/story",
		PublishedAt: time.Now().UTC().Truncate(time.Second),
		SourceName:  "Example Feed",
	}

	if err := archive.SaveItems(ctx, []models.NormalizedItem{item}); err != nil {
		t.Fatalf("Failed to save item: %v", err)
	}

	item.Title = "Updated Title"
	if err := archive.SaveItems(ctx, []models.NormalizedItem{item}); err != nil {
		t.Fatalf("Failed to re-save item: %v", err)
	}

	count, err := archive.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count items: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 item after upsert, got %d", count)
	}

	recent, err := archive.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to query recent items: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 recent item, got %d", len(recent))
	}
	if recent[0].Title != "Updated Title" {
		t.Errorf("Expected updated title, got %q", recent[0].Title)
	}
}

func TestSaveItemsEmptyBatch(t *testing.T) {
	archive := setupTestDB(t)

	if err := archive.SaveItems(context.Background(), nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got error: %v", err)
	}
}

func TestRecentOrdering(t *testing.T) {
	archive := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	items := []models.NormalizedItem{
		{ID: "older", Link: "https://example.com/a", PublishedAt: now.Add(-2 * time.Hour), SourceName: "Feed"},
		{ID: "newer", Link: "https://example.com/b", PublishedAt: now, SourceName: "Feed"},
	}
	if err := archive.SaveItems(ctx, items); err != nil {
		t.Fatalf("Failed to save items: %v", err)
	}

	recent, err := archive.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to query recent items: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(recent))
	}
	if recent[0].ID != "newer" {
		t.Errorf("Expected newest item first, got %q", recent[0].ID)
	}
}
