package trendwire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zombar/trendwire/cache"
	"github.com/zombar/trendwire/models"
	"github.com/zombar/trendwire/sources"
	"github.com/zombar/trendwire/store"
)

func pipelineFeed(entity string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Wire</title>
<item>
	<title>%[1]s steals the spotlight</title>
	<link>https://example.com/%[1]s-1</link>
	<pubDate>%[2]s</pubDate>
	<description>Another big night out for the star with plenty of gossip to go around town.</description>
</item>
<item>
	<title>%[1]s seen again downtown</title>
	<link>https://example.com/%[1]s-2</link>
	<pubDate>%[2]s</pubDate>
	<description>Witnesses report a second sighting and the rumor mill keeps on turning today.</description>
</item>
<item>
	<title>%[1]s breaks the internet</title>
	<link>https://example.com/%[1]s-3</link>
	<pubDate>%[2]s</pubDate>
	<description>A third story in one day means the internet simply cannot look away now.</description>
</item>
</channel></rss>`, entity, time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z))
}

func TestPipelineRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pipelineFeed("Vera Moss")))
	}))
	defer server.Close()

	registryYAML := fmt.Sprintf(`sections:
  celebrities:
    title: Celebrities
    mode: entities
    primary:
      - url: %s
        name: Wire
`, server.URL)
	registry, err := sources.Parse([]byte(registryYAML))
	if err != nil {
		t.Fatalf("Failed to parse source registry: %v", err)
	}

	dir := t.TempDir()
	blobs, err := cache.NewLocal(cache.Config{BasePath: filepath.Join(dir, "cache")})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	config := DefaultConfig()
	parser := NewFeedParser(config)
	fetcher := NewFetcher(config, blobs, parser)
	st := store.New(filepath.Join(dir, "gossip_data.json"), filepath.Join(dir, "entities.txt"))

	pipeline := NewPipeline(config, registry, fetcher, st, PipelineOptions{
		OutputDir: filepath.Join(dir, "feeds"),
	})

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.SourcesFetched != 1 {
		t.Errorf("Expected 1 source fetched, got %d", report.SourcesFetched)
	}
	if report.SourcesFailed != 0 {
		t.Errorf("Expected no failures, got %d", report.SourcesFailed)
	}
	if report.EntriesStored != 3 {
		t.Errorf("Expected 3 entries stored, got %d", report.EntriesStored)
	}

	// Vera Moss appears in three titles, meeting the promotion threshold
	found := false
	for _, name := range report.Promoted {
		if name == "vera moss" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected vera moss promoted, got %v", report.Promoted)
	}

	// The aggregate store and registry survive a reload
	reloaded, err := st.Load()
	if err != nil {
		t.Fatalf("Failed to reload store: %v", err)
	}
	if len(reloaded.Entries) != 3 {
		t.Errorf("Expected 3 persisted entries, got %d", len(reloaded.Entries))
	}
	if len(reloaded.FallbackEntries) == 0 {
		t.Error("Expected entity mentions to seed fallback entries")
	}
	names, err := st.LoadRegistry()
	if err != nil {
		t.Fatalf("Failed to reload entity registry: %v", err)
	}
	if len(names) != 1 || names[0] != "vera moss" {
		t.Errorf("Expected persisted registry [vera moss], got %v", names)
	}

	// Per-section processed feed written
	sectionPath := filepath.Join(dir, "feeds", "celebrities.json")
	if _, err := os.Stat(sectionPath); err != nil {
		t.Errorf("Expected section feed at %s: %v", sectionPath, err)
	}
}

func TestCollectItemsKeysSourcesByURL(t *testing.T) {
	registryYAML := `sections:
  celebrities:
    title: Celebrities
    mode: entities
    primary:
      - url: https://a.example.com/rss
        name: Wire
  trending:
    title: Trending
    mode: entities
    primary:
      - url: https://b.example.com/rss
        name: Wire
`
	registry, err := sources.Parse([]byte(registryYAML))
	if err != nil {
		t.Fatalf("Failed to parse source registry: %v", err)
	}

	pipeline := NewPipeline(DefaultConfig(), registry, nil, nil, PipelineOptions{})
	srcs := registry.Flatten()

	feeds := []*models.FeedResult{
		{SourceName: "Wire", SourceURL: "https://a.example.com/rss", Items: []models.NormalizedItem{{ID: "a"}}},
		{SourceName: "Wire", SourceURL: "https://b.example.com/rss", Items: []models.NormalizedItem{{ID: "b"}}},
	}

	items := pipeline.collectItems(srcs, feeds)
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	bySection := make(map[string]string)
	for _, item := range items {
		bySection[item.ID] = item.SectionCategory
	}
	if bySection["a"] != "celebrities" {
		t.Errorf("Expected item a in celebrities, got %q", bySection["a"])
	}
	if bySection["b"] != "trending" {
		t.Errorf("Expected item b in trending despite the shared source name, got %q", bySection["b"])
	}
}

func TestPipelineRunSourceFailureIsNotFatal(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer bad.Close()

	registryYAML := fmt.Sprintf(`sections:
  celebrities:
    title: Celebrities
    mode: entities
    primary:
      - url: %s
        name: Down
`, bad.URL)
	registry, err := sources.Parse([]byte(registryYAML))
	if err != nil {
		t.Fatalf("Failed to parse source registry: %v", err)
	}

	dir := t.TempDir()
	blobs, err := cache.NewLocal(cache.Config{BasePath: filepath.Join(dir, "cache")})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	config := DefaultConfig()
	config.MaxRetries = 0
	fetcher := NewFetcher(config, blobs, NewFeedParser(config))
	st := store.New(filepath.Join(dir, "gossip_data.json"), filepath.Join(dir, "entities.txt"))

	pipeline := NewPipeline(config, registry, fetcher, st, PipelineOptions{})

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected per-source failure to be isolated, got %v", err)
	}
	if report.SourcesFailed != 1 {
		t.Errorf("Expected 1 failed source, got %d", report.SourcesFailed)
	}
	if report.EntriesStored != 0 {
		t.Errorf("Expected no entries, got %d", report.EntriesStored)
	}
}
