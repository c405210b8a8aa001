// Package store persists the cumulative trend store and the entity
// registry between runs. The store is a single JSON document replaced
// wholesale each cycle; the registry is a newline-delimited list of
// lowercase entity names.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zombar/trendwire/models"
	"github.com/zombar/trendwire/slug"
)

// Store reads and writes the aggregate data file and the entity registry
type Store struct {
	dataPath     string
	registryPath string
}

// New creates a Store for the given data and registry file paths
func New(dataPath, registryPath string) *Store {
	return &Store{
		dataPath:     dataPath,
		registryPath: registryPath,
	}
}

// Load reads the aggregate store. A missing file is a first run and
// yields the default-empty structure with all canonical keys; a
// malformed file is an error the caller must treat as fatal, because
// silently resetting accumulated trend data is worse than failing loud.
func (s *Store) Load() (*models.AggregateStore, error) {
	data, err := os.ReadFile(s.dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("No aggregate store at %s, starting from empty", s.dataPath)
			return models.NewAggregateStore(), nil
		}
		return nil, fmt.Errorf("failed to read aggregate store %s: %w", s.dataPath, err)
	}

	var store models.AggregateStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("malformed aggregate store %s: %w", s.dataPath, err)
	}

	normalize(&store)
	log.Printf("Loaded aggregate store: %d entries, %d fallback entries (%.2fMB)",
		len(store.Entries), len(store.FallbackEntries), float64(len(data))/1024/1024)
	return &store, nil
}

// Save writes the full aggregate store as pretty-printed UTF-8 JSON.
// The write replaces the whole file; there are no partial writes.
func (s *Store) Save(store *models.AggregateStore) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.dataPath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(s.dataPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write aggregate store %s: %w", s.dataPath, err)
	}

	log.Printf("Saved aggregate store: %d entries, %.2fMB", len(store.Entries), float64(len(data))/1024/1024)
	return nil
}

// LoadRegistry reads the entity registry. A missing file is created
// empty rather than treated as an error. Names are lowercased and
// blank lines dropped.
func (s *Store) LoadRegistry() ([]string, error) {
	data, err := os.ReadFile(s.registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(s.registryPath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create registry directory: %w", err)
			}
			if err := os.WriteFile(s.registryPath, nil, 0644); err != nil {
				return nil, fmt.Errorf("failed to create registry %s: %w", s.registryPath, err)
			}
			log.Printf("Created empty entity registry at %s", s.registryPath)
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read registry %s: %w", s.registryPath, err)
	}

	var names []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		name := slug.Normalize(line)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	log.Printf("Loaded %d entities from registry", len(names))
	return names, nil
}

// SaveRegistry writes the registry sorted, one name per line with a
// trailing newline.
func (s *Store) SaveRegistry(names []string) error {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	var b strings.Builder
	for _, name := range sorted {
		b.WriteString(name)
		b.WriteString("\n")
	}

	if err := os.WriteFile(s.registryPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write registry %s: %w", s.registryPath, err)
	}
	return nil
}

// normalize fills canonical keys that older or hand-edited stores omit
func normalize(store *models.AggregateStore) {
	if store.Entries == nil {
		store.Entries = []models.NormalizedItem{}
	}
	if store.FallbackEntries == nil {
		store.FallbackEntries = []models.NormalizedItem{}
	}
	if store.HourlyTopics == nil {
		store.HourlyTopics = models.NewAggregateStore().HourlyTopics
	}
	if store.WeeklyPopularity == nil {
		store.WeeklyPopularity = []models.TierEntry{}
	}
	if store.HotThisWeek == nil {
		store.HotThisWeek = []models.TierEntry{}
	}
	if store.NotThisWeek == nil {
		store.NotThisWeek = []models.TierEntry{}
	}
	if store.UpcomingNewNames == nil {
		store.UpcomingNewNames = []models.TierEntry{}
	}
}
