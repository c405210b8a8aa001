package trendwire

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/trendwire/models"
	"github.com/zombar/trendwire/sources"
	"github.com/zombar/trendwire/store"
)

// Archiver persists a run's windowed items to long-term storage.
// Archival failures are logged, never fatal.
type Archiver interface {
	SaveItems(ctx context.Context, items []models.NormalizedItem) error
}

// Pipeline wires the full run: fetch every configured source, filter
// and tag the items, discover and promote entities, aggregate into the
// trend store, and persist. All state is instance-owned; a Pipeline
// can be reused across watch-mode ticks or built fresh per run.
type Pipeline struct {
	config     Config
	registry   *sources.Registry
	fetcher    *Fetcher
	aggregator *Aggregator
	extractor  *Extractor
	store      *store.Store
	archive    Archiver
	outputDir  string
	debugLog   string
}

// PipelineOptions carries the optional pipeline collaborators.
type PipelineOptions struct {
	Archive   Archiver // nil disables archival
	OutputDir string   // per-section feed JSON; empty disables
	DebugLog  string   // timestamped run log; empty disables
}

func NewPipeline(config Config, registry *sources.Registry, fetcher *Fetcher, st *store.Store, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		config:     config,
		registry:   registry,
		fetcher:    fetcher,
		aggregator: NewAggregator(config),
		extractor:  NewExtractor(config),
		store:      st,
		archive:    opts.Archive,
		outputDir:  opts.OutputDir,
		debugLog:   opts.DebugLog,
	}
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	SourcesFetched int           `json:"sources_fetched"`
	SourcesFailed  int           `json:"sources_failed"`
	ItemsFetched   int           `json:"items_fetched"`
	ItemsKept      int           `json:"items_kept"`
	EntriesStored  int           `json:"entries_stored"`
	Promoted       []string      `json:"promoted,omitempty"`
	Failures       []FetchError  `json:"-"`
}

// Run executes one full ingest and aggregation cycle. Per-source
// failures are isolated; persistence failures are fatal and returned.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	ctx, span := otel.Tracer("trendwire").Start(ctx, "pipeline.run")
	defer span.End()

	start := time.Now()
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: start,
	}
	span.SetAttributes(attribute.String("run.id", report.RunID))

	prev, err := p.store.Load()
	if err != nil {
		return report, fmt.Errorf("loading aggregate store: %w", err)
	}
	entityNames, err := p.store.LoadRegistry()
	if err != nil {
		return report, fmt.Errorf("loading entity registry: %w", err)
	}

	srcs := p.registry.Flatten()
	feeds, failures := p.fetcher.FetchAll(ctx, srcs)
	report.SourcesFetched = len(feeds)
	report.SourcesFailed = len(failures)
	report.Failures = failures

	items := p.collectItems(srcs, feeds)
	report.ItemsFetched = len(items)

	kept := FilterItems(items, p.config.Filters)
	report.ItemsKept = len(kept)
	p.tagTopics(kept)

	now := time.Now()
	entries := p.aggregator.WindowEntries(prev.Entries, kept, now)

	candidates := p.extractor.DiscoverCandidates(entries, entityNames)
	entityNames, promoted := p.extractor.Promote(entityNames, candidates)
	report.Promoted = promoted

	p.aggregator.Aggregate(prev, entries, entityNames, now)
	report.EntriesStored = len(prev.Entries)

	if err := p.store.Save(prev); err != nil {
		return report, fmt.Errorf("saving aggregate store: %w", err)
	}
	if len(promoted) > 0 {
		if err := p.store.SaveRegistry(entityNames); err != nil {
			return report, fmt.Errorf("saving entity registry: %w", err)
		}
	}

	if p.outputDir != "" {
		if err := p.writeSectionFeeds(entries); err != nil {
			return report, fmt.Errorf("writing section feeds: %w", err)
		}
	}
	if p.archive != nil {
		if err := p.archive.SaveItems(ctx, entries); err != nil {
			log.Printf("Warning: archiving items failed: %v", err)
		}
	}

	report.Duration = time.Since(start)
	runDuration.Observe(report.Duration.Seconds())
	p.logRun(report)
	return report, nil
}

// collectItems flattens feed results into one batch, stamping each
// item with the section its source belongs to. Sources are keyed by
// URL; display names may repeat across sections.
func (p *Pipeline) collectItems(srcs []models.Source, feeds []*models.FeedResult) []models.NormalizedItem {
	categoryBySource := make(map[string]string, len(srcs))
	for _, src := range srcs {
		categoryBySource[src.URL] = src.Category
	}

	var items []models.NormalizedItem
	for _, feed := range feeds {
		section, _, ok := p.registry.SectionFor(categoryBySource[feed.SourceURL])
		for _, item := range feed.Items {
			if ok {
				item.SectionCategory = section
			}
			items = append(items, item)
		}
		if len(feed.Items) == 0 {
			log.Printf("Source %s processed with zero items", feed.SourceName)
		}
	}
	return items
}

// tagTopics applies per-section topic patterns to items from
// topic-mode sections.
func (p *Pipeline) tagTopics(items []models.NormalizedItem) {
	bySection := make(map[string][]int)
	for i, item := range items {
		bySection[item.SectionCategory] = append(bySection[item.SectionCategory], i)
	}

	for name, indices := range bySection {
		section, ok := p.registry.Sections[name]
		if !ok || section.Mode != sources.ModeTopics || len(section.Topics) == 0 {
			continue
		}
		batch := make([]models.NormalizedItem, len(indices))
		for j, i := range indices {
			batch[j] = items[i]
		}
		TagTopics(batch, section.Topics)
		for j, i := range indices {
			items[i] = batch[j]
		}
	}
}

// writeSectionFeeds emits one processed-feed JSON file per section,
// the alternative content source the renderer reads.
func (p *Pipeline) writeSectionFeeds(entries []models.NormalizedItem) error {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return err
	}

	bySection := make(map[string][]models.NormalizedItem)
	for _, item := range entries {
		if item.SectionCategory == "" {
			continue
		}
		bySection[item.SectionCategory] = append(bySection[item.SectionCategory], item)
	}

	for _, name := range p.registry.SectionNames() {
		payload := struct {
			Section   string                  `json:"section"`
			UpdatedAt time.Time               `json:"updated_at"`
			Items     []models.NormalizedItem `json:"items"`
		}{
			Section:   name,
			UpdatedAt: time.Now().UTC(),
			Items:     bySection[name],
		}
		if payload.Items == nil {
			payload.Items = []models.NormalizedItem{}
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		path := filepath.Join(p.outputDir, name+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// logRun appends a timestamped summary line to the debug log when one
// is configured.
func (p *Pipeline) logRun(report *RunReport) {
	line := fmt.Sprintf("[%s] run=%s sources=%d failed=%d fetched=%d kept=%d stored=%d promoted=%d duration=%s\n",
		report.StartedAt.UTC().Format(time.RFC3339),
		report.RunID,
		report.SourcesFetched,
		report.SourcesFailed,
		report.ItemsFetched,
		report.ItemsKept,
		report.EntriesStored,
		len(report.Promoted),
		report.Duration.Round(time.Millisecond))
	log.Print(line)

	if p.debugLog == "" {
		return
	}
	f, err := os.OpenFile(p.debugLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("Warning: opening debug log: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		log.Printf("Warning: writing debug log: %v", err)
	}
}
