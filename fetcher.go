package trendwire

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zombar/trendwire/cache"
	"github.com/zombar/trendwire/models"
)

const (
	userAgent    = "trendwire feed fetcher/1.0"
	acceptHeader = "application/rss+xml, application/xml, application/atom+xml"
)

// Parser turns a raw feed document into normalized items. The fetcher
// only invokes it on fresh 2xx responses; cache hits and 304s return
// previously parsed items.
type Parser interface {
	Parse(r io.Reader, source models.Source) ([]models.NormalizedItem, error)
}

// cacheEntry is the persisted per-source cache record. The HTTP
// validators live here rather than in process-global maps, so a fresh
// Fetcher still sends conditional headers across runs.
type cacheEntry struct {
	Timestamp    time.Time          `json:"timestamp"`
	ETag         string             `json:"etag,omitempty"`
	LastModified string             `json:"last_modified,omitempty"`
	Feed         *models.FeedResult `json:"feed"`
}

// Fetcher retrieves feed documents with conditional-request caching.
// All state is owned by the instance; constructing a new Fetcher per
// run starts clean.
type Fetcher struct {
	config     Config
	httpClient *http.Client
	blobs      cache.Store
	parser     Parser
}

// NewFetcher creates a Fetcher. The HTTP transport is wrapped with
// otelhttp so fetch spans propagate to upstream traces.
func NewFetcher(config Config, blobs cache.Store, parser Parser) *Fetcher {
	return &Fetcher{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.HTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		blobs:  blobs,
		parser: parser,
	}
}

// Fetch retrieves one source. A fresh-enough cache entry short-circuits
// without network I/O; an expired entry turns into a conditional GET
// whose 304 re-stamps the cached feed. Fresh 2xx responses are parsed,
// cached, and returned. Failures after bounded retry surface as
// NetworkError; malformed documents as ParseError.
func (f *Fetcher) Fetch(ctx context.Context, source models.Source) (*models.FeedResult, error) {
	key := cacheKey(source.URL)
	entry := f.loadCache(key)

	now := time.Now()
	if entry != nil && now.Sub(entry.Timestamp) <= f.config.CacheTTL {
		fetchesTotal.WithLabelValues("cache_hit").Inc()
		entry.Feed.FromCache = true
		return entry.Feed, nil
	}

	resp, err := f.doWithRetry(ctx, source, entry)
	if err != nil {
		fetchesTotal.WithLabelValues("error").Inc()
		return nil, &NetworkError{URL: source.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if entry == nil {
			// A 304 with no cached payload is unusable.
			fetchesTotal.WithLabelValues("error").Inc()
			return nil, &NetworkError{URL: source.URL, Err: fmt.Errorf("304 Not Modified with no cached feed")}
		}
		fetchesTotal.WithLabelValues("not_modified").Inc()
		entry.Timestamp = now
		f.saveCache(key, entry)
		entry.Feed.FromCache = true
		return entry.Feed, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchesTotal.WithLabelValues("error").Inc()
		return nil, &NetworkError{URL: source.URL, Err: fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxFeedBytes))
	if err != nil {
		fetchesTotal.WithLabelValues("error").Inc()
		return nil, &NetworkError{URL: source.URL, Err: fmt.Errorf("reading body: %w", err)}
	}

	items, err := f.parser.Parse(bytes.NewReader(body), source)
	if err != nil {
		fetchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	feed := &models.FeedResult{
		SourceName:  source.Name,
		SourceURL:   source.URL,
		Items:       items,
		LastFetched: now,
	}

	f.saveCache(key, &cacheEntry{
		Timestamp:    now,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Feed:         feed,
	})

	fetchesTotal.WithLabelValues("success").Inc()
	return feed, nil
}

// doWithRetry issues the conditional GET with bounded retry and
// jittered exponential backoff. Only transport failures and 5xx
// responses are retried; 304 and 4xx are final answers.
func (f *Fetcher) doWithRetry(ctx context.Context, source models.Source, entry *cacheEntry) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", acceptHeader)
		if entry != nil {
			if entry.ETag != "" {
				req.Header.Set("If-None-Match", entry.ETag)
			}
			if entry.LastModified != "" {
				req.Header.Set("If-Modified-Since", entry.LastModified)
			}
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// FetchError records one source's failure during a batch fetch.
type FetchError struct {
	Source models.Source
	Err    error
}

// FetchAll fans out across sources in fixed-size chunks. Each source
// settles independently: successes are collected, failures reported,
// and a slow or failing source never blocks the rest of the batch.
func (f *Fetcher) FetchAll(ctx context.Context, srcs []models.Source) ([]*models.FeedResult, []FetchError) {
	var feeds []*models.FeedResult
	var failures []FetchError

	size := f.config.MaxConcurrent
	if size <= 0 {
		size = 1
	}

	type settled struct {
		feed *models.FeedResult
		fail *FetchError
	}

	for start := 0; start < len(srcs); start += size {
		end := start + size
		if end > len(srcs) {
			end = len(srcs)
		}
		chunk := srcs[start:end]

		results := make(chan settled, len(chunk))
		for _, src := range chunk {
			go func(src models.Source) {
				feed, err := f.Fetch(ctx, src)
				if err != nil {
					results <- settled{fail: &FetchError{Source: src, Err: err}}
					return
				}
				results <- settled{feed: feed}
			}(src)
		}

		for range chunk {
			r := <-results
			if r.fail != nil {
				log.Printf("Fetch failed for %s: %v", r.fail.Source.URL, r.fail.Err)
				failures = append(failures, *r.fail)
				continue
			}
			feeds = append(feeds, r.feed)
		}
	}

	return feeds, failures
}

// Reset drops the cached entry for a source URL
func (f *Fetcher) Reset(sourceURL string) error {
	return f.blobs.Delete(cacheKey(sourceURL))
}

func (f *Fetcher) loadCache(key string) *cacheEntry {
	data, err := f.blobs.Get(key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Printf("Warning: cache read failed for %s, treating as miss: %v", key, err)
			cacheErrorsTotal.Inc()
		}
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("Warning: corrupt cache entry %s, treating as miss: %v", key, err)
		cacheErrorsTotal.Inc()
		return nil
	}
	if entry.Feed == nil {
		return nil
	}
	return &entry
}

func (f *Fetcher) saveCache(key string, entry *cacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Warning: failed to marshal cache entry %s: %v", key, err)
		cacheErrorsTotal.Inc()
		return
	}
	if err := f.blobs.Put(key, data); err != nil {
		log.Printf("Warning: cache write failed for %s: %v", key, err)
		cacheErrorsTotal.Inc()
	}
}

// cacheKey returns the stable per-source cache key: md5 of the URL
func cacheKey(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func backoff(attempt int) time.Duration {
	base := 500 * time.Millisecond << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
	return base + jitter
}
