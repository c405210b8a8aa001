package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/zombar/trendwire"
	"github.com/zombar/trendwire/cache"
	"github.com/zombar/trendwire/db"
	"github.com/zombar/trendwire/sources"
	"github.com/zombar/trendwire/store"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("trendwire initializing", "version", "1.0.0")

	// Default values
	defaultSourcesPath := getEnv("SOURCES_PATH", "./sources.yaml")
	defaultDataPath := getEnv("DATA_PATH", "./data/gossip_data.json")
	defaultRegistryPath := getEnv("REGISTRY_PATH", "./data/entities.txt")
	defaultCachePath := getEnv("CACHE_PATH", "./data/cache")
	defaultOutputDir := getEnv("OUTPUT_DIR", "./data/feeds")
	defaultDebugLog := getEnv("DEBUG_LOG", "")
	defaultCacheTTL := getEnv("CACHE_TTL_SECONDS", "1800")
	defaultMetricsPort := getEnv("METRICS_PORT", "9090")

	cacheTTL, err := strconv.Atoi(defaultCacheTTL)
	if err != nil || cacheTTL <= 0 {
		logger.Warn("invalid CACHE_TTL_SECONDS value, using default",
			"provided", defaultCacheTTL,
			"default", 1800,
		)
		cacheTTL = 1800
	}

	// Command-line flags (override environment variables)
	sourcesPath := flag.String("sources", defaultSourcesPath, "Source registry YAML path")
	dataPath := flag.String("data", defaultDataPath, "Aggregate store JSON path")
	registryPath := flag.String("registry", defaultRegistryPath, "Entity registry path")
	cachePath := flag.String("cache", defaultCachePath, "Feed cache directory")
	outputDir := flag.String("output", defaultOutputDir, "Per-section feed output directory")
	debugLog := flag.String("debug-log", defaultDebugLog, "Debug log path (empty disables)")
	watch := flag.Bool("watch", false, "Run on a schedule instead of once")
	watchSchedule := flag.String("schedule", "*/30 * * * *", "Cron schedule for watch mode")
	flag.Parse()

	config := trendwire.DefaultConfig()
	config.CacheTTL = time.Duration(cacheTTL) * time.Second

	registry, err := sources.Load(*sourcesPath)
	if err != nil {
		logger.Error("failed to load source registry", "path", *sourcesPath, "error", err)
		os.Exit(1)
	}
	logger.Info("source registry loaded",
		"path", *sourcesPath,
		"sections", len(registry.Sections),
		"sources", len(registry.Flatten()),
	)

	blobs, err := buildCache(logger, *cachePath)
	if err != nil {
		logger.Error("failed to initialize feed cache", "error", err)
		os.Exit(1)
	}

	parser := trendwire.NewFeedParser(config)
	fetcher := trendwire.NewFetcher(config, blobs, parser)
	st := store.New(*dataPath, *registryPath)

	opts := trendwire.PipelineOptions{
		OutputDir: *outputDir,
		DebugLog:  *debugLog,
	}

	// Optional PostgreSQL archive
	if dbHost := getEnv("DB_HOST", ""); dbHost != "" {
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "trendwire")
		dbPassword := getEnv("DB_PASSWORD", "trendwire_dev_pass")
		dbName := getEnv("DB_NAME", "trendwire")

		archive, err := db.New(db.Config{
			DSN: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort, dbUser, dbPassword, dbName),
		})
		if err != nil {
			logger.Error("failed to connect to archive database", "host", dbHost, "error", err)
			os.Exit(1)
		}
		defer archive.Close()
		opts.Archive = archive
		logger.Info("using PostgreSQL archive", "host", dbHost, "port", dbPort, "database", dbName)
	}

	pipeline := trendwire.NewPipeline(config, registry, fetcher, st, opts)

	if !*watch {
		report, err := pipeline.Run(context.Background())
		if err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		logger.Info("run complete",
			"run_id", report.RunID,
			"sources_fetched", report.SourcesFetched,
			"sources_failed", report.SourcesFailed,
			"items_kept", report.ItemsKept,
			"entries_stored", report.EntriesStored,
			"promoted", len(report.Promoted),
			"duration", report.Duration.String(),
		)
		return
	}

	// Watch mode: run on a cron schedule with a metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + defaultMetricsPort
		logger.Info("metrics endpoint starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint error", "error", err)
		}
	}()

	scheduler := cron.New()
	runOnce := func() {
		report, err := pipeline.Run(context.Background())
		if err != nil {
			logger.Error("scheduled run failed", "error", err)
			return
		}
		logger.Info("scheduled run complete",
			"run_id", report.RunID,
			"sources_fetched", report.SourcesFetched,
			"sources_failed", report.SourcesFailed,
			"items_kept", report.ItemsKept,
			"entries_stored", report.EntriesStored,
			"promoted", len(report.Promoted),
			"duration", report.Duration.String(),
		)
	}
	if _, err := scheduler.AddFunc(*watchSchedule, runOnce); err != nil {
		logger.Error("invalid watch schedule", "schedule", *watchSchedule, "error", err)
		os.Exit(1)
	}

	logger.Info("watch mode starting", "schedule", *watchSchedule)
	runOnce()
	scheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	ctx := scheduler.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timed out waiting for running job")
	}
	logger.Info("stopped")
}

// buildCache selects the feed cache backend: S3-compatible object
// storage when S3_BUCKET is set, local gzip blobs otherwise.
func buildCache(logger *slog.Logger, basePath string) (cache.Store, error) {
	bucket := getEnv("S3_BUCKET", "")
	if bucket == "" {
		logger.Info("using local feed cache", "path", basePath)
		local, err := cache.NewLocal(cache.Config{BasePath: basePath})
		if err != nil {
			return nil, err
		}
		return local, nil
	}

	s3Config := cache.S3Config{
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		Region:          getEnv("S3_REGION", "us-east-1"),
		Bucket:          bucket,
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "true") == "true",
		Prefix:          getEnv("S3_PREFIX", "feeds"),
	}
	logger.Info("using S3 feed cache", "bucket", bucket, "endpoint", s3Config.Endpoint)
	s3, err := cache.NewS3(context.Background(), s3Config)
	if err != nil {
		return nil, err
	}
	return s3, nil
}
