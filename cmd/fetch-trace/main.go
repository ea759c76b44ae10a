package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fleray/Flight-Simulator/pkg/config"
	"github.com/fleray/Flight-Simulator/pkg/trace"
	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// fetch-trace downloads stored trace documents from the configured archive
// and writes them to the local trace directory as {icao}.json.
//
// Requests are rate limited and retried with exponential backoff; a 429
// response's Retry-After header is honoured.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	baseURL := flag.String("base", "", "Archive base URL (overrides source.base_url)")
	outDir := flag.String("out", "", "Output directory (default: source.dir)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: fetch-trace [-config file] [-base url] [-out dir] ICAO...")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *baseURL != "" {
		cfg.Source.BaseURL = *baseURL
	}
	if *outDir == "" {
		*outDir = cfg.Source.Dir
	}
	if cfg.Source.BaseURL == "" {
		log.Fatal("No archive configured. Set 'source.base_url', FLIGHTSIM_TRACE_BASE_URL or -base")
	}

	retry := trace.DefaultRetryConfig()
	retry.MaxRetries = cfg.Source.MaxRetries
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Printf("⚠️  Attempt %d failed: %v (retry in %v)", attempt, err, delay)
	}
	source := trace.NewHTTPSource(trace.HTTPConfig{
		BaseURL:           cfg.Source.BaseURL,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Timeout:           cfg.Source.Timeout(),
		Retry:             retry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("===========================================")
	log.Println("  Trace Fetcher")
	log.Println("===========================================")
	log.Printf("Archive:    %s\n", cfg.Source.BaseURL)
	log.Printf("Rate limit: %.1f requests/second\n", cfg.Source.RequestsPerSecond)
	log.Printf("Output:     %s\n", *outDir)
	log.Println("===========================================")

	failed := 0
	for _, icao := range flag.Args() {
		path, err := fetchOne(ctx, source, icao, *outDir)
		if errors.Is(err, context.Canceled) {
			log.Println("Interrupted")
			break
		}
		if err != nil {
			log.Printf("✗ %s: %v", icao, err)
			failed++
			continue
		}
		log.Printf("✓ %s → %s", icao, path)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// fetchOne downloads the trace of icao and writes it under dir.
func fetchOne(ctx context.Context, source trace.Source, icao, dir string) (string, error) {
	doc, err := source.Fetch(ctx, icao)
	if err != nil {
		return "", err
	}

	tr := trajectory.Build(doc)
	log.Printf("  %s: %d points over %.0fs", icao, tr.Len(), tr.Duration())
	if err := trajectory.CheckOrder(tr); err != nil {
		log.Printf("  ⚠️  %v", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode trace: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, strings.ToLower(icao)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write trace file: %w", err)
	}
	return path, nil
}
