// Trace inspector: browse the derived aircraft points of a trace document.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fleray/Flight-Simulator/pkg/config"
	"github.com/fleray/Flight-Simulator/pkg/trace"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	icao := flag.String("icao", "", "Load the trace of this aircraft from the configured source")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("trace-inspect version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	doc, err := loadDocument(context.Background(), cfg, flag.Arg(0), *icao)
	if err != nil {
		log.Fatalf("Failed to load trace: %v", err)
	}

	app := NewApp(doc, cfg.Playback.Interpolator())
	if err := app.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// loadDocument reads the trace named on the command line: a file path, an
// aircraft from the configured source, or the bundled sample.
func loadDocument(ctx context.Context, cfg *config.Config, path, icao string) (*trace.Document, error) {
	switch {
	case path != "":
		return trace.ReadFile(path)
	case icao != "":
		return newSource(cfg).Fetch(ctx, icao)
	default:
		return trace.Sample(), nil
	}
}

// newSource returns the HTTP archive when a base URL is configured and the
// local trace directory otherwise.
func newSource(cfg *config.Config) trace.Source {
	if cfg.Source.BaseURL == "" {
		return trace.FileSource{Dir: cfg.Source.Dir}
	}
	retry := trace.DefaultRetryConfig()
	retry.MaxRetries = cfg.Source.MaxRetries
	return trace.NewHTTPSource(trace.HTTPConfig{
		BaseURL:           cfg.Source.BaseURL,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Timeout:           cfg.Source.Timeout(),
		Retry:             retry,
	})
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("trace-inspect - Browse the derived points of a flight trace")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  trace-inspect [options] [trace.json]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("KEYBOARD SHORTCUTS:")
	fmt.Println("    ↑/↓            Select point")
	fmt.Println("    t or /         Interpolate at a timestamp")
	fmt.Println("    b              Toggle bearing interpolation mode")
	fmt.Println("    q or ESC       Quit")
}
