package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Verbose))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Bool("images", cfg.DownloadImages),
		slog.String("output", cfg.OutputFile),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)

	result, err := s.Run(ctx)
	shutdownMetricsServer(metricsServer)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := pipeline.Export(cfg.OutputFormat, cfg.OutputFile, result.State.Records); err != nil {
		slog.Error("export failed", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(result, cfg.OutputFile)
}

// loadConfig resolves settings from defaults, the optional YAML file, the
// environment and finally any flags given explicitly in args.
func loadConfig(args []string) (*config.Config, error) {
	defaults := config.DefaultConfig()

	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	configFile := fs.String("config", "", "YAML config file")
	baseURL := fs.String("base-url", defaults.BaseURL, "Category URL to crawl")
	maxPages := fs.Int("pages", defaults.MaxPages, "Maximum listing pages to fetch (0 = follow until exhausted)")
	timeout := fs.Duration("timeout", defaults.Timeout, "Per-request timeout (0 = none)")
	sameHost := fs.Bool("same-host", defaults.SameHostOnly, "Only follow next-page links on the base URL's host")
	imagesDir := fs.String("images-dir", defaults.ImagesDir, "Directory for downloaded product images")
	noImages := fs.Bool("no-images", false, "Skip image downloads")
	outputFile := fs.String("output", defaults.OutputFile, "Output file path")
	outputFormat := fs.String("format", defaults.OutputFormat, "Output format: csv, json, or dual")
	metricsAddr := fs.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := fs.Bool("v", defaults.Verbose, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		if err := config.LoadFile(*configFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = *baseURL
		case "pages":
			cfg.MaxPages = *maxPages
		case "timeout":
			cfg.Timeout = *timeout
		case "same-host":
			cfg.SameHostOnly = *sameHost
		case "images-dir":
			cfg.ImagesDir = *imagesDir
		case "no-images":
			cfg.DownloadImages = !*noImages
		case "output":
			cfg.OutputFile = *outputFile
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	return cfg, nil
}

func printSummary(result *models.CrawlResult, outputFile string) {
	duration := result.EndTime.Sub(result.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.State.Counter) / duration.Seconds()
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")
	fmt.Printf("  Stop reason:   %s\n", result.StopReason)
	fmt.Printf("  Pages:         %d\n", result.State.Pages)
	fmt.Printf("  Total items:   %d\n", result.State.Counter)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Images saved:  %d\n", result.ImagesSaved)
	fmt.Printf("  Images skipped: %d\n", result.ImagesSkipped)
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
