package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/harvest"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/observe"
	"github.com/aluiziolira/go-scrape-reviews/parser"
	"github.com/aluiziolira/go-scrape-reviews/pipeline"
	"github.com/aluiziolira/go-scrape-reviews/render"
	"github.com/aluiziolira/go-scrape-reviews/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, locator, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := parser.ResolveTarget(locator); err != nil {
		slog.Error("invalid product URL", slog.String("url", locator), slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	harvestDone := make(chan struct{})
	go watchShutdown(ctx, harvestDone, func() {
		slog.Info("shutdown signal received, keeping records collected so far")
	})

	metrics := observe.NewMetrics()
	metrics.Classify = scraper.ErrorTypeLabel
	observer := observe.Multi(observe.NewLogObserver(logger), metrics)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	crawler, err := scraper.NewCrawler(cfg, observer)
	if err != nil {
		slog.Error("initialising crawler", slog.Any("error", err))
		os.Exit(1)
	}
	var extractor harvest.Extractor
	if cfg.RenderEnabled {
		extractor = render.NewExtractor(render.NewRodRenderer(cfg), render.OptionsFromConfig(cfg), observer)
	}
	h := harvest.New(extractor, crawler, observer)
	h.Parallel = cfg.Parallel

	result, err := h.Harvest(ctx, locator, cfg.MaxReviews)
	close(harvestDone)
	if err != nil {
		slog.Error("harvest failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Output is written with a fresh context so an interrupt still saves
	// what was collected.
	writeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	renderedPath, err := writeDataset(writeCtx, cfg, cfg.RenderedPath(), models.SourceRendered, result.Rendered)
	if err != nil {
		slog.Error("writing rendered reviews", slog.Any("error", err))
		os.Exit(1)
	}
	apiPath, err := writeDataset(writeCtx, cfg, cfg.APIPath(), models.SourceAPI, result.API)
	if err != nil {
		slog.Error("writing api reviews", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, renderedPath, apiPath)
	if result.Status == models.StatusFailed {
		os.Exit(1)
	}
}

// watchShutdown calls onSignal if ctx ends before done is closed.
func watchShutdown(ctx context.Context, done <-chan struct{}, onSignal func()) {
	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		default:
			onSignal()
		}
	}
}

// loadConfig layers defaults, HARVEST_* environment variables and flags,
// in that order of precedence from lowest to highest.
func loadConfig(args []string) (*config.Config, string, error) {
	cfg := config.DefaultConfig()
	if value, ok, err := config.EnvInt("HARVEST_MAX"); err != nil {
		return nil, "", fmt.Errorf("invalid HARVEST_MAX: %w", err)
	} else if ok {
		cfg.MaxReviews = value
	}
	if value, ok, err := config.EnvDuration("HARVEST_TIMEOUT"); err != nil {
		return nil, "", fmt.Errorf("invalid HARVEST_TIMEOUT: %w", err)
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok, err := config.EnvBool("HARVEST_PARALLEL"); err != nil {
		return nil, "", fmt.Errorf("invalid HARVEST_PARALLEL: %w", err)
	} else if ok {
		cfg.Parallel = value
	}
	if value, ok := config.EnvString("HARVEST_OUTPUT_DIR"); ok {
		cfg.OutputDir = value
	}
	if value, ok := config.EnvString("HARVEST_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok := config.EnvString("HARVEST_API_BASE"); ok {
		cfg.APIBaseURL = value
	}
	if value, ok := config.EnvString("HARVEST_BROWSER_BIN"); ok {
		cfg.BrowserBin = value
	}

	fs := flag.NewFlagSet("harvester", flag.ContinueOnError)
	locator := fs.String("url", "", "Product page URL containing i.<shop>.<item>")
	fs.IntVar(&cfg.MaxReviews, "max", cfg.MaxReviews, "Maximum reviews to collect from each source")
	fs.StringVar(&cfg.APIBaseURL, "api-base", cfg.APIBaseURL, "Base URL of the ratings endpoint")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout for ratings pages")
	fs.DurationVar(&cfg.PageDelay, "delay", cfg.PageDelay, "Delay between ratings pages")
	fs.DurationVar(&cfg.RandomDelay, "random-delay", cfg.RandomDelay, "Random jitter added to the page delay")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header for both sources")
	fs.BoolVar(&cfg.ChromeTLS, "chrome-tls", cfg.ChromeTLS, "Present a Chrome TLS fingerprint to the ratings endpoint")
	fs.BoolVar(&cfg.RenderEnabled, "render", cfg.RenderEnabled, "Run the rendered page pass")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser headless")
	fs.BoolVar(&cfg.Stealth, "stealth", cfg.Stealth, "Inject anti-automation masking into the page")
	fs.StringVar(&cfg.BrowserBin, "browser-bin", cfg.BrowserBin, "Browser executable (downloaded when empty)")
	fs.DurationVar(&cfg.RenderTimeout, "render-timeout", cfg.RenderTimeout, "Upper bound for the rendered pass")
	fs.DurationVar(&cfg.SettleDelay, "settle", cfg.SettleDelay, "Wait after page load before scrolling")
	fs.StringVar(&cfg.ContentSelector, "selector", cfg.ContentSelector, "CSS selector of review snippets")
	fs.BoolVar(&cfg.Parallel, "parallel", cfg.Parallel, "Run the rendered pass and the crawl concurrently")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for output files")
	format := fs.String("format", cfg.OutputFormat, "Output format: csv, json, or dual")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	cfg.OutputFormat = strings.ToLower(*format)

	target := *locator
	if target == "" {
		target = fs.Arg(0)
	}
	if target == "" {
		return nil, "", fmt.Errorf("usage: harvester [flags] <product-url>")
	}
	return cfg, target, nil
}

// writeDataset streams records through a pipeline into path and returns
// the primary file written.
func writeDataset(ctx context.Context, cfg *config.Config, path string, source models.Source, records []*models.ReviewRecord) (string, error) {
	writer, err := pipeline.NewWriter(cfg.OutputFormat, path, source)
	if err != nil {
		return "", err
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start()
	if err := p.Process(records...); err != nil {
		_ = p.Close()
		return "", err
	}
	if err := p.Close(); err != nil {
		return "", fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return "", fmt.Errorf("output validation: %w", err)
	}

	if cfg.OutputFormat == "json" {
		path = pipeline.JSONPath(path)
	}
	slog.Debug("dataset written",
		slog.String("source", string(source)),
		slog.String("path", path),
		slog.Any("pipeline", p.GetMetrics()),
	)
	return path, nil
}

func printSummary(result *models.HarvestResult, renderedPath, apiPath string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")
	fmt.Printf("  Listing:       shop %s, item %s\n", result.Target.ShopID, result.Target.ItemID)
	fmt.Printf("  Status:        %s\n", result.Status)
	fmt.Printf("  Rendered:      %d reviews (%s)\n", len(result.Rendered), result.RenderStatus)
	fmt.Printf("  API:           %d reviews (%s)\n", len(result.API), result.APIStatus)
	fmt.Printf("  Pages:         %d\n", len(result.Offsets))
	if result.Err != nil {
		fmt.Printf("  Errors:        %s\n", strings.ReplaceAll(result.Error(), "\n", "; "))
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Rendered file: %s\n", renderedPath)
	fmt.Printf("  API file:      %s\n", apiPath)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
