package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/config"
	"github.com/giygas/nhi-hospitals/data"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/fetcher"
	"github.com/giygas/nhi-hospitals/handlers"
	"github.com/giygas/nhi-hospitals/health"
	"github.com/giygas/nhi-hospitals/logging"
	"github.com/giygas/nhi-hospitals/metrics"
	"github.com/giygas/nhi-hospitals/scheduler"
	"github.com/giygas/nhi-hospitals/server"
	"github.com/giygas/nhi-hospitals/spreadsheet"
	"github.com/giygas/nhi-hospitals/storage"
	"github.com/giygas/nhi-hospitals/validation"
	"github.com/google/uuid"
)

const (
	updateRunTimeout = 15 * time.Minute
	shutdownTimeout  = 30 * time.Second
	pushTimeout      = 10 * time.Second
)

func loadRules(cfg *config.Config) (*classifier.Rules, error) {
	if cfg.RulesFile != "" {
		return classifier.LoadRulesFile(cfg.RulesFile)
	}
	return classifier.DefaultRules()
}

func newDownloader(cfg *config.Config) *fetcher.Downloader {
	client := fetcher.NewClient(fetcher.ClientOptions{
		Referer:     cfg.Referer,
		Timeout:     cfg.RequestTimeout,
		MaxBodySize: int(cfg.MaxDownloadSize),
	})
	return fetcher.NewDownloader(
		fetcher.Config{
			ListingURL: cfg.ListingURL,
			Keyword:    cfg.ListingKeyword,
			TargetDir:  cfg.TargetDir,
		},
		client,
		client,
		fetcher.NewJSONHistoryStore(cfg.HistoryFile),
	)
}

// openSink connects the Postgres export when DATABASE_URL is set.
// The returned closer is never nil.
func openSink(ctx context.Context, cfg *config.Config) (*storage.PostgresSink, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	sink, err := storage.NewPostgresSink(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("postgres export: %w", err)
	}
	return sink, sink.Close, nil
}

// pushMetrics sends the pipeline metrics of a batch command; failures are only logged
func pushMetrics(cfg *config.Config, job string) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := metrics.Push(ctx, cfg.PushgatewayURL, job); err != nil {
		logging.Warn("Failed to push metrics", "error", err)
		return
	}
	logging.Debug("Metrics pushed", "gateway", cfg.PushgatewayURL, "job", job)
}

func runClassify(cfg *config.Config, stdout io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rules, err := loadRules(cfg)
	if err != nil {
		logging.Error("Failed to load classification rules", "error", err)
		return 1
	}

	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		logging.Error("Failed to open result export", "error", err)
		return 1
	}
	defer closeSink()

	pipeline := &scheduler.Pipeline{
		Reader:           spreadsheet.NewReader(cfg.SourceGlob),
		Classifier:       classifier.NewClassifier(rules),
		OutputFile:       cfg.OutputFile,
		UnclassifiedFile: cfg.UnclassifiedFile,
	}
	if sink != nil {
		pipeline.Sink = sink
	}

	run, err := pipeline.Classify(ctx, uuid.NewString())
	if err != nil {
		logging.Error("Classification failed", "error", err)
		return 1
	}

	run.Result.Summary().Print(stdout)
	fmt.Fprintf(stdout, "\nResults written to %s\n", cfg.OutputFile)
	if len(run.Result.Unclassified) > 0 {
		fmt.Fprintf(stdout, "Unclassified hospitals written to %s\n", cfg.UnclassifiedFile)
	}

	pushMetrics(cfg, "nhi_hospitals_classify")
	return 0
}

func runFetch(cfg *config.Config, stdout io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := &scheduler.Pipeline{Checker: newDownloader(cfg)}

	outcome, err := pipeline.Fetch(ctx, uuid.NewString())
	if err != nil {
		if fetcher.IsFatal(err) {
			logging.Error("Release check aborted", "error", err)
		} else {
			logging.Error("Release check failed", "error", err)
		}
		return 1
	}

	printOutcome(stdout, outcome)
	pushMetrics(cfg, "nhi_hospitals_fetch")
	return 0
}

func printOutcome(w io.Writer, outcome *entities.DownloadOutcome) {
	fmt.Fprintf(w, "Latest year: %d\n", outcome.MaxYear)
	for _, name := range outcome.Downloaded {
		fmt.Fprintf(w, "  downloaded: %s\n", name)
	}
	for _, name := range outcome.Skipped {
		fmt.Fprintf(w, "  up to date: %s\n", name)
	}
	for _, name := range outcome.Failed {
		fmt.Fprintf(w, "  failed:     %s\n", name)
	}
	if len(outcome.Downloaded) > 0 && !outcome.HistorySaved {
		fmt.Fprintln(w, "Download history could not be saved")
	}
}

func runServe(cfg *config.Config, _ io.Writer) int {
	rules, err := loadRules(cfg)
	if err != nil {
		logging.Error("Failed to load classification rules", "error", err)
		return 1
	}

	sink, closeSink, err := openSink(context.Background(), cfg)
	if err != nil {
		logging.Error("Failed to open result export", "error", err)
		return 1
	}
	defer closeSink()

	container := data.NewDataContainer()
	container.SetServerStartTime(time.Now())

	hospitalClassifier := classifier.NewClassifier(rules)
	validator := validation.NewDataValidator(rules)

	pipeline := &scheduler.Pipeline{
		Checker:          newDownloader(cfg),
		Reader:           spreadsheet.NewReader(cfg.SourceGlob),
		Classifier:       hospitalClassifier,
		Validator:        validator,
		OutputFile:       cfg.OutputFile,
		UnclassifiedFile: cfg.UnclassifiedFile,
	}
	if sink != nil {
		pipeline.Sink = sink
	}

	healthChecker := health.NewHealthChecker(container, cfg.UpdateTimes)
	handler := handlers.NewHTTPHandler(container, validator, hospitalClassifier, healthChecker)
	srv := server.NewServer(cfg, handler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	sched := scheduler.NewScheduler(container, pipeline, cfg.UpdateTimes, updateRunTimeout)
	go func() {
		if err := sched.Start(); err != nil {
			logging.Error("Scheduler failed to start", "error", err)
		}
	}()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed", "error", err)
			return 1
		}
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logging.Error("Server shutdown failed", "error", err)
		return 1
	}
	return 0
}
