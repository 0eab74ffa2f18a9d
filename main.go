package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"housemarket-scraper/config"
	"housemarket-scraper/fetch"
	"housemarket-scraper/models"
	"housemarket-scraper/scheduler"
	"housemarket-scraper/scraper/onthemarket"
	"housemarket-scraper/services"
	"housemarket-scraper/storage"
	"housemarket-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== House Market Scraper starting ===")
	logger.Info("Config — location: %s | concurrency: %d | rate: %dms | interval: %dm | blacklist threshold: %d",
		cfg.Location, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.RunIntervalMinutes, cfg.BlacklistThreshold)

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	var fetcher fetch.Fetcher
	politeness := time.Duration(cfg.RateLimitMs) * time.Millisecond
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if cfg.UseBrowser {
		chrome := fetch.NewChromeFetcher(cfg.ChromeBin, politeness, timeout)
		defer chrome.Close()
		fetcher = chrome
		logger.Info("Using headless browser fetcher")
	} else {
		fetcher = fetch.NewClient(politeness, timeout)
	}

	var csvWriter *storage.CSVWriter
	if cfg.CSVOutputPath != "" {
		csvWriter, err = storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
			os.Exit(1)
		}
		defer csvWriter.Close()
	}

	detector := services.NewAgentDetector(store, cfg.BlacklistThreshold, logger)
	reconciler := services.NewReconciler(store, detector, logger)
	siteScraper := onthemarket.New(cfg, fetcher, detector, logger)
	coordinator := scheduler.NewCoordinator(cfg, siteScraper, reconciler, store, csvWriter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SchedulerEnabled {
		coordinator.Start(ctx)
		logger.Info("Scheduler stopped")
		return
	}

	// One-shot mode: run a single pass and print the market snapshot.
	report := coordinator.RunOnce(ctx)
	if report.Status == models.RunFailed {
		logger.Error("Run failed — see errors above")
		os.Exit(1)
	}

	listings, err := store.Query(storage.ListingFilter{})
	if err != nil {
		logger.Error("Failed to read listings for insights: %v", err)
		os.Exit(1)
	}

	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(listings))
}
