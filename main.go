package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shoppulse/anomaly"
	"shoppulse/config"
	"shoppulse/logger"
	"shoppulse/platform"
	"shoppulse/report"
	"shoppulse/store"
	"shoppulse/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Shoppulse.Name,
		"version":     cfg.Shoppulse.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting shoppulse")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Logging.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Logging.Namespace, cfg.Logging.DashboardName)
		logger.CreateDefaultDashboard(ctx)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	orderStore := store.NewMemoryStore()

	var geoSource report.GeoSource
	if cfg.Platform.BaseURL != "" {
		geoSource = platform.NewClient(platform.Options{
			BaseURL:           cfg.Platform.BaseURL,
			Timeout:           cfg.Platform.Timeout(),
			RequestsPerSecond: cfg.Platform.RequestsPerSecond,
			BurstSize:         cfg.Platform.BurstSize,
		})
	} else {
		log.WithComponent("main").Info("platform base URL not configured; geo fallback disabled")
	}

	var archiveWriter *writer.ArchiveWriter
	if cfg.Storage.S3.Enabled {
		archiveWriter, err = writer.NewArchiveWriter(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create archive writer")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping order archival")
	}

	var insightPublisher *writer.InsightPublisher
	if cfg.Storage.Kafka.Enabled {
		insightPublisher, err = writer.NewInsightPublisher(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create insight publisher")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("Kafka disabled; skipping insight publishing")
	}

	builder := report.NewBuilder(orderStore, anomaly.NewDetector(cfg.Anomaly.Thresholds), geoSource, report.Options{
		TopProducts:    cfg.Analytics.TopProducts,
		BottomProducts: cfg.Analytics.BottomProducts,
		DefaultRange:   cfg.Analytics.DefaultRange,
		Timezone:       cfg.Analytics.Timezone,
		LookbackDays:   cfg.Anomaly.LookbackDays,
		IncludeGeo:     cfg.Report.IncludeGeo,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runReportLoop(ctx, cfg, builder, orderStore, archiveWriter, insightPublisher)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if insightPublisher != nil {
		log.Info("closing insight publisher")
		if err := insightPublisher.Close(); err != nil {
			log.WithError(err).Warn("failed to close insight publisher")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("shoppulse stopped")
}

// runReportLoop builds reports for every configured store on the report
// interval. The first cycle runs immediately so a fresh deployment does not
// wait a full interval for output.
func runReportLoop(ctx context.Context, cfg *config.Config, builder *report.Builder, orderStore store.OrderStore, archiveWriter *writer.ArchiveWriter, insightPublisher *writer.InsightPublisher) {
	log := logger.GetLogger().WithComponent("main")

	ticker := time.NewTicker(cfg.Report.Interval())
	defer ticker.Stop()

	logger.GetLogger().LogMetric("main", "report_stores", len(cfg.Report.Stores), "gauge", nil)

	runOnce := func() {
		now := time.Now()
		for _, storeID := range cfg.Report.Stores {
			rep, err := builder.Build(ctx, storeID, cfg.Analytics.DefaultRange, now)
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{"store_id": storeID}).Error("report build failed")
				continue
			}

			if insightPublisher != nil && len(rep.Anomalies) > 0 {
				if err := insightPublisher.Publish(ctx, storeID, rep.Anomalies); err != nil {
					log.WithError(err).WithFields(logger.Fields{"store_id": storeID}).Warn("failed to publish insights")
				}
			}

			if archiveWriter != nil {
				since := now.AddDate(0, 0, -1)
				tuples, err := orderStore.FetchOrderTuples(ctx, storeID, since)
				if err != nil {
					log.WithError(err).WithFields(logger.Fields{"store_id": storeID}).Warn("failed to fetch tuples for archival")
					continue
				}
				if err := archiveWriter.Archive(ctx, storeID, tuples); err != nil {
					log.WithError(err).WithFields(logger.Fields{"store_id": storeID}).Warn("failed to archive order tuples")
				}
			}
		}
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			log.Info("report loop stopped")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
