package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/arpitbanna/url-shortener/internal/archive"
	"github.com/arpitbanna/url-shortener/internal/config"
	"github.com/arpitbanna/url-shortener/internal/counter"
	"github.com/arpitbanna/url-shortener/internal/db"
	"github.com/arpitbanna/url-shortener/internal/enrich"
	"github.com/arpitbanna/url-shortener/internal/fraud"
	"github.com/arpitbanna/url-shortener/internal/kafka"
	"github.com/arpitbanna/url-shortener/internal/metrics"
	"github.com/arpitbanna/url-shortener/internal/repo"
	"github.com/arpitbanna/url-shortener/internal/sequence"
	"github.com/arpitbanna/url-shortener/internal/service"
	"github.com/arpitbanna/url-shortener/internal/trending"
	"github.com/arpitbanna/url-shortener/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFile)

	database, err := db.InitDB(cfg.DBUrl)
	if err != nil {
		logrus.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()

	database.SetMaxOpenConns(25)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(5 * time.Minute)

	store, err := counter.NewRedisStore(cfg.RedisAddr)
	if err != nil {
		logrus.Fatalf("failed to connect to redis: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clickRepo := repo.New(database)

	engine := fraud.NewEngine(store, fraud.Config{
		RateThreshold:      cfg.FraudRateThreshold,
		MaxClicksPerIP:     cfg.FraudMaxClicksPerIP,
		MaxClicksPerIPURL:  cfg.FraudMaxClicksPerIPURL,
		VelocityThreshold:  time.Duration(cfg.FraudVelocitySec * float64(time.Second)),
		Window:             time.Duration(cfg.FraudWindowSec) * time.Second,
		MaxClicksPerWindow: cfg.FraudMaxClicksPerWindow,
		MaxSequenceLength:  cfg.FraudMaxSequenceLength,
	}, metrics.FraudObserver{})

	tracker := sequence.NewTracker(clickRepo, sequence.DefaultMaxLength)

	var geo enrich.GeoLookup = enrich.NoopGeoLookup{}
	if cfg.GeoEndpoint != "" {
		geo = enrich.NewHTTPGeoLookup(cfg.GeoEndpoint)
	}

	var archiver service.Archiver
	if cfg.MinIOEndpoint != "" {
		archiver, err = archive.NewMinIOArchiver(ctx,
			cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket)
		if err != nil {
			logrus.Fatalf("failed to create archiver: %v", err)
		}
		logrus.Info("click event archiver enabled")
	}

	clickService := service.NewClickService(clickRepo, engine, tracker, geo, archiver, service.Config{
		Workers:    cfg.WorkerCount,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: time.Duration(cfg.RetryDelaySec) * time.Second,
	})

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.GetKafkaBrokers(),
		GroupID: cfg.KafkaGroupID,
		Topics:  []string{cfg.KafkaTopic},
	}, clickService)
	if err != nil {
		logrus.Fatalf("failed to create kafka consumer: %v", err)
	}
	defer consumer.Close()

	if err := consumer.Start(ctx); err != nil {
		logrus.Fatalf("failed to start kafka consumer: %v", err)
	}

	trendingJob := trending.NewJob(clickRepo, store,
		time.Duration(cfg.TrendingIntervalMin)*time.Minute, cfg.TrendingTopN)
	go trendingJob.Run(ctx)

	go metricsReporter(ctx, clickService)
	go serveMetrics(cfg.MetricsPort)

	logrus.Info("click worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh

	logrus.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := clickService.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("service shutdown error")
	}
	if err := consumer.Close(); err != nil {
		logrus.WithError(err).Warn("kafka consumer close error")
	}

	final := clickService.GetMetrics()
	logrus.WithFields(logrus.Fields{
		"processed":  final.TotalProcessed,
		"failed":     final.TotalFailed,
		"suspicious": final.TotalSuspicious,
	}).Info("shutdown complete")
}

// serveMetrics exposes the Prometheus collectors; the worker has no other
// HTTP surface.
func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logrus.WithError(err).Error("metrics listener stopped")
	}
}

func metricsReporter(ctx context.Context, svc *service.ClickService) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m := svc.GetMetrics()
			logrus.WithFields(logrus.Fields{
				"processed":  m.TotalProcessed,
				"failed":     m.TotalFailed,
				"suspicious": m.TotalSuspicious,
			}).Info("pipeline metrics")
		case <-ctx.Done():
			return
		}
	}
}
