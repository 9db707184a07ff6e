package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/arpitbanna/url-shortener/internal/config"
	"github.com/arpitbanna/url-shortener/internal/counter"
	"github.com/arpitbanna/url-shortener/internal/db"
	"github.com/arpitbanna/url-shortener/internal/handler"
	"github.com/arpitbanna/url-shortener/internal/kafka"
	"github.com/arpitbanna/url-shortener/internal/repo"
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

	store, err := counter.NewRedisStore(cfg.RedisAddr)
	if err != nil {
		logrus.Fatalf("failed to connect to redis: %v", err)
	}
	defer store.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.GetKafkaBrokers(),
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		logrus.Fatalf("failed to create producer: %v", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logrus.WithError(err).Error("error closing producer")
		}
	}()

	urlRepo := repo.New(database)
	limiter := handler.NewRateLimiter(store, cfg.RateLimit)
	urlHandler := handler.NewURLHandler(urlRepo, store, producer, limiter)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(handler.PrometheusMiddleware())

	app.Post("/shorten", urlHandler.Shorten)
	app.Get("/stats/:code", urlHandler.Stats)
	app.Get("/analytics/:code", urlHandler.Analytics)
	app.Get("/trending_urls", urlHandler.Trending)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", handler.HealthCheck)
	app.Get("/:code", urlHandler.Redirect)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		logrus.Info("shutting down...")
		if err := app.Shutdown(); err != nil {
			logrus.WithError(err).Error("server shutdown error")
		}
	}()

	logrus.Infof("server running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logrus.Fatalf("server error: %v", err)
	}
}
