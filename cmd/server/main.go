package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rollworks/oms/internal/blob"
	"github.com/rollworks/oms/internal/cache"
	"github.com/rollworks/oms/internal/config"
	"github.com/rollworks/oms/internal/database"
	"github.com/rollworks/oms/internal/fallback"
	"github.com/rollworks/oms/internal/httpapi"
	"github.com/rollworks/oms/internal/ingest"
	"github.com/rollworks/oms/internal/kafka"
	"github.com/rollworks/oms/internal/observability"
	"github.com/rollworks/oms/internal/pkg/breaker"
	"github.com/rollworks/oms/internal/service"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Env == config.EnvProduction {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()
	repo := database.New(pool, cfg.Tables)

	c, err := cache.New(cfg.CacheCap, logger)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}

	metrics := observability.NewInmem(256)

	params := service.Params{
		Primary: repo,
		Conn:    repo,
		Cache:   c,
		Env:     cfg.Env,
		Logger:  logger,
		Metrics: metrics,
	}
	if cfg.Env == config.EnvDevelopment {
		params.Fallback = fallback.New(cfg.FallbackDir, logger)
	}
	if cfg.Blob.Enabled() {
		blobStore, err := blob.New(ctx, cfg.Blob, logger)
		if err != nil {
			logger.Warn("blob store init failed, attachments disabled", zap.Error(err))
		} else {
			params.Blob = blobStore
		}
	}
	svc := service.New(params)

	if cfg.Kafka.Enabled() {
		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.Group,
			Topic:   cfg.Kafka.Topic,
		})
		defer func() { _ = reader.Close() }()

		handler := ingest.NewHandler(svc, breaker.New(cfg.Breaker), cfg.Retry, logger, metrics)
		consumer := kafka.NewConsumer(handler, reader, cfg.Kafka.Workers, logger)
		go consumer.Start(ctx)
	}

	server := httpapi.New(svc, logger, metrics)
	logger.Info("http server listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("env", string(cfg.Env)),
	)
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
