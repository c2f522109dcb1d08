package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-saga/internal/alerts"
	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logx"
	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/ariefcatur/go-order-saga/internal/redisx"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	cfg = cfg.WithDefaults(":8084", "low-stock-notifier")
	logger := logx.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// health and metrics only
	go func() {
		if err := httpx.Serve(ctx, cfg.HTTPAddr, httpx.NewRouter(logger, metrics.New()), logger); err != nil {
			logger.WithError(err).Error("server exit")
		}
	}()

	n := &alerts.Notifier{Redis: rdb, Logger: logger, ServiceName: cfg.ServiceName}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, alerts.TopicLowStock, cfg.NotifierWorkers, logger)

	logger.WithFields(log.Fields{
		"group":   cfg.NotifierGroup,
		"topic":   alerts.TopicLowStock,
		"workers": cfg.NotifierWorkers,
	}).Info("low-stock consumer started")
	if err := cons.Start(ctx, n.HandleLowStock); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("consumer exit")
	}
	logger.Info("shutting down consumer...")
}
