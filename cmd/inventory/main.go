package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-saga/internal/alerts"
	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/httpx"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logx"
	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	cfg = cfg.WithDefaults(":8082", "inventory-svc")
	logger := logx.New(cfg.ServiceName, cfg.LogLevel)
	m := metrics.New()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("db")
	}
	defer db.Close()

	// Producer: low-stock events for the notifier
	prodCtx, stopProducer := context.WithCancel(context.Background())
	defer stopProducer()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, alerts.TopicLowStock, 1024, logger)
	prod.Start(prodCtx)

	// the event log lives for the lifetime of the process
	alertStore, eventLog := &alerts.Repo{DB: db}, alerts.NewMemoryLog()
	ledger := &inventory.Ledger{
		Store: &inventory.Repo{DB: db},
		Alerts: &alerts.Pipeline{
			Store:       alertStore,
			Log:         eventLog,
			Publisher:   prod,
			Metrics:     m,
			Logger:      logger,
			ServiceName: cfg.ServiceName,
		},
	}

	router := httpx.NewRouter(logger, m)
	(&httpx.InventoryHandler{
		Ledger: ledger,
		Alerts: &alerts.Service{Store: alertStore, Log: eventLog},
		Logger: logger,
	}).Register(router)

	if err := httpx.Serve(ctx, cfg.HTTPAddr, router, logger); err != nil {
		logger.WithError(err).Error("server exit")
	}
	prod.Close()
	prod.WaitClosed()
}
