package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/httpx"
	"github.com/ariefcatur/go-order-saga/internal/logx"
	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	cfg = cfg.WithDefaults(":8083", "payment-svc")
	logger := logx.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("db")
	}
	defer db.Close()

	router := httpx.NewRouter(logger, metrics.New())
	(&httpx.PaymentsHandler{Engine: &payment.Engine{Store: &payment.Repo{DB: db}, Logger: logger}}).Register(router)

	if err := httpx.Serve(ctx, cfg.HTTPAddr, router, logger); err != nil {
		logger.WithError(err).Error("server exit")
	}
}
