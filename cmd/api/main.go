package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-saga/internal/alerts"
	"github.com/ariefcatur/go-order-saga/internal/catalog"
	"github.com/ariefcatur/go-order-saga/internal/clients"
	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/httpx"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logx"
	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	"github.com/ariefcatur/go-order-saga/internal/redisx"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "order-api",
		Usage: "order fulfillment service",
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API (default)", Action: serve},
			{Name: "migrate", Usage: "apply database migrations and exit", Action: migrate},
		},
		Action: serve,
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("order-api")
	}
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logx.New(cfg.ServiceName, cfg.LogLevel)

	db, err := postgres.Connect(c.Context, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(c.Context, db); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logx.New(cfg.ServiceName, cfg.LogLevel)
	m := metrics.New()

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prodCtx, stopProducers := context.WithCancel(context.Background())
	defer stopProducers()
	finalized := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFinalized, 1024, logger)
	finalized.Start(prodCtx)

	router := httpx.NewRouter(logger, m)
	products := &catalog.Repo{DB: db}
	svc := &orders.Service{
		Store:       &orders.Repo{DB: db},
		Catalog:     products,
		Publisher:   finalized,
		Metrics:     m,
		Logger:      logger,
		ServiceName: cfg.ServiceName,
	}

	var lowStock *kafkax.Producer
	if cfg.EmbeddedCollaborators {
		// single process: ledger and engine run in-process and their HTTP
		// surfaces are mounted on the same router
		lowStock = kafkax.NewProducer(cfg.KafkaBrokers, alerts.TopicLowStock, 1024, logger)
		lowStock.Start(prodCtx)

		alertStore, eventLog := &alerts.Repo{DB: db}, alerts.NewMemoryLog()
		ledger := &inventory.Ledger{
			Store: &inventory.Repo{DB: db},
			Alerts: &alerts.Pipeline{
				Store:       alertStore,
				Log:         eventLog,
				Publisher:   lowStock,
				Metrics:     m,
				Logger:      logger,
				ServiceName: cfg.ServiceName,
			},
		}
		engine := &payment.Engine{Store: &payment.Repo{DB: db}, Logger: logger}
		svc.Inventory, svc.Payments = ledger, engine

		(&httpx.InventoryHandler{Ledger: ledger, Alerts: &alerts.Service{Store: alertStore, Log: eventLog}, Logger: logger}).Register(router)
		(&httpx.PaymentsHandler{Engine: engine}).Register(router)
		logger.Info("collaborators embedded")
	} else {
		opts := clients.Options{
			Timeout:    cfg.ClientTimeout,
			MaxRetries: cfg.ClientMaxRetries,
			Backoff:    cfg.ClientBackoff,
			Metrics:    m,
			Logger:     logger,
		}
		svc.Payments = clients.NewPaymentClient(cfg.PaymentURL, opts)
		svc.Inventory = clients.NewInventoryClient(cfg.InventoryURL, opts)
		logger.WithFields(log.Fields{"payment": cfg.PaymentURL, "inventory": cfg.InventoryURL}).Info("collaborators remote")
	}

	(&httpx.OrdersHandler{Service: svc, Catalog: products, Redis: rdb, Logger: logger}).Register(router)

	err = httpx.Serve(ctx, cfg.HTTPAddr, router, logger)

	// flush pending events before exit
	finalized.Close()
	if lowStock != nil {
		lowStock.Close()
		lowStock.WaitClosed()
	}
	finalized.WaitClosed()
	return err
}
