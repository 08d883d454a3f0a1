package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/cart"
	"github.com/ariefcatur/go-order-engine.git/internal/checkout"
	"github.com/ariefcatur/go-order-engine.git/internal/config"
	"github.com/ariefcatur/go-order-engine.git/internal/dispatch"
	"github.com/ariefcatur/go-order-engine.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-engine.git/internal/kafka"
	"github.com/ariefcatur/go-order-engine.git/internal/lifecycle"
	"github.com/ariefcatur/go-order-engine.git/internal/orders"
	"github.com/ariefcatur/go-order-engine.git/internal/postgres"
	"github.com/ariefcatur/go-order-engine.git/internal/redisx"
	"github.com/ariefcatur/go-order-engine.git/internal/returns"
	"github.com/ariefcatur/go-order-engine.git/internal/stock"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, satu per topic
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, logger)
	statusProd.Start(ctx)
	placedProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, logger)
	placedProd.Start(ctx)

	// Dispatcher: fan-out async, retry + drop sesuai policy
	disp := dispatch.New(
		&dispatch.KafkaNotifier{Status: statusProd, Placed: placedProd, Service: cfg.ServiceName},
		cfg.NotifyBuffer, cfg.NotifyMaxRetries, cfg.NotifyBackoff, logger,
	)
	disp.Start(ctx)

	// Repos & services
	repo := &orders.Repo{DB: db}
	returnRepo := &orders.ReturnRepo{DB: db}
	ledger := &stock.PGLedger{DB: db}
	machine := lifecycle.NewMachine(repo, ledger, disp, logger)

	checkoutSvc := &checkout.Service{
		Carts:  &cart.RedisClient{RDB: rdb},
		Ledger: ledger,
		Orders: repo,
		Notify: disp,
		Log:    logger,
	}
	returnSvc := &returns.Service{
		Orders:   repo,
		Requests: returnRepo,
		Machine:  machine,
		Window:   cfg.ReturnWindow,
		Log:      logger,
	}

	// Payment timeout: PLACED kelamaan -> CANCELLED via jalur transisi normal
	watcher := &lifecycle.TimeoutWatcher{
		Store:    repo,
		Machine:  machine,
		Timeout:  cfg.PaymentTimeout,
		Interval: cfg.SweepInterval,
		Log:      logger,
	}
	watcher.Start(ctx)

	// HTTP
	router := httpx.NewRouter()
	h := &httpx.Handler{
		Checkout: checkoutSvc,
		Returns:  returnSvc,
		Machine:  machine,
		Orders:   repo,
		Stock:    ledger,
		Redis:    rdb,
		Log:      logger,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()          // stop watcher + dispatcher + producer loop
	disp.WaitClosed() // drain notifikasi tersisa
	statusProd.WaitClosed()
	placedProd.WaitClosed()
}
