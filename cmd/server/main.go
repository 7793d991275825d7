package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"webshop/internal/catalog"
	"webshop/internal/config"
	"webshop/internal/fulfillment"
	"webshop/internal/ledger"
	"webshop/internal/observability"
	"webshop/internal/payment"
	"webshop/internal/queue"
	"webshop/internal/router"
	"webshop/internal/shipment"
	"webshop/internal/shipping"
	rediskey "webshop/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	// API 响应与台账读数中的金额输出为 JSON 数字
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	// 1. 本地持久化：商品目录、订单台账、发货 outbox
	products := catalog.NewStore(cfg.CatalogFile, logger)
	orders := ledger.NewStore(cfg.LedgerFile, logger)
	db, err := shipment.Open(cfg.OutboxDB)
	if err != nil {
		logger.Fatal("outbox open failed", zap.String("path", cfg.OutboxDB), zap.Error(err))
	}
	outbox := shipment.NewOutbox(db)

	// 2. Redis：限流 + 订单锁，不可用时两者都降级
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limit and order lock degraded", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	pingCancel()

	// 3. 外部服务
	fox := shipping.NewFoxpost(cfg.FoxpostAPIURL, cfg.FoxpostAPIKey, cfg.FoxpostTimeout, logger)
	deps := fulfillment.Deps{
		Catalog:   products,
		Ledger:    orders,
		Payments:  payment.NewStripe(cfg.StripeSecretKey, logger),
		Shipping:  fox,
		Shipments: outbox,
		Locker:    rediskey.NewOrderLocker(rdb, cfg.OrderLockTTL),
		Currency:  cfg.PaymentCurrency,
		Log:       logger,
	}
	if cfg.EventsEnabled() {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		deps.Events = producer
	}
	pipeline := fulfillment.New(deps)

	worker := shipment.NewWorker(outbox, fox, cfg.ShipmentMaxAttempts, cfg.ShipmentPoll, cfg.FoxpostTimeout, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	router.Setup(r, pipeline, rdb, cfg, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(r, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("static_dir", cfg.StaticDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-workerDone
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
