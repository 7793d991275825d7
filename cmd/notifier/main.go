package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"webshop/internal/config"
	"webshop/internal/observability"
	"webshop/internal/queue"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// notifier 消费 order.completed 事件并发送确认邮件（目前只记日志）。
func main() {
	_ = godotenv.Load()
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

	if !cfg.EventsEnabled() {
		logger.Fatal("KAFKA_BROKERS is empty, nothing to consume")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
	defer consumer.Close()

	logger.Info("notifier started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	consumer.Run(ctx, func(ctx context.Context, msg queue.OrderCompletedMessage) error {
		logger.Info("order confirmation (email not sent)",
			zap.String("order_id", msg.OrderID),
			zap.String("email", msg.CustomerEmail),
			zap.String("total", msg.Total.String()),
			zap.Int("total_quantity", msg.TotalQuantity),
		)
		return nil
	})
	logger.Info("notifier stopped")
}
