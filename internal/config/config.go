package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，全部通过环境变量注入，密钥不写进源码。
type AppConfig struct {
	HTTPAddr    string
	ServiceName string
	LogLevel    string
	StaticDir   string

	// 持久化文件：商品目录（JSON）、订单台账（xlsx）、发货 outbox（SQLite）
	DataDir     string
	CatalogFile string
	LedgerFile  string
	OutboxDB    string

	RedisAddr       string
	RedisDB         int
	OrderLockTTL    time.Duration
	OrderRateLimit  int
	OrderRateWindow time.Duration

	// Kafka 为空时不发布 order.completed 事件
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	StripeSecretKey string
	PaymentCurrency string

	FoxpostAPIURL  string
	FoxpostAPIKey  string
	FoxpostTimeout time.Duration

	ShipmentMaxAttempts int
	ShipmentPoll        time.Duration

	// OTLP/HTTP 端点，为空则只用本地 no-op tracer
	OtelEndpoint string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	dataDir := getEnv("DATA_DIR", "data")
	cfg := AppConfig{
		HTTPAddr:        getEnv("HTTP_ADDR", ":3000"),
		ServiceName:     getEnv("SERVICE_NAME", "webshop"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		StaticDir:       getEnv("STATIC_DIR", "public"),
		DataDir:         dataDir,
		CatalogFile:     getEnv("CATALOG_FILE", filepath.Join(dataDir, "products.json")),
		LedgerFile:      getEnv("LEDGER_FILE", filepath.Join(dataDir, "rendelesek.xlsx")),
		OutboxDB:        getEnv("OUTBOX_DB", filepath.Join(dataDir, "shipments.db")),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         0,
		OrderLockTTL:    30 * time.Second,
		OrderRateLimit:  20,
		OrderRateWindow: time.Minute,
		KafkaBrokers:    splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "webshop.order.completed"),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "webshop-notifier"),
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		PaymentCurrency: strings.ToLower(getEnv("PAYMENT_CURRENCY", "huf")),
		FoxpostAPIURL:   strings.TrimRight(getEnv("FOXPOST_API_URL", "https://api.foxpost.hu/v1"), "/"),
		FoxpostAPIKey:   getEnv("FOXPOST_API_KEY", ""),
		FoxpostTimeout:  5 * time.Second,

		ShipmentMaxAttempts: 3,
		ShipmentPoll:        5 * time.Second,
		OtelEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	lockSec, err := getEnvPositive("ORDER_LOCK_TTL_SEC", int(cfg.OrderLockTTL.Seconds()))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.OrderLockTTL = time.Duration(lockSec) * time.Second

	rateLimit, err := getEnvPositive("ORDER_RATE_LIMIT", cfg.OrderRateLimit)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec, err := getEnvPositive("ORDER_RATE_WINDOW_SEC", int(cfg.OrderRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	foxTimeout, err := getEnvPositive("FOXPOST_TIMEOUT_SEC", int(cfg.FoxpostTimeout.Seconds()))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.FoxpostTimeout = time.Duration(foxTimeout) * time.Second

	attempts, err := getEnvPositive("SHIPMENT_MAX_ATTEMPTS", cfg.ShipmentMaxAttempts)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.ShipmentMaxAttempts = attempts

	pollSec, err := getEnvPositive("SHIPMENT_POLL_SEC", int(cfg.ShipmentPoll.Seconds()))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.ShipmentPoll = time.Duration(pollSec) * time.Second

	if cfg.CatalogFile == "" || cfg.LedgerFile == "" || cfg.OutboxDB == "" {
		return AppConfig{}, fmt.Errorf("CATALOG_FILE, LEDGER_FILE and OUTBOX_DB must not be empty")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}
	if cfg.PaymentCurrency == "" {
		return AppConfig{}, fmt.Errorf("PAYMENT_CURRENCY must not be empty")
	}

	return cfg, nil
}

// EventsEnabled 表示是否配置了 Kafka。
func (c AppConfig) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvPositive(key string, fallback int) (int, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return n, nil
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
