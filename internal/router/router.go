package router

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"webshop/internal/catalog"
	"webshop/internal/config"
	"webshop/internal/fulfillment"
	"webshop/internal/middleware"
	"webshop/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Storefront 路由层依赖的业务操作，由 fulfillment.Pipeline 实现。
type Storefront interface {
	Products(ctx context.Context) ([]model.Product, error)
	Product(ctx context.Context, id int) (model.Product, error)
	ListPickupPoints(ctx context.Context) []model.PickupPoint
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, o model.Order) (fulfillment.PaymentIntent, error)
	CompleteOrder(ctx context.Context, o model.Order) (fulfillment.Result, error)
	SendConfirmation(ctx context.Context, email string, o model.Order) fulfillment.Confirmation
	Orders(ctx context.Context) []model.LedgerRow
}

const kindNotFound = "not_found"

// 面向顾客的错误文案，按错误类别区分。
var messages = map[string]string{
	fulfillment.KindInvalidOrder:       "Érvénytelen rendelés",
	fulfillment.KindUnknownProduct:     "Ismeretlen termék a rendelésben",
	fulfillment.KindInsufficientStock:  "Nincs elegendő készlet",
	fulfillment.KindDuplicateOrder:     "A rendelés már rögzítve van",
	fulfillment.KindOrderInProgress:    "A rendelés feldolgozása folyamatban van",
	fulfillment.KindStorageUnavailable: "Hiba a rendelés véglegesítésekor",
	fulfillment.KindPaymentFailed:      "Hiba a fizetés létrehozásakor",
	fulfillment.KindInternal:           "Hiba a rendelés véglegesítésekor",
}

// StatusOf 错误类别对应的 HTTP 状态码。
func StatusOf(kind string) int {
	switch kind {
	case fulfillment.KindInvalidOrder:
		return http.StatusBadRequest
	case fulfillment.KindUnknownProduct:
		return http.StatusUnprocessableEntity
	case fulfillment.KindInsufficientStock, fulfillment.KindDuplicateOrder, fulfillment.KindOrderInProgress:
		return http.StatusConflict
	case kindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Setup 注册全部 HTTP 路由。rdb 为 nil 时下单接口不限流。
func Setup(r *gin.Engine, svc Storefront, rdb *rd.Client, cfg config.AppConfig, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	r.Use(middleware.Recovery(log), middleware.AccessLog(log), middleware.Metrics(), middleware.CORS())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	// Products
	api.GET("/products", listProducts(svc))
	api.GET("/products/:id", getProduct(svc))
	// Checkout
	api.GET("/foxpost/locations", listPickupPoints(svc))
	api.POST("/create-payment-intent",
		middleware.RedisRateLimit(rdb, "create_payment_intent", cfg.OrderRateLimit, cfg.OrderRateWindow, log),
		createPaymentIntent(svc))
	api.POST("/complete-order",
		middleware.RedisRateLimit(rdb, "complete_order", cfg.OrderRateLimit, cfg.OrderRateWindow, log),
		completeOrder(svc))
	api.POST("/send-confirmation", sendConfirmation(svc))
	// Admin
	api.GET("/admin/orders", listOrders(svc))

	if cfg.StaticDir != "" {
		serveStatic(r, cfg.StaticDir)
	}
}

func abortWithKind(c *gin.Context, kind, message string) {
	if message == "" {
		message = messages[kind]
	}
	c.AbortWithStatusJSON(StatusOf(kind), gin.H{"error": message, "kind": kind})
}

// listProducts 商品列表。
func listProducts(svc Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := svc.Products(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			abortWithKind(c, fulfillment.Kind(err), "Hiba a termékek betöltésekor")
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

// getProduct 单个商品。
func getProduct(svc Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			abortWithKind(c, kindNotFound, "Termék nem található")
			return
		}
		p, err := svc.Product(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				abortWithKind(c, kindNotFound, "Termék nem található")
				return
			}
			_ = c.Error(err)
			abortWithKind(c, fulfillment.Kind(err), "Hiba a termékek betöltésekor")
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// listPickupPoints 永远返回 200，网关失败时由业务层给出备用列表。
func listPickupPoints(svc Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.ListPickupPoints(c.Request.Context()))
	}
}

func createPaymentIntent(svc Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount    decimal.Decimal `json:"amount"`
			OrderData model.Order     `json:"orderData"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithKind(c, fulfillment.KindInvalidOrder, "")
			return
		}
		intent, err := svc.CreatePaymentIntent(c.Request.Context(), req.Amount, req.OrderData)
		if err != nil {
			_ = c.Error(err)
			kind := fulfillment.Kind(err)
			abortWithKind(c, kind, messages[fulfillment.KindPaymentFailed])
			return
		}
		c.JSON(http.StatusOK, intent)
	}
}

// completeOrder 下单入口：校验、扣库存、写台账都在业务层完成。
func completeOrder(svc Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		var order model.Order
		if err := c.ShouldBindJSON(&order); err != nil {
			abortWithKind(c, fulfillment.KindInvalidOrder, "")
			return
		}
		res, err := svc.CompleteOrder(c.Request.Context(), order)
		if err != nil {
			_ = c.Error(err)
			abortWithKind(c, fulfillment.Kind(err), "")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func sendConfirmation(svc Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email     string      `json:"email"`
			OrderData model.Order `json:"orderData"`
		}
		// 占位接口，body 不完整也照常返回成功
		_ = c.ShouldBindJSON(&req)
		c.JSON(http.StatusOK, svc.SendConfirmation(c.Request.Context(), req.Email, req.OrderData))
	}
}

// listOrders 管理端订单列表，出错时返回空数组。
func listOrders(svc Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Orders(c.Request.Context()))
	}
}

// serveStatic 店面静态文件：/ 返回 index.html，其余未匹配的 GET 按文件查找。
func serveStatic(r *gin.Engine, dir string) {
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(dir, "index.html"))
	})
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || strings.HasPrefix(path, "/api/") {
			abortWithKind(c, kindNotFound, "Nem található")
			return
		}
		// Clean 以 / 开头，不会越出 dir
		full := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+path)))
		if info, err := os.Stat(full); err != nil || info.IsDir() {
			abortWithKind(c, kindNotFound, "Nem található")
			return
		}
		c.File(full)
	})
}
