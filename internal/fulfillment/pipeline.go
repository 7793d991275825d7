// Package fulfillment 编排下单主流程：扣库存 → 写台账 → 登记发货。
//
// 前两步在同一把提交锁内串行执行，台账写入成功即视为订单已提交；
// 发货登记和事件发布都在锁外尽力而为，失败只记日志，不影响结果。
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"webshop/internal/ledger"
	"webshop/internal/metrics"
	"webshop/internal/model"
	"webshop/internal/payment"
	"webshop/internal/queue"
	"webshop/internal/shipment"
	"webshop/internal/shipping"
	rediskey "webshop/pkg/redis"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	MessageOrderCompleted = "Rendelés sikeresen rögzítve"
	MessageEmailSent      = "Email elküldve"

	publishTimeout    = 5 * time.Second
	inlineShipTimeout = 10 * time.Second
	tracerName        = "webshop/fulfillment"
)

// Catalog 商品目录的读与原子读-改-写。
type Catalog interface {
	Load(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id int) (model.Product, error)
	Update(ctx context.Context, fn func([]model.Product) ([]model.Product, error)) error
}

// Ledger 订单台账。
type Ledger interface {
	Append(ctx context.Context, row model.LedgerRow) error
	ReadAll(ctx context.Context) ([]model.LedgerRow, error)
	Contains(ctx context.Context, orderID string) (bool, error)
}

type ShipmentScheduler interface {
	Schedule(ctx context.Context, t shipment.Task) error
}

type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, msg queue.OrderCompletedMessage) error
}

// OrderLocker 跨进程的订单级互斥；被占用时返回 rediskey.ErrLockHeld。
type OrderLocker interface {
	Acquire(ctx context.Context, orderID string) (func(context.Context) error, error)
}

// Deps 可选依赖为 nil 时对应步骤跳过：
// Shipments 为 nil 时退化为同步调用 Shipping 登记。
type Deps struct {
	Catalog  Catalog
	Ledger   Ledger
	Payments payment.Gateway
	Shipping shipping.Gateway

	Shipments ShipmentScheduler
	Events    EventPublisher
	Locker    OrderLocker

	Currency string
	Now      func() time.Time
	Log      *zap.Logger
}

type Result struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type Confirmation struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Pipeline struct {
	catalog   Catalog
	ledger    Ledger
	payments  payment.Gateway
	shipping  shipping.Gateway
	shipments ShipmentScheduler
	events    EventPublisher
	locker    OrderLocker

	currency string
	now      func() time.Time
	log      *zap.Logger
	tracer   trace.Tracer

	// commitMu 串行化“查重 + 扣库存 + 写台账”
	commitMu sync.Mutex
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	currency := d.Currency
	if currency == "" {
		currency = "huf"
	}
	return &Pipeline{
		catalog:   d.Catalog,
		ledger:    d.Ledger,
		payments:  d.Payments,
		shipping:  d.Shipping,
		shipments: d.Shipments,
		events:    d.Events,
		locker:    d.Locker,
		currency:  currency,
		now:       now,
		log:       log.Named("fulfillment"),
		tracer:    otel.Tracer(tracerName),
	}
}

// CompleteOrder 提交一笔已付款订单。
// 返回成功即表示库存已扣、台账已写；发货登记失败不会改变结果。
func (p *Pipeline) CompleteOrder(ctx context.Context, o model.Order) (res Result, err error) {
	ctx, span := p.tracer.Start(ctx, "fulfillment.complete_order",
		trace.WithAttributes(attribute.String("order.id", o.OrderID)))
	defer func() {
		if err != nil {
			kind := Kind(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
			metrics.OrdersRejectedTotal.WithLabelValues(kind).Inc()
			p.log.Warn("order rejected",
				zap.String("order_id", o.OrderID),
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
		span.End()
	}()

	if err := o.Validate(); err != nil {
		return Result{}, err
	}

	if p.locker != nil {
		release, err := p.locker.Acquire(ctx, o.OrderID)
		switch {
		case errors.Is(err, rediskey.ErrLockHeld):
			return Result{}, fmt.Errorf("%w: %s", ErrOrderInProgress, o.OrderID)
		case err != nil:
			// Redis 不可用时继续：进程内提交锁和台账查重仍然生效
			p.log.Warn("order lock unavailable, continuing without it", zap.String("order_id", o.OrderID), zap.Error(err))
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					p.log.Warn("release order lock failed", zap.String("order_id", o.OrderID), zap.Error(err))
				}
			}()
		}
	}

	committed, err := p.commit(ctx, o)
	if err != nil {
		return Result{}, err
	}
	metrics.OrdersCompletedTotal.Inc()
	p.log.Info("order committed",
		zap.String("order_id", committed.OrderID),
		zap.Int("total_quantity", committed.TotalQuantity()),
		zap.String("total", committed.Total.String()),
	)

	p.afterCommit(ctx, committed)

	return Result{Success: true, OrderID: committed.OrderID, Message: MessageOrderCompleted}, nil
}

// commit 在提交锁内完成查重、扣库存、写台账。
// 库存一旦扣减，后续步骤不再响应 ctx 取消：要么写入台账，要么回补库存。
func (p *Pipeline) commit(ctx context.Context, o model.Order) (model.Order, error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	dup, err := p.ledger.Contains(ctx, o.OrderID)
	if err != nil {
		return model.Order{}, storageErr("check duplicate", err)
	}
	if dup {
		return model.Order{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, o.OrderID)
	}

	demand := demandOf(o.Items)
	names := make(map[int]string, len(demand))

	_, span := p.tracer.Start(ctx, "fulfillment.reserve_stock")
	err = p.catalog.Update(ctx, func(products []model.Product) ([]model.Product, error) {
		idx := make(map[int]int, len(products))
		for i, pr := range products {
			idx[pr.ID] = i
		}
		for _, id := range sortedIDs(demand) {
			i, ok := idx[id]
			if !ok {
				return nil, fmt.Errorf("%w: product %d", ErrUnknownProduct, id)
			}
			if products[i].Quantity < demand[id] {
				return nil, fmt.Errorf("%w: product %d has %d, requested %d",
					ErrInsufficientStock, id, products[i].Quantity, demand[id])
			}
		}
		for id, n := range demand {
			i := idx[id]
			products[i].Quantity -= n
			names[id] = products[i].Name
		}
		return products, nil
	})
	span.End()
	if err != nil {
		if errors.Is(err, ErrUnknownProduct) || errors.Is(err, ErrInsufficientStock) {
			return model.Order{}, err
		}
		return model.Order{}, storageErr("reserve stock", err)
	}

	o = withCatalogNames(o, names)
	commitCtx := context.WithoutCancel(ctx)

	_, span = p.tracer.Start(ctx, "fulfillment.append_ledger")
	err = p.ledger.Append(commitCtx, ledger.BuildRow(o, p.now()))
	span.End()
	if err != nil {
		p.restoreStock(commitCtx, o.OrderID, demand)
		return model.Order{}, storageErr("append ledger", err)
	}
	return o, nil
}

// restoreStock 台账写入失败时把已扣的库存加回去。
func (p *Pipeline) restoreStock(ctx context.Context, orderID string, demand map[int]int) {
	err := p.catalog.Update(ctx, func(products []model.Product) ([]model.Product, error) {
		for i := range products {
			if n, ok := demand[products[i].ID]; ok {
				products[i].Quantity += n
			}
		}
		return products, nil
	})
	if err != nil {
		p.log.Error("stock restore failed, catalog needs manual correction",
			zap.String("order_id", orderID),
			zap.Any("demand", demand),
			zap.Error(err),
		)
		return
	}
	p.log.Info("stock restored after ledger failure", zap.String("order_id", orderID))
}

// afterCommit 提交后的非关键步骤，全部尽力而为。
func (p *Pipeline) afterCommit(ctx context.Context, o model.Order) {
	ctx = context.WithoutCancel(ctx)

	if o.ShippingMethod == model.ShippingFoxpost {
		p.registerShipment(ctx, o)
	}

	if p.events != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		msg := queue.OrderCompletedMessage{
			EventID:        uuid.NewString(),
			OrderID:        o.OrderID,
			CustomerEmail:  o.CustomerInfo.Email,
			CustomerName:   o.CustomerInfo.Name,
			Total:          o.Total,
			TotalQuantity:  o.TotalQuantity(),
			ShippingMethod: string(o.ShippingMethod),
			CompletedAt:    p.now().UTC(),
		}
		if err := p.events.PublishOrderCompleted(pubCtx, msg); err != nil {
			p.log.Warn("publish order completed failed (non-critical)", zap.String("order_id", o.OrderID), zap.Error(err))
		}
	}
}

func (p *Pipeline) registerShipment(ctx context.Context, o model.Order) {
	c := o.CustomerInfo
	if p.shipments != nil {
		err := p.shipments.Schedule(ctx, shipment.Task{
			OrderID: o.OrderID,
			Name:    c.Name,
			Email:   c.Email,
			Phone:   c.Phone,
			PointID: o.FoxpostLocationID,
		})
		if err != nil {
			p.log.Error("schedule shipment failed (non-critical)", zap.String("order_id", o.OrderID), zap.Error(err))
		}
		return
	}
	if p.shipping == nil {
		return
	}

	shipCtx, cancel := context.WithTimeout(ctx, inlineShipTimeout)
	defer cancel()
	receipt, err := p.shipping.RegisterShipment(shipCtx, shipping.ShipmentRequest{
		OrderNumber: o.OrderID,
		Recipient:   shipping.Recipient{Name: c.Name, Email: c.Email, Phone: c.Phone},
		PointID:     o.FoxpostLocationID,
	})
	if err != nil {
		metrics.ShipmentsTotal.WithLabelValues(model.ShipmentFailed.String()).Inc()
		p.log.Error("register shipment failed (non-critical)", zap.String("order_id", o.OrderID), zap.Error(err))
		return
	}
	metrics.ShipmentsTotal.WithLabelValues(model.ShipmentRegistered.String()).Inc()
	p.log.Info("shipment registered", zap.String("order_id", o.OrderID), zap.String("tracking_ref", receipt.TrackingRef))
}

// demandOf 按商品汇总需求量，同一商品出现多行时合并。
func demandOf(items []model.OrderItem) map[int]int {
	demand := make(map[int]int, len(items))
	for _, it := range items {
		demand[it.ProductID] += it.Quantity
	}
	return demand
}

func sortedIDs(demand map[int]int) []int {
	ids := make([]int, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func withCatalogNames(o model.Order, names map[int]string) model.Order {
	items := make([]model.OrderItem, len(o.Items))
	copy(items, o.Items)
	for i := range items {
		if items[i].Name == "" {
			items[i].Name = names[items[i].ProductID]
		}
	}
	o.Items = items
	return o
}
