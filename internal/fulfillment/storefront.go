package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"webshop/internal/catalog"
	"webshop/internal/metrics"
	"webshop/internal/model"
	"webshop/internal/payment"
	"webshop/internal/shipping"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var maxMinorAmount = decimal.NewFromInt(math.MaxInt64)

// CreatePaymentIntent 金额四舍五入到整数福林后交给支付网关，不重试。
func (p *Pipeline) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, o model.Order) (PaymentIntent, error) {
	rounded := amount.Round(0)
	ctx, span := p.tracer.Start(ctx, "fulfillment.create_payment_intent", trace.WithAttributes(
		attribute.String("order.id", o.OrderID),
		attribute.String("payment.amount", rounded.String()),
	))
	defer span.End()

	if !rounded.IsPositive() {
		return PaymentIntent{}, fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	// IntPart 超出 int64 会回绕成任意值
	if rounded.GreaterThan(maxMinorAmount) {
		return PaymentIntent{}, fmt.Errorf("%w: amount %s out of range", ErrInvalidOrder, rounded.String())
	}
	minor := rounded.IntPart()

	intent, err := p.payments.CreateIntent(ctx, payment.IntentRequest{
		AmountMinor: minor,
		Currency:    p.currency,
		Metadata: map[string]string{
			"orderId":       o.OrderID,
			"customerEmail": o.CustomerInfo.Email,
			"customerName":  o.CustomerInfo.Name,
		},
	})
	if err != nil {
		metrics.PaymentIntentsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, KindPaymentFailed)
		p.log.Error("create payment intent failed", zap.String("order_id", o.OrderID), zap.Int64("amount", minor), zap.Error(err))
		return PaymentIntent{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	metrics.PaymentIntentsTotal.WithLabelValues("ok").Inc()
	return PaymentIntent{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// ListPickupPoints 对外永不报错：网关失败或返回空列表时使用内置的三个自提点。
func (p *Pipeline) ListPickupPoints(ctx context.Context) []model.PickupPoint {
	if p.shipping != nil {
		points, err := p.shipping.ListPickupPoints(ctx)
		if err == nil && len(points) > 0 {
			return points
		}
		if err != nil {
			p.log.Warn("list pickup points failed, using fallback", zap.Error(err))
		} else {
			p.log.Warn("pickup point list empty, using fallback")
		}
	}
	metrics.PickupFallbackTotal.Inc()
	return shipping.FallbackPickupPoints()
}

// SendConfirmation 确认邮件目前只是占位，不真正发送。
func (p *Pipeline) SendConfirmation(ctx context.Context, email string, o model.Order) Confirmation {
	p.log.Info("confirmation email requested (not sent)",
		zap.String("order_id", o.OrderID),
		zap.String("email", email),
	)
	return Confirmation{Success: true, Message: MessageEmailSent}
}

// Orders 管理端订单列表；读取失败时返回空列表。
func (p *Pipeline) Orders(ctx context.Context) []model.LedgerRow {
	rows, err := p.ledger.ReadAll(ctx)
	if err != nil {
		p.log.Error("read ledger failed", zap.Error(err))
		return []model.LedgerRow{}
	}
	return rows
}

// Products 商品列表。
func (p *Pipeline) Products(ctx context.Context) ([]model.Product, error) {
	products, err := p.catalog.Load(ctx)
	if err != nil {
		return nil, storageErr("load catalog", err)
	}
	return products, nil
}

// Product 单个商品；不存在时返回 catalog.ErrProductNotFound。
func (p *Pipeline) Product(ctx context.Context, id int) (model.Product, error) {
	pr, err := p.catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return model.Product{}, err
		}
		return model.Product{}, storageErr("get product", err)
	}
	return pr, nil
}
