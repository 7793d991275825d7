package shipment

import (
	"context"
	"errors"
	"time"

	"webshop/internal/metrics"
	"webshop/internal/model"
	"webshop/internal/shipping"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const batchSize = 16

// Worker 后台消费 outbox 并调用物流网关。
// 语义：网关成功才标记 registered，失败保留 pending 并推迟一个 poll 周期，直到次数耗尽。
type Worker struct {
	outbox  *Outbox
	gateway shipping.Gateway
	log     *zap.Logger

	maxAttempts    int
	poll           time.Duration
	attemptTimeout time.Duration

	now func() time.Time
}

func NewWorker(outbox *Outbox, gw shipping.Gateway, maxAttempts int, poll, attemptTimeout time.Duration, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Worker{
		outbox:         outbox,
		gateway:        gw,
		log:            log.Named("shipment"),
		maxAttempts:    maxAttempts,
		poll:           poll,
		attemptTimeout: attemptTimeout,
		now:            time.Now,
	}
}

// Run 阻塞直到 ctx 取消。
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.log.Warn("drain outbox failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-w.outbox.wake:
		case <-ticker.C:
		}
	}
}

// Drain 处理已到期的 pending 记录各一次，返回本轮处理条数。
// 失败的记录要等一个 poll 周期后才会再被取出，新订单的唤醒不会提前消耗重试次数。
func (w *Worker) Drain(ctx context.Context) (int, error) {
	list, err := w.outbox.Pending(ctx, w.now(), batchSize)
	if err != nil {
		return 0, err
	}
	for _, s := range list {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err := w.processOne(ctx, s); err != nil {
			return 0, err
		}
	}
	return len(list), nil
}

// processOne 只在写 outbox 失败时返回错误；网关失败记入记录本身。
func (w *Worker) processOne(ctx context.Context, s model.Shipment) error {
	ctx, span := otel.Tracer("webshop/shipment").Start(ctx, "shipment.register")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", s.OrderID),
		attribute.Int("shipment.attempt", s.Attempts+1),
	)

	callCtx := ctx
	if w.attemptTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, w.attemptTimeout)
		defer cancel()
	}

	receipt, err := w.gateway.RegisterShipment(callCtx, shipping.ShipmentRequest{
		OrderNumber: s.OrderID,
		Recipient: shipping.Recipient{
			Name:  s.RecipientName,
			Email: s.RecipientEmail,
			Phone: s.RecipientPhone,
		},
		PointID: model.PointID(s.PointID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register shipment failed")
		final, markErr := w.outbox.markAttemptFailed(ctx, s, err, w.maxAttempts, w.now().Add(w.poll))
		if markErr != nil {
			return markErr
		}
		if final {
			metrics.ShipmentsTotal.WithLabelValues(model.ShipmentFailed.String()).Inc()
			w.log.Error("shipment registration gave up",
				zap.String("order_id", s.OrderID),
				zap.Int("attempts", s.Attempts+1),
				zap.Error(err),
			)
			return nil
		}
		metrics.ShipmentsTotal.WithLabelValues("retry").Inc()
		w.log.Warn("shipment registration failed, will retry",
			zap.String("order_id", s.OrderID),
			zap.Int("attempts", s.Attempts+1),
			zap.Error(err),
		)
		return nil
	}

	if err := w.outbox.markRegistered(ctx, s, receipt.TrackingRef); err != nil {
		return err
	}
	metrics.ShipmentsTotal.WithLabelValues(model.ShipmentRegistered.String()).Inc()
	span.SetAttributes(attribute.String("shipment.tracking_ref", receipt.TrackingRef))
	return nil
}
