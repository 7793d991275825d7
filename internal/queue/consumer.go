package queue

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler 处理一条已校验的事件；返回错误只记录日志，不阻塞后续消息。
type Handler func(ctx context.Context, msg OrderCompletedMessage) error

type Consumer struct {
	r   *kafka.Reader
	log *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		log: log.Named("consumer"),
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 读取消息直到 ctx 取消或连接关闭。
func (c *Consumer) Run(ctx context.Context, handle Handler) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Error("read message failed", zap.Error(err))
			}
			return // ctx cancel / 连接断开等
		}
		c.dispatch(ctx, m.Value, handle, zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
	}
}

func (c *Consumer) dispatch(ctx context.Context, value []byte, handle Handler, fields ...zap.Field) {
	var msg OrderCompletedMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		c.log.Warn("consumer unmarshal", append(fields, zap.Error(err))...)
		return
	}
	if err := msg.Validate(); err != nil {
		c.log.Warn("consumer invalid message", append(fields, zap.Error(err))...)
		return
	}
	if err := handle(ctx, msg); err != nil {
		c.log.Error("handle order completed", append(fields, zap.String("order_id", msg.OrderID), zap.Error(err))...)
	}
}
