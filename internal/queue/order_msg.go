package queue

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderCompletedMessage 订单入账后发布到 Kafka 的事件。
type OrderCompletedMessage struct {
	EventID        string          `json:"event_id"`
	OrderID        string          `json:"order_id"`
	CustomerEmail  string          `json:"customer_email"`
	CustomerName   string          `json:"customer_name"`
	Total          decimal.Decimal `json:"total"`
	TotalQuantity  int             `json:"total_quantity"`
	ShippingMethod string          `json:"shipping_method"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m OrderCompletedMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if m.CustomerEmail == "" {
		return fmt.Errorf("customer_email is required")
	}
	if m.TotalQuantity <= 0 {
		return fmt.Errorf("total_quantity must be > 0")
	}
	if m.Total.IsNegative() {
		return fmt.Errorf("total must not be negative")
	}
	if m.CompletedAt.IsZero() {
		return fmt.Errorf("completed_at is required")
	}
	return nil
}
